// Package extractor turns free-text shopping queries into structured
// constraints via a language model, with a strict parse-or-fail boundary.
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/smartshop/search/internal/llm"
	"github.com/smartshop/search/internal/search"
)

// ErrExtraction is returned when the query cannot be parsed into constraints.
// Extraction failure is surfaced to the client, never retried and never
// replaced with an empty constraint set.
var ErrExtraction = errors.New("constraint extraction failed")

const extractSystemPrompt = `You extract structured shopping constraints from a buyer's query.
Output ONLY a JSON object with these fields:
  product_type (string, required; "" if unclear)
  price_min, price_max (numbers, omit when not stated)
  use_case, recipient, brand_preference, urgency (strings, omit when not stated)
  must_have_features, avoid_features (arrays of strings, omit when empty)
Do not invent constraints the buyer did not state.`

// Extractor extracts search constraints from natural-language queries.
type Extractor struct {
	llmClient llm.LLM
	model     string
}

// Option is a functional option for configuring Extractor.
type Option func(*Extractor)

// WithModel sets the model used for extraction.
func WithModel(model string) Option {
	return func(e *Extractor) {
		e.model = model
	}
}

// New creates a new constraint extractor.
func New(llmClient llm.LLM, opts ...Option) *Extractor {
	e := &Extractor{llmClient: llmClient}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses a query into constraints. When categories is non-empty the
// model is instructed to choose product_type from those leaf names only.
// Model errors and schema violations both return ErrExtraction.
func (e *Extractor) Extract(ctx context.Context, query string, categories []string) (search.Constraints, error) {
	prompt := e.buildPrompt(query, categories)

	opts := llm.GenerateOptions{
		Model:        e.model,
		SystemPrompt: extractSystemPrompt,
		Temperature:  0.0,
		MaxTokens:    512,
		Format:       "json",
	}

	response, err := e.llmClient.Generate(ctx, prompt, opts)
	if err != nil {
		return search.Constraints{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	var constraints search.Constraints
	if err := json.Unmarshal([]byte(llm.ExtractJSON(response)), &constraints); err != nil {
		return search.Constraints{}, fmt.Errorf("%w: unparseable model output: %v", ErrExtraction, err)
	}

	return constraints, nil
}

func (e *Extractor) buildPrompt(query string, categories []string) string {
	var sb strings.Builder

	sb.WriteString("Buyer query: ")
	sb.WriteString(query)
	sb.WriteString("\n")

	if len(categories) > 0 {
		sb.WriteString("\nChoose product_type from exactly one of these categories:\n")
		for _, c := range categories {
			sb.WriteString("- ")
			sb.WriteString(c)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\nJSON:")
	return sb.String()
}

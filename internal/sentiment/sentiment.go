// Package sentiment provides binary sentiment classification for review text.
package sentiment

import (
	"context"
	"fmt"
	"strings"

	"github.com/smartshop/search/internal/llm"
)

// Classifier labels a single review as positive or negative.
type Classifier interface {
	// Classify returns true when the review reads as positive.
	Classify(ctx context.Context, review string) (bool, error)
}

const classifySystemPrompt = `You are a sentiment classifier for product reviews.
Answer with exactly one word: positive or negative. No punctuation, no explanation.`

// LLMClassifier implements Classifier with a one-word LLM prompt.
type LLMClassifier struct {
	llmClient llm.LLM
	model     string
}

// LLMClassifierOption is a functional option for configuring LLMClassifier.
type LLMClassifierOption func(*LLMClassifier)

// WithModel sets the model used for classification.
func WithModel(model string) LLMClassifierOption {
	return func(c *LLMClassifier) {
		c.model = model
	}
}

// NewLLMClassifier creates a new LLM-backed sentiment classifier.
func NewLLMClassifier(llmClient llm.LLM, opts ...LLMClassifierOption) *LLMClassifier {
	c := &LLMClassifier{llmClient: llmClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify asks the model for a one-word label and parses it strictly.
// Anything that is not recognizably positive or negative is an error; the
// caller decides how to degrade.
func (c *LLMClassifier) Classify(ctx context.Context, review string) (bool, error) {
	opts := llm.GenerateOptions{
		Model:        c.model,
		SystemPrompt: classifySystemPrompt,
		Temperature:  0.0,
		MaxTokens:    8,
	}

	response, err := c.llmClient.Generate(ctx, review, opts)
	if err != nil {
		return false, fmt.Errorf("sentiment classification failed: %w", err)
	}

	label := strings.ToLower(strings.TrimSpace(response))
	switch {
	case strings.HasPrefix(label, "positive"):
		return true, nil
	case strings.HasPrefix(label, "negative"):
		return false, nil
	}
	return false, fmt.Errorf("unrecognized sentiment label %q", label)
}

// Ensure LLMClassifier implements Classifier interface.
var _ Classifier = (*LLMClassifier)(nil)

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/smartshop/search/internal/llm"
)

// fallbackReasoning is the fixed justification attached to a verdict produced
// by the deterministic scoring formula instead of the ranking model.
const fallbackReasoning = "Chosen by combined relevance and popularity scoring " +
	"because the ranking model was unavailable or returned an invalid answer."

// descriptionLimit truncates candidate descriptions in the ranking prompt.
const descriptionLimit = 200

// BestPickSelector picks a single winner from ranked candidates: an LLM
// verdict when the model cooperates, a deterministic score otherwise. Every
// call with at least one candidate produces exactly one verdict.
type BestPickSelector struct {
	llmClient llm.LLM
	model     string
	logger    *slog.Logger
}

// BestPickOption is a functional option for configuring BestPickSelector.
type BestPickOption func(*BestPickSelector)

// WithModel sets the model used for ranking.
func WithModel(model string) BestPickOption {
	return func(s *BestPickSelector) {
		s.model = model
	}
}

// NewBestPickSelector creates a new best-pick selector.
func NewBestPickSelector(llmClient llm.LLM, logger *slog.Logger, opts ...BestPickOption) *BestPickSelector {
	if logger == nil {
		logger = slog.Default()
	}
	s := &BestPickSelector{llmClient: llmClient, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// llmVerdict is the structured output expected from the ranking model.
type llmVerdict struct {
	BestIndex int    `json:"best_index"`
	Reasoning string `json:"reasoning"`
}

// Select returns the winning candidate index with a justification. Model
// errors, malformed output, an out-of-range index, or empty reasoning all
// route to the deterministic fallback. An error is returned only for an
// empty candidate list.
func (s *BestPickSelector) Select(ctx context.Context, query string, candidates []ScoredProduct) (Verdict, error) {
	if len(candidates) == 0 {
		return Verdict{}, ErrNoCandidates
	}

	prompt := s.buildRankingPrompt(query, candidates)

	opts := llm.GenerateOptions{
		Model:       s.model,
		Temperature: 0.0, // Deterministic ranking
		MaxTokens:   512,
		Format:      "json",
	}

	response, err := s.llmClient.Generate(ctx, prompt, opts)
	if err != nil {
		s.logger.Warn("ranking model call failed, using fallback", "error", err)
		return s.fallbackVerdict(candidates), nil
	}

	var parsed llmVerdict
	if err := json.Unmarshal([]byte(llm.ExtractJSON(response)), &parsed); err != nil {
		s.logger.Warn("ranking model output unparseable, using fallback", "error", err)
		return s.fallbackVerdict(candidates), nil
	}

	if parsed.BestIndex < 0 || parsed.BestIndex >= len(candidates) ||
		strings.TrimSpace(parsed.Reasoning) == "" {
		s.logger.Warn("ranking model verdict invalid, using fallback",
			"best_index", parsed.BestIndex, "candidates", len(candidates))
		return s.fallbackVerdict(candidates), nil
	}

	return Verdict{Index: parsed.BestIndex, Reasoning: parsed.Reasoning}, nil
}

// buildRankingPrompt serializes candidates into a compact textual table and
// asks for a structured verdict. Only columns with data are emitted.
func (s *BestPickSelector) buildRankingPrompt(query string, candidates []ScoredProduct) string {
	var sb strings.Builder

	sb.WriteString("You are a shopping assistant choosing the single best product for a query.\n\n")
	sb.WriteString("Query: ")
	sb.WriteString(query)
	sb.WriteString("\n\nCandidates:\n")

	for i, c := range candidates {
		desc := truncateDescription(c.Description)
		sb.WriteString(fmt.Sprintf("[%d] title=%q | price=%.2f | rating=%.1f | sentiment_score=%.2f | sold=%d",
			i, c.Title, c.Price, c.Rating, c.SentimentScore, c.Sold))
		if c.SimilarityScore != nil {
			sb.WriteString(fmt.Sprintf(" | similarity_score=%.4f", *c.SimilarityScore))
		}
		sb.WriteString("\n    ")
		sb.WriteString(desc)
		sb.WriteString("\n")
	}

	sb.WriteString(`
Pick the candidate that best satisfies the query, weighing relevance, reviews, popularity, and price.
Output ONLY valid JSON in this exact format:
{"best_index": <integer>, "reasoning": "<one or two sentences>"}`)

	return sb.String()
}

// truncateDescription caps a description at descriptionLimit bytes without
// splitting a multi-byte rune mid-sequence.
func truncateDescription(desc string) string {
	if len(desc) <= descriptionLimit {
		return desc
	}
	cut := descriptionLimit
	for cut > 0 && !utf8.RuneStart(desc[cut]) {
		cut--
	}
	return desc[:cut] + "..."
}

// fallbackVerdict applies the deterministic formula: sales counts normalized
// to [0,1] (epsilon keeps the division defined when every candidate sold the
// same amount), blended 30/70 with similarity. The highest combined score
// wins; the first candidate breaks ties.
func (s *BestPickSelector) fallbackVerdict(candidates []ScoredProduct) Verdict {
	const eps = 1e-5

	minSold, maxSold := candidates[0].Sold, candidates[0].Sold
	for _, c := range candidates[1:] {
		if c.Sold < minSold {
			minSold = c.Sold
		}
		if c.Sold > maxSold {
			maxSold = c.Sold
		}
	}

	best := 0
	bestScore := math.Inf(-1)
	for i, c := range candidates {
		normalizedSales := float64(c.Sold-minSold) / (float64(maxSold-minSold) + eps)
		combined := 0.7*similarityOf(c) + 0.3*normalizedSales
		if combined > bestScore {
			best = i
			bestScore = combined
		}
	}

	return Verdict{Index: best, Reasoning: fallbackReasoning}
}

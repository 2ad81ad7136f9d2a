package search

import (
	"context"
	"log/slog"
	"math"

	"github.com/smartshop/search/internal/sentiment"
)

// maxReviewsScored caps how many reviews per product feed the sentiment score.
const maxReviewsScored = 10

// SentimentScorer aggregates per-review sentiment into one score per candidate.
type SentimentScorer struct {
	classifier sentiment.Classifier
	logger     *slog.Logger
}

// NewSentimentScorer creates a new sentiment scorer.
func NewSentimentScorer(c sentiment.Classifier, logger *slog.Logger) *SentimentScorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SentimentScorer{classifier: c, logger: logger}
}

// Score sets SentimentScore on every candidate: the percentage of its first
// reviews labeled positive, rounded to two decimals. Candidates without
// reviews score 0. A classification error zeroes that candidate only; the
// rest of the batch is unaffected.
func (s *SentimentScorer) Score(ctx context.Context, candidates []ScoredProduct) []ScoredProduct {
	for i := range candidates {
		candidates[i].SentimentScore = s.scoreOne(ctx, candidates[i])
	}
	return candidates
}

func (s *SentimentScorer) scoreOne(ctx context.Context, c ScoredProduct) float64 {
	reviews := c.Reviews
	if len(reviews) == 0 {
		return 0
	}
	if len(reviews) > maxReviewsScored {
		reviews = reviews[:maxReviewsScored]
	}

	positive := 0
	for _, review := range reviews {
		isPositive, err := s.classifier.Classify(ctx, review)
		if err != nil {
			s.logger.Warn("review classification failed, zeroing candidate",
				"product_id", c.ID, "error", err)
			return 0
		}
		if isPositive {
			positive++
		}
	}

	pct := float64(positive) / float64(len(reviews)) * 100
	return math.Round(pct*100) / 100
}

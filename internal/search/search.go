// Package search implements the query-to-ranked-results pipeline: constraint
// filtering with relaxation, semantic ranking by embedding similarity, review
// sentiment aggregation, composed result ordering, and best-pick selection
// with a deterministic fallback.
package search

import (
	"errors"

	"github.com/smartshop/search/internal/catalog"
)

// ErrNoCandidates is returned when no product survives filtering even after
// relaxation. Only the recommend path surfaces it; plain search returns an
// empty result instead.
var ErrNoCandidates = errors.New("no matching products")

// Constraints is the structured form of a shopping query. Produced once per
// request by the extractor and immutable thereafter. PriceMin > PriceMax is
// tolerated downstream and simply matches nothing.
type Constraints struct {
	ProductType      string   `json:"product_type"`
	PriceMin         *float64 `json:"price_min,omitempty"`
	PriceMax         *float64 `json:"price_max,omitempty"`
	UseCase          string   `json:"use_case,omitempty"`
	Recipient        string   `json:"recipient,omitempty"`
	BrandPreference  string   `json:"brand_preference,omitempty"`
	Urgency          string   `json:"urgency,omitempty"`
	MustHaveFeatures []string `json:"must_have_features,omitempty"`
	AvoidFeatures    []string `json:"avoid_features,omitempty"`
}

// ScoredProduct is a catalog product plus the signals derived during one
// request. SimilarityScore is nil when embedding was unavailable for the
// batch. Scores are request-scoped and never written back to the catalog.
type ScoredProduct struct {
	catalog.Product

	SimilarityScore *float64
	SentimentScore  float64
}

// Verdict is the outcome of best-pick selection: the index of the winning
// candidate and a human-readable justification. Exactly one verdict is
// produced per recommendation, from the model or from the fallback.
type Verdict struct {
	Index     int
	Reasoning string
}

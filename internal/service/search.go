// Package service orchestrates the search, recommend, and reverse image
// search pipelines over the catalog and capability clients.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/smartshop/search/internal/catalog"
	"github.com/smartshop/search/internal/embedder"
	"github.com/smartshop/search/internal/extractor"
	"github.com/smartshop/search/internal/imageindex"
	"github.com/smartshop/search/internal/search"
)

// Recommendation is a winning product plus the verdict's justification.
type Recommendation struct {
	search.ScoredProduct
	Reasoning string
}

// SearchService wires the pipeline stages together. All derived state
// (constraints, scores, verdicts) is request-local; concurrent requests
// share only the read-only catalog and the image index.
type SearchService struct {
	store       catalog.Store
	extractor   *extractor.Extractor
	ranker      *search.SemanticRanker
	scorer      *search.SentimentScorer
	picker      *search.BestPickSelector
	imgEmbedder embedder.ImageEmbedder
	imageIndex  imageindex.Index
	searchTopK  int
	imageTopK   int
	logger      *slog.Logger
}

// SearchServiceConfig holds the dependencies and defaults for SearchService.
type SearchServiceConfig struct {
	Store         catalog.Store
	Extractor     *extractor.Extractor
	Ranker        *search.SemanticRanker
	Scorer        *search.SentimentScorer
	Picker        *search.BestPickSelector
	ImageEmbedder embedder.ImageEmbedder
	ImageIndex    imageindex.Index
	SearchTopK    int
	ImageTopK     int
	Logger        *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(cfg SearchServiceConfig) *SearchService {
	searchTopK := cfg.SearchTopK
	if searchTopK <= 0 {
		searchTopK = search.DefaultTopK
	}
	imageTopK := cfg.ImageTopK
	if imageTopK <= 0 {
		imageTopK = 3
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchService{
		store:       cfg.Store,
		extractor:   cfg.Extractor,
		ranker:      cfg.Ranker,
		scorer:      cfg.Scorer,
		picker:      cfg.Picker,
		imgEmbedder: cfg.ImageEmbedder,
		imageIndex:  cfg.ImageIndex,
		searchTopK:  searchTopK,
		imageTopK:   imageTopK,
		logger:      logger,
	}
}

// SimpleSearch runs the full text pipeline and returns composed results.
// No match is an empty list, not an error.
func (s *SearchService) SimpleSearch(ctx context.Context, query string) ([]search.ScoredProduct, error) {
	scored, err := s.retrieve(ctx, query)
	if err != nil {
		return nil, err
	}
	if scored == nil {
		return []search.ScoredProduct{}, nil
	}
	return search.Compose(scored), nil
}

// Recommend runs the pipeline through sentiment scoring and picks one winner.
// Returns search.ErrNoCandidates when relaxation still yields nothing.
func (s *SearchService) Recommend(ctx context.Context, query string) (Recommendation, error) {
	scored, err := s.retrieve(ctx, query)
	if err != nil {
		return Recommendation{}, err
	}
	if len(scored) == 0 {
		return Recommendation{}, search.ErrNoCandidates
	}

	verdict, err := s.picker.Select(ctx, query, scored)
	if err != nil {
		return Recommendation{}, err
	}

	return Recommendation{
		ScoredProduct: scored[verdict.Index],
		Reasoning:     verdict.Reasoning,
	}, nil
}

// ReverseImageSearch embeds the query image and looks up nearest neighbors
// in the precomputed index. topK <= 0 uses the configured default.
func (s *SearchService) ReverseImageSearch(ctx context.Context, image []byte, topK int) ([]search.ScoredProduct, error) {
	if topK <= 0 {
		topK = s.imageTopK
	}

	vector, err := s.imgEmbedder.EmbedImage(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("embedding query image: %w", err)
	}

	matches, err := s.imageIndex.Search(ctx, vector, topK)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, search.ErrNoCandidates
	}

	products, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	results := make([]search.ScoredProduct, 0, len(matches))
	for _, m := range matches {
		p, ok := byID[m.ProductID]
		if !ok {
			// Index entry for a product no longer in the catalog.
			s.logger.Warn("image index references unknown product", "product_id", m.ProductID)
			continue
		}
		score := m.Score
		results = append(results, search.ScoredProduct{
			Product:         p,
			SimilarityScore: &score,
		})
	}
	if len(results) == 0 {
		return nil, search.ErrNoCandidates
	}
	return results, nil
}

// ListProducts returns the full catalog snapshot.
func (s *SearchService) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	return s.store.List(ctx)
}

// retrieve runs extraction, strict-then-relaxed filtering, semantic ranking,
// and sentiment scoring. A nil return with nil error means no candidates
// survived relaxation; the caller decides whether that is empty or not-found.
func (s *SearchService) retrieve(ctx context.Context, query string) ([]search.ScoredProduct, error) {
	products, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	categories, err := s.store.Categories(ctx)
	if err != nil {
		return nil, err
	}

	constraints, err := s.extractor.Extract(ctx, query, categories)
	if err != nil {
		return nil, err
	}

	candidates := search.Filter(products, constraints)
	if len(candidates) == 0 {
		candidates = search.Filter(products, search.Relax(constraints))
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ranked := s.ranker.Rank(ctx, query, candidates, s.searchTopK)
	return s.scorer.Score(ctx, ranked), nil
}

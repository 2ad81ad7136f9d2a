package search

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/smartshop/search/internal/catalog"
	"github.com/smartshop/search/internal/embedder"
)

// DefaultTopK is the default number of candidates kept after semantic ranking.
const DefaultTopK = 10

// SemanticRanker orders candidates by embedding similarity to the query.
type SemanticRanker struct {
	embedder embedder.Embedder
	logger   *slog.Logger
}

// NewSemanticRanker creates a new semantic ranker.
func NewSemanticRanker(e embedder.Embedder, logger *slog.Logger) *SemanticRanker {
	if logger == nil {
		logger = slog.Default()
	}
	return &SemanticRanker{embedder: e, logger: logger}
}

// Rank embeds the query and every candidate's search text, sorts by cosine
// similarity descending, and truncates to topK. When the embedding capability
// fails for any reason, the whole batch is left unscored and the first topK
// candidates are returned in input order — degraded, never a hard failure.
func (r *SemanticRanker) Rank(ctx context.Context, query string, candidates []catalog.Product, topK int) []ScoredProduct {
	if topK <= 0 {
		topK = DefaultTopK
	}

	scored := make([]ScoredProduct, len(candidates))
	for i, p := range candidates {
		scored[i] = ScoredProduct{Product: p}
	}

	if len(scored) == 0 {
		return scored
	}

	texts := make([]string, len(candidates))
	for i, p := range candidates {
		texts[i] = searchText(p)
	}

	vectors, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		r.logger.Warn("candidate embedding failed, returning unscored order", "error", err)
		return truncate(scored, topK)
	}

	queryVector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Warn("query embedding failed, returning unscored order", "error", err)
		return truncate(scored, topK)
	}

	for i := range scored {
		sim := cosineSimilarity(queryVector, vectors[i])
		scored[i].SimilarityScore = &sim
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return *scored[i].SimilarityScore > *scored[j].SimilarityScore
	})

	return truncate(scored, topK)
}

func truncate(scored []ScoredProduct, topK int) []ScoredProduct {
	if len(scored) > topK {
		return scored[:topK]
	}
	return scored
}

// searchText builds the text embedded for a candidate: title, description,
// and tags joined with spaces. Missing fields contribute nothing.
func searchText(p catalog.Product) string {
	parts := make([]string, 0, 3)
	if p.Title != "" {
		parts = append(parts, p.Title)
	}
	if p.Description != "" {
		parts = append(parts, p.Description)
	}
	if len(p.Tags) > 0 {
		parts = append(parts, strings.Join(p.Tags, " "))
	}
	return strings.Join(parts, " ")
}

// cosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 for mismatched lengths or zero vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

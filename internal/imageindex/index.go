// Package imageindex maps precomputed product image embeddings to catalog
// rows for reverse image search. The index is populated once during startup
// and read-only afterwards; products whose embedding could not be computed
// are simply absent, never scored as zero.
package imageindex

import (
	"context"
	"errors"
)

// ErrNotReady is returned when the index holds zero embeddings, e.g. before
// the startup preload has completed. Image-search callers fail fast on it
// instead of blocking.
var ErrNotReady = errors.New("image index not ready")

// Entry is one product's precomputed image embedding.
type Entry struct {
	ProductID string
	Vector    []float32
}

// Match is a nearest-neighbor hit with its cosine similarity.
type Match struct {
	ProductID string
	Score     float64
}

// Index stores image embeddings and answers nearest-neighbor queries.
type Index interface {
	// Upsert inserts or replaces entries.
	Upsert(ctx context.Context, entries []Entry) error

	// Search returns up to topK matches ordered by similarity descending.
	// Returns ErrNotReady when the index holds no embeddings.
	Search(ctx context.Context, vector []float32, topK int) ([]Match, error)

	// Count returns the number of loaded embeddings.
	Count(ctx context.Context) (int, error)
}

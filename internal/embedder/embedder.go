// Package embedder provides interfaces and implementations for text and image embedding.
package embedder

import "context"

// Embedder defines the interface for text embedding services.
type Embedder interface {
	// Embed generates an embedding vector for a single text input.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embedding vectors for multiple text inputs.
	// Returns a slice of embeddings in the same order as the input texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the embedding vectors.
	Dimension() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string
}

// ImageEmbedder defines the interface for image embedding services.
// Implementations map raw image bytes into the same vector space used by the
// reverse image index.
type ImageEmbedder interface {
	// EmbedImage generates an embedding vector for raw image bytes.
	EmbedImage(ctx context.Context, data []byte) ([]float32, error)

	// Dimension returns the dimensionality of the embedding vectors.
	Dimension() int
}

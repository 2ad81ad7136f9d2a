package embedder

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultImageServiceURL is the default image embedding service endpoint.
	DefaultImageServiceURL = "http://localhost:8093"

	// DefaultImageDimension is the default dimension for CLIP-style models.
	DefaultImageDimension = 512
)

// ImageServiceConfig holds configuration for the HTTP image embedder.
type ImageServiceConfig struct {
	// BaseURL is the embedding service base URL (default: http://localhost:8093).
	BaseURL string

	// Dimension is the embedding dimension (default: 512).
	Dimension int

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client
}

// ImageServiceEmbedder implements ImageEmbedder against a CLIP-style HTTP
// embedding service exposing POST /embed with a base64-encoded image.
type ImageServiceEmbedder struct {
	baseURL   string
	dimension int
	client    *http.Client
}

type imageEmbedRequest struct {
	Image string `json:"image"` // base64-encoded image bytes
}

type imageEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// NewImageServiceEmbedder creates a new HTTP image embedder.
func NewImageServiceEmbedder(cfg ImageServiceConfig) *ImageServiceEmbedder {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultImageServiceURL
	}

	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = DefaultImageDimension
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	return &ImageServiceEmbedder{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		dimension: dimension,
		client:    client,
	}
}

// EmbedImage generates an embedding vector for raw image bytes.
func (e *ImageServiceEmbedder) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}

	reqBody := imageEmbedRequest{
		Image: base64.StdEncoding.EncodeToString(data),
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/embed", e.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("image embedding service error (status %d): %s", resp.StatusCode, string(body))
	}

	var embedResp imageEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(embedResp.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned from image service")
	}

	embedding := make([]float32, len(embedResp.Embedding))
	for i, v := range embedResp.Embedding {
		embedding[i] = float32(v)
	}

	return embedding, nil
}

// Dimension returns the dimensionality of the embedding vectors.
func (e *ImageServiceEmbedder) Dimension() int {
	return e.dimension
}

// Ensure ImageServiceEmbedder implements ImageEmbedder interface.
var _ ImageEmbedder = (*ImageServiceEmbedder)(nil)

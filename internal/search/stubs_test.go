package search

import (
	"context"
	"errors"

	"github.com/smartshop/search/internal/llm"
)

// stubEmbedder returns canned vectors keyed by input text.
type stubEmbedder struct {
	vectors map[string][]float32
	query   []float32
	fail    bool
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if s.fail {
		return nil, errors.New("embedder down")
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return s.query, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if s.fail {
		return nil, errors.New("embedder down")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) Dimension() int    { return 2 }
func (s *stubEmbedder) ModelName() string { return "stub" }

// stubLLM returns a canned response or error.
type stubLLM struct {
	response string
	err      error
	prompts  []string
}

func (s *stubLLM) Generate(_ context.Context, prompt string, _ llm.GenerateOptions) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

// stubClassifier labels reviews by lookup, erroring on unknown text.
type stubClassifier struct {
	labels map[string]bool
	err    error
}

func (s *stubClassifier) Classify(_ context.Context, review string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	label, ok := s.labels[review]
	if !ok {
		return false, errors.New("unknown review")
	}
	return label, nil
}

package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/smartshop/search/internal/llm"
)

type stubLLM struct {
	response string
	err      error
	prompt   string
	system   string
}

func (s *stubLLM) Generate(_ context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	s.prompt = prompt
	s.system = opts.SystemPrompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestExtract_ParsesSchema(t *testing.T) {
	stub := &stubLLM{response: `{
		"product_type": "headphones",
		"price_max": 100,
		"brand_preference": "acme",
		"must_have_features": ["noise cancelling"]
	}`}
	e := New(stub)

	c, err := e.Extract(context.Background(), "acme headphones under $100 with noise cancelling", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ProductType != "headphones" {
		t.Errorf("expected product_type headphones, got %q", c.ProductType)
	}
	if c.PriceMax == nil || *c.PriceMax != 100 {
		t.Errorf("expected price_max 100, got %v", c.PriceMax)
	}
	if c.PriceMin != nil {
		t.Errorf("expected absent price_min, got %v", *c.PriceMin)
	}
	if len(c.MustHaveFeatures) != 1 || c.MustHaveFeatures[0] != "noise cancelling" {
		t.Errorf("unexpected must_have_features: %v", c.MustHaveFeatures)
	}
}

func TestExtract_FencedOutputAccepted(t *testing.T) {
	stub := &stubLLM{response: "```json\n{\"product_type\": \"mug\"}\n```"}
	e := New(stub)

	c, err := e.Extract(context.Background(), "a nice mug", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ProductType != "mug" {
		t.Errorf("expected mug, got %q", c.ProductType)
	}
}

func TestExtract_ModelErrorSurfaced(t *testing.T) {
	e := New(&stubLLM{err: errors.New("model down")})

	_, err := e.Extract(context.Background(), "anything", nil)
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("expected ErrExtraction, got %v", err)
	}
}

func TestExtract_UnparseableOutputSurfaced(t *testing.T) {
	for _, response := range []string{
		"I think you want headphones!",
		`{"product_type": 42}`,
		`{"price_max": "cheap", "product_type": "x"}`,
	} {
		e := New(&stubLLM{response: response})

		_, err := e.Extract(context.Background(), "anything", nil)
		if !errors.Is(err, ErrExtraction) {
			t.Errorf("response %q: expected ErrExtraction, got %v", response, err)
		}
	}
}

func TestExtract_CategoriesInPrompt(t *testing.T) {
	stub := &stubLLM{response: `{"product_type": "Electronics"}`}
	e := New(stub)

	_, err := e.Extract(context.Background(), "some gadget", []string{"Electronics", "Kitchen"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stub.prompt, "Electronics") || !strings.Contains(stub.prompt, "Kitchen") {
		t.Errorf("taxonomy missing from prompt:\n%s", stub.prompt)
	}
}

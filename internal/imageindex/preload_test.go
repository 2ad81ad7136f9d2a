package imageindex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartshop/search/internal/catalog"
)

type stubStore struct {
	refs []catalog.ImageRef
	err  error
}

func (s *stubStore) List(context.Context) ([]catalog.Product, error)  { return nil, nil }
func (s *stubStore) Categories(context.Context) ([]string, error)     { return nil, nil }
func (s *stubStore) ImageRefs(context.Context) ([]catalog.ImageRef, error) {
	return s.refs, s.err
}

type stubImageEmbedder struct {
	failFor map[string]bool
}

func (s *stubImageEmbedder) EmbedImage(_ context.Context, data []byte) ([]float32, error) {
	if s.failFor[string(data)] {
		return nil, errors.New("cannot embed")
	}
	return []float32{1, 0}, nil
}

func (s *stubImageEmbedder) Dimension() int { return 2 }

func TestPreloader_LoadsAndSkips(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.jpg":
			w.Write([]byte("image-bytes"))
		case "/bad-embed.jpg":
			w.Write([]byte("unembeddable"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	store := &stubStore{refs: []catalog.ImageRef{
		{ProductID: "p1", URL: srv.URL + "/ok.jpg"},
		{ProductID: "p2", URL: srv.URL + "/missing.jpg"},
		{ProductID: "p3", URL: srv.URL + "/bad-embed.jpg"},
	}}

	idx := NewMemoryIndex()
	p := NewPreloader(PreloaderConfig{
		Store:    store,
		Embedder: &stubImageEmbedder{failFor: map[string]bool{"unembeddable": true}},
		Index:    idx,
	})

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("preload: %v", err)
	}

	count, _ := idx.Count(context.Background())
	if count != 1 {
		t.Errorf("expected 1 loaded embedding, got %d", count)
	}

	matches, err := idx.Search(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 1 || matches[0].ProductID != "p1" {
		t.Errorf("expected only p1 in index, got %v", matches)
	}
}

func TestPreloader_StoreErrorAborts(t *testing.T) {
	p := NewPreloader(PreloaderConfig{
		Store:    &stubStore{err: errors.New("db down")},
		Embedder: &stubImageEmbedder{},
		Index:    NewMemoryIndex(),
	})

	if err := p.Run(context.Background()); err == nil {
		t.Error("expected error when the catalog is unreachable")
	}
}

func TestPreloader_NoImages(t *testing.T) {
	idx := NewMemoryIndex()
	p := NewPreloader(PreloaderConfig{
		Store:    &stubStore{},
		Embedder: &stubImageEmbedder{},
		Index:    idx,
	})

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("preload: %v", err)
	}
	count, _ := idx.Count(context.Background())
	if count != 0 {
		t.Errorf("expected empty index, got %d", count)
	}
}

package imageindex

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smartshop/search/internal/catalog"
	"github.com/smartshop/search/internal/embedder"
)

const (
	// defaultPreloadConcurrency bounds parallel image fetch+embed calls.
	defaultPreloadConcurrency = 4

	// maxImageBytes caps how much of an image response is read.
	maxImageBytes = 10 << 20
)

// Preloader populates an Index from the catalog's image references. It runs
// as a background startup phase: per-product failures (dead URL, embedding
// error) are logged and the product is skipped, leaving it out of the index.
type Preloader struct {
	store       catalog.Store
	imgEmbedder embedder.ImageEmbedder
	index       Index
	client      *http.Client
	concurrency int
	logger      *slog.Logger
}

// PreloaderConfig holds configuration for the preloader.
type PreloaderConfig struct {
	Store       catalog.Store
	Embedder    embedder.ImageEmbedder
	Index       Index
	Concurrency int
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// NewPreloader creates a new image index preloader.
func NewPreloader(cfg PreloaderConfig) *Preloader {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultPreloadConcurrency
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Preloader{
		store:       cfg.Store,
		imgEmbedder: cfg.Embedder,
		index:       cfg.Index,
		client:      client,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run fetches and embeds every product's primary image, then upserts the
// results into the index in one batch. It returns an error only when the
// catalog or the index itself fails; individual products never abort the run.
func (p *Preloader) Run(ctx context.Context) error {
	refs, err := p.store.ImageRefs(ctx)
	if err != nil {
		return fmt.Errorf("listing image refs: %w", err)
	}
	if len(refs) == 0 {
		p.logger.Info("no product images to preload")
		return nil
	}

	var (
		mu      sync.Mutex
		entries []Entry
		skipped int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, ref := range refs {
		g.Go(func() error {
			data, err := p.fetchImage(gctx, ref.URL)
			if err != nil {
				p.logger.Warn("skipping product image",
					"product_id", ref.ProductID, "url", ref.URL, "error", err)
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}

			vector, err := p.imgEmbedder.EmbedImage(gctx, data)
			if err != nil {
				p.logger.Warn("skipping product image embedding",
					"product_id", ref.ProductID, "error", err)
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			entries = append(entries, Entry{ProductID: ref.ProductID, Vector: vector})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("preloading image embeddings: %w", err)
	}

	if err := p.index.Upsert(ctx, entries); err != nil {
		return fmt.Errorf("storing image embeddings: %w", err)
	}

	p.logger.Info("image index preload complete",
		"loaded", len(entries), "skipped", skipped)
	return nil
}

func (p *Preloader) fetchImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("reading image body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image body")
	}
	return data, nil
}

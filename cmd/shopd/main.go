package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/smartshop/search/internal/catalog"
	"github.com/smartshop/search/internal/catalog/postgres"
	"github.com/smartshop/search/internal/config"
	"github.com/smartshop/search/internal/embedder"
	"github.com/smartshop/search/internal/extractor"
	"github.com/smartshop/search/internal/imageindex"
	"github.com/smartshop/search/internal/llm"
	"github.com/smartshop/search/internal/search"
	"github.com/smartshop/search/internal/sentiment"
	"github.com/smartshop/search/internal/server"
	"github.com/smartshop/search/internal/service"
)

func main() {
	// Set up structured logging
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("starting shop search service",
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
		"image_index", cfg.ImageIndexBackend,
	)

	// Initialize PostgreSQL catalog store
	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	slog.Info("connected to PostgreSQL")

	store := postgres.NewProductStore(db)

	// Initialize Ollama text embedder
	textEmbedder := embedder.NewOllamaEmbedder(embedder.OllamaConfig{
		BaseURL: cfg.OllamaURL,
		Model:   cfg.OllamaEmbeddingModel,
	})
	slog.Info("initialized text embedder", "model", cfg.OllamaEmbeddingModel)

	// Initialize image embedder
	imgEmbedder := embedder.NewImageServiceEmbedder(embedder.ImageServiceConfig{
		BaseURL:   cfg.ImageEmbedderURL,
		Dimension: cfg.ImageEmbedderDim,
	})
	slog.Info("initialized image embedder", "url", cfg.ImageEmbedderURL)

	// Initialize Ollama LLM
	llmClient := llm.NewOllamaClient(
		llm.WithBaseURL(cfg.OllamaURL),
		llm.WithModel(cfg.OllamaLLMModel),
	)
	slog.Info("initialized LLM", "model", cfg.OllamaLLMModel)

	// Initialize image index
	var imageIndex imageindex.Index
	switch strings.ToLower(cfg.ImageIndexBackend) {
	case "qdrant":
		qdrantIndex, err := imageindex.NewQdrantIndex(ctx, cfg.QdrantGRPCURL, imgEmbedder.Dimension())
		if err != nil {
			return fmt.Errorf("failed to connect to Qdrant: %w", err)
		}
		defer qdrantIndex.Close()
		imageIndex = qdrantIndex
		slog.Info("connected to Qdrant image index")
	default:
		imageIndex = imageindex.NewMemoryIndex()
	}

	// Kick off the image index preload in the background so search and
	// recommend stay available while it runs. Image search returns a
	// service-unavailable error until the index holds embeddings.
	preloader := imageindex.NewPreloader(imageindex.PreloaderConfig{
		Store:       store,
		Embedder:    imgEmbedder,
		Index:       imageIndex,
		Concurrency: cfg.PreloadConcurrency,
		Logger:      slog.Default(),
	})
	go func() {
		if err := preloader.Run(ctx); err != nil {
			slog.Error("image index preload failed", "error", err)
		}
	}()

	// Initialize the pipeline
	svc := service.NewSearchService(service.SearchServiceConfig{
		Store:         store,
		Extractor:     extractor.New(llmClient, extractor.WithModel(cfg.OllamaLLMModel)),
		Ranker:        search.NewSemanticRanker(textEmbedder, slog.Default()),
		Scorer:        search.NewSentimentScorer(sentiment.NewLLMClassifier(llmClient, sentiment.WithModel(cfg.OllamaLLMModel)), slog.Default()),
		Picker:        search.NewBestPickSelector(llmClient, slog.Default(), search.WithModel(cfg.OllamaLLMModel)),
		ImageEmbedder: imgEmbedder,
		ImageIndex:    imageIndex,
		SearchTopK:    cfg.SearchTopK,
		ImageTopK:     cfg.ImageTopK,
		Logger:        slog.Default(),
	})

	// Create HTTP server
	httpServer := server.NewHTTPServer(server.HTTPServerConfig{
		Port:           cfg.HTTPPort,
		Logger:         slog.Default(),
		AllowedOrigins: cfg.AllowedOrigins,
		Service:        svc,
		DB:             db,
		ImageIndex:     imageIndex,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

// Ensure interfaces are satisfied at compile time
var (
	_ catalog.Store          = (*postgres.ProductStore)(nil)
	_ embedder.Embedder      = (*embedder.OllamaEmbedder)(nil)
	_ embedder.ImageEmbedder = (*embedder.ImageServiceEmbedder)(nil)
	_ llm.LLM                = (*llm.OllamaClient)(nil)
	_ imageindex.Index       = (*imageindex.MemoryIndex)(nil)
	_ imageindex.Index       = (*imageindex.QdrantIndex)(nil)
)

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/healthkb/internal/answer"
	"github.com/fyrsmithlabs/healthkb/internal/chunker"
	"github.com/fyrsmithlabs/healthkb/internal/config"
	"github.com/fyrsmithlabs/healthkb/internal/embeddings"
	"github.com/fyrsmithlabs/healthkb/internal/httpapi"
	"github.com/fyrsmithlabs/healthkb/internal/ingest"
	"github.com/fyrsmithlabs/healthkb/internal/llm"
	"github.com/fyrsmithlabs/healthkb/internal/logging"
	"github.com/fyrsmithlabs/healthkb/internal/telemetry"
	"github.com/fyrsmithlabs/healthkb/internal/vectorstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the healthkb HTTP server.

The server exposes:
  POST /api/v1/chat    answer a question from the knowledge base
  POST /api/v1/ingest  upload and index a PDF or DOCX document
  POST /api/v1/warmup  pre-load the embedding model
  GET  /health         liveness check
  GET  /metrics        Prometheus metrics`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateLLM(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	// The embedder loads lazily so startup stays fast; POST /api/v1/warmup
	// forces the load.
	embedder := embeddings.NewLazy(embeddings.ProviderConfig{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		CacheDir: cfg.Embedding.CacheDir,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   cfg.Embedding.APIKey,
	})
	defer embedder.Close() //nolint:errcheck

	store, err := vectorstore.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing vector store: %w", err)
	}
	defer store.Close() //nolint:errcheck

	llmClient, err := llm.NewClient(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing llm client: %w", err)
	}

	ck, err := chunker.New(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		return fmt.Errorf("initializing chunker: %w", err)
	}

	index := cfg.Index()
	pipeline := ingest.New(ck, embedder, store, index, cfg.Ingest.EmbedTimeout, logger)
	answerer := answer.New(embedder, store, llmClient, index, cfg.Answer.TopK, logger)

	srv, err := httpapi.NewServer(pipeline, answerer, embedder, logger, httpapi.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("initializing http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("healthkb started",
		zap.String("version", version),
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.String("index", index),
	)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	logger.Info("healthkb stopped")
	return nil
}

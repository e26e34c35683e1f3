package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/healthkb/internal/chunker"
	"github.com/fyrsmithlabs/healthkb/internal/config"
	"github.com/fyrsmithlabs/healthkb/internal/embeddings"
	"github.com/fyrsmithlabs/healthkb/internal/extract"
	"github.com/fyrsmithlabs/healthkb/internal/ingest"
	"github.com/fyrsmithlabs/healthkb/internal/logging"
	"github.com/fyrsmithlabs/healthkb/internal/vectorstore"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Ingest PDF or DOCX documents into the vector store",
	Long: `Extract, chunk, embed and store one or more documents.

Examples:
  # Ingest a single document
  healthkb ingest cholera-guidelines.pdf

  # Ingest several documents in one run
  healthkb ingest guidelines/*.pdf report.docx`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

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

	ck, err := chunker.New(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		return fmt.Errorf("initializing chunker: %w", err)
	}

	pipeline := ingest.New(ck, embedder, store, cfg.Index(), cfg.Ingest.EmbedTimeout, logger)

	ctx := cmd.Context()
	var failed int
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Error("cannot read file", zap.String("path", path), zap.Error(err))
			failed++
			continue
		}

		doc, err := extract.Extract(path, data)
		if err != nil {
			logger.Error("cannot extract document", zap.String("path", path), zap.Error(err))
			failed++
			continue
		}

		result, err := pipeline.IngestPages(ctx, doc.Name, doc.Pages)
		if err != nil {
			logger.Error("ingestion failed", zap.String("document", doc.Name), zap.Error(err))
			failed++
			continue
		}

		fmt.Printf("%s: %d pages, %d chunks stored, %d skipped\n",
			result.Document, result.PagesProcessed, result.ChunksStored, result.ChunksSkipped)
		if result.ChunksStored == 0 {
			fmt.Printf("%s: no extractable text (scanned or image-only?)\n", result.Document)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(args))
	}
	return nil
}

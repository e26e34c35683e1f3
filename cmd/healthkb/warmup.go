package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/healthkb/internal/config"
	"github.com/fyrsmithlabs/healthkb/internal/embeddings"
)

var downloadONNX bool

var warmupCmd = &cobra.Command{
	Use:   "warmup",
	Short: "Download and load the embedding model",
	Long: `Force the embedding model to download and load, so the first
ingest or query does not pay the initialization cost.

With --download-onnx, the ONNX runtime shared library is fetched first
when it is not already installed (or pointed to via ONNX_PATH).`,
	RunE: runWarmup,
}

func init() {
	warmupCmd.Flags().BoolVar(&downloadONNX, "download-onnx", false, "download the ONNX runtime if missing")
}

func runWarmup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if downloadONNX && !embeddings.ONNXRuntimeExists() {
		fmt.Println("downloading ONNX runtime...")
		if err := embeddings.DownloadONNXRuntime(cmd.Context(), ""); err != nil {
			return fmt.Errorf("downloading ONNX runtime: %w", err)
		}
		fmt.Printf("ONNX runtime installed at %s\n", embeddings.ONNXLibraryPath())
	}

	embedder := embeddings.NewLazy(embeddings.ProviderConfig{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		CacheDir: cfg.Embedding.CacheDir,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   cfg.Embedding.APIKey,
	})
	defer embedder.Close() //nolint:errcheck

	if err := embedder.Warmup(cmd.Context()); err != nil {
		return fmt.Errorf("warmup failed: %w", err)
	}

	fmt.Printf("embedding model ready (%s, %d dimensions)\n", cfg.Embedding.Model, embedder.Dimension())
	return nil
}

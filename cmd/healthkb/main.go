// Healthkb serves a question answering API over ingested WHO health
// documents. Documents are chunked, embedded and stored in a vector
// database; questions are answered by a chat model grounded in the
// retrieved chunks.
//
// Usage:
//
//	# Start the HTTP server
//	healthkb serve
//
//	# Ingest documents from the command line
//	healthkb ingest cholera-guidelines.pdf outbreak-response.docx
//
//	# Pre-load the embedding model
//	healthkb warmup
//
// Configuration comes from an optional YAML file (--config) overridden
// by environment variables (PINECONE_API_KEY, DEEPSEEK_API_KEY, ...).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "healthkb",
	Short: "Retrieval-grounded QA over WHO health documents",
	Long: `healthkb ingests health guideline documents into a vector store and
answers questions grounded in the retrieved passages.`,
	Version: version,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show detailed version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("healthkb\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(warmupCmd)
	rootCmd.AddCommand(versionCmd)
}

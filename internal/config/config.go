// Package config provides configuration loading for healthkb.
//
// Configuration is merged from three sources, lowest to highest precedence:
// built-in defaults, an optional YAML file, and environment variables.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissing indicates a required configuration value is absent.
// Errors wrapping it name the environment variable an operator must set.
var ErrMissing = errors.New("missing required configuration")

// Config holds the complete healthkb configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	Embedding   EmbeddingConfig   `koanf:"embedding"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Pinecone    PineconeConfig    `koanf:"pinecone"`
	Qdrant      QdrantConfig      `koanf:"qdrant"`
	Chromem     ChromemConfig     `koanf:"chromem"`
	LLM         LLMConfig         `koanf:"llm"`
	Ingest      IngestConfig      `koanf:"ingest"`
	Answer      AnswerConfig      `koanf:"answer"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json or console
}

// TelemetryConfig holds OpenTelemetry configuration.
type TelemetryConfig struct {
	Enabled        bool    `koanf:"enabled"`
	Endpoint       string  `koanf:"endpoint"`
	ServiceName    string  `koanf:"service_name"`
	ServiceVersion string  `koanf:"service_version"`
	Insecure       bool    `koanf:"insecure"`
	SampleRate     float64 `koanf:"sample_rate"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	// Provider is "fastembed" (local ONNX models) or "openai"
	// (any OpenAI-compatible embedding endpoint, e.g. TEI).
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	CacheDir string `koanf:"cache_dir"`
	BaseURL  string `koanf:"base_url"`
	APIKey   string `koanf:"api_key"`
}

// VectorStoreConfig selects the vector store backend.
type VectorStoreConfig struct {
	// Provider is "pinecone" (default), "qdrant" or "chromem".
	Provider string `koanf:"provider"`
}

// PineconeConfig holds Pinecone client configuration.
type PineconeConfig struct {
	APIKey string `koanf:"api_key"`
	Index  string `koanf:"index"`
}

// QdrantConfig holds Qdrant gRPC client configuration.
type QdrantConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	Index      string `koanf:"index"`
	VectorSize int    `koanf:"vector_size"`
	UseTLS     bool   `koanf:"use_tls"`
}

// ChromemConfig holds embedded chromem-go store configuration.
type ChromemConfig struct {
	// Path is the persistence directory. Empty means in-memory only.
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
	Index    string `koanf:"index"`
}

// LLMConfig holds chat completion backend configuration (DeepSeek or any
// OpenAI-compatible endpoint).
type LLMConfig struct {
	APIKey  string        `koanf:"api_key"`
	BaseURL string        `koanf:"base_url"`
	Model   string        `koanf:"model"`
	Timeout time.Duration `koanf:"timeout"`
}

// IngestConfig holds ingestion pipeline configuration.
type IngestConfig struct {
	ChunkSize    int           `koanf:"chunk_size"`
	ChunkOverlap int           `koanf:"chunk_overlap"`
	EmbedTimeout time.Duration `koanf:"embed_timeout"`
}

// AnswerConfig holds retrieval pipeline configuration.
type AnswerConfig struct {
	TopK int `koanf:"top_k"`
}

// Index returns the vector index name for the configured store provider.
func (c *Config) Index() string {
	switch c.VectorStore.Provider {
	case "qdrant":
		return c.Qdrant.Index
	case "chromem":
		return c.Chromem.Index
	default:
		return c.Pinecone.Index
	}
}

// Validate checks that everything required by the configured providers is
// present. Required credentials are validated here so that misconfiguration
// surfaces at startup rather than on the first request.
func (c *Config) Validate() error {
	switch c.VectorStore.Provider {
	case "pinecone", "":
		if c.Pinecone.APIKey == "" {
			return fmt.Errorf("%w: PINECONE_API_KEY", ErrMissing)
		}
		if c.Pinecone.Index == "" {
			return fmt.Errorf("%w: PINECONE_INDEX", ErrMissing)
		}
	case "qdrant":
		if c.Qdrant.Host == "" {
			return fmt.Errorf("%w: QDRANT_HOST", ErrMissing)
		}
		if c.Qdrant.Index == "" {
			return fmt.Errorf("%w: QDRANT_INDEX", ErrMissing)
		}
	case "chromem":
		if c.Chromem.Index == "" {
			return fmt.Errorf("%w: CHROMEM_INDEX", ErrMissing)
		}
	default:
		return fmt.Errorf("unsupported vectorstore provider: %q (supported: pinecone, qdrant, chromem)", c.VectorStore.Provider)
	}

	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be in [0, chunk_size), got %d", c.Ingest.ChunkOverlap)
	}
	if c.Answer.TopK <= 0 {
		return fmt.Errorf("answer.top_k must be positive, got %d", c.Answer.TopK)
	}
	return nil
}

// ValidateLLM checks the chat backend credentials. Kept separate from
// Validate so ingestion-only invocations (healthkb ingest) do not require
// DeepSeek credentials.
func (c *Config) ValidateLLM() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("%w: DEEPSEEK_API_KEY", ErrMissing)
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("%w: DEEPSEEK_BASE_URL", ErrMissing)
	}
	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "pinecone", cfg.VectorStore.Provider)
	assert.Equal(t, "sentence-transformers/all-MiniLM-L6-v2", cfg.Embedding.Model)
	assert.Equal(t, "deepseek-chat", cfg.LLM.Model)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 800, cfg.Ingest.ChunkSize)
	assert.Equal(t, 100, cfg.Ingest.ChunkOverlap)
	assert.Equal(t, 30*time.Second, cfg.Ingest.EmbedTimeout)
	assert.Equal(t, 5, cfg.Answer.TopK)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PINECONE_API_KEY", "pc-test-key")
	t.Setenv("PINECONE_INDEX", "who-docs")
	t.Setenv("DEEPSEEK_API_KEY", "ds-test-key")
	t.Setenv("DEEPSEEK_BASE_URL", "https://api.deepseek.com")
	t.Setenv("CHUNK_SIZE", "400")
	t.Setenv("CHUNK_OVERLAP", "50")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "pc-test-key", cfg.Pinecone.APIKey)
	assert.Equal(t, "who-docs", cfg.Pinecone.Index)
	assert.Equal(t, "ds-test-key", cfg.LLM.APIKey)
	assert.Equal(t, "https://api.deepseek.com", cfg.LLM.BaseURL)
	assert.Equal(t, 400, cfg.Ingest.ChunkSize)
	assert.Equal(t, 50, cfg.Ingest.ChunkOverlap)
}

func TestLoadModelPrecedence(t *testing.T) {
	t.Run("DEEPSEEK_MODEL overrides default", func(t *testing.T) {
		t.Setenv("DEEPSEEK_MODEL", "deepseek-coder")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "deepseek-coder", cfg.LLM.Model)
	})

	t.Run("LLM_MODEL wins over DEEPSEEK_MODEL", func(t *testing.T) {
		t.Setenv("DEEPSEEK_MODEL", "deepseek-coder")
		t.Setenv("LLM_MODEL", "deepseek-reasoner")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "deepseek-reasoner", cfg.LLM.Model)
	})
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 9999\nvectorstore:\n  provider: chromem\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)

	t.Run("env wins over file", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "7777")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 7777, cfg.Server.Port)
	})
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		cfg.Pinecone.APIKey = "key"
		cfg.Pinecone.Index = "idx"
		return cfg
	}

	t.Run("valid pinecone config", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("missing pinecone api key", func(t *testing.T) {
		cfg := base()
		cfg.Pinecone.APIKey = ""
		err := cfg.Validate()
		require.ErrorIs(t, err, ErrMissing)
		assert.Contains(t, err.Error(), "PINECONE_API_KEY")
	})

	t.Run("missing pinecone index", func(t *testing.T) {
		cfg := base()
		cfg.Pinecone.Index = ""
		err := cfg.Validate()
		require.ErrorIs(t, err, ErrMissing)
		assert.Contains(t, err.Error(), "PINECONE_INDEX")
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := base()
		cfg.VectorStore.Provider = "weaviate"
		assert.Error(t, cfg.Validate())
	})

	t.Run("overlap must be below chunk size", func(t *testing.T) {
		cfg := base()
		cfg.Ingest.ChunkSize = 100
		cfg.Ingest.ChunkOverlap = 100
		assert.Error(t, cfg.Validate())
	})

	t.Run("chromem provider needs no credentials", func(t *testing.T) {
		cfg := base()
		cfg.VectorStore.Provider = "chromem"
		cfg.Pinecone = PineconeConfig{}
		assert.NoError(t, cfg.Validate())
	})
}

func TestValidateLLM(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	err = cfg.ValidateLLM()
	require.ErrorIs(t, err, ErrMissing)
	assert.Contains(t, err.Error(), "DEEPSEEK_API_KEY")

	cfg.LLM.APIKey = "key"
	err = cfg.ValidateLLM()
	require.ErrorIs(t, err, ErrMissing)
	assert.Contains(t, err.Error(), "DEEPSEEK_BASE_URL")

	cfg.LLM.BaseURL = "https://api.deepseek.com"
	assert.NoError(t, cfg.ValidateLLM())
}

package config

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// defaultsYAML is the built-in configuration, overridable by file and env.
const defaultsYAML = `
server:
  host: localhost
  port: 8080
  shutdown_timeout: 10s
logging:
  level: info
  format: json
telemetry:
  enabled: false
  endpoint: localhost:4318
  service_name: healthkb
  service_version: 0.1.0
  insecure: true
  sample_rate: 1.0
embedding:
  provider: fastembed
  model: sentence-transformers/all-MiniLM-L6-v2
  cache_dir: ""
  base_url: ""
  api_key: ""
vectorstore:
  provider: pinecone
pinecone:
  api_key: ""
  index: ""
qdrant:
  host: localhost
  port: 6334
  index: healthkb
  vector_size: 384
  use_tls: false
chromem:
  path: ""
  compress: false
  index: healthkb
llm:
  api_key: ""
  base_url: ""
  model: deepseek-chat
  timeout: 30s
ingest:
  chunk_size: 800
  chunk_overlap: 100
  embed_timeout: 30s
answer:
  top_k: 5
`

// envKeys maps recognized environment variables to configuration keys.
//
// Explicit mapping (rather than a generic transformer) keeps the externally
// documented variable names stable: PINECONE_API_KEY, PINECONE_INDEX,
// DEEPSEEK_API_KEY, DEEPSEEK_BASE_URL and DEEPSEEK_MODEL match the names the
// service has always recognized.
var envKeys = map[string]string{
	"SERVER_HOST":             "server.host",
	"SERVER_PORT":             "server.port",
	"SERVER_SHUTDOWN_TIMEOUT": "server.shutdown_timeout",

	"LOG_LEVEL":  "logging.level",
	"LOG_FORMAT": "logging.format",

	"OTEL_ENABLE":          "telemetry.enabled",
	"OTEL_ENDPOINT":        "telemetry.endpoint",
	"OTEL_SERVICE_NAME":    "telemetry.service_name",
	"OTEL_SERVICE_VERSION": "telemetry.service_version",
	"OTEL_INSECURE":        "telemetry.insecure",
	"OTEL_SAMPLE_RATE":     "telemetry.sample_rate",

	"EMBEDDING_PROVIDER":  "embedding.provider",
	"EMBEDDING_MODEL":     "embedding.model",
	"EMBEDDING_CACHE_DIR": "embedding.cache_dir",
	"EMBEDDING_BASE_URL":  "embedding.base_url",
	"EMBEDDING_API_KEY":   "embedding.api_key",

	"VECTORSTORE_PROVIDER": "vectorstore.provider",

	"PINECONE_API_KEY": "pinecone.api_key",
	"PINECONE_INDEX":   "pinecone.index",

	"QDRANT_HOST":        "qdrant.host",
	"QDRANT_PORT":        "qdrant.port",
	"QDRANT_INDEX":       "qdrant.index",
	"QDRANT_VECTOR_SIZE": "qdrant.vector_size",
	"QDRANT_USE_TLS":     "qdrant.use_tls",

	"CHROMEM_PATH":     "chromem.path",
	"CHROMEM_COMPRESS": "chromem.compress",
	"CHROMEM_INDEX":    "chromem.index",

	"DEEPSEEK_API_KEY":  "llm.api_key",
	"DEEPSEEK_BASE_URL": "llm.base_url",
	"DEEPSEEK_MODEL":    "llm.model",
	"LLM_TIMEOUT":       "llm.timeout",

	"CHUNK_SIZE":           "ingest.chunk_size",
	"CHUNK_OVERLAP":        "ingest.chunk_overlap",
	"INGEST_EMBED_TIMEOUT": "ingest.embed_timeout",

	"ANSWER_TOP_K": "answer.top_k",
}

// Load loads configuration from defaults, an optional YAML file and the
// environment. configPath may be empty to skip file loading.
//
// Precedence (highest wins): LLM_MODEL, other environment variables, YAML
// file, built-in defaults. LLM_MODEL is applied after DEEPSEEK_MODEL so the
// generic name wins when both are set.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaultsYAML)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading default config: %w", err)
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
		}
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", func(name string) string {
		return envKeys[name]
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment config: %w", err)
	}

	// LLM_MODEL overrides DEEPSEEK_MODEL when both are present.
	if err := k.Load(env.Provider("", ".", func(name string) string {
		if name == "LLM_MODEL" {
			return "llm.model"
		}
		return ""
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment config: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

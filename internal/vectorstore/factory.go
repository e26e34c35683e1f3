package vectorstore

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/healthkb/internal/config"
)

// New constructs the Store named by cfg.VectorStore.Provider.
//
// Supported providers:
//   - "pinecone": managed vector database (default)
//   - "qdrant": self-hosted Qdrant over gRPC
//   - "chromem": embedded, no external service
func New(cfg *config.Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.VectorStore.Provider {
	case "", "pinecone":
		return NewPineconeStore(PineconeConfig{
			APIKey:    cfg.Pinecone.APIKey,
			SourceTag: "healthkb",
		})

	case "qdrant":
		return NewQdrantStore(QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			VectorSize: uint64(cfg.Qdrant.VectorSize),
			UseTLS:     cfg.Qdrant.UseTLS,
		})

	case "chromem":
		return NewChromemStore(ChromemConfig{
			Path:     cfg.Chromem.Path,
			Compress: cfg.Chromem.Compress,
		}, logger)

	default:
		return nil, fmt.Errorf("%w: unknown vector store provider %q", ErrInvalidConfig, cfg.VectorStore.Provider)
	}
}

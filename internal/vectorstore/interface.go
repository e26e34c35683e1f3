// Package vectorstore defines the interface for vector storage operations
// and provides Pinecone, Qdrant and embedded chromem-go implementations.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid or missing store configuration,
	// including an absent access credential.
	ErrInvalidConfig = errors.New("invalid vector store configuration")

	// ErrInvalidIndexName indicates index name validation failure.
	ErrInvalidIndexName = errors.New("invalid index name")

	// ErrEmptyRecords indicates an upsert with no records.
	ErrEmptyRecords = errors.New("empty or nil records")

	// ErrConnectionFailed indicates the store is unreachable.
	ErrConnectionFailed = errors.New("failed to connect to vector store")
)

// Record is the atomic unit stored in a vector index.
//
// ID must be globally unique and deterministic so that re-ingesting the same
// content overwrites instead of duplicating. Values must have the embedding
// model's output dimensionality.
type Record struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// Match is a similarity query result, ordered by descending relevance.
type Match struct {
	ID       string
	Score    float32
	Metadata map[string]any
}

// Text returns the chunk text carried in the match metadata, or "" when
// metadata was not requested or the record carries none.
func (m Match) Text() string {
	if s, ok := m.Metadata["text"].(string); ok {
		return s
	}
	return ""
}

// Store is the interface for vector storage operations.
//
// Implementations are transport-agnostic; all are scoped to named indexes
// (Pinecone indexes, Qdrant/chromem collections).
type Store interface {
	// Upsert writes records into the index, overwriting by record ID.
	// Batching at a size the remote service accepts is the caller's
	// responsibility.
	Upsert(ctx context.Context, index string, records []Record) error

	// Query returns the topK nearest records by the store's similarity
	// metric, highest score first. Metadata is decoded only when
	// includeMetadata is true. An empty index yields an empty slice,
	// not an error.
	Query(ctx context.Context, index string, vector []float32, topK int, includeMetadata bool) ([]Match, error)

	// Count returns the number of records in the index; 0 when the index
	// does not exist yet.
	Count(ctx context.Context, index string) (int, error)

	// Close releases the store connection and resources.
	Close() error
}

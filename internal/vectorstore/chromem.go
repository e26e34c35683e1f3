package vectorstore

import (
	"context"
	"fmt"
	"os"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Tracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("healthkb.vectorstore.chromem")

// ChromemConfig holds configuration for the embedded chromem-go store.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty keeps all data
	// in memory, which is what the tests and local development use.
	Path string

	// Compress enables gzip compression for persisted data.
	Compress bool
}

// ChromemStore implements Store with chromem-go, an embeddable vector
// database with no external service dependency. It is the offline and
// test-friendly alternative to Pinecone/Qdrant.
//
// All records carry their own embeddings, so the store never invokes an
// embedding function of its own.
type ChromemStore struct {
	db     *chromem.DB
	logger *zap.Logger

	// collections tracks created collections.
	collections sync.Map
}

// NewChromemStore creates a ChromemStore.
func NewChromemStore(cfg ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", cfg.Path, err)
		}
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("%w: opening chromem DB: %v", ErrConnectionFailed, err)
		}
	}

	logger.Info("chromem store initialized",
		zap.String("path", cfg.Path),
		zap.Bool("in_memory", cfg.Path == ""),
	)

	return &ChromemStore{db: db, logger: logger}, nil
}

// noEmbeddingFunc guards against chromem ever being asked to embed; records
// always arrive with vectors attached.
func noEmbeddingFunc(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("chromem store does not embed; records must carry vectors")
}

func (s *ChromemStore) getOrCreateCollection(index string) (*chromem.Collection, error) {
	if err := ValidateIndexName(index); err != nil {
		return nil, err
	}
	collection, err := s.db.GetOrCreateCollection(index, nil, noEmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", index, err)
	}
	s.collections.Store(index, true)
	return collection, nil
}

// metadataToString converts metadata values to the string map chromem
// stores. Numeric page values survive the round trip as decimal strings.
func metadataToString(metadata map[string]any) map[string]string {
	if metadata == nil {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = fmt.Sprint(v)
	}
	return out
}

func metadataFromString(metadata map[string]string) map[string]any {
	if metadata == nil {
		return nil
	}
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}

// Upsert writes records into the collection, overwriting by record ID.
func (s *ChromemStore) Upsert(ctx context.Context, index string, records []Record) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()

	span.SetAttributes(
		attribute.String("index", index),
		attribute.Int("record_count", len(records)),
	)

	if len(records) == 0 {
		return ErrEmptyRecords
	}

	collection, err := s.getOrCreateCollection(index)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	docs := make([]chromem.Document, len(records))
	for i, rec := range records {
		content, _ := rec.Metadata["text"].(string)
		docs[i] = chromem.Document{
			ID:        rec.ID,
			Content:   content,
			Metadata:  metadataToString(rec.Metadata),
			Embedding: rec.Values,
		}
	}

	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding %d documents to collection %s: %w", len(docs), index, err)
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("upserted records",
		zap.String("index", index),
		zap.Int("count", len(records)),
	)
	return nil
}

// Query returns the topK nearest records, highest similarity first.
func (s *ChromemStore) Query(ctx context.Context, index string, vector []float32, topK int, includeMetadata bool) ([]Match, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
	defer span.End()

	span.SetAttributes(
		attribute.String("index", index),
		attribute.Int("top_k", topK),
	)

	if err := ValidateIndexName(index); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	collection := s.db.GetCollection(index, noEmbeddingFunc)
	if collection == nil {
		return []Match{}, nil
	}

	// chromem requires topK <= document count.
	count := collection.Count()
	if count == 0 {
		return []Match{}, nil
	}
	if topK > count {
		topK = count
	}

	results, err := collection.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", index, err)
	}

	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{ID: r.ID, Score: r.Similarity}
		if includeMetadata {
			matches[i].Metadata = metadataFromString(r.Metadata)
		}
	}

	span.SetAttributes(attribute.Int("match_count", len(matches)))
	span.SetStatus(codes.Ok, "success")
	return matches, nil
}

// Count returns the number of records in the collection.
func (s *ChromemStore) Count(_ context.Context, index string) (int, error) {
	if err := ValidateIndexName(index); err != nil {
		return 0, err
	}
	collection := s.db.GetCollection(index, noEmbeddingFunc)
	if collection == nil {
		return 0, nil
	}
	return collection.Count(), nil
}

// Close is a no-op; chromem persists synchronously on write.
func (s *ChromemStore) Close() error {
	return nil
}

var _ Store = (*ChromemStore)(nil)

package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/protobuf/types/known/structpb"
)

// Tracer for OpenTelemetry instrumentation.
var pineconeTracer = otel.Tracer("healthkb.vectorstore.pinecone")

// PineconeConfig holds configuration for the Pinecone client.
type PineconeConfig struct {
	// APIKey authenticates against Pinecone. Required.
	APIKey string

	// SourceTag is an optional integration identifier.
	SourceTag string
}

// PineconeStore is a Store implementation backed by Pinecone.
//
// The control-plane client is constructed eagerly so a missing credential
// fails at startup; per-index data-plane connections are dialed lazily on
// first use and cached for the process lifetime.
type PineconeStore struct {
	client *pinecone.Client

	mu    sync.Mutex
	conns map[string]*pinecone.IndexConnection
}

// NewPineconeStore creates a PineconeStore.
//
// Returns ErrInvalidConfig immediately when the API key is absent rather
// than deferring the failure to the first upsert or query.
func NewPineconeStore(cfg PineconeConfig) (*PineconeStore, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: Pinecone API key not configured, set PINECONE_API_KEY", ErrInvalidConfig)
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey:    cfg.APIKey,
		SourceTag: cfg.SourceTag,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	return &PineconeStore{
		client: client,
		conns:  make(map[string]*pinecone.IndexConnection),
	}, nil
}

// conn returns the cached data-plane connection for the index, dialing it
// on first use.
func (s *PineconeStore) conn(ctx context.Context, index string) (*pinecone.IndexConnection, error) {
	if index == "" {
		return nil, fmt.Errorf("%w: index name required", ErrInvalidIndexName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if conn, ok := s.conns[index]; ok {
		return conn, nil
	}

	desc, err := s.client.DescribeIndex(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("%w: describing index %s: %v", ErrConnectionFailed, index, err)
	}
	conn, err := s.client.Index(pinecone.NewIndexConnParams{Host: desc.Host})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to index %s: %v", ErrConnectionFailed, index, err)
	}

	s.conns[index] = conn
	return conn, nil
}

// Upsert writes records into the index, overwriting by record ID.
func (s *PineconeStore) Upsert(ctx context.Context, index string, records []Record) error {
	ctx, span := pineconeTracer.Start(ctx, "PineconeStore.Upsert")
	defer span.End()

	span.SetAttributes(
		attribute.String("index", index),
		attribute.Int("record_count", len(records)),
	)

	if len(records) == 0 {
		return ErrEmptyRecords
	}

	conn, err := s.conn(ctx, index)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	vectors := make([]*pinecone.Vector, len(records))
	for i, rec := range records {
		var metadata *pinecone.Metadata
		if rec.Metadata != nil {
			metadata, err = structpb.NewStruct(rec.Metadata)
			if err != nil {
				span.RecordError(err)
				return fmt.Errorf("encoding metadata for record %s: %w", rec.ID, err)
			}
		}
		values := rec.Values
		vectors[i] = &pinecone.Vector{
			Id:       rec.ID,
			Values:   &values,
			Metadata: metadata,
		}
	}

	if _, err := conn.UpsertVectors(ctx, vectors); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting %d vectors to index %s: %w", len(vectors), index, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Query returns the topK nearest records, highest score first.
func (s *PineconeStore) Query(ctx context.Context, index string, vector []float32, topK int, includeMetadata bool) ([]Match, error) {
	ctx, span := pineconeTracer.Start(ctx, "PineconeStore.Query")
	defer span.End()

	span.SetAttributes(
		attribute.String("index", index),
		attribute.Int("top_k", topK),
	)

	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	conn, err := s.conn(ctx, index)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	res, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: includeMetadata,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying index %s: %w", index, err)
	}

	matches := make([]Match, 0, len(res.Matches))
	for _, m := range res.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		match := Match{ID: m.Vector.Id, Score: m.Score}
		if includeMetadata && m.Vector.Metadata != nil {
			match.Metadata = m.Vector.Metadata.AsMap()
		}
		matches = append(matches, match)
	}

	span.SetAttributes(attribute.Int("match_count", len(matches)))
	span.SetStatus(codes.Ok, "success")
	return matches, nil
}

// Count returns the total number of vectors in the index.
func (s *PineconeStore) Count(ctx context.Context, index string) (int, error) {
	ctx, span := pineconeTracer.Start(ctx, "PineconeStore.Count")
	defer span.End()

	span.SetAttributes(attribute.String("index", index))

	conn, err := s.conn(ctx, index)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	stats, err := conn.DescribeIndexStats(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("describing stats for index %s: %w", index, err)
	}

	span.SetStatus(codes.Ok, "success")
	return int(stats.TotalVectorCount), nil
}

// Close closes all cached index connections.
func (s *PineconeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for name, conn := range s.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing connection to index %s: %w", name, err)
		}
		delete(s.conns, name)
	}
	return firstErr
}

var _ Store = (*PineconeStore)(nil)

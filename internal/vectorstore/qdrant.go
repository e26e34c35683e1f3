package vectorstore

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Tracer for OpenTelemetry instrumentation.
var qdrantTracer = otel.Tracer("healthkb.vectorstore.qdrant")

// indexNamePattern validates Qdrant/chromem collection names.
// Pattern: lowercase letters, numbers, underscores and dashes, 1-64 chars.
var indexNamePattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateIndexName rejects names that are unsafe as collection identifiers.
func ValidateIndexName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: index name cannot be empty", ErrInvalidIndexName)
	}
	if !indexNamePattern.MatchString(name) {
		return fmt.Errorf("%w: index name must match ^[a-z0-9_-]{1,64}$, got %q", ErrInvalidIndexName, name)
	}
	return nil
}

// IsTransientError reports whether a gRPC error is transient: the caller
// may retry the whole request, while invalid arguments or auth failures
// will not heal on their own.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname. Default: "localhost".
	Host string

	// Port is the Qdrant gRPC port (not the HTTP REST port).
	// Default: 6334.
	Port int

	// VectorSize is the embedding dimensionality used when a collection
	// has to be created. Must match the embedder output. Default: 384.
	VectorSize uint64

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	return nil
}

// QdrantStore is a Store implementation using Qdrant's native gRPC client.
//
// Qdrant point IDs must be UUIDs or integers, so record IDs are mapped to
// deterministic UUIDv5 values; re-upserting a record therefore overwrites
// the same point. The original record ID travels in the payload.
type QdrantStore struct {
	client *qdrant.Client
	config QdrantConfig

	// collections caches collection existence to avoid repeated checks.
	collections sync.Map
}

// NewQdrantStore creates a QdrantStore and verifies connectivity.
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &QdrantStore{client: client, config: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check: %v", ErrConnectionFailed, err)
	}

	return store, nil
}

// pointID derives the deterministic Qdrant UUID for a record ID.
func pointID(recordID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(recordID)).String())
}

// ensureCollection creates the collection when it does not exist yet.
func (s *QdrantStore) ensureCollection(ctx context.Context, index string) error {
	if _, ok := s.collections.Load(index); ok {
		return nil
	}

	exists, err := s.client.CollectionExists(ctx, index)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", index, err)
	}
	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: index,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.config.VectorSize),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("creating collection %s: %w", index, err)
		}
	}

	s.collections.Store(index, true)
	return nil
}

// Upsert writes records into the collection, overwriting by record ID.
func (s *QdrantStore) Upsert(ctx context.Context, index string, records []Record) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Upsert")
	defer span.End()

	span.SetAttributes(
		attribute.String("index", index),
		attribute.Int("record_count", len(records)),
	)

	if err := ValidateIndexName(index); err != nil {
		return err
	}
	if len(records) == 0 {
		return ErrEmptyRecords
	}
	if err := s.ensureCollection(ctx, index); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	points := make([]*qdrant.PointStruct, len(records))
	for i, rec := range records {
		payload := map[string]any{"id": rec.ID}
		for k, v := range rec.Metadata {
			payload[k] = v
		}
		points[i] = &qdrant.PointStruct{
			Id:      pointID(rec.ID),
			Vectors: qdrant.NewVectors(rec.Values...),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: index,
		Points:         points,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if IsTransientError(err) {
			return fmt.Errorf("%w: upserting to collection %s: %v", ErrConnectionFailed, index, err)
		}
		return fmt.Errorf("upserting %d points to collection %s: %w", len(points), index, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Query returns the topK nearest records, highest score first.
func (s *QdrantStore) Query(ctx context.Context, index string, vector []float32, topK int, includeMetadata bool) ([]Match, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Query")
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

	exists, err := s.client.CollectionExists(ctx, index)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("checking collection %s: %w", index, err)
	}
	if !exists {
		// An index nobody has ingested into yet is empty, not broken.
		return []Match{}, nil
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: index,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		// Payload is always fetched so the original record ID can be
		// recovered; metadata is attached to matches only on request.
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if IsTransientError(err) {
			return nil, fmt.Errorf("%w: querying collection %s: %v", ErrConnectionFailed, index, err)
		}
		return nil, fmt.Errorf("querying collection %s: %w", index, err)
	}

	matches := make([]Match, 0, len(results))
	for _, point := range results {
		match := Match{Score: point.Score}
		if point.Payload != nil {
			metadata := make(map[string]any, len(point.Payload))
			for k, v := range point.Payload {
				switch val := v.Kind.(type) {
				case *qdrant.Value_StringValue:
					metadata[k] = val.StringValue
					if k == "id" {
						match.ID = val.StringValue
					}
				case *qdrant.Value_IntegerValue:
					metadata[k] = val.IntegerValue
				case *qdrant.Value_DoubleValue:
					metadata[k] = val.DoubleValue
				case *qdrant.Value_BoolValue:
					metadata[k] = val.BoolValue
				}
			}
			delete(metadata, "id")
			if includeMetadata {
				match.Metadata = metadata
			}
		}
		matches = append(matches, match)
	}

	span.SetAttributes(attribute.Int("match_count", len(matches)))
	span.SetStatus(codes.Ok, "success")
	return matches, nil
}

// Count returns the number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context, index string) (int, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Count")
	defer span.End()

	span.SetAttributes(attribute.String("index", index))

	if err := ValidateIndexName(index); err != nil {
		return 0, err
	}

	exists, err := s.client.CollectionExists(ctx, index)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("checking collection %s: %w", index, err)
	}
	if !exists {
		return 0, nil
	}

	count, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: index})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("counting points in collection %s: %w", index, err)
	}

	span.SetStatus(codes.Ok, "success")
	return int(count), nil
}

// Close closes the Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

var _ Store = (*QdrantStore)(nil)

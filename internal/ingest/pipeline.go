// Package ingest turns extracted documents into embedded records in
// the vector store. Pages are chunked, each chunk is embedded under
// its own timeout, and all surviving records are upserted in one
// batch. A chunk whose embedding fails is skipped and logged rather
// than failing the document.
package ingest

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/healthkb/internal/chunker"
	"github.com/fyrsmithlabs/healthkb/internal/embeddings"
	"github.com/fyrsmithlabs/healthkb/internal/vectorstore"
)

var tracer = otel.Tracer("healthkb.ingest")

const defaultEmbedTimeout = 30 * time.Second

// RecordID builds the stable identifier for a chunk. Re-ingesting the
// same document produces the same IDs, so records overwrite in place.
func RecordID(document string, page, chunk int) string {
	return fmt.Sprintf("%s-page-%d-chunk-%d", document, page, chunk)
}

// Result summarizes one ingestion run.
type Result struct {
	Document       string
	PagesProcessed int
	ChunksStored   int
	ChunksSkipped  int
}

// Pipeline wires chunking, embedding and storage together.
type Pipeline struct {
	chunker      *chunker.Chunker
	embedder     embeddings.Embedder
	store        vectorstore.Store
	index        string
	embedTimeout time.Duration
	logger       *zap.Logger
}

// New creates a Pipeline. embedTimeout <= 0 selects the default of 30s.
func New(ck *chunker.Chunker, embedder embeddings.Embedder, store vectorstore.Store, index string, embedTimeout time.Duration, logger *zap.Logger) *Pipeline {
	if embedTimeout <= 0 {
		embedTimeout = defaultEmbedTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		chunker:      ck,
		embedder:     embedder,
		store:        store,
		index:        index,
		embedTimeout: embedTimeout,
		logger:       logger,
	}
}

// IngestPages processes document pages in order. Page numbers are
// 1-based in record IDs and metadata. Documents that yield no chunks
// (empty or image-only pages) return a zero Result without error.
func (p *Pipeline) IngestPages(ctx context.Context, document string, pages []string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "Pipeline.IngestPages")
	defer span.End()
	span.SetAttributes(
		attribute.String("document", document),
		attribute.Int("pages", len(pages)),
	)

	result := &Result{Document: document}
	var records []vectorstore.Record

	for pageIdx, pageText := range pages {
		pageNum := pageIdx + 1
		chunks := p.chunker.Split(pageText)
		if len(chunks) == 0 {
			result.PagesProcessed++
			continue
		}

		for chunkIdx, chunk := range chunks {
			vector, err := p.embedChunk(ctx, chunk)
			if err != nil {
				result.ChunksSkipped++
				p.logger.Warn("skipping chunk, embedding failed",
					zap.String("document", document),
					zap.Int("page", pageNum),
					zap.Int("chunk", chunkIdx),
					zap.Error(err),
				)
				continue
			}

			records = append(records, vectorstore.Record{
				ID:     RecordID(document, pageNum, chunkIdx),
				Values: vector,
				Metadata: map[string]any{
					"text":   chunk,
					"source": document,
					"page":   fmt.Sprintf("%d", pageNum),
				},
			})
		}
		result.PagesProcessed++
	}

	if len(records) == 0 {
		p.logger.Info("no extractable text, nothing stored",
			zap.String("document", document),
			zap.Int("pages", len(pages)),
			zap.Int("chunks_skipped", result.ChunksSkipped),
		)
		span.SetStatus(codes.Ok, "empty document")
		return result, nil
	}

	if err := p.store.Upsert(ctx, p.index, records); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("storing %d records for %s: %w", len(records), document, err)
	}

	result.ChunksStored = len(records)
	span.SetAttributes(
		attribute.Int("chunks_stored", result.ChunksStored),
		attribute.Int("chunks_skipped", result.ChunksSkipped),
	)
	span.SetStatus(codes.Ok, "success")
	p.logger.Info("document ingested",
		zap.String("document", document),
		zap.Int("pages", result.PagesProcessed),
		zap.Int("chunks_stored", result.ChunksStored),
		zap.Int("chunks_skipped", result.ChunksSkipped),
	)
	return result, nil
}

// embedChunk embeds one chunk under the per-chunk timeout.
func (p *Pipeline) embedChunk(ctx context.Context, chunk string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.embedTimeout)
	defer cancel()

	vectors, err := p.embedder.EmbedDocuments(ctx, []string{chunk})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vectors))
	}
	return vectors[0], nil
}

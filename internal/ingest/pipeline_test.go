package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/healthkb/internal/chunker"
	"github.com/fyrsmithlabs/healthkb/internal/vectorstore"
)

// stubEmbedder returns a fixed-dimension vector per text and can be
// told to fail on specific call indexes.
type stubEmbedder struct {
	calls   int
	failOn  map[int]bool
	failAll bool
}

func (s *stubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	call := s.calls
	s.calls++
	if s.failAll || s.failOn[call] {
		return nil, errors.New("model unavailable")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(call), 1, 0}
	}
	return out, nil
}

func (s *stubEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func newTestPipeline(t *testing.T, embedder *stubEmbedder) (*Pipeline, vectorstore.Store) {
	t.Helper()
	ck, err := chunker.New(10, 3)
	require.NoError(t, err)
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(ck, embedder, store, "health-docs", 0, zap.NewNop()), store
}

func TestRecordID(t *testing.T) {
	assert.Equal(t, "who-cholera.pdf-page-3-chunk-7", RecordID("who-cholera.pdf", 3, 7))
}

func TestIngestPages(t *testing.T) {
	embedder := &stubEmbedder{}
	pipeline, store := newTestPipeline(t, embedder)

	// Two pages: 17 words (3 chunks at size 10/overlap 3) and 5 words (1 chunk).
	result, err := pipeline.IngestPages(context.Background(), "guide.pdf", []string{words(17), words(5)})
	require.NoError(t, err)

	assert.Equal(t, 2, result.PagesProcessed)
	assert.Equal(t, 4, result.ChunksStored)
	assert.Zero(t, result.ChunksSkipped)

	count, err := store.Count(context.Background(), "health-docs")
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	matches, err := store.Query(context.Background(), "health-docs", []float32{0, 1, 0}, 4, true)
	require.NoError(t, err)

	ids := make(map[string]bool, len(matches))
	for _, m := range matches {
		ids[m.ID] = true
		assert.Equal(t, "guide.pdf", m.Metadata["source"])
		assert.NotEmpty(t, m.Text())
	}
	assert.True(t, ids["guide.pdf-page-1-chunk-0"])
	assert.True(t, ids["guide.pdf-page-1-chunk-2"])
	assert.True(t, ids["guide.pdf-page-2-chunk-0"])
}

func TestIngestPagesSkipsFailedChunks(t *testing.T) {
	embedder := &stubEmbedder{failOn: map[int]bool{1: true}}
	pipeline, store := newTestPipeline(t, embedder)

	result, err := pipeline.IngestPages(context.Background(), "guide.pdf", []string{words(17)})
	require.NoError(t, err)

	assert.Equal(t, 2, result.ChunksStored)
	assert.Equal(t, 1, result.ChunksSkipped)

	count, err := store.Count(context.Background(), "health-docs")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// The surviving chunks keep their original indexes.
	matches, err := store.Query(context.Background(), "health-docs", []float32{0, 1, 0}, 2, false)
	require.NoError(t, err)
	ids := []string{matches[0].ID, matches[1].ID}
	assert.ElementsMatch(t, []string{"guide.pdf-page-1-chunk-0", "guide.pdf-page-1-chunk-2"}, ids)
}

func TestIngestPagesEmptyDocument(t *testing.T) {
	embedder := &stubEmbedder{}
	pipeline, store := newTestPipeline(t, embedder)

	result, err := pipeline.IngestPages(context.Background(), "scan.pdf", []string{"", "   ", ""})
	require.NoError(t, err)

	assert.Equal(t, 3, result.PagesProcessed)
	assert.Zero(t, result.ChunksStored)
	assert.Zero(t, embedder.calls)

	count, err := store.Count(context.Background(), "health-docs")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIngestPagesAllEmbedsFail(t *testing.T) {
	embedder := &stubEmbedder{failAll: true}
	pipeline, store := newTestPipeline(t, embedder)

	result, err := pipeline.IngestPages(context.Background(), "guide.pdf", []string{words(5)})
	require.NoError(t, err)
	assert.Zero(t, result.ChunksStored)
	assert.Equal(t, 1, result.ChunksSkipped)

	count, err := store.Count(context.Background(), "health-docs")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIngestPagesIdempotent(t *testing.T) {
	embedder := &stubEmbedder{}
	pipeline, store := newTestPipeline(t, embedder)

	_, err := pipeline.IngestPages(context.Background(), "guide.pdf", []string{words(17)})
	require.NoError(t, err)
	_, err = pipeline.IngestPages(context.Background(), "guide.pdf", []string{words(17)})
	require.NoError(t, err)

	count, err := store.Count(context.Background(), "health-docs")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestIngestPagesStoreFailure(t *testing.T) {
	embedder := &stubEmbedder{}
	ck, err := chunker.New(10, 3)
	require.NoError(t, err)

	pipeline := New(ck, embedder, failingStore{}, "health-docs", 0, zap.NewNop())
	_, err = pipeline.IngestPages(context.Background(), "guide.pdf", []string{words(5)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "guide.pdf")
}

type failingStore struct{}

func (failingStore) Upsert(context.Context, string, []vectorstore.Record) error {
	return errors.New("connection refused")
}

func (failingStore) Query(context.Context, string, []float32, int, bool) ([]vectorstore.Match, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) Count(context.Context, string) (int, error) { return 0, nil }
func (failingStore) Close() error                               { return nil }

package embeddings

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider is a minimal Provider for lazy-initialization tests.
type stubProvider struct {
	dimension int
	closed    atomic.Bool
}

func (s *stubProvider) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, s.dimension)
	}
	return out, nil
}

func (s *stubProvider) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return make([]float32, s.dimension), nil
}

func (s *stubProvider) Dimension() int { return s.dimension }

func (s *stubProvider) Close() error {
	s.closed.Store(true)
	return nil
}

func withStubConstructor(t *testing.T, fn func(ProviderConfig) (Provider, error)) {
	t.Helper()
	orig := newProvider
	newProvider = fn
	t.Cleanup(func() { newProvider = orig })
}

func TestLazyInitializesOnce(t *testing.T) {
	var constructions atomic.Int32
	stub := &stubProvider{dimension: 384}
	withStubConstructor(t, func(ProviderConfig) (Provider, error) {
		constructions.Add(1)
		return stub, nil
	})

	lazy := NewLazy(ProviderConfig{Provider: "fastembed"})
	assert.Equal(t, int32(0), constructions.Load(), "construction must be deferred")

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := lazy.EmbedQuery(context.Background(), "question")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), constructions.Load(), "concurrent first callers must share one initialization")
	assert.Equal(t, 384, lazy.Dimension())
}

func TestLazyStickyError(t *testing.T) {
	var constructions atomic.Int32
	initErr := errors.New("model download failed")
	withStubConstructor(t, func(ProviderConfig) (Provider, error) {
		constructions.Add(1)
		return nil, initErr
	})

	lazy := NewLazy(ProviderConfig{})

	_, err := lazy.EmbedQuery(context.Background(), "q")
	assert.ErrorIs(t, err, initErr)

	_, err = lazy.EmbedDocuments(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, initErr)

	assert.Equal(t, 0, lazy.Dimension())
	assert.Equal(t, int32(1), constructions.Load(), "failed initialization must not be retried")
}

func TestLazyWarmup(t *testing.T) {
	stub := &stubProvider{dimension: 8}
	withStubConstructor(t, func(ProviderConfig) (Provider, error) {
		return stub, nil
	})

	lazy := NewLazy(ProviderConfig{})
	require.NoError(t, lazy.Warmup(context.Background()))

	vec, err := lazy.EmbedQuery(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, vec, 8)
}

func TestLazyCloseWithoutInit(t *testing.T) {
	var constructions atomic.Int32
	withStubConstructor(t, func(ProviderConfig) (Provider, error) {
		constructions.Add(1)
		return &stubProvider{dimension: 1}, nil
	})

	lazy := NewLazy(ProviderConfig{})
	require.NoError(t, lazy.Close())
	assert.Equal(t, int32(0), constructions.Load(), "close must not load the model")
}

func TestLazyCloseAfterInit(t *testing.T) {
	stub := &stubProvider{dimension: 1}
	withStubConstructor(t, func(ProviderConfig) (Provider, error) {
		return stub, nil
	})

	lazy := NewLazy(ProviderConfig{})
	_, err := lazy.EmbedQuery(context.Background(), "q")
	require.NoError(t, err)

	require.NoError(t, lazy.Close())
	assert.True(t, stub.closed.Load())
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Provider: "cohere"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

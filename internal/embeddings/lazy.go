package embeddings

import (
	"context"
	"sync"
)

// Lazy defers provider construction until first use and guarantees it
// happens at most once per process, even under concurrent first callers.
//
// Loading an ONNX model is expensive; the handle is read-only after
// construction, so all later calls share it without further locking.
// A failed construction is sticky: every call reports the same error.
type Lazy struct {
	cfg  ProviderConfig
	once sync.Once

	provider Provider
	err      error
}

// NewLazy wraps a provider configuration in a lazy initializer. No model is
// loaded until the first embedding call or an explicit Warmup.
func NewLazy(cfg ProviderConfig) *Lazy {
	return &Lazy{cfg: cfg}
}

// newProvider is a variable for testing purposes.
var newProvider = NewProvider

func (l *Lazy) get() (Provider, error) {
	l.once.Do(func() {
		l.provider, l.err = newProvider(l.cfg)
	})
	return l.provider, l.err
}

// Warmup forces provider initialization and runs a probe embedding so the
// first real request does not pay model-load latency.
func (l *Lazy) Warmup(ctx context.Context) error {
	p, err := l.get()
	if err != nil {
		return err
	}
	_, err = p.EmbedQuery(ctx, "warmup probe")
	return err
}

// EmbedDocuments implements Embedder.
func (l *Lazy) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	p, err := l.get()
	if err != nil {
		return nil, err
	}
	return p.EmbedDocuments(ctx, texts)
}

// EmbedQuery implements Embedder.
func (l *Lazy) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	p, err := l.get()
	if err != nil {
		return nil, err
	}
	return p.EmbedQuery(ctx, text)
}

// Dimension returns the embedding dimension, initializing the provider if
// needed. Returns 0 when initialization failed.
func (l *Lazy) Dimension() int {
	p, err := l.get()
	if err != nil {
		return 0
	}
	return p.Dimension()
}

// Close releases the provider if it was ever constructed.
func (l *Lazy) Close() error {
	// Deliberately not via get(): closing must not trigger a model load.
	l.once.Do(func() {})
	if l.provider == nil {
		return nil
	}
	return l.provider.Close()
}

var _ Provider = (*Lazy)(nil)

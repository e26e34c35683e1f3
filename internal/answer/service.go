// Package answer serves grounded question answering: embed the
// question, retrieve the nearest chunks, assemble them into a context
// block and hand it to the completion model.
package answer

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/healthkb/internal/embeddings"
	"github.com/fyrsmithlabs/healthkb/internal/vectorstore"
)

var tracer = otel.Tracer("healthkb.answer")

// NoContextAnswer is returned verbatim when retrieval finds nothing;
// the completion model is not called in that case.
const NoContextAnswer = "No relevant context found in the knowledge base."

const defaultTopK = 5

// Generator produces an answer from a question and its retrieved
// context. *llm.Client satisfies this.
type Generator interface {
	Ask(ctx context.Context, question, contextText string) (string, error)
}

// Source identifies where a piece of retrieved context came from.
type Source struct {
	ID    string  `json:"id"`
	Name  string  `json:"name,omitempty"`
	Page  string  `json:"page,omitempty"`
	Score float32 `json:"score"`
}

// Answer is the service response.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []Source `json:"sources,omitempty"`
}

// Service answers questions against one vector store index.
type Service struct {
	embedder embeddings.Embedder
	store    vectorstore.Store
	llm      Generator
	index    string
	topK     int
	logger   *zap.Logger
}

// New creates a Service. topK <= 0 selects the default of 5.
func New(embedder embeddings.Embedder, store vectorstore.Store, llm Generator, index string, topK int, logger *zap.Logger) *Service {
	if topK <= 0 {
		topK = defaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		embedder: embedder,
		store:    store,
		llm:      llm,
		index:    index,
		topK:     topK,
		logger:   logger,
	}
}

// Ask answers question from the indexed documents. An embedding or
// retrieval failure aborts the request; an empty result set returns
// the canned no-context answer without calling the model.
func (s *Service) Ask(ctx context.Context, question string) (*Answer, error) {
	ctx, span := tracer.Start(ctx, "Service.Ask")
	defer span.End()
	span.SetAttributes(attribute.String("index", s.index))

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question must not be empty")
	}

	vector, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	matches, err := s.store.Query(ctx, s.index, vector, s.topK, true)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying index %s: %w", s.index, err)
	}
	span.SetAttributes(attribute.Int("matches", len(matches)))

	contextText, sources := assembleContext(matches)
	if contextText == "" {
		s.logger.Info("no context retrieved", zap.String("index", s.index))
		span.SetStatus(codes.Ok, "no context")
		return &Answer{Text: NoContextAnswer}, nil
	}

	text, err := s.llm.Ask(ctx, question, contextText)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "success")
	return &Answer{Text: text, Sources: sources}, nil
}

// assembleContext joins match texts in result order, separated by
// blank lines. Matches without text contribute nothing but still do
// not shift the order of the rest.
func assembleContext(matches []vectorstore.Match) (string, []Source) {
	var parts []string
	var sources []Source
	for _, m := range matches {
		text := m.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		parts = append(parts, text)

		src := Source{ID: m.ID, Score: m.Score}
		if name, ok := m.Metadata["source"].(string); ok {
			src.Name = name
		}
		if page, ok := m.Metadata["page"].(string); ok {
			src.Page = page
		}
		sources = append(sources, src)
	}
	return strings.Join(parts, "\n\n"), sources
}

// Package llm generates grounded answers with a chat completion model
// behind an OpenAI-compatible API. The default deployment target is
// DeepSeek, but any endpoint langchaingo's openai client can speak to
// works (base URL and model are configurable).
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("healthkb.llm")

var (
	// ErrInvalidConfig is returned when required settings are missing.
	ErrInvalidConfig = errors.New("invalid llm config")

	// ErrTimeout is returned when answer generation exceeds the
	// configured deadline.
	ErrTimeout = errors.New("llm request timed out")

	// ErrGeneration wraps backend failures during completion.
	ErrGeneration = errors.New("llm generation failed")
)

// systemPrompt frames the assistant for field health workers. The
// retrieved document context is appended to the user turn, not here,
// so that models with weak system-prompt adherence still see it.
const systemPrompt = "You are a helpful assistant for health workers. " +
	"Answer the question using only the provided context from WHO health documents. " +
	"If the context does not contain the answer, say so plainly instead of guessing. " +
	"Cite the source document when it helps the reader verify the guidance. " +
	"Keep answers concise and practical."

const (
	defaultTimeout     = 30 * time.Second
	defaultTemperature = 0.2

	// Requests per second allowed against the completion API.
	defaultRateLimit = 5
	defaultBurst     = 10
)

// Config holds chat completion client configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Validate checks required settings, naming the environment variables
// operators set them through.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: api key required (set DEEPSEEK_API_KEY)", ErrInvalidConfig)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required (set DEEPSEEK_BASE_URL)", ErrInvalidConfig)
	}
	return nil
}

// ApplyDefaults fills unset optional fields.
func (c *Config) ApplyDefaults() {
	if c.Model == "" {
		c.Model = "deepseek-chat"
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Client asks a chat model questions grounded in retrieved context.
type Client struct {
	llm     *openai.LLM
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient validates cfg and constructs the completion client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	model, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}

	logger.Info("llm client initialized",
		zap.String("base_url", cfg.BaseURL),
		zap.String("model", cfg.Model),
		zap.Duration("timeout", cfg.Timeout),
	)

	return &Client{
		llm:     model,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		logger:  logger,
	}, nil
}

// Ask answers question using contextText as the only knowledge source.
// The call is bounded by the configured timeout.
func (c *Client) Ask(ctx context.Context, question, contextText string) (string, error) {
	ctx, span := tracer.Start(ctx, "Client.Ask")
	defer span.End()
	span.SetAttributes(
		attribute.String("model", c.model),
		attribute.Int("context_chars", len(contextText)),
	)

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	userPrompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextText, question)
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	start := time.Now()
	resp, err := c.llm.GenerateContent(ctx, messages, llms.WithTemperature(defaultTemperature))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	if len(resp.Choices) == 0 {
		span.SetStatus(codes.Error, "no choices")
		return "", fmt.Errorf("%w: empty response", ErrGeneration)
	}

	answer := strings.TrimSpace(resp.Choices[0].Content)
	span.SetStatus(codes.Ok, "success")
	c.logger.Debug("answer generated",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("answer_chars", len(answer)),
	)
	return answer, nil
}

// Package httpapi exposes the knowledge base over HTTP: document
// ingestion, question answering, warmup and the usual operational
// endpoints.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/healthkb/internal/answer"
	"github.com/fyrsmithlabs/healthkb/internal/config"
	"github.com/fyrsmithlabs/healthkb/internal/embeddings"
	"github.com/fyrsmithlabs/healthkb/internal/extract"
	"github.com/fyrsmithlabs/healthkb/internal/ingest"
	"github.com/fyrsmithlabs/healthkb/internal/llm"
	"github.com/fyrsmithlabs/healthkb/internal/vectorstore"
)

// maxUploadBytes caps document uploads at 32 MiB.
const maxUploadBytes = 32 << 20

// Ingester runs the ingestion pipeline for one document.
type Ingester interface {
	IngestPages(ctx context.Context, document string, pages []string) (*ingest.Result, error)
}

// Answerer answers a question from the knowledge base.
type Answerer interface {
	Ask(ctx context.Context, question string) (*answer.Answer, error)
}

// Warmer pre-loads the embedding model so the first real request does
// not pay the initialization cost.
type Warmer interface {
	Warmup(ctx context.Context) error
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server wires the pipelines into an echo HTTP API.
type Server struct {
	echo     *echo.Echo
	ingester Ingester
	answerer Answerer
	warmer   Warmer
	metrics  *Metrics
	logger   *zap.Logger
	config   Config
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(ingester Ingester, answerer Answerer, warmer Warmer, logger *zap.Logger, cfg Config) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	metrics := NewMetrics()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", maxUploadBytes>>20)))
	e.Use(metrics.middleware)
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:     e,
		ingester: ingester,
		answerer: answerer,
		warmer:   warmer,
		metrics:  metrics,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/chat", s.handleChat)
	v1.POST("/ingest", s.handleIngest)
	v1.POST("/warmup", s.handleWarmup)
}

// HealthResponse is the body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ChatRequest is the body for POST /api/v1/chat.
type ChatRequest struct {
	Question string `json:"question"`
}

// IngestResponse is the body for POST /api/v1/ingest.
type IngestResponse struct {
	Document       string `json:"document"`
	PagesProcessed int    `json:"pages_processed"`
	ChunksStored   int    `json:"chunks_stored"`
	ChunksSkipped  int    `json:"chunks_skipped"`
	Warning        string `json:"warning,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question field is required")
	}

	result, err := s.answerer.Ask(c.Request().Context(), req.Question)
	if err != nil {
		return s.mapError(err)
	}

	if result.Text == answer.NoContextAnswer {
		s.metrics.questionsAnswered.WithLabelValues("no_context").Inc()
	} else {
		s.metrics.questionsAnswered.WithLabelValues("grounded").Inc()
	}
	return c.JSON(http.StatusOK, result)
}

// handleIngest accepts a multipart upload under the "file" field,
// extracts its pages and runs them through the ingestion pipeline.
func (s *Server) handleIngest(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field 'file' is required")
	}

	f, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot open uploaded file")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read uploaded file")
	}
	if len(data) > maxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file exceeds upload limit")
	}

	doc, err := extract.Extract(fileHeader.Filename, data)
	if err != nil {
		return s.mapError(err)
	}

	result, err := s.ingester.IngestPages(c.Request().Context(), doc.Name, doc.Pages)
	if err != nil {
		return s.mapError(err)
	}

	resp := IngestResponse{
		Document:       result.Document,
		PagesProcessed: result.PagesProcessed,
		ChunksStored:   result.ChunksStored,
		ChunksSkipped:  result.ChunksSkipped,
	}
	if result.ChunksStored == 0 {
		resp.Warning = "no extractable text found; the document may be scanned or image-only"
	} else {
		s.metrics.documentsIngested.Inc()
	}
	s.metrics.chunksStored.Add(float64(result.ChunksStored))
	s.metrics.chunksSkipped.Add(float64(result.ChunksSkipped))

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleWarmup(c echo.Context) error {
	if err := s.warmer.Warmup(c.Request().Context()); err != nil {
		s.logger.Error("warmup failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "embedding model warmup failed")
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "warm"})
}

// ErrorResponse is the JSON body for failed requests. Kind separates
// operator-fixable configuration faults from retryable backend faults
// and plain client mistakes.
type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// mapError translates pipeline errors into HTTP status codes: client
// mistakes are 4xx, backend failures 502, deadline overruns 504,
// misconfiguration 500.
func (s *Server) mapError(err error) error {
	switch {
	case errors.Is(err, extract.ErrUnsupportedFormat),
		errors.Is(err, extract.ErrUnreadable):
		return echo.NewHTTPError(http.StatusBadRequest, ErrorResponse{Kind: "extraction", Message: err.Error()})
	case errors.Is(err, llm.ErrTimeout):
		return echo.NewHTTPError(http.StatusGatewayTimeout, ErrorResponse{Kind: "llm_timeout", Message: err.Error()})
	case errors.Is(err, llm.ErrGeneration):
		return echo.NewHTTPError(http.StatusBadGateway, ErrorResponse{Kind: "llm", Message: err.Error()})
	case errors.Is(err, embeddings.ErrEmbeddingFailed):
		return echo.NewHTTPError(http.StatusBadGateway, ErrorResponse{Kind: "embedding", Message: err.Error()})
	case errors.Is(err, vectorstore.ErrConnectionFailed):
		return echo.NewHTTPError(http.StatusBadGateway, ErrorResponse{Kind: "store", Message: err.Error()})
	case errors.Is(err, config.ErrMissing):
		s.logger.Error("configuration fault surfaced on request path", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, ErrorResponse{Kind: "configuration", Message: err.Error()})
	default:
		s.logger.Error("request failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, ErrorResponse{Kind: "internal", Message: "internal error"})
	}
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

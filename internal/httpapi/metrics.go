package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the HTTP API and the
// pipelines behind it.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	documentsIngested prometheus.Counter
	chunksStored      prometheus.Counter
	chunksSkipped     prometheus.Counter
	questionsAnswered *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthkb_http_requests_total",
				Help: "Total HTTP requests by method, path and status code.",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "healthkb_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds by method and path.",
				Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method", "path"},
		),
		documentsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "healthkb_documents_ingested_total",
			Help: "Documents successfully ingested.",
		}),
		chunksStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "healthkb_chunks_stored_total",
			Help: "Chunks embedded and stored across all documents.",
		}),
		chunksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "healthkb_chunks_skipped_total",
			Help: "Chunks skipped because embedding failed or timed out.",
		}),
		questionsAnswered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "healthkb_questions_answered_total",
				Help: "Questions answered, labeled grounded or no_context.",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.documentsIngested,
		m.chunksStored,
		m.chunksSkipped,
		m.questionsAnswered,
	)
	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// middleware records request counts and latencies per route.
func (m *Metrics) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		path := c.Path()
		if path == "" {
			path = c.Request().URL.Path
		}
		// Errors are converted to responses after middleware unwinds,
		// so derive the status from the error when one is returned.
		status := c.Response().Status
		if err != nil {
			status = http.StatusInternalServerError
			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				status = httpErr.Code
			}
		}
		m.requestsTotal.WithLabelValues(
			c.Request().Method,
			path,
			strconv.Itoa(status),
		).Inc()
		m.requestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())

		return err
	}
}

// Package api exposes the form-filling controller over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tbxark/formfiller/flow"
	"github.com/tbxark/formfiller/internal/log"
	"github.com/tbxark/formfiller/types"
)

// Controller is the part of flow.Controller the handlers need.
type Controller interface {
	Start(ctx context.Context, req flow.StartRequest) (*flow.Result, error)
	Continue(ctx context.Context, req flow.ContinueRequest) (*flow.Result, error)
	Get(ctx context.Context, id string) (*types.SessionState, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
}

// Pinger is implemented by stores that can report backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Controller Controller
	// Health is optional; /health reports ok without it.
	Health Pinger
	// RateLimit is requests per minute per client IP. Zero disables it.
	RateLimit    int
	MaxBodyBytes int64
}

const defaultMaxBodyBytes = 1 << 20

// NewRouter builds the HTTP handler. Middleware order: panic recovery first,
// then request id so every later layer can log it. The whole router runs
// inside an OpenTelemetry server span.
func NewRouter(deps Deps) http.Handler {
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = defaultMaxBodyBytes
	}
	h := &handlers{deps: deps}

	r := chi.NewRouter()
	r.Use(Recoverer)
	r.Use(RequestID)
	r.Use(Metrics)
	r.Use(log.Middleware())

	r.Get("/health", h.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/formfiller", func(r chi.Router) {
		if deps.RateLimit > 0 {
			r.Use(RateLimit(deps.RateLimit))
		}
		r.Get("/schema", h.schema)
		r.Post("/start", h.start)
		r.Post("/continue", h.continueTurn)
		r.Get("/sessions", h.listSessions)
		r.Get("/sessions/{id}", h.getSession)
		r.Delete("/sessions/{id}", h.deleteSession)
	})
	return otelhttp.NewHandler(r, "formfiller",
		otelhttp.WithFilter(shouldTrace),
		otelhttp.WithSpanNameFormatter(spanName),
	)
}

func shouldTrace(r *http.Request) bool {
	switch r.URL.Path {
	case "/health", "/metrics":
		return false
	}
	return true
}

func spanName(operation string, r *http.Request) string {
	return "HTTP " + r.Method + " " + r.URL.Path
}

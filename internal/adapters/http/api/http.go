// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	service "github.com/okian/greenalloc/internal/app"
	"github.com/okian/greenalloc/internal/domain/allocation"
	"github.com/okian/greenalloc/internal/domain/model"
	"github.com/okian/greenalloc/internal/domain/types"
	"github.com/okian/greenalloc/pkg/logger"
)

// Default server configuration constants.
const (
	defaultRiskTolerance  = 50
	defaultMaxUploadBytes = 32 << 20
	corsMaxAgeSeconds     = 300
	requestTimeout        = 60 * time.Second
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	StatsProvider

	// SubmitUpload stores a batch and queues it for extraction.
	SubmitUpload(ctx context.Context, uploadKey string, docs []model.Document) (model.Batch, bool, error)

	// Batch returns a stored batch.
	Batch(ctx context.Context, id string) (model.Batch, error)

	// Allocate runs the engine over caller-supplied projects.
	Allocate(ctx context.Context, projects []model.Project, riskTolerance float64) (types.AllocationSet, error)

	// Allocations and Ranking run the engine over a ready batch.
	Allocations(ctx context.Context, batchID string, riskTolerance float64) (types.AllocationSet, error)
	Ranking(ctx context.Context, batchID string, riskTolerance float64) ([]types.RankedProject, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps Dependencies

	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	allocationHandler *AllocationHandler
	batchHandler      *BatchHandler

	risk           riskPolicy
	maxUploadBytes int64
	allowedOrigins []string
	logger         logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithDefaultRiskTolerance sets the tolerance used when a request omits it.
func WithDefaultRiskTolerance(v float64) Option {
	return func(s *Server) {
		s.risk.fallback = v
	}
}

// WithRiskClamp clamps out-of-range tolerances into [0,100] instead of
// letting the engine reject them.
func WithRiskClamp(clamp bool) Option {
	return func(s *Server) {
		s.risk.clamp = clamp
	}
}

// WithMaxUploadBytes caps the POST /batches request body.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithAllowedOrigins sets the CORS allow list.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.allowedOrigins = origins
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:           deps,
		risk:           riskPolicy{fallback: defaultRiskTolerance, clamp: true},
		maxUploadBytes: defaultMaxUploadBytes,
		allowedOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("http")
	}

	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps)
	s.allocationHandler = NewAllocationHandler(deps, s.risk)
	s.batchHandler = NewBatchHandler(deps, s.risk, s.maxUploadBytes)
	return s
}

// Handler builds the chi router with middleware, the API routes and any
// extra mounts (docs, dashboard).
func (s *Server) Handler(mounts ...func(chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(s.logger))
	r.Use(MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         corsMaxAgeSeconds,
	}))

	s.Register(r)
	for _, mount := range mounts {
		mount(r)
	}
	return r
}

// Register attaches all API routes to r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Post("/allocations", s.allocationHandler.HandlePostAllocations)
		r.Route("/batches", func(r chi.Router) {
			r.Post("/", s.batchHandler.HandlePostBatch)
			r.Get("/{id}", s.batchHandler.HandleGetBatch)
			r.Get("/{id}/allocations", s.batchHandler.HandleGetAllocations)
			r.Get("/{id}/ranking", s.batchHandler.HandleGetRanking)
		})
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// respondError maps an error to its status and code.
func respondError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case errors.Is(err, ErrUnsupportedBody):
		return http.StatusUnsupportedMediaType, "unsupported_media_type"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, allocation.ErrInvalidInput),
		errors.Is(err, model.ErrInvalidProject),
		errors.Is(err, service.ErrInvalidUpload):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, service.ErrBatchNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrBatchNotReady):
		return http.StatusConflict, "batch_not_ready"
	case errors.Is(err, service.ErrBatchFailed):
		return http.StatusConflict, "batch_failed"
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

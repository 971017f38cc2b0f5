package api

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/capload/pkg/httputil"
	"github.com/platinummonkey/capload/pkg/observability"
	"github.com/platinummonkey/capload/pkg/plugins"
)

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request and reload logger
func WithLogger(log *logrus.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics records HTTP metrics and exposes reg on /metrics
func WithMetrics(m *observability.Metrics, reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.metrics = m
		s.promRegistry = reg
	}
}

// WithHealthChecker replaces the default health checker. A registry
// readiness check is always added.
func WithHealthChecker(h *observability.HealthChecker) Option {
	return func(s *Server) {
		if h != nil {
			s.health = h
		}
	}
}

// Server exposes a plugin registry over HTTP
type Server struct {
	registry *plugins.Registry
	filter   *plugins.StandardFilter
	paths    []string

	log          *logrus.Logger
	metrics      *observability.Metrics
	promRegistry *prometheus.Registry
	health       *observability.HealthChecker
	router       *mux.Router

	// reloads are serialized so that a slow reload is not queued twice
	reloading sync.Mutex
}

// NewServer creates a server for registry. Reloads use filter and paths.
func NewServer(registry *plugins.Registry, filter *plugins.StandardFilter, paths []string, opts ...Option) *Server {
	s := &Server{
		registry: registry,
		filter:   filter,
		paths:    append([]string(nil), paths...),
		router:   mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logrus.New()
	}
	if s.health == nil {
		s.health = observability.NewHealthChecker("")
	}
	s.health.AddCheck("registry", func(ctx context.Context) error {
		if !s.registry.IsLoaded() {
			return errors.New("plugins not loaded")
		}
		return nil
	})

	s.RegisterRoutes(s.router)
	return s
}

// RegisterRoutes registers every route on r
func (s *Server) RegisterRoutes(r *mux.Router) {
	r.Use(httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.log),
		httputil.RecoveryMiddleware(s.log),
		observability.HTTPMetricsMiddleware(s.metrics, routeTemplate),
	))

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/status", s.getStatus).Methods(http.MethodGet)
	v1.HandleFunc("/units", s.listUnits).Methods(http.MethodGet)
	v1.HandleFunc("/units/{index:[0-9]+}", s.getUnit).Methods(http.MethodGet)
	v1.HandleFunc("/capabilities", s.listCapabilities).Methods(http.MethodGet)
	v1.HandleFunc("/pluggables", s.listPluggables).Methods(http.MethodGet)
	v1.HandleFunc("/reload", s.reload).Methods(http.MethodPost)

	r.HandleFunc("/healthz", s.health.Liveness).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.health.Readiness).Methods(http.MethodGet)
	if s.promRegistry != nil {
		r.Handle("/metrics", observability.MetricsHandler(s.promRegistry)).Methods(http.MethodGet)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router returns the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

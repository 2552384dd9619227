package api

import (
	"encoding/json"
	"net/http"
	"time"

	"locksmith-coverage/internal/coverage"
	"locksmith-coverage/internal/db"
	"locksmith-coverage/internal/metrics"
	"locksmith-coverage/internal/profile"
	"locksmith-coverage/internal/readiness"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// Options carries the optional collaborators of a Server
type Options struct {
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Engine   *coverage.Engine
	Workers  int
}

// Server represents the API server
type Server struct {
	db       *db.Database
	profiles *profile.Store
	engine   *coverage.Engine
	assessor *readiness.Assessor
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	logger   *zap.Logger
	workers  int
	router   *mux.Router
}

// NewServer creates a new API server
func NewServer(database *db.Database, profiles *profile.Store, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	engine := opts.Engine
	if engine == nil {
		engine = coverage.NewEngine(nil)
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	s := &Server{
		db:       database,
		profiles: profiles,
		engine:   engine,
		assessor: readiness.NewAssessor(engine),
		metrics:  metrics.New(registry),
		registry: registry,
		logger:   logger.Named("api"),
		workers:  workers,
		router:   mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods("GET")

	// Catalog and data endpoints
	s.router.HandleFunc("/api/v1/tiers", s.handleListTiers).Methods("GET")
	s.router.HandleFunc("/api/v1/tools", s.handleListTools).Methods("GET")
	s.router.HandleFunc("/api/v1/vehicles", s.handleListVehicles).Methods("GET")
	s.router.HandleFunc("/api/v1/vehicles", s.handleCreateVehicle).Methods("POST")
	s.router.HandleFunc("/api/v1/vehicles/{id:[0-9]+}", s.handleGetVehicle).Methods("GET")
	s.router.HandleFunc("/api/v1/baselines", s.handleListBaselines).Methods("GET")
	s.router.HandleFunc("/api/v1/baselines", s.handleCreateBaseline).Methods("POST")
	s.router.HandleFunc("/api/v1/baselines/batch", s.handleBatchBaselines).Methods("POST")

	// Decision endpoints
	s.router.HandleFunc("/api/v1/coverage/infer", s.handleInfer).Methods("POST")
	s.router.HandleFunc("/api/v1/readiness", s.handleReadiness).Methods("POST")
	s.router.HandleFunc("/api/v1/readiness/fleet", s.handleFleetReadiness).Methods("POST")
	s.router.HandleFunc("/api/v1/heatmap", s.handleHeatmap).Methods("GET")

	// Owned-tool profiles
	s.router.HandleFunc("/api/v1/profiles", s.handleListProfiles).Methods("GET")
	s.router.HandleFunc("/api/v1/profiles/{id}", s.handleGetProfile).Methods("GET")
	s.router.HandleFunc("/api/v1/profiles/{id}", s.handlePutProfile).Methods("PUT")
	s.router.HandleFunc("/api/v1/profiles/{id}", s.handleDeleteProfile).Methods("DELETE")

	s.router.HandleFunc("/api/v1/stats", s.handleStats).Methods("GET")

	s.router.Use(requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(jsonMiddleware)
}

// Router returns the configured router
func (s *Server) Router() *mux.Router {
	return s.router
}

// Middleware
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.metrics.ObserveHTTP(route, rec.status, elapsed)
		s.logger.Info("request",
			zap.String("request_id", r.Header.Get(requestIDHeader)),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", elapsed),
		)
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Response helpers
type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Meta    *meta  `json:"meta,omitempty"`
}

type meta struct {
	Total    int      `json:"total,omitempty"`
	Limit    int      `json:"limit,omitempty"`
	Offset   int      `json:"offset,omitempty"`
	QueryMs  int64    `json:"query_ms,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: false, Error: message})
}

func respondWithMeta(w http.ResponseWriter, status int, data any, m *meta) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data, Meta: m})
}

// Package api provides the HTTP API for uploading photos and submitting
// hot-folder jobs.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Adilonapsh/exif-watermark-app/internal/pipeline"
	"github.com/Adilonapsh/exif-watermark-app/internal/queue"
	"github.com/Adilonapsh/exif-watermark-app/internal/watcher"
	"github.com/Adilonapsh/exif-watermark-app/pkg/logger"
)

// Batcher runs upload batches and reports pipeline counters.
type Batcher interface {
	ProcessBatch(ctx context.Context, sources []pipeline.Source, opts pipeline.Options, options ...pipeline.BatchOption) ([]pipeline.Result, error)
	Depth() int
	Stats() (processed, failed int64)
}

// Enqueuer submits hot-folder jobs.
type Enqueuer interface {
	EnqueueBatch(ctx context.Context, payload queue.BatchPayload, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueInspector reports job queue statistics.
type QueueInspector interface {
	Stats() (*queue.Stats, error)
}

// WatcherStats reports hot-folder watcher counters.
type WatcherStats interface {
	Stats() watcher.Stats
}

// Server is the HTTP API server.
type Server struct {
	router    chi.Router
	server    *http.Server
	batcher   Batcher
	enqueuer  Enqueuer
	inspector QueueInspector
	watcher   WatcherStats
	metrics   http.Handler
	maxUpload int64
	logger    *logger.Logger
	startTime time.Time
}

// Config holds API server configuration.
type Config struct {
	Port    string
	Batcher Batcher

	// Optional; job endpoints answer 503 without an enqueuer
	Enqueuer  Enqueuer
	Inspector QueueInspector
	Watcher   WatcherStats

	// Metrics handler, promhttp.Handler() when nil
	Metrics http.Handler

	// Maximum request body for uploads in bytes
	MaxUploadBytes int64

	Logger *logger.Logger
}

// New creates a new API server.
func New(cfg Config) *Server {
	if cfg.Metrics == nil {
		cfg.Metrics = promhttp.Handler()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 64 << 20
	}

	s := &Server{
		router:    chi.NewRouter(),
		batcher:   cfg.Batcher,
		enqueuer:  cfg.Enqueuer,
		inspector: cfg.Inspector,
		watcher:   cfg.Watcher,
		metrics:   cfg.Metrics,
		maxUpload: cfg.MaxUploadBytes,
		logger:    cfg.Logger.WithField("component", "api"),
		startTime: time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	// Uploads wait for their batch, so writes get a generous timeout.
	s.server = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.router,
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures HTTP middleware.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
}

// setupRoutes configures HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		// Health check
		r.Get("/health", s.handleHealth)

		// Status endpoint
		r.Get("/status", s.handleStatus)

		// Prometheus metrics
		r.Handle("/metrics", s.metrics)
	})

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/watermark", s.handleWatermark)
		r.Post("/jobs", s.handleCreateJob)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.server.Addr).Info("starting API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// StatusResponse represents the /status response.
type StatusResponse struct {
	Status        string          `json:"status"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Pipeline      PipelineStatus  `json:"pipeline"`
	Jobs          *queue.Stats    `json:"jobs,omitempty"`
	Watcher       *watcher.Stats  `json:"watcher,omitempty"`
	Resources     ResourcesStatus `json:"resources"`
}

// PipelineStatus represents in-process pipeline counters.
type PipelineStatus struct {
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	QueueDepth int   `json:"queue_depth"`
}

// ResourcesStatus represents resource usage.
type ResourcesStatus struct {
	MemoryUsedMB  int `json:"memory_used_mb"`
	NumGoroutines int `json:"num_goroutines"`
}

// handleStatus handles GET /status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	processed, failed := s.batcher.Stats()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	response := StatusResponse{
		Status:        "running",
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Pipeline: PipelineStatus{
			Processed:  processed,
			Failed:     failed,
			QueueDepth: s.batcher.Depth(),
		},
		Resources: ResourcesStatus{
			MemoryUsedMB:  int(memStats.Alloc / 1024 / 1024),
			NumGoroutines: runtime.NumGoroutine(),
		},
	}

	if s.inspector != nil {
		if stats, err := s.inspector.Stats(); err == nil {
			response.Jobs = stats
		} else {
			s.logger.WithError(err).Debug("failed to read job queue stats")
		}
	}
	if s.watcher != nil {
		stats := s.watcher.Stats()
		response.Watcher = &stats
	}

	writeJSON(w, http.StatusOK, response)
}

// errorResponse is the body of every error reply.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

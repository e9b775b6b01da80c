// Package server implements the HTTP surface (spec.md §6): submission,
// status, cancellation, and the talking-head webhook sink, fronting the
// Pipeline Orchestrator, Job Registry, Result Cache, and rate limiter.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/lookatitude/videogen/cache"
	"github.com/lookatitude/videogen/core"
	"github.com/lookatitude/videogen/ingest"
	"github.com/lookatitude/videogen/internal/httputil"
	"github.com/lookatitude/videogen/o11y"
	"github.com/lookatitude/videogen/pipeline"
	"github.com/lookatitude/videogen/registry"
	"github.com/lookatitude/videogen/resilience"
	"github.com/lookatitude/videogen/talkinghead"
	"go.temporal.io/sdk/client"
)

// Config configures a Server.
type Config struct {
	ListenAddr string

	// ReadTimeout/WriteTimeout/IdleTimeout bound the underlying http.Server.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// ShutdownTimeout bounds graceful drain on Stop.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns reasonable timeouts for the submission surface,
// whose multipart bodies can be large and slow to upload.
func DefaultConfig(listenAddr string) Config {
	return Config{
		ListenAddr:      listenAddr,
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Deps are the components a Server wires requests into.
type Deps struct {
	Temporal    client.Client
	Registry    registry.Registry
	Cache       *cache.ResultCache
	Limiter     *resilience.Limiter
	TalkingHead *talkinghead.Client
	Gate        *ingest.Gate
	Pipeline    pipeline.Config
}

// Server is the REST front door onto the pipeline.
type Server struct {
	cfg       Config
	deps      Deps
	router    *mux.Router
	lifecycle httputil.ServerLifecycle
	started   bool
	vld       *validator.Validate
	logger    *o11y.Logger
	health    *o11y.HealthRegistry
}

// New creates a Server wired to deps. A nil Gate uses ingest.DefaultGate().
// /healthz reports its own liveness plus the Job Registry's reachability
// via an o11y.HealthRegistry.
func New(cfg Config, deps Deps, logger *o11y.Logger) *Server {
	if deps.Gate == nil {
		deps.Gate = ingest.DefaultGate()
	}
	if logger == nil {
		logger = o11y.NewLogger()
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: mux.NewRouter(),
		vld:    validator.New(),
		logger: logger,
		health: o11y.NewHealthRegistry(),
	}
	s.health.Register("registry", o11y.HealthCheckerFunc(s.checkRegistry))
	s.setupRoutes()
	return s
}

// checkRegistry probes the Job Registry by looking up a key that should
// never exist; core.ErrNotFound confirms the registry answered, while any
// other error (or a context deadline) indicates it is unreachable. The
// Result Cache is not probed here: its Get contract deliberately degrades
// backend failures to a soft miss (spec §4.1/§7), so it cannot distinguish
// "healthy, key absent" from "backend down" without bypassing that
// abstraction.
func (s *Server) checkRegistry(ctx context.Context) o11y.HealthResult {
	const probeKey = "__healthcheck__"
	_, err := s.deps.Registry.Get(ctx, probeKey)
	if err == nil || errors.Is(err, core.ErrNotFound) {
		return o11y.HealthResult{Status: o11y.Healthy, Component: "registry"}
	}
	return o11y.HealthResult{Status: o11y.Unhealthy, Component: "registry", Message: err.Error()}
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/pipeline/generate", s.handleGenerate).Methods(http.MethodPost)
	s.router.HandleFunc("/pipeline/status/{task_id}", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/pipeline/tasks/{task_id}", s.handleCancel).Methods(http.MethodDelete)
	s.router.HandleFunc("/pipeline/artifacts/{ref}", s.handleArtifact).Methods(http.MethodGet)
	s.router.HandleFunc("/webhooks/talking-head", s.handleWebhook).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	s.router.Use(s.loggingMiddleware)
}

// Handler returns the Server's http.Handler, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start launches the HTTP server in the background via httputil.ServerLifecycle,
// returning once it is accepting connections. It does not block for the
// server's lifetime; pair it with Stop (or core.App's reverse-order Shutdown)
// to drain on process exit.
func (s *Server) Start(ctx context.Context) error {
	s.started = true
	s.logger.Info(ctx, "starting HTTP server", "addr", s.cfg.ListenAddr)
	go func() {
		err := s.lifecycle.Serve(context.Background(), s.cfg.ListenAddr, s.router,
			s.cfg.ReadTimeout, s.cfg.WriteTimeout, s.cfg.IdleTimeout, "server")
		if err != nil {
			s.logger.Error(context.Background(), "http server exited", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if !s.started {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info(ctx, "shutting down HTTP server")
	return s.lifecycle.Shutdown(shutdownCtx, "server")
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.logger.Info(r.Context(), "http request",
			"method", r.Method, "path", r.URL.Path,
			"status", rw.status, "duration_ms", time.Since(start).Milliseconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	results := s.health.CheckAll(r.Context())

	status := o11y.Healthy
	for _, res := range results {
		if res.Status == o11y.Unhealthy {
			status = o11y.Unhealthy
			break
		}
		if res.Status == o11y.Degraded {
			status = o11y.Degraded
		}
	}

	code := http.StatusOK
	if status != o11y.Healthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(struct {
		Status string           `json:"status"`
		Checks []o11y.HealthResult `json:"checks,omitempty"`
	}{Status: string(status), Checks: results})
}

// Health reports the server's liveness for core.App's Lifecycle contract.
func (s *Server) Health() core.HealthStatus {
	status := core.HealthHealthy
	if !s.started {
		status = core.HealthDegraded
	}
	return core.HealthStatus{Status: status, Timestamp: time.Now()}
}

// Package api exposes run triggering and inspection over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/donizo/material-scraper/internal/metrics"
	"github.com/donizo/material-scraper/internal/models"
)

// Runner starts one full traversal and returns its aggregated result.
type Runner interface {
	Run(ctx context.Context) *models.RunResult
}

type Handlers struct {
	baseCtx context.Context
	runner  Runner
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	latest  *models.RunResult
}

// NewHandlers wires the run trigger endpoints. Background runs inherit
// baseCtx, so cancelling it during shutdown stops any run in flight.
func NewHandlers(baseCtx context.Context, runner Runner, m *metrics.Metrics, logger *slog.Logger) *Handlers {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Handlers{
		baseCtx: baseCtx,
		runner:  runner,
		metrics: m,
		logger:  logger.With("component", "api"),
	}
}

// Router builds the chi router with the standard middleware stack.
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(h.metrics.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", h.StartRun)
		r.Get("/runs/latest", h.LatestRun)
		r.Get("/runs/latest/diagnostics", h.LatestDiagnostics)
	})

	return r
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	running := h.running
	h.mu.Unlock()

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"running": running,
	})
}

// StartRunResponse acknowledges an accepted run trigger.
type StartRunResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StartRun kicks off a traversal in the background. Only one run may be in
// flight at a time; a second trigger gets 409.
func (h *Handlers) StartRun(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		h.respondError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	h.running = true
	h.mu.Unlock()

	go func() {
		result := h.runner.Run(h.baseCtx)

		h.mu.Lock()
		h.latest = result
		h.running = false
		h.mu.Unlock()

		h.logger.Info("run completed",
			"run_id", result.RunID, "admitted", result.Admitted)
	}()

	h.respondJSON(w, http.StatusAccepted, StartRunResponse{
		Status:  "started",
		Message: "run accepted",
	})
}

func (h *Handlers) LatestRun(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	latest := h.latest
	h.mu.Unlock()

	if latest == nil {
		h.respondError(w, http.StatusNotFound, "no run has completed yet")
		return
	}
	h.respondJSON(w, http.StatusOK, latest)
}

func (h *Handlers) LatestDiagnostics(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	latest := h.latest
	h.mu.Unlock()

	if latest == nil {
		h.respondError(w, http.StatusNotFound, "no run has completed yet")
		return
	}
	diags := latest.Diagnostics
	if diags == nil {
		diags = []models.Diagnostic{}
	}
	h.respondJSON(w, http.StatusOK, diags)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

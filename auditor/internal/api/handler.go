package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/storefront/speedaudit/auditor/internal/metrics"
	"github.com/storefront/speedaudit/auditor/internal/runlog"
)

// Handler serves the status endpoints from a run log.
type Handler struct {
	runs *runlog.Log
}

// New creates the status router for runs.
func New(runs *runlog.Log) http.Handler {
	h := &Handler{runs: runs}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Get("/metrics", h.metrics)
	r.Route("/api/v1/runs", func(r chi.Router) {
		r.Get("/", h.listRuns)
		r.Get("/last", h.lastRun)
		r.Get("/{id}", h.getRun)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// --- route handlers ---------------------------------------------------------

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// listRuns returns GET /api/v1/runs, newest first.
func (h *Handler) listRuns(w http.ResponseWriter, _ *http.Request) {
	entries := h.runs.List()
	out := RunsResponse{Runs: make([]RunResponse, 0, len(entries)), Count: len(entries)}
	for _, e := range entries {
		out.Runs = append(out.Runs, toRunResponse(e))
	}
	jsonResp(w, http.StatusOK, out)
}

func (h *Handler) lastRun(w http.ResponseWriter, _ *http.Request) {
	e, ok := h.runs.Last()
	if !ok {
		jsonErr(w, http.StatusNotFound, "no run recorded yet")
		return
	}
	jsonResp(w, http.StatusOK, toRunResponse(e))
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	e, ok := h.runs.Get(chi.URLParam(r, "id"))
	if !ok {
		jsonErr(w, http.StatusNotFound, "run not found")
		return
	}
	jsonResp(w, http.StatusOK, toRunResponse(e))
}

// metrics returns the exposition of the latest run. The body is empty until
// a run has been recorded.
func (h *Handler) metrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", metrics.ContentType)
	e, ok := h.runs.Last()
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}
	if err := metrics.Write(w, e.Summary); err != nil {
		slog.Warn("api: write metrics failed", "err", err)
	}
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

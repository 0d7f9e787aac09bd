package api

import (
	"time"

	"github.com/storefront/speedaudit/auditor/internal/runlog"
)

// HealthResponse is the payload for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// RunResponse is one audit run in GET /api/v1/runs, /api/v1/runs/last and
// /api/v1/runs/{id}.
type RunResponse struct {
	RunID           string   `json:"run_id"`
	StartedAt       string   `json:"started_at"`  // RFC3339
	FinishedAt      string   `json:"finished_at"` // RFC3339
	DurationSeconds float64  `json:"duration_seconds"`
	Eligible        int      `json:"eligible"`
	Live            int      `json:"live"`
	ScoresUpdated   int      `json:"scores_updated"`
	NotLive         []string `json:"not_live"`
	ScoreFailures   []string `json:"score_failures"`
	PersistFailures []string `json:"persist_failures"`
	CertWarnings    []string `json:"cert_warnings"`
	RecordedAt      string   `json:"recorded_at"` // RFC3339
}

// RunsResponse is the payload for GET /api/v1/runs.
type RunsResponse struct {
	Runs  []RunResponse `json:"runs"`
	Count int           `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toRunResponse(e *runlog.Entry) RunResponse {
	s := e.Summary
	return RunResponse{
		RunID:           s.RunID,
		StartedAt:       s.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt:      s.FinishedAt.UTC().Format(time.RFC3339),
		DurationSeconds: s.Duration().Seconds(),
		Eligible:        s.Eligible,
		Live:            s.Live,
		ScoresUpdated:   s.ScoresUpdated,
		NotLive:         nonNil(s.NotLive),
		ScoreFailures:   nonNil(s.ScoreFailures),
		PersistFailures: nonNil(s.PersistFailures),
		CertWarnings:    nonNil(s.CertWarnings),
		RecordedAt:      e.RecordedAt.UTC().Format(time.RFC3339),
	}
}

// nonNil keeps empty lists as [] in JSON.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Package api implements the status HTTP API served by `auditor serve`.
//
// New(runs) returns an http.Handler that serves:
//
//	GET /healthz             liveness of the auditor process
//	GET /api/v1/runs         recent run summaries, newest first
//	GET /api/v1/runs/last    latest run; 404 before the first run
//	GET /api/v1/runs/{id}    single run; 404 if unknown or expired
//	GET /metrics             Prometheus exposition of the latest run
//
// JSON types are defined in types.go.
package api

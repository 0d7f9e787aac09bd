// Package metrics renders an audit.Summary as Prometheus gauges.
//
// The families are built directly with client_model and encoded with expfmt,
// so the same bytes serve the status API's /metrics route and the
// node_exporter textfile written after each run.
package metrics

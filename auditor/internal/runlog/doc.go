// Package runlog keeps the summaries of recent audit runs in memory for the
// status API. Nothing here is written to the registry.
package runlog

// Package audit runs the storefront speed audit.
//
// Runner.Run is strictly staged:
//
//	EligibleStores → CheckAll → Partition → ScoreAll → Persist
//
// and threads a Summary through the sequential steps between stages. A store
// source failure aborts the run with ErrSource before any probe is sent;
// every other failure is per store and is reported in the Summary.
//
// Execute builds a Runner from a config.Config (registry backend, probe,
// PageSpeed client, sink) for one run and closes the registry afterwards.
package audit

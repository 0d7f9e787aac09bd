// Command auditor probes premium storefronts for liveness, scores the live
// ones with the PageSpeed Insights API and records the scores in the store
// registry.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

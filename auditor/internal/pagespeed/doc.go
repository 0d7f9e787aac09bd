// Package pagespeed scores live storefronts with the PageSpeed Insights API.
//
// client.go calls
//
//	GET {endpoint}?url=https://{hostname}&category=performance&strategy=desktop&key={key}
//
// for every live store concurrently (ScoreAll) and reads
// lighthouseResult.categories.performance.score, scaled from 0–1 to 0–100.
// Any per-store failure (transport, non-200, bad JSON, missing or out of
// range score) is returned in Outcome.Err and never stops the batch. A failed
// response body is read once, bounded, to enrich the error.
//
// rating.go provides Rate, the Lighthouse bands: good ≥90, needs-improvement
// 50–89, poor <50.
package pagespeed

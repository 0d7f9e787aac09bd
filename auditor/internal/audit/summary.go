package audit

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Summary is the report of one audit run. It is built only in the sequential
// parts of Run, never from inside a stage's goroutines.
type Summary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Eligible      int `json:"eligible"`
	Live          int `json:"live"`
	ScoresUpdated int `json:"scores_updated"`

	// NotLive holds hostnames that did not answer 200, in fan-in order.
	NotLive []string `json:"not_live"`

	// ScoreFailures holds live hostnames whose score could not be fetched.
	ScoreFailures []string `json:"score_failures,omitempty"`

	// PersistFailures holds hostnames whose score insert failed.
	PersistFailures []string `json:"persist_failures,omitempty"`

	// CertWarnings holds hostnames whose certificate is expiring or expired.
	CertWarnings []string `json:"cert_warnings,omitempty"`
}

// Duration is the wall time of the run.
func (s *Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Print writes the human-readable run report to w.
func (s *Summary) Print(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s (%s)\n", s.RunID, s.Duration().Round(time.Millisecond))
	fmt.Fprintf(&b, "Premium stores for speed updates: %d\n", s.Eligible)
	fmt.Fprintf(&b, "Live stores for score updates: %d\n", s.Live)
	fmt.Fprintf(&b, "Scores Updated: %d\n", s.ScoresUpdated)
	fmt.Fprintf(&b, "Stores not live: %d\n", len(s.NotLive))
	fmt.Fprintf(&b, "URLs for not live stores: [%s]\n", strings.Join(s.NotLive, ", "))
	if len(s.ScoreFailures) > 0 {
		fmt.Fprintf(&b, "Score failures: %d [%s]\n", len(s.ScoreFailures), strings.Join(s.ScoreFailures, ", "))
	}
	if len(s.PersistFailures) > 0 {
		fmt.Fprintf(&b, "Persist failures: %d [%s]\n", len(s.PersistFailures), strings.Join(s.PersistFailures, ", "))
	}
	if len(s.CertWarnings) > 0 {
		fmt.Fprintf(&b, "Certificate warnings: %d [%s]\n", len(s.CertWarnings), strings.Join(s.CertWarnings, ", "))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Package sink persists speed scores to the registry, one record per scored
// store, and reports how many inserts the registry acknowledged.
package sink

import (
	"context"
	"log/slog"
	"time"

	"github.com/storefront/speedaudit/auditor/internal/pagespeed"
	"github.com/storefront/speedaudit/auditor/internal/registry"
)

// Writer appends score records. registry.Registry satisfies it.
type Writer interface {
	InsertScore(ctx context.Context, rec registry.ScoreRecord) (string, error)
}

// Report is the outcome of one Persist call.
type Report struct {
	// Updated counts acknowledged inserts.
	Updated int

	// Skipped counts absent outcomes that were never written.
	Skipped int

	// Failed lists hostnames whose insert failed, in order.
	Failed []string
}

// Sink writes outcomes through a Writer.
type Sink struct {
	w   Writer
	now func() time.Time // injectable for deterministic tests
}

// New returns a Sink writing to w.
func New(w Writer) *Sink {
	return &Sink{w: w, now: time.Now}
}

// Persist inserts one record per present outcome, in order. RequestedAt is
// stamped at the moment of each insert. A failed insert is logged and listed
// in the report; the remaining inserts still run.
func (s *Sink) Persist(ctx context.Context, outcomes []pagespeed.Outcome) Report {
	var rep Report
	for _, o := range outcomes {
		if !o.Present() {
			rep.Skipped++
			continue
		}

		rec := registry.ScoreRecord{
			StoreID:     o.StoreID,
			Desktop:     o.Score,
			RequestedAt: s.now(),
		}
		id, err := s.w.InsertScore(ctx, rec)
		if err != nil {
			slog.Error("sink: insert failed", "host", o.Hostname, "store_id", o.StoreID, "err", err)
			rep.Failed = append(rep.Failed, o.Hostname)
			continue
		}
		rep.Updated++
		slog.Info("sink: speed score updated", "host", o.Hostname, "store_id", o.StoreID, "record_id", id)
	}
	return rep
}

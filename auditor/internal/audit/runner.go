package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/storefront/speedaudit/auditor/internal/pagespeed"
	"github.com/storefront/speedaudit/auditor/internal/probe"
	"github.com/storefront/speedaudit/auditor/internal/registry"
	"github.com/storefront/speedaudit/auditor/internal/sink"
)

// ErrSource marks a run that failed before probing because the store list
// could not be read. No later stage runs and no summary is produced.
var ErrSource = errors.New("audit: store source failed")

// Source yields the stores to audit.
type Source interface {
	EligibleStores(ctx context.Context) ([]registry.Store, error)
}

// Prober checks liveness for a batch of stores.
type Prober interface {
	CheckAll(ctx context.Context, stores []registry.Store) []probe.Result
}

// Scorer fetches speed scores for a batch of live stores.
type Scorer interface {
	ScoreAll(ctx context.Context, live []probe.Result) []pagespeed.Outcome
}

// Persister stores scoring outcomes.
type Persister interface {
	Persist(ctx context.Context, outcomes []pagespeed.Outcome) sink.Report
}

// Runner sequences one audit: source, liveness, scoring, persistence. Each
// stage starts only after the previous one has fully returned.
type Runner struct {
	source Source
	prober Prober
	scorer Scorer
	sink   Persister

	now   func() time.Time // injectable for deterministic tests
	newID func() string
}

// NewRunner wires the four stages together.
func NewRunner(src Source, p Prober, sc Scorer, sk Persister) *Runner {
	return &Runner{
		source: src,
		prober: p,
		scorer: sc,
		sink:   sk,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Run executes one audit. It returns an error wrapping ErrSource when the
// store list cannot be read; every later failure is per store and ends up in
// the Summary instead.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{RunID: r.newID(), StartedAt: r.now(), NotLive: []string{}}
	log := slog.With("run_id", sum.RunID)
	log.Info("audit: run started")

	stores, err := r.source.EligibleStores(ctx)
	if err != nil {
		log.Error("audit: run failed", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrSource, err)
	}
	sum.Eligible = len(stores)
	log.Info("audit: premium stores selected", "count", len(stores))

	results := r.prober.CheckAll(ctx, stores)
	for _, res := range results {
		if res.Cert != nil && res.Cert.State != probe.CertValid {
			sum.CertWarnings = append(sum.CertWarnings, res.Hostname)
		}
	}
	live, notLive := probe.Partition(results)
	sum.Live = len(live)
	sum.NotLive = append(sum.NotLive, notLive...)

	outcomes := r.scorer.ScoreAll(ctx, live)
	for _, o := range outcomes {
		if !o.Present() {
			sum.ScoreFailures = append(sum.ScoreFailures, o.Hostname)
		}
	}

	rep := r.sink.Persist(ctx, outcomes)
	sum.ScoresUpdated = rep.Updated
	sum.PersistFailures = rep.Failed

	sum.FinishedAt = r.now()
	log.Info("audit: run completed",
		"eligible", sum.Eligible,
		"live", sum.Live,
		"scores_updated", sum.ScoresUpdated,
		"not_live", len(sum.NotLive),
		"score_failures", len(sum.ScoreFailures),
		"persist_failures", len(sum.PersistFailures),
		"cert_warnings", len(sum.CertWarnings),
		"duration", sum.Duration(),
	)
	return sum, nil
}

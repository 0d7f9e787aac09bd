package metrics

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/storefront/speedaudit/auditor/internal/audit"
)

// Prefix is prepended to every metric name.
const Prefix = "speedaudit_"

// Metric names, without Prefix.
const (
	StoresEligible   = "stores_eligible"
	StoresLive       = "stores_live"
	StoresNotLive    = "stores_not_live"
	ScoresUpdated    = "scores_updated"
	ScoreFailures    = "score_failures"
	PersistFailures  = "persist_failures"
	CertWarnings     = "cert_warnings"
	RunDuration      = "run_duration_seconds"
	LastRunTimestamp = "last_run_timestamp_seconds"
)

// ContentType is the exposition content type for HTTP responses.
var ContentType = string(expfmt.NewFormat(expfmt.TypeTextPlain))

var help = map[string]string{
	StoresEligible:   "Premium stores selected for the last audit.",
	StoresLive:       "Stores that answered 200 in the last audit.",
	StoresNotLive:    "Stores that did not answer 200 in the last audit.",
	ScoresUpdated:    "Speed scores persisted in the last audit.",
	ScoreFailures:    "Live stores whose speed score could not be fetched.",
	PersistFailures:  "Speed scores that could not be written to the registry.",
	CertWarnings:     "Stores whose TLS certificate is expiring or expired.",
	RunDuration:      "Wall time of the last audit.",
	LastRunTimestamp: "Unix time at which the last audit finished.",
}

// Families converts sum into gauge families, in a fixed order.
func Families(sum *audit.Summary) []*dto.MetricFamily {
	values := []struct {
		name string
		v    float64
	}{
		{StoresEligible, float64(sum.Eligible)},
		{StoresLive, float64(sum.Live)},
		{StoresNotLive, float64(len(sum.NotLive))},
		{ScoresUpdated, float64(sum.ScoresUpdated)},
		{ScoreFailures, float64(len(sum.ScoreFailures))},
		{PersistFailures, float64(len(sum.PersistFailures))},
		{CertWarnings, float64(len(sum.CertWarnings))},
		{RunDuration, sum.Duration().Seconds()},
		{LastRunTimestamp, float64(sum.FinishedAt.UnixNano()) / 1e9},
	}

	out := make([]*dto.MetricFamily, 0, len(values))
	for _, kv := range values {
		out = append(out, gauge(Prefix+kv.name, help[kv.name], kv.v))
	}
	return out
}

// Write encodes sum as Prometheus text exposition.
func Write(w io.Writer, sum *audit.Summary) error {
	for _, mf := range Families(sum) {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// WriteFile writes the exposition for sum to path for the node_exporter
// textfile collector. The file is replaced atomically so a concurrent scrape
// never sees a partial write.
func WriteFile(path string, sum *audit.Summary) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("metrics: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if err := Write(tmp, sum); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("metrics: close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("metrics: chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("metrics: rename: %w", err)
	}
	return nil
}

func gauge(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: &name,
		Help: &help,
		Type: dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{
			{Gauge: &dto.Gauge{Value: &v}},
		},
	}
}

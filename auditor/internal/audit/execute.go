package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/storefront/speedaudit/auditor/internal/config"
	"github.com/storefront/speedaudit/auditor/internal/pagespeed"
	"github.com/storefront/speedaudit/auditor/internal/probe"
	"github.com/storefront/speedaudit/auditor/internal/registry"
	"github.com/storefront/speedaudit/auditor/internal/sink"
)

const closeTimeout = 5 * time.Second

// Execute opens the registry described by cfg, runs one audit against it and
// closes it again. A registry that cannot be opened is a source failure.
func Execute(ctx context.Context, cfg *config.Config) (*Summary, error) {
	reg, err := registry.Open(ctx, cfg.Registry.URI(), registry.Options{
		DBName:           cfg.Registry.DBName(),
		StoresCollection: cfg.Registry.StoresCollection,
		ScoresCollection: cfg.Registry.ScoresCollection,
		ConnectTimeout:   cfg.Registry.ConnectTimeout,
	})
	if err != nil {
		slog.Error("audit: registry unavailable", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrSource, err)
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := reg.Close(cctx); err != nil {
			slog.Warn("audit: registry close failed", "err", err)
		}
	}()

	runner := NewRunner(
		reg,
		probe.New(probe.Config{
			Timeout:            cfg.Probe.Timeout,
			Concurrency:        cfg.Probe.Concurrency,
			UserAgent:          cfg.Probe.UserAgent,
			InsecureSkipVerify: cfg.Probe.InsecureSkipVerify,
		}),
		pagespeed.New(pagespeed.Config{
			Endpoint:    cfg.PageSpeed.Endpoint,
			Key:         cfg.PageSpeed.Key(),
			Strategy:    cfg.PageSpeed.Strategy,
			Category:    cfg.PageSpeed.Category,
			Timeout:     cfg.PageSpeed.Timeout,
			Concurrency: cfg.PageSpeed.Concurrency,
		}),
		sink.New(reg),
	)
	return runner.Run(ctx)
}

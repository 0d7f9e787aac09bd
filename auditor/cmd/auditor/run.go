package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/storefront/speedaudit/auditor/internal/audit"
	"github.com/storefront/speedaudit/auditor/internal/config"
	"github.com/storefront/speedaudit/auditor/internal/metrics"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one audit and print the summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			_, err := auditOnce(ctx, a.cfg)
			return err
		},
	}
}

// auditOnce runs one audit with cfg, prints its summary on stdout and writes
// the metrics textfile when one is configured.
func auditOnce(ctx context.Context, cfg *config.Config) (*audit.Summary, error) {
	sum, err := audit.Execute(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := sum.Print(os.Stdout); err != nil {
		slog.Warn("auditor: print summary failed", "err", err)
	}
	if path := cfg.Metrics.Textfile; path != "" {
		if err := metrics.WriteFile(path, sum); err != nil {
			slog.Warn("auditor: write metrics textfile failed", "path", path, "err", err)
		}
	}
	return sum, nil
}

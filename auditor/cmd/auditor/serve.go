package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/storefront/speedaudit/auditor/internal/api"
	"github.com/storefront/speedaudit/auditor/internal/config"
	"github.com/storefront/speedaudit/auditor/internal/runlog"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run an audit now and then on every schedule interval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return a.serve(ctx)
		},
	}
}

// serve runs audits back to back on a ticker until ctx is cancelled. A tick
// that arrives while an audit is still running is dropped, so runs never
// overlap. Config reloads apply from the next audit on.
func (a *app) serve(ctx context.Context) error {
	var cur atomic.Pointer[config.Config]
	cur.Store(a.cfg)

	if a.configPath != "" {
		go func() {
			if err := config.Watch(ctx, a.configPath, func(updated *config.Config) {
				cur.Store(updated)
				a.applyLogLevel(updated.LogLevel)
				slog.Info("auditor: config hot-reloaded", "interval", updated.Schedule.Interval)
			}); err != nil {
				slog.Error("auditor: config watcher stopped", "err", err)
			}
		}()
	}

	runs := runlog.New(a.cfg.Status.RunLogTTL)
	go runs.Run(ctx)

	if addr := a.cfg.Status.Addr; addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           api.New(runs),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("auditor: status api listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("auditor: status api stopped", "err", err)
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	interval := a.cfg.Schedule.Interval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("auditor: serving", "interval", interval)
	for {
		cfg := cur.Load()
		if sum, err := auditOnce(ctx, cfg); err != nil {
			slog.Error("auditor: audit failed", "err", err)
		} else {
			runs.Put(sum)
		}

		if next := cur.Load().Schedule.Interval; next != interval {
			interval = next
			ticker.Reset(interval)
			slog.Info("auditor: schedule changed", "interval", interval)
		}

		select {
		case <-ctx.Done():
			slog.Info("auditor: shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

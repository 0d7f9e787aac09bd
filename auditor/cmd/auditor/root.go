package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/storefront/speedaudit/auditor/internal/config"
)

const (
	defaultConfigPath = "auditor.yaml"
	dotenvPath        = ".env"
)

// app carries state shared by the subcommands once PersistentPreRunE has run.
type app struct {
	configPath string
	logLevel   string

	level *slog.LevelVar
	cfg   *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{level: new(slog.LevelVar)}

	root := &cobra.Command{
		Use:           "auditor",
		Short:         "Storefront speed auditor",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Flags().Changed("config"), cmd.Flags().Changed("log-level"))
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", defaultConfigPath, "path to the YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", config.DefaultLogLevel, "log level: debug, info, warn or error")

	root.AddCommand(newRunCmd(a), newServeCmd(a))
	return root
}

// setup installs the JSON logger on stderr, loads .env and the config file.
// The --log-level flag wins over log_level from the file when both are set.
func (a *app) setup(configSet, levelSet bool) error {
	if err := a.level.UnmarshalText([]byte(a.logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", a.logLevel, err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: a.level})))

	if err := config.LoadDotenv(dotenvPath); err != nil {
		slog.Error("auditor: failed to load .env", "err", err)
		return err
	}

	path, err := resolveConfigPath(a.configPath, configSet)
	if err != nil {
		slog.Error("auditor: config file not found", "path", a.configPath)
		return err
	}
	a.configPath = path

	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("auditor: failed to load config", "path", path, "err", err)
		return err
	}
	a.cfg = cfg
	if !levelSet {
		a.applyLogLevel(cfg.LogLevel)
	}

	slog.Info("auditor: config loaded",
		"path", path,
		"stores_collection", cfg.Registry.StoresCollection,
		"scores_collection", cfg.Registry.ScoresCollection,
		"strategy", cfg.PageSpeed.Strategy,
		"probe_timeout", cfg.Probe.Timeout,
		"pagespeed_timeout", cfg.PageSpeed.Timeout,
	)
	return nil
}

func (a *app) applyLogLevel(level string) {
	if err := a.level.UnmarshalText([]byte(level)); err != nil {
		slog.Warn("auditor: ignoring log level", "level", level, "err", err)
	}
}

// resolveConfigPath returns "" (defaults and environment only) when the
// default config file is absent. An explicitly requested file must exist.
func resolveConfigPath(path string, explicit bool) (string, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return path, nil
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		return "", nil
	default:
		return "", fmt.Errorf("config %s: %w", path, err)
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/nvandessel/orderlattice/internal/config"
	"github.com/nvandessel/orderlattice/internal/logging"
	"github.com/nvandessel/orderlattice/internal/store"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "orderlattice",
		Short: "Order/disorder sweeps on a 2D Ising lattice",
		Long: `orderlattice runs Monte Carlo sweeps of a 2D Ising lattice over a grid of
temperatures and external fields.

Each (T, H) point reports an order parameter A, its complement R = 1 - A, and
the split of total correlation into Fine, Meso and Coarse bands derived from
a maximum spanning tree of the pairwise correlation graph.`,
		SilenceUsage: true,
	}

	addPersistentFlags(rootCmd)

	rootCmd.AddCommand(
		newVersionCmd(),
		newSweepCmd(),
		newPointCmd(),
		newRunsCmd(),
		newConfigCmd(),
		newBackupCmd(),
		newMCPServerCmd(),
	)
	return rootCmd
}

// addPersistentFlags registers the flags every subcommand understands.
func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	cmd.PersistentFlags().String("config", "", "Config file (default ~/.orderlattice/config.yaml)")
	cmd.PersistentFlags().String("db", "", "Results database path (default ~/.orderlattice/results.db)")
	cmd.PersistentFlags().String("log-level", "", "Log level: info, debug, or trace")
}

// loadConfig resolves configuration from --config (or the default
// locations) and applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.OrderConfig, error) {
	path, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.OrderConfig
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Store.DBPath = db
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the operational logger, writing to the command's stderr.
func newLogger(cmd *cobra.Command, cfg *config.OrderConfig) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
}

// dbPath returns the configured database path or the global default.
func dbPath(cfg *config.OrderConfig) (string, error) {
	if cfg.Store.DBPath != "" {
		return cfg.Store.DBPath, nil
	}
	return store.DefaultDBPath()
}

// openStore opens the SQLite result store named by cfg.
func openStore(cfg *config.OrderConfig) (*store.SQLiteResultStore, error) {
	path, err := dbPath(cfg)
	if err != nil {
		return nil, err
	}
	rs, err := store.NewSQLiteResultStore(path)
	if err != nil {
		return nil, fmt.Errorf("open result store: %w", err)
	}
	return rs, nil
}

// dataDir is the directory holding the database, point traces and audit logs.
func dataDir(cfg *config.OrderConfig) (string, error) {
	path, err := dbPath(cfg)
	if err != nil {
		return "", err
	}
	return filepath.Dir(path), nil
}

// createOutput opens an -o destination. Tests replace it to inject write
// and close failures.
var createOutput = func(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

// writeOutput runs write against stdout, or against the file at path when
// path is set. A failed close is reported like a failed write.
func writeOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(cmd.OutOrStdout())
	}
	f, err := createOutput(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	return nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

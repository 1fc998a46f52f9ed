// Package cmd provides the CLI commands for soudok.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/soudok/soudok/internal/config"
	"github.com/soudok/soudok/internal/engine"
	"github.com/soudok/soudok/internal/logging"
	"github.com/soudok/soudok/internal/runlock"
	"github.com/soudok/soudok/internal/store"
	"github.com/soudok/soudok/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the soudok CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "soudok",
		Short: "Collect, index and search Swedish government reports",
		Long: `Soudok acquires government report documents from the Riksdagen bulk
feed and the KB web archive, normalizes them into canonical records,
and loads them into a local full-text index with year facets.

Typical workflow:
  soudok acquire          # download the bulk feed and store new documents
  soudok scrape           # scrape older reports from the web archive
  soudok ingest           # index everything pending
  soudok search "skolan"  # query the index`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("soudok version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRun = stopLogging

	cmd.AddCommand(newAcquireCmd())
	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newResetCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// startLogging installs the default logger. Every entry in a process
// carries the same run_id so one pipeline run can be followed through
// the log file.
func startLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	if cfg, err := config.Load("."); err == nil {
		logCfg.Level = cfg.Logging.Level
		logCfg.Format = cfg.Logging.Format
	}
	if debugMode {
		logCfg.Level = "debug"
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	slog.SetDefault(logger.With(slog.String("run_id", uuid.NewString())))
	loggingCleanup = cleanup
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
}

// loadConfig loads the effective configuration for the working directory.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// acquireRunLock takes the cross-process lock guarding mutating commands.
// The caller must Release it.
func acquireRunLock(cfg *config.Config) (*runlock.Lock, error) {
	lock := runlock.New(cfg.Paths.DataDir)
	if err := lock.Acquire(); err != nil {
		if err == runlock.ErrHeld {
			return nil, fmt.Errorf("%w (lock file: %s)", err, lock.Path())
		}
		return nil, err
	}
	return lock, nil
}

// openStore opens the metadata store at the configured path.
func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.Paths.Database)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	return st, nil
}

// openEngine creates the search engine over the configured index path.
func openEngine(cfg *config.Config) *engine.Bleve {
	return engine.NewBleve(cfg.Paths.Index)
}

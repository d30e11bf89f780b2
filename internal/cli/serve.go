package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/curtislbyrd/D3tectConvert/internal/audit"
	"github.com/curtislbyrd/D3tectConvert/internal/config"
	"github.com/curtislbyrd/D3tectConvert/internal/dataset"
	"github.com/curtislbyrd/D3tectConvert/internal/metrics"
	"github.com/curtislbyrd/D3tectConvert/internal/query"
	"github.com/curtislbyrd/D3tectConvert/internal/server"
	"github.com/curtislbyrd/D3tectConvert/internal/store"
)

func serveCmd() *cobra.Command {
	var configPath string
	var listen string
	var datasetPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the lookup API and search UI",
		Long: `Serve loads the mapping dataset, builds the in-memory index, and serves
the search API, autocomplete listing, embedded UI, and metrics until
interrupted. The dataset is indexed once at startup; restart the process
to pick up a refreshed dataset.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			if datasetPath != "" {
				cfg.Dataset.Path = datasetPath
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd, cfg, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (default d3tect.yaml if present)")
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&datasetPath, "dataset", "", "dataset path (overrides config)")

	return cmd
}

func runServe(cmd *cobra.Command, cfg *config.Config, configPath string) error {
	log, err := audit.New(cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.File, cfg.Logging.IncludeQueries)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Close()

	sentryEnabled := false
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Release: "d3tect@" + Version}); err != nil {
			return fmt.Errorf("initializing sentry: %w", err)
		}
		sentryEnabled = true
		defer sentry.Flush(2 * time.Second)
	}

	// Dataset load failures are fatal: no degraded service with an empty
	// index.
	records, err := dataset.Load(cfg.Dataset.Path)
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}
	st, stats, err := store.New(records)
	if err != nil {
		return fmt.Errorf("indexing dataset %s: %w", cfg.Dataset.Path, err)
	}
	log.LogDatasetLoad(cfg.Dataset.Path, stats.Loaded, stats.Countermeasures, stats.Skipped, stats.Duplicates)
	if stats.Duplicates > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "WARNING: %d duplicate technique ids (last write wins): %s\n",
			stats.Duplicates, strings.Join(stats.DuplicateIDs, ", "))
	}

	m := metrics.New()
	m.SetDatasetSize(stats.Loaded, stats.Countermeasures)

	svc := query.NewService(st, cfg.Limits.SearchResults)
	srv := server.New(cfg, st, svc, log, m, sentryEnabled)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Hot-reload runtime tunables when serving from an explicit config
	// file. The indexed dataset is immutable per process.
	if configPath != "" {
		reloader := config.NewReloader(configPath, log)
		defer reloader.Close()
		go func() {
			_ = reloader.Start(ctx)
		}()
		go func() {
			for updated := range reloader.Changes() {
				for _, w := range config.ValidateReload(cfg, updated) {
					log.LogConfigReload("warning", w.Field+": "+w.Message)
				}
				srv.ApplyConfig(updated)
				cfg = updated
				log.LogConfigReload("applied", configPath)
			}
		}()
	}

	return srv.Start(ctx)
}

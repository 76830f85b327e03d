package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/aepodrez/crosssignals/internal/config"
	httpiface "github.com/aepodrez/crosssignals/internal/interfaces/http"
	"github.com/aepodrez/crosssignals/internal/metrics"
	"github.com/aepodrez/crosssignals/internal/persistence/postgres"
	"github.com/aepodrez/crosssignals/internal/signal"
)

func newRunCmd() *cobra.Command {
	var (
		only        []string
		workers     int
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute signals from their YAML definitions",
		Long: `Loads every signal definition (or the named subset), computes each one
and writes the outputs. A failed signal is reported and skipped; it never
aborts the batch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if workers > 0 {
				cfg.Workers = workers
			}
			if metricsAddr != "" {
				cfg.MetricsAddr = metricsAddr
			}
			return runBatch(cmd.Context(), cfg, only)
		},
	}
	cmd.Flags().StringSliceVar(&only, "only", nil, "run only the named signals")
	cmd.Flags().IntVar(&workers, "workers", 0, "override worker count for per-entity phases")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /health and /metrics on this address during the run")
	return cmd
}

func runBatch(ctx context.Context, cfg config.Config, only []string) error {
	defs, err := signal.LoadDefinitionDir(cfg.SignalDir)
	if err != nil {
		return err
	}
	defs = filterDefs(defs, only)
	if len(defs) == 0 {
		return fmt.Errorf("no signal definitions to run in %s", cfg.SignalDir)
	}

	reg := metrics.NewRegistry()
	if cfg.MetricsAddr != "" {
		srv := httpiface.NewServer(cfg.MetricsAddr, reg, log.Logger)
		go srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Stop(shutdownCtx)
		}()
	}

	sinks := []signal.Sink{&signal.CSVSink{Dir: cfg.OutputDir}}
	if cfg.Postgres != nil {
		db, err := sqlx.Connect("postgres", cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("connect postgres sink: %w", err)
		}
		defer db.Close()
		sinks = append(sinks, postgres.NewSignalsRepo(db, cfg.Postgres.Table, cfg.Postgres.BatchSize))
	}

	engine, err := signal.NewEngine(cfg, log.Logger, reg, sinks...)
	if err != nil {
		return err
	}

	log.Info().Int("signals", len(defs)).Int("workers", cfg.Workers).Msg("starting batch")
	reports := engine.RunAll(ctx, defs)

	ok, failed := 0, 0
	for _, rep := range reports {
		if rep.Error != "" {
			failed++
		} else {
			ok++
		}
	}
	log.Info().Int("ok", ok).Int("failed", failed).Msg("batch complete")
	if ok == 0 {
		return fmt.Errorf("all %d signals failed", failed)
	}
	return nil
}

func filterDefs(defs []*signal.Definition, only []string) []*signal.Definition {
	if len(only) == 0 {
		return defs
	}
	want := make(map[string]bool, len(only))
	for _, name := range only {
		want[name] = true
	}
	var out []*signal.Definition
	for _, d := range defs {
		if want[d.Name] {
			out = append(out, d)
		}
	}
	return out
}

func loadConfig() (config.Config, error) {
	if flagConfig == "" {
		return config.Default(), nil
	}
	return config.Load(flagConfig)
}

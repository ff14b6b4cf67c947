package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jzx17/procsim/internal/config"
	"github.com/jzx17/procsim/internal/logger"
	"github.com/jzx17/procsim/internal/soak"
	"github.com/jzx17/procsim/pkg/observer"
	"github.com/spf13/cobra"
)

type soakOptions struct {
	sim         config.SimulationConfig
	schedule    string
	runs        int
	metricsAddr string
}

func newSoakCmd(root *rootOptions) *cobra.Command {
	opts := &soakOptions{}

	cmd := &cobra.Command{
		Use:   "soak",
		Short: "Repeat simulations on a cron schedule",
		Long: `Run a fresh simulation on every tick of a cron schedule and verify that
every task was executed exactly once. Stops after --runs runs or on interrupt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			fs := cmd.Flags()
			overrideSimulation(fs, opts.sim, cfg)
			if fs.Changed("schedule") {
				cfg.Soak.Schedule = opts.schedule
			}
			if fs.Changed("runs") {
				cfg.Soak.Runs = opts.runs
			}
			if opts.metricsAddr != "" {
				cfg.Metrics.Enabled = true
				cfg.Metrics.Addr = opts.metricsAddr
			}
			if err := validated(cfg); err != nil {
				return err
			}

			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			params, err := cfg.Params()
			if err != nil {
				return err
			}
			params.Logger = log
			schedule, err := config.ParseSchedule(cfg.Soak.Schedule)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var observers []observer.Observer
			if cfg.Metrics.Enabled {
				exporter, stopMetrics, err := startMetrics(ctx, cfg.Metrics, log)
				if err != nil {
					return err
				}
				defer stopMetrics()
				observers = append(observers, exporter)
			}

			s := soak.New(schedule, cfg.Soak.Runs, soak.Simulation(params, observers...),
				log.With(logger.F("schedule", cfg.Soak.Schedule)))
			report := s.Run(ctx)

			fmt.Fprintf(cmd.OutOrStdout(), "runs=%d failures=%d tasks=%d\n", report.Runs, report.Failures, report.Tasks)
			if report.Failures > 0 {
				return fmt.Errorf("%d of %d soak runs failed, last: %s", report.Failures, report.Runs, report.LastError)
			}
			return nil
		},
	}

	addSimulationFlags(cmd.Flags(), &opts.sim)
	cmd.Flags().StringVar(&opts.schedule, "schedule", "", "cron schedule, e.g. \"@every 30s\" or \"*/10 * * * * *\"")
	cmd.Flags().IntVar(&opts.runs, "runs", 0, "stop after this many runs (0 runs until interrupted)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jzx17/procsim/internal/config"
	"github.com/jzx17/procsim/internal/logger"
	"github.com/jzx17/procsim/pkg/observer"
	"github.com/jzx17/procsim/pkg/simulation"
	"github.com/jzx17/procsim/pkg/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type runOptions struct {
	sim         config.SimulationConfig
	metricsAddr string
	eventsPath  string
	quiet       bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulation",
		Long: `Generate a task set, drain it with the worker pool and print per-worker
statistics. Flags override the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			opts.apply(cmd.Flags(), cfg)
			if err := validated(cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return opts.run(ctx, cmd.OutOrStdout(), cfg)
		},
	}

	addSimulationFlags(cmd.Flags(), &opts.sim)
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	cmd.Flags().StringVar(&opts.eventsPath, "events", "", "write every observer event as YAML to this file (- for stdout)")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not log individual events")
	return cmd
}

func addSimulationFlags(fs *pflag.FlagSet, sim *config.SimulationConfig) {
	fs.IntVarP(&sim.Workers, "workers", "w", 0, "number of workers")
	fs.IntVarP(&sim.Tasks, "tasks", "n", 0, "number of tasks to generate")
	fs.IntVar(&sim.MaxDuration, "max-duration", 0, "maximum task duration in units")
	fs.StringVar(&sim.TimeUnit, "time-unit", "", "wall time of one duration unit, e.g. 1s or 100ms")
	fs.StringVar(&sim.IdleTimeout, "idle-timeout", "", "how long a worker waits on an empty queue")
	fs.StringVar(&sim.ShutdownMode, "shutdown-mode", "", "idle-timeout or close")
	fs.StringVar(&sim.FaultStrategy, "fault-strategy", "", "continue or fail-fast")
	fs.Uint64Var(&sim.Seed, "seed", 0, "seed for task durations (0 is random)")
}

// overrideSimulation copies every simulation flag the user set into cfg
func overrideSimulation(fs *pflag.FlagSet, sim config.SimulationConfig, cfg *config.Config) {
	if fs.Changed("workers") {
		cfg.Simulation.Workers = sim.Workers
	}
	if fs.Changed("tasks") {
		cfg.Simulation.Tasks = sim.Tasks
	}
	if fs.Changed("max-duration") {
		cfg.Simulation.MaxDuration = sim.MaxDuration
	}
	if fs.Changed("time-unit") {
		cfg.Simulation.TimeUnit = sim.TimeUnit
	}
	if fs.Changed("idle-timeout") {
		cfg.Simulation.IdleTimeout = sim.IdleTimeout
	}
	if fs.Changed("shutdown-mode") {
		cfg.Simulation.ShutdownMode = sim.ShutdownMode
	}
	if fs.Changed("fault-strategy") {
		cfg.Simulation.FaultStrategy = sim.FaultStrategy
	}
	if fs.Changed("seed") {
		cfg.Simulation.Seed = sim.Seed
	}
}

func (o *runOptions) apply(fs *pflag.FlagSet, cfg *config.Config) {
	overrideSimulation(fs, o.sim, cfg)
	if o.metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = o.metricsAddr
	}
}

func (o *runOptions) run(ctx context.Context, out io.Writer, cfg *config.Config) error {
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	params, err := cfg.Params()
	if err != nil {
		return err
	}
	params.Logger = log

	board := newStatusBoard()
	status := observer.NewSerialized(board, 256)
	observers := []observer.Observer{status}

	if !o.quiet {
		observers = append(observers, observer.NewLogObserver(log))
	}

	var rec *observer.Recorder
	if o.eventsPath != "" {
		rec = observer.NewRecorder()
		observers = append(observers, rec)
	}

	if cfg.Metrics.Enabled {
		exporter, stopMetrics, err := startMetrics(ctx, cfg.Metrics, log)
		if err != nil {
			return err
		}
		defer stopMetrics()
		observers = append(observers, exporter)
	}

	result, runErr := simulation.Run(ctx, params, observers...)
	status.Close()

	if result.RunID != "" {
		board.Write(out)
		writeSummary(out, result)
	}
	if rec != nil {
		if err := writeEvents(o.eventsPath, out, result, rec.Events()); err != nil {
			log.Error("writing events", err, logger.F("path", o.eventsPath))
		}
	}
	return runErr
}

func writeSummary(out io.Writer, result worker.Result) {
	fmt.Fprintf(out, "run %s\n", result.RunID)
	for _, id := range result.Stats.Workers() {
		fmt.Fprintf(out, "  worker %d: completed=%d failed=%d idle=%d duration=%d\n",
			id,
			result.Stats.CompletedPerWorker[id],
			result.Stats.FailedPerWorker[id],
			result.Stats.IdlePerWorker[id],
			result.Stats.DurationPerWorker[id-1])
	}
	fmt.Fprintf(out, "tasks=%d completed=%d failed=%d abandoned=%d total_duration=%d elapsed=%s\n",
		result.Tasks,
		result.Stats.Completed(),
		result.Stats.Failed(),
		len(result.Abandoned),
		result.Stats.TotalDuration,
		result.Elapsed)
}

type eventDump struct {
	RunID  string           `yaml:"run_id"`
	Result worker.Result    `yaml:"result"`
	Events []observer.Event `yaml:"events"`
}

func writeEvents(path string, stdout io.Writer, result worker.Result, events []observer.Event) error {
	data, err := yaml.Marshal(eventDump{RunID: result.RunID, Result: result, Events: events})
	if err != nil {
		return fmt.Errorf("encoding events: %w", err)
	}
	if path == "-" {
		_, err = stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

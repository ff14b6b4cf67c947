// Package soak repeats fresh simulation runs on a cron schedule and checks
// the run invariants after every one of them.
package soak

import (
	"context"
	"fmt"
	"sync"

	"github.com/jzx17/procsim/internal/logger"
	"github.com/jzx17/procsim/pkg/observer"
	"github.com/jzx17/procsim/pkg/simulation"
	"github.com/jzx17/procsim/pkg/types"
	"github.com/jzx17/procsim/pkg/worker"
	"github.com/robfig/cron/v3"
)

// RunFunc performs run number n (1-based) and returns its result
type RunFunc func(ctx context.Context, n int) (worker.Result, error)

// Report summarises a soak
type Report struct {
	Runs     int   `json:"runs" yaml:"runs"`
	Failures int   `json:"failures" yaml:"failures"`
	Tasks    int64 `json:"tasks" yaml:"tasks"`

	// LastError is the most recent failure, if any
	LastError string `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

// Soak schedules runs. Overlapping triggers are skipped while a run is still
// in progress.
type Soak struct {
	schedule cron.Schedule
	maxRuns  int
	run      RunFunc
	log      *logger.Logger

	mu     sync.Mutex
	report Report
	limit  chan struct{}
}

// New creates a soak that triggers run on schedule until maxRuns runs have
// completed, or forever when maxRuns is zero
func New(schedule cron.Schedule, maxRuns int, run RunFunc, log *logger.Logger) *Soak {
	if log == nil {
		log = logger.Nop()
	}
	return &Soak{
		schedule: schedule,
		maxRuns:  maxRuns,
		run:      run,
		log:      log,
		limit:    make(chan struct{}),
	}
}

// Run blocks until ctx is done or the run limit is reached, then waits for
// the run in progress and returns the report
func (s *Soak) Run(ctx context.Context) Report {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cronLog := cronLogger{log: s.log}
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	c.Schedule(s.schedule, cron.FuncJob(func() { s.trigger(runCtx) }))

	s.log.Info("soak started", logger.F("max_runs", s.maxRuns))
	c.Start()

	select {
	case <-ctx.Done():
	case <-s.limit:
	}
	cancel()
	<-c.Stop().Done()

	report := s.Report()
	s.log.Info("soak finished",
		logger.F("runs", report.Runs),
		logger.F("failures", report.Failures),
		logger.F("tasks", report.Tasks))
	return report
}

// Report returns the progress so far
func (s *Soak) Report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

func (s *Soak) trigger(ctx context.Context) {
	s.mu.Lock()
	if ctx.Err() != nil || (s.maxRuns > 0 && s.report.Runs >= s.maxRuns) {
		s.mu.Unlock()
		return
	}
	s.report.Runs++
	n := s.report.Runs
	s.mu.Unlock()

	result, err := s.run(ctx, n)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.Tasks += int64(result.Tasks)
	if err != nil {
		s.report.Failures++
		s.report.LastError = err.Error()
		s.log.Error("soak run failed", err, logger.F("run", n), logger.F("run_id", result.RunID))
	} else {
		s.log.Info("soak run passed",
			logger.F("run", n),
			logger.F("run_id", result.RunID),
			logger.F("tasks", result.Tasks),
			logger.F("elapsed", result.Elapsed))
	}
	if s.maxRuns > 0 && n == s.maxRuns {
		close(s.limit)
	}
}

// Simulation returns a RunFunc that generates a fresh task set for every run
// and verifies the resulting statistics. A non-zero seed is offset by the run
// number so each run differs but the soak is reproducible.
func Simulation(params simulation.Params, observers ...observer.Observer) RunFunc {
	return func(ctx context.Context, n int) (worker.Result, error) {
		p := params
		if p.Seed != 0 {
			p.Seed += uint64(n)
		}

		tasks, err := simulation.GenerateTasks(p.Tasks, p.MaxDuration, p.Rand())
		if err != nil {
			return worker.Result{}, err
		}
		pool, err := worker.NewPool(p.PoolConfig())
		if err != nil {
			return worker.Result{}, err
		}

		result, err := pool.Simulate(ctx, tasks, observers...)
		if err != nil {
			return result, err
		}
		if err := result.Stats.Verify(len(tasks), totalDuration(tasks)); err != nil {
			return result, fmt.Errorf("run %d: %w", n, err)
		}
		return result, nil
	}
}

func totalDuration(tasks []types.Task) int64 {
	var total int64
	for _, task := range tasks {
		total += int64(task.Duration)
	}
	return total
}

// cronLogger adapts the logger to cron.Logger
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.StdLogger().Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.StdLogger().Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}

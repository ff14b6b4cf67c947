// Package simulation generates randomized task sets and runs them through a
// worker pool in one call.
package simulation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jzx17/procsim/internal/fault"
	"github.com/jzx17/procsim/internal/logger"
	"github.com/jzx17/procsim/pkg/observer"
	"github.com/jzx17/procsim/pkg/types"
	"github.com/jzx17/procsim/pkg/worker"
)

// GenerateTasks returns n tasks with ids 1..n and durations drawn uniformly
// from [1, maxDuration]. A nil rng uses the global source.
func GenerateTasks(n, maxDuration int, rng *rand.Rand) ([]types.Task, error) {
	if n < 0 {
		return nil, types.InvalidConfigf("task count must not be negative, got %d", n)
	}
	if maxDuration < 1 {
		return nil, types.InvalidConfigf("max duration must be at least 1, got %d", maxDuration)
	}

	intN := rand.IntN
	if rng != nil {
		intN = rng.IntN
	}

	tasks := make([]types.Task, n)
	for i := range tasks {
		tasks[i] = types.Task{ID: i + 1, Duration: 1 + intN(maxDuration)}
	}
	return tasks, nil
}

// Params describes one simulation
type Params struct {
	Workers       int
	Tasks         int
	MaxDuration   int
	TimeUnit      time.Duration
	IdleTimeout   time.Duration
	ShutdownMode  types.ShutdownMode
	FaultStrategy fault.Strategy

	// Seed makes the generated durations reproducible; zero picks a random seed
	Seed uint64

	// Clock and Logger are optional
	Clock  types.Clock
	Logger *logger.Logger
}

// DefaultParams mirrors the reference demo: two workers, ten tasks of up to
// five one-second units, and a one unit idle timeout
func DefaultParams() Params {
	return Params{
		Workers:     2,
		Tasks:       10,
		MaxDuration: 5,
		TimeUnit:    time.Second,
		IdleTimeout: time.Second,
	}
}

// Validate checks the parameters
func (p Params) Validate() error {
	if p.Workers < 1 {
		return types.InvalidConfigf("workers must be at least 1, got %d", p.Workers)
	}
	if p.Tasks < 0 {
		return types.InvalidConfigf("tasks must not be negative, got %d", p.Tasks)
	}
	if p.MaxDuration < 1 {
		return types.InvalidConfigf("max duration must be at least 1, got %d", p.MaxDuration)
	}
	return nil
}

// Rand returns the random source for the parameters
func (p Params) Rand() *rand.Rand {
	seed := p.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// PoolConfig builds the worker pool configuration for the parameters
func (p Params) PoolConfig() *worker.PoolConfig {
	return &worker.PoolConfig{
		PoolSize:      p.Workers,
		IdleTimeout:   p.IdleTimeout,
		TimeUnit:      p.TimeUnit,
		ShutdownMode:  p.ShutdownMode,
		FaultStrategy: p.FaultStrategy,
		Clock:         p.Clock,
		Logger:        p.Logger,
	}
}

// Run generates a task set and simulates it to completion
func Run(ctx context.Context, params Params, observers ...observer.Observer) (worker.Result, error) {
	if err := params.Validate(); err != nil {
		return worker.Result{}, err
	}

	tasks, err := GenerateTasks(params.Tasks, params.MaxDuration, params.Rand())
	if err != nil {
		return worker.Result{}, err
	}

	pool, err := worker.NewPool(params.PoolConfig())
	if err != nil {
		return worker.Result{}, fmt.Errorf("creating pool: %w", err)
	}

	return pool.Simulate(ctx, tasks, observers...)
}

package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jzx17/procsim/internal/fault"
	"github.com/jzx17/procsim/internal/logger"
	"github.com/jzx17/procsim/pkg/observer"
	"github.com/jzx17/procsim/pkg/queue"
	"github.com/jzx17/procsim/pkg/types"
)

// PoolConfig defines configuration for a worker pool
type PoolConfig struct {
	// PoolSize is the number of workers per run
	PoolSize int

	// IdleTimeout is how long a worker waits on an empty queue
	IdleTimeout time.Duration

	// TimeUnit is the wall time of one task duration unit
	TimeUnit time.Duration

	// ShutdownMode selects how workers detect the end of work
	ShutdownMode types.ShutdownMode

	// FaultStrategy selects the built-in fault handler
	FaultStrategy fault.Strategy

	// FaultHandler overrides FaultStrategy when set
	FaultHandler fault.Handler

	// Work performs a task (optional, defaults to sleeping for its duration)
	Work WorkFunc

	// Observer receives worker and coordinator events (optional)
	Observer observer.Observer

	// Clock for time operations (optional, defaults to the context clock)
	Clock types.Clock

	// Logger (optional, defaults to a discarding logger)
	Logger *logger.Logger
}

// DefaultPoolConfig returns the reference configuration: two workers, a one
// unit idle timeout and one second units
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		PoolSize:     2,
		IdleTimeout:  time.Second,
		TimeUnit:     time.Second,
		ShutdownMode: types.ShutdownOnIdleTimeout,
	}
}

// Validate checks the configuration
func (c *PoolConfig) Validate() error {
	if c.PoolSize <= 0 {
		return types.InvalidConfigf("pool size must be positive, got %d", c.PoolSize)
	}
	if c.IdleTimeout <= 0 {
		return types.InvalidConfigf("idle timeout must be positive, got %v", c.IdleTimeout)
	}
	if c.TimeUnit <= 0 {
		return types.InvalidConfigf("time unit must be positive, got %v", c.TimeUnit)
	}
	if c.ShutdownMode != types.ShutdownOnIdleTimeout && c.ShutdownMode != types.ShutdownOnClose {
		return types.InvalidConfigf("unknown shutdown mode %d", c.ShutdownMode)
	}
	return nil
}

// withDefaults returns a copy with optional fields filled in
func (c *PoolConfig) withDefaults() *PoolConfig {
	cp := *c
	if cp.Clock == nil {
		cp.Clock = types.NewRealClock()
	}
	if cp.Logger == nil {
		cp.Logger = logger.Nop()
	}
	if cp.IdleTimeout <= 0 {
		cp.IdleTimeout = time.Second
	}
	if cp.TimeUnit <= 0 {
		cp.TimeUnit = time.Second
	}
	if cp.Work == nil {
		cp.Work = SleepWork(cp.Clock, cp.TimeUnit)
	}
	return &cp
}

func (c *PoolConfig) faultHandler() fault.Handler {
	if c.FaultHandler != nil {
		return c.FaultHandler
	}
	return fault.New(c.FaultStrategy, c.Logger)
}

// Pool starts runs of a fixed number of workers against a fresh queue.
// A Pool may be used for many runs, sequentially or concurrently; workers and
// queues are never shared between runs.
type Pool struct {
	config *PoolConfig
}

// NewPool creates a new worker pool
func NewPool(config *PoolConfig) (*Pool, error) {
	if config == nil {
		config = DefaultPoolConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	cp := *config
	return &Pool{config: &cp}, nil
}

// Size returns the number of workers per run
func (p *Pool) Size() int {
	return p.config.PoolSize
}

// Config returns a copy of the pool configuration
func (p *Pool) Config() PoolConfig {
	return *p.config
}

// Run populates a fresh queue with tasks, starts the workers and returns a
// handle to the run. Cancelling ctx stops the workers at their next dequeue
// and abandons the tasks still pending.
func (p *Pool) Run(ctx context.Context, tasks []types.Task, observers ...observer.Observer) (*Handle, error) {
	if err := validateTasks(tasks); err != nil {
		return nil, err
	}

	cfg := *p.config
	if cfg.Clock == nil {
		cfg.Clock = types.ClockFromContext(ctx)
	}
	return startRun(ctx, &cfg, tasks, observers)
}

// Simulate runs tasks to completion and returns the final result. Cancelling
// ctx stops the run, but Simulate still waits for every worker to exit and
// for AllDone before returning the cancellation error.
func (p *Pool) Simulate(ctx context.Context, tasks []types.Task, observers ...observer.Observer) (Result, error) {
	handle, err := p.Run(ctx, tasks, observers...)
	if err != nil {
		return Result{}, err
	}
	return handle.Wait(context.WithoutCancel(ctx))
}

func validateTasks(tasks []types.Task) error {
	seen := make(map[int]struct{}, len(tasks))
	for _, task := range tasks {
		if task.ID <= 0 {
			return types.InvalidConfigf("task id must be positive, got %d", task.ID)
		}
		if task.Duration <= 0 {
			return types.InvalidConfigf("task %d duration must be positive, got %d", task.ID, task.Duration)
		}
		if _, dup := seen[task.ID]; dup {
			return types.InvalidConfigf("duplicate task id %d", task.ID)
		}
		seen[task.ID] = struct{}{}
	}
	return nil
}

// queueFor builds the queue for one run
func queueFor(cfg *PoolConfig, tasks []types.Task) (*queue.TaskQueue, error) {
	q := queue.New(queue.WithClock(cfg.Clock))
	if err := q.EnqueueAll(tasks); err != nil {
		return nil, fmt.Errorf("populating queue: %w", err)
	}
	return q, nil
}

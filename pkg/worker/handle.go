package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jzx17/procsim/internal/logger"
	"github.com/jzx17/procsim/pkg/observer"
	"github.com/jzx17/procsim/pkg/queue"
	"github.com/jzx17/procsim/pkg/stats"
	"github.com/jzx17/procsim/pkg/types"
)

// Result is the outcome of a completed run
type Result struct {
	// RunID identifies the run in logs and metrics
	RunID string `json:"run_id" yaml:"run_id"`

	// Tasks is the number of tasks enqueued
	Tasks int `json:"tasks" yaml:"tasks"`

	// Stats are the aggregate statistics of the run
	Stats stats.Snapshot `json:"stats" yaml:"stats"`

	// Abandoned lists tasks removed without execution after cancellation
	// or a fail-fast abort
	Abandoned []types.Task `json:"abandoned,omitempty" yaml:"abandoned,omitempty"`

	// Elapsed is the wall time from start to completion
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Handle tracks one run of a pool
type Handle struct {
	id       string
	config   *PoolConfig
	queue    *queue.TaskQueue
	workers  []*Worker
	observer observer.Observer
	stats    *stats.Aggregator
	log      *logger.Logger

	parent context.Context
	cancel context.CancelFunc
	start  time.Time

	// exited is closed once every worker has terminated
	exited chan struct{}

	mu        sync.Mutex
	tasks     int
	finished  bool
	abandoned []types.Task
	abortErr  error

	completeOnce sync.Once
	result       Result
	resultErr    error
}

func startRun(ctx context.Context, cfg *PoolConfig, tasks []types.Task, observers []observer.Observer) (*Handle, error) {
	cfg = cfg.withDefaults()

	q, err := queueFor(cfg, tasks)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)
	agg := stats.NewAggregator()

	h := &Handle{
		id:     runID,
		config: cfg,
		queue:  q,
		stats:  agg,
		log:    cfg.Logger.With(logger.F("run_id", runID)),
		parent: ctx,
		cancel: cancel,
		start:  cfg.Clock.Now(),
		exited: make(chan struct{}),
		tasks:  len(tasks),
	}
	h.observer = observer.Join(append([]observer.Observer{agg, cfg.Observer}, observers...)...)

	workerCfg := *cfg
	workerCfg.Observer = h.observer
	workerCfg.Logger = h.log
	h.workers = make([]*Worker, cfg.PoolSize)
	for i := range h.workers {
		w := NewWorker(i+1, q, &workerCfg)
		w.abort = h.abort
		h.workers[i] = w
	}

	h.log.InfoCtx(ctx, "run started",
		logger.F("workers", cfg.PoolSize),
		logger.F("tasks", len(tasks)),
		logger.F("idle_timeout", cfg.IdleTimeout),
		logger.F("shutdown_mode", cfg.ShutdownMode.String()))

	var wg sync.WaitGroup
	for _, w := range h.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			_ = w.Run(runCtx)
		}(w)
	}

	go h.supervise(runCtx, &wg)

	return h, nil
}

// supervise abandons pending tasks when the run is cancelled, and anything
// left behind once every worker has exited, so Join can always return
func (h *Handle) supervise(runCtx context.Context, wg *sync.WaitGroup) {
	workersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(workersDone)
	}()

	select {
	case <-runCtx.Done():
		h.abandonPending()
		<-workersDone
	case <-workersDone:
	}

	h.mu.Lock()
	h.finished = true
	h.mu.Unlock()
	h.abandonPending()
	close(h.exited)
}

func (h *Handle) abandonPending() {
	h.mu.Lock()
	defer h.mu.Unlock()

	left := h.queue.Abandon()
	if len(left) == 0 {
		return
	}
	h.abandoned = append(h.abandoned, left...)
	h.log.Warn("tasks abandoned without execution", logger.F("count", len(left)))
}

// abort records the first fail-fast error and cancels the run
func (h *Handle) abort(err error) {
	h.mu.Lock()
	if h.abortErr == nil {
		h.abortErr = err
	}
	h.mu.Unlock()
	h.cancel()
}

// ID returns the run id
func (h *Handle) ID() string {
	return h.id
}

// Submit enqueues another task into a running run. Workers that already
// timed out never come back, so a task submitted after every worker exited
// is rejected; one submitted while only some have exited is served by the
// rest.
func (h *Handle) Submit(task types.Task) error {
	if err := validateTasks([]types.Task{task}); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finished {
		return fmt.Errorf("submit %s: all workers exited: %w", task, types.ErrQueueClosed)
	}
	if err := h.queue.Enqueue(task); err != nil {
		return err
	}
	h.tasks++
	return nil
}

// CloseQueue signals that no more tasks will be submitted. In close mode
// idle workers exit once the queue drains; Wait calls it implicitly.
func (h *Handle) CloseQueue() {
	h.queue.Close()
}

// Cancel stops the run: workers exit at their next dequeue and pending tasks
// are abandoned
func (h *Handle) Cancel() {
	h.cancel()
}

// Done is closed once every worker has terminated
func (h *Handle) Done() <-chan struct{} {
	return h.exited
}

// Outstanding returns the number of tasks not yet acknowledged
func (h *Handle) Outstanding() int {
	return h.queue.Outstanding()
}

// WorkerStats returns a statistics snapshot for every worker of the run
func (h *Handle) WorkerStats() []WorkerStats {
	out := make([]WorkerStats, len(h.workers))
	for i, w := range h.workers {
		out[i] = w.Stats()
	}
	return out
}

// Stats returns the aggregate statistics collected so far
func (h *Handle) Stats() stats.Snapshot {
	return h.stats.Snapshot()
}

// Wait blocks until every task was acknowledged and then until every worker
// terminated. Only then is AllDone emitted, exactly once per run. The error is
// non-nil when the run was cancelled or aborted; ctx only bounds this call.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	if h.config.ShutdownMode == types.ShutdownOnClose {
		h.queue.Close()
	}

	if err := h.queue.Join(ctx); err != nil {
		return Result{}, fmt.Errorf("waiting for queue to drain: %w", err)
	}

	for _, w := range h.workers {
		select {
		case <-w.Done():
		case <-ctx.Done():
			return Result{}, fmt.Errorf("waiting for worker %d: %w", w.ID(), ctx.Err())
		}
	}
	select {
	case <-h.exited:
	case <-ctx.Done():
		return Result{}, fmt.Errorf("waiting for run supervisor: %w", ctx.Err())
	}

	h.completeOnce.Do(h.complete)
	return h.result, h.resultErr
}

func (h *Handle) complete() {
	parentErr := h.parent.Err()
	h.observer.AllDone()
	h.cancel()

	h.mu.Lock()
	h.result = Result{
		RunID:     h.id,
		Tasks:     h.tasks,
		Stats:     h.stats.Snapshot(),
		Abandoned: append([]types.Task(nil), h.abandoned...),
		Elapsed:   h.config.Clock.Since(h.start),
	}
	switch {
	case h.abortErr != nil:
		h.resultErr = h.abortErr
	case parentErr != nil:
		h.resultErr = fmt.Errorf("run cancelled: %w", parentErr)
	}
	h.mu.Unlock()

	h.log.Info("all tasks processed",
		logger.F("completed", h.result.Stats.Completed()),
		logger.F("failed", h.result.Stats.Failed()),
		logger.F("abandoned", len(h.result.Abandoned)),
		logger.F("total_duration", h.result.Stats.TotalDuration),
		logger.F("elapsed", h.result.Elapsed))
}

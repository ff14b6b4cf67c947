package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/jzx17/procsim/internal/fault"
	"github.com/jzx17/procsim/internal/logger"
	"github.com/jzx17/procsim/pkg/observer"
	"github.com/jzx17/procsim/pkg/queue"
	"github.com/jzx17/procsim/pkg/types"
)

// WorkerState defines the state of a Worker
type WorkerState int32

const (
	// WorkerStateIdleWait represents a worker waiting on the queue
	WorkerStateIdleWait WorkerState = iota
	// WorkerStateExecuting represents a worker performing a task
	WorkerStateExecuting
	// WorkerStateTerminated represents a worker that exited; it never resumes
	WorkerStateTerminated
)

// String returns the string representation of WorkerState
func (ws WorkerState) String() string {
	switch ws {
	case WorkerStateIdleWait:
		return "idle_wait"
	case WorkerStateExecuting:
		return "executing"
	case WorkerStateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Worker pulls tasks from a shared queue until it observes that no more work
// is coming. A worker runs at most once.
type Worker struct {
	id      int
	state   int32 // atomic WorkerState
	started int32
	queue   *queue.TaskQueue
	done    chan struct{}

	idleTimeout time.Duration
	mode        types.ShutdownMode
	work        WorkFunc
	observer    observer.Observer
	faults      fault.Handler
	abort       func(error)
	clock       types.Clock
	log         *logger.Logger

	// statistics
	completed    int64
	failed       int64
	idleCycles   int64
	lastTaskTime int64 // Unix nanosecond timestamp
}

// NewWorker creates worker id bound to q, configured from cfg. A nil cfg uses
// DefaultPoolConfig.
func NewWorker(id int, q *queue.TaskQueue, cfg *PoolConfig) *Worker {
	if cfg == nil {
		cfg = DefaultPoolConfig()
	}
	cfg = cfg.withDefaults()

	return &Worker{
		id:          id,
		state:       int32(WorkerStateIdleWait),
		queue:       q,
		done:        make(chan struct{}),
		idleTimeout: cfg.IdleTimeout,
		mode:        cfg.ShutdownMode,
		work:        cfg.Work,
		observer:    observer.Join(cfg.Observer),
		faults:      cfg.faultHandler(),
		abort:       func(error) {},
		clock:       cfg.Clock,
		log:         cfg.Logger.With(logger.F("worker_id", id)),
	}
}

// ID returns the Worker ID
func (w *Worker) ID() int {
	return w.id
}

// State returns the current Worker state
func (w *Worker) State() WorkerState {
	return WorkerState(atomic.LoadInt32(&w.state))
}

// Done is closed once the worker has terminated
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Run executes the worker loop on the calling goroutine until the worker
// terminates. A second call returns types.ErrPoolAlreadyStarted.
func (w *Worker) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&w.started, 0, 1) {
		return fmt.Errorf("worker %d: %w", w.id, types.ErrPoolAlreadyStarted)
	}
	defer close(w.done)
	defer w.terminate()

	w.log.DebugCtx(ctx, "worker started")

	for {
		if ctx.Err() != nil {
			return nil
		}

		task, err := w.queue.TryDequeue(ctx, w.idleTimeout)
		switch {
		case err == nil:
			w.processTask(ctx, task)
		case errors.Is(err, types.ErrEmptyQueue):
			atomic.AddInt64(&w.idleCycles, 1)
			if w.mode == types.ShutdownOnIdleTimeout {
				return nil
			}
		case errors.Is(err, types.ErrQueueClosed):
			return nil
		default:
			// context ended while waiting
			return nil
		}
	}
}

// processTask runs one task through executing and back to idle_wait
func (w *Worker) processTask(ctx context.Context, task types.Task) {
	atomic.StoreInt32(&w.state, int32(WorkerStateExecuting))
	defer atomic.StoreInt32(&w.state, int32(WorkerStateIdleWait))
	atomic.StoreInt64(&w.lastTaskTime, w.clock.Now().UnixNano())

	w.observer.Started(w.id, task.ID, task.Duration)

	err := w.executeTask(ctx, task)

	if doneErr := w.queue.MarkDone(task); doneErr != nil {
		w.log.ErrorCtx(ctx, "acknowledging task", doneErr, logger.F("task_id", task.ID))
	}

	if err != nil {
		atomic.AddInt64(&w.failed, 1)
		w.observer.Failed(w.id, task.ID, err)
		w.handleFault(ctx, err, task)
		return
	}

	atomic.AddInt64(&w.completed, 1)
	w.observer.Finished(w.id, task.ID)
	w.observer.DurationReported(w.id-1, task.Duration)
}

// executeTask executes a task with panic recovery support
func (w *Worker) executeTask(ctx context.Context, task types.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			var buf [4096]byte
			n := runtime.Stack(buf[:], false)

			var cause error
			switch v := r.(type) {
			case error:
				cause = fmt.Errorf("panic: %w", v)
			default:
				cause = fmt.Errorf("panic: %v", v)
			}
			err = types.NewTaskError(w.id, task.ID, cause).
				WithContext("stack_trace", string(buf[:n]))
		}
	}()

	if err := w.work(ctx, task); err != nil {
		return types.NewTaskError(w.id, task.ID, err)
	}
	return nil
}

// handleFault consults the fault policy; interrupted tasks are not faults
func (w *Worker) handleFault(ctx context.Context, err error, task types.Task) {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		w.log.DebugCtx(ctx, "task interrupted", logger.F("task_id", task.ID))
		return
	}

	w.log.ErrorCtx(ctx, "task failed", err, logger.F("task_id", task.ID))
	if abortErr := w.faults.HandleFault(ctx, fault.NewContext(err, w.id, task)); abortErr != nil {
		w.abort(abortErr)
	}
}

// terminate moves the worker to its absorbing state and reports the shutdown
func (w *Worker) terminate() {
	atomic.StoreInt32(&w.state, int32(WorkerStateTerminated))
	idle := int(atomic.LoadInt64(&w.idleCycles))
	w.observer.Shutdown(w.id, idle)
	w.log.Debug("worker terminated",
		logger.F("completed", atomic.LoadInt64(&w.completed)),
		logger.F("idle", idle))
}

// Stats gets Worker statistics
func (w *Worker) Stats() WorkerStats {
	var last time.Time
	if ns := atomic.LoadInt64(&w.lastTaskTime); ns != 0 {
		last = time.Unix(0, ns)
	}
	return WorkerStats{
		ID:           w.id,
		State:        w.State(),
		Completed:    atomic.LoadInt64(&w.completed),
		Failed:       atomic.LoadInt64(&w.failed),
		IdleCycles:   atomic.LoadInt64(&w.idleCycles),
		LastTaskTime: last,
	}
}

// WorkerStats defines Worker statistics
type WorkerStats struct {
	ID           int
	State        WorkerState
	Completed    int64
	Failed       int64
	IdleCycles   int64
	LastTaskTime time.Time
}

// IsActive checks if Worker is executing a task
func (ws WorkerStats) IsActive() bool {
	return ws.State == WorkerStateExecuting
}

// IsTerminated checks if Worker has exited
func (ws WorkerStats) IsTerminated() bool {
	return ws.State == WorkerStateTerminated
}

// GetSuccessRate gets the success rate
func (ws WorkerStats) GetSuccessRate() float64 {
	total := ws.Completed + ws.Failed
	if total == 0 {
		return 0
	}
	return float64(ws.Completed) / float64(total)
}

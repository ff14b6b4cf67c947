package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jzx17/procsim/internal/fault"
	"github.com/jzx17/procsim/internal/testutils"
	"github.com/jzx17/procsim/pkg/observer"
	"github.com/jzx17/procsim/pkg/queue"
	"github.com/jzx17/procsim/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faultSpy records every fault it is asked about
type faultSpy struct {
	mu     sync.Mutex
	faults []*fault.Context
	abort  bool
}

func (s *faultSpy) HandleFault(ctx context.Context, fc *fault.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, fc)
	if s.abort {
		return types.ErrRunAborted
	}
	return nil
}

func (s *faultSpy) Name() string { return "spy" }

func (s *faultSpy) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.faults)
}

func testConfig(rec observer.Observer) *PoolConfig {
	return &PoolConfig{
		PoolSize:    1,
		IdleTimeout: 10 * time.Millisecond,
		TimeUnit:    time.Millisecond,
		Observer:    rec,
	}
}

func TestWorkerState(t *testing.T) {
	assert.Equal(t, "idle_wait", WorkerStateIdleWait.String())
	assert.Equal(t, "executing", WorkerStateExecuting.String())
	assert.Equal(t, "terminated", WorkerStateTerminated.String())
	assert.Equal(t, "unknown", WorkerState(999).String())
}

func TestNewWorker(t *testing.T) {
	w := NewWorker(3, queue.New(), nil)

	assert.Equal(t, 3, w.ID())
	assert.Equal(t, WorkerStateIdleWait, w.State())

	stats := w.Stats()
	assert.Equal(t, 3, stats.ID)
	assert.True(t, stats.LastTaskTime.IsZero())
	assert.Equal(t, float64(0), stats.GetSuccessRate())
}

func TestWorker_TerminatesOnFirstEmptyTimeout(t *testing.T) {
	ctx := testutils.Context(t, 0)
	rec := observer.NewRecorder()
	w := NewWorker(1, queue.New(), testConfig(rec))

	start := time.Now()
	require.NoError(t, w.Run(ctx))

	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	assert.Equal(t, WorkerStateTerminated, w.State())
	assert.Equal(t, []observer.Event{{Kind: observer.KindShutdown, WorkerID: 1, Idle: 1}}, rec.Events())
	assert.Equal(t, int64(1), w.Stats().IdleCycles)
	assert.True(t, w.Stats().IsTerminated())

	_, open := <-w.Done()
	assert.False(t, open)
}

func TestWorker_RunsOnlyOnce(t *testing.T) {
	ctx := testutils.Context(t, 0)
	w := NewWorker(1, queue.New(), testConfig(nil))

	require.NoError(t, w.Run(ctx))
	err := w.Run(ctx)
	assert.ErrorIs(t, err, types.ErrPoolAlreadyStarted)
}

func TestWorker_EventOrder(t *testing.T) {
	ctx := testutils.Context(t, 0)
	q := queue.New()
	require.NoError(t, q.EnqueueAll(testutils.Tasks(2, 1)))
	rec := observer.NewRecorder()
	w := NewWorker(1, q, testConfig(rec))

	require.NoError(t, w.Run(ctx))

	kinds := make([]observer.Kind, 0)
	for _, e := range rec.Events() {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []observer.Kind{
		observer.KindStarted, observer.KindFinished, observer.KindDurationReported,
		observer.KindStarted, observer.KindFinished, observer.KindDurationReported,
		observer.KindShutdown,
	}, kinds)

	events := rec.Events()
	assert.Equal(t, observer.Event{Kind: observer.KindStarted, WorkerID: 1, TaskID: 1, Duration: 2}, events[0])
	assert.Equal(t, observer.Event{Kind: observer.KindDurationReported, WorkerID: 0, Duration: 2}, events[2])
	assert.Equal(t, int64(2), w.Stats().Completed)
	assert.Equal(t, 0, q.Outstanding())
}

func TestWorker_PanicIsRecovered(t *testing.T) {
	ctx := testutils.Context(t, 0)
	q := queue.New()
	require.NoError(t, q.EnqueueAll(testutils.Tasks(1, 1, 1)))
	rec := observer.NewRecorder()
	spy := &faultSpy{}

	cfg := testConfig(rec)
	cfg.FaultHandler = spy
	cfg.Work = func(ctx context.Context, task types.Task) error {
		if task.ID == 2 {
			panic("simulated crash")
		}
		return nil
	}
	w := NewWorker(1, q, cfg)

	require.NoError(t, w.Run(ctx))

	assert.Equal(t, 0, q.Outstanding(), "faulted task must still be acknowledged")
	assert.Equal(t, 2, rec.Count(observer.KindFinished))
	failed := rec.Filter(observer.KindFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, 2, failed[0].TaskID)
	assert.Contains(t, failed[0].Error, "simulated crash")

	require.Equal(t, 1, spy.count())
	var taskErr *types.TaskError
	require.True(t, errors.As(spy.faults[0].Err, &taskErr))
	assert.Equal(t, 2, taskErr.TaskID)
	assert.Contains(t, taskErr.Context, "stack_trace")

	stats := w.Stats()
	assert.Equal(t, int64(2), stats.Completed)
	assert.Equal(t, int64(1), stats.Failed)
	assert.InDelta(t, 2.0/3.0, stats.GetSuccessRate(), 0.001)
}

func TestWorker_AbortOnFault(t *testing.T) {
	ctx, cancel := context.WithCancel(testutils.Context(t, 0))
	defer cancel()

	q := queue.New()
	require.NoError(t, q.EnqueueAll(testutils.Tasks(1, 1, 1)))

	cfg := testConfig(nil)
	cfg.FaultHandler = &faultSpy{abort: true}
	cfg.Work = func(ctx context.Context, task types.Task) error {
		return errors.New("bad task")
	}
	w := NewWorker(1, q, cfg)

	var aborted error
	w.abort = func(err error) {
		aborted = err
		cancel()
	}

	require.NoError(t, w.Run(ctx))
	assert.ErrorIs(t, aborted, types.ErrRunAborted)
	assert.Equal(t, int64(1), w.Stats().Failed)
	assert.Equal(t, 2, q.Len(), "worker stops dequeuing after the abort")
}

func TestWorker_CloseModeCountsIdleCycles(t *testing.T) {
	ctx := testutils.Context(t, 0)
	q := queue.New()
	rec := observer.NewRecorder()

	cfg := testConfig(rec)
	cfg.ShutdownMode = types.ShutdownOnClose
	w := NewWorker(1, q, cfg)

	go func() {
		time.Sleep(35 * time.Millisecond)
		assert.NoError(t, q.Enqueue(types.Task{ID: 1, Duration: 1}))
		time.Sleep(35 * time.Millisecond)
		q.Close()
	}()

	require.NoError(t, w.Run(ctx))

	shutdown := rec.Filter(observer.KindShutdown)
	require.Len(t, shutdown, 1)
	assert.GreaterOrEqual(t, shutdown[0].Idle, 2)
	assert.Equal(t, int64(shutdown[0].Idle), w.Stats().IdleCycles)
	assert.Equal(t, 1, rec.Count(observer.KindFinished))
}

func TestWorker_CancellationIsNotAFault(t *testing.T) {
	ctx, cancel := context.WithCancel(testutils.Context(t, 0))
	q := queue.New()
	require.NoError(t, q.Enqueue(types.Task{ID: 1, Duration: 1}))
	rec := observer.NewRecorder()
	spy := &faultSpy{}

	started := make(chan struct{})
	cfg := testConfig(rec)
	cfg.FaultHandler = spy
	cfg.Work = func(ctx context.Context, task types.Task) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}
	w := NewWorker(1, q, cfg)

	go func() {
		<-started
		cancel()
	}()
	require.NoError(t, w.Run(ctx))

	assert.Equal(t, 0, spy.count())
	assert.Equal(t, 1, rec.Count(observer.KindFailed))
	assert.Equal(t, 0, q.Outstanding())
	assert.Equal(t, WorkerStateTerminated, w.State())
}

func TestWorker_MockClockSingleTask(t *testing.T) {
	ctx := testutils.Context(t, 0)
	mClock := testutils.NewMockClock(t)
	clock := testutils.NewClockWrapper(mClock)
	q := queue.New(queue.WithClock(clock))
	require.NoError(t, q.Enqueue(types.Task{ID: 1, Duration: 5}))
	rec := observer.NewRecorder()

	w := NewWorker(1, q, &PoolConfig{
		PoolSize:    1,
		IdleTimeout: time.Second,
		TimeUnit:    time.Second,
		Observer:    rec,
		Clock:       clock,
	})

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	assert.Equal(t, 5*time.Second, testutils.AdvanceToNextTimer(ctx, t, mClock), "task work")
	assert.Equal(t, time.Second, testutils.AdvanceToNextTimer(ctx, t, mClock), "idle timeout")

	err, ok := testutils.Receives(t, done, time.Second)
	require.True(t, ok)
	require.NoError(t, err)

	assert.Equal(t, 1, rec.Count(observer.KindStarted))
	assert.Equal(t, 1, rec.Count(observer.KindFinished))
	assert.Equal(t, 1, rec.Count(observer.KindShutdown))
}

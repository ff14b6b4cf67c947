// Package queue provides the shared task queue that hands tasks from producers
// to workers and tracks their completion.
//
// A TaskQueue counts every enqueued task as outstanding until the worker that
// dequeued it calls MarkDone. Join blocks until that count reaches zero, even
// while the pending storage is visibly empty but tasks are still executing.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jzx17/procsim/pkg/types"
)

// Option configures a TaskQueue
type Option func(*TaskQueue)

// WithClock sets the clock used for dequeue timeouts
func WithClock(clock types.Clock) Option {
	return func(q *TaskQueue) {
		if clock != nil {
			q.clock = clock
		}
	}
}

// TaskQueue is a multi-producer, multi-consumer FIFO of tasks with
// completion tracking
type TaskQueue struct {
	mu       sync.Mutex
	items    []types.Task
	inflight map[int]int

	// outstanding counts enqueued tasks not yet acknowledged with MarkDone
	outstanding int

	// ready is closed and replaced whenever a task arrives or the queue closes
	ready chan struct{}
	// drained is closed while outstanding is zero
	drained chan struct{}

	closed bool
	clock  types.Clock
}

// New creates an empty task queue
func New(opts ...Option) *TaskQueue {
	drained := make(chan struct{})
	close(drained)

	q := &TaskQueue{
		items:    make([]types.Task, 0, 16),
		inflight: make(map[int]int),
		ready:    make(chan struct{}),
		drained:  drained,
		clock:    types.NewRealClock(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue adds a task and counts it as outstanding. It never blocks.
func (q *TaskQueue) Enqueue(task types.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return fmt.Errorf("enqueue %s: %w", task, types.ErrQueueClosed)
	}

	q.items = append(q.items, task)
	q.outstanding++
	if q.outstanding == 1 {
		q.drained = make(chan struct{})
	}
	q.broadcastLocked()
	return nil
}

// EnqueueAll adds tasks in order, stopping at the first error
func (q *TaskQueue) EnqueueAll(tasks []types.Task) error {
	for _, task := range tasks {
		if err := q.Enqueue(task); err != nil {
			return err
		}
	}
	return nil
}

// TryDequeue removes and returns the earliest task, waiting at most timeout
// for one to arrive.
//
// It returns types.ErrEmptyQueue when the timeout elapses without a task,
// types.ErrQueueClosed when the queue is closed and empty, and ctx.Err() when
// the context ends first. A non-positive timeout never waits.
func (q *TaskQueue) TryDequeue(ctx context.Context, timeout time.Duration) (types.Task, error) {
	var timer types.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		q.mu.Lock()
		if task, ok := q.popLocked(); ok {
			q.mu.Unlock()
			return task, nil
		}
		if q.closed {
			q.mu.Unlock()
			return types.Task{}, types.ErrQueueClosed
		}
		ready := q.ready
		q.mu.Unlock()

		if timeout <= 0 {
			return types.Task{}, types.ErrEmptyQueue
		}
		if timer == nil {
			timer = q.clock.NewTimer(timeout)
		}

		select {
		case <-ready:
			// another waiter may win the race; loop and re-check
		case <-timer.C():
			q.mu.Lock()
			task, ok := q.popLocked()
			q.mu.Unlock()
			if ok {
				return task, nil
			}
			return types.Task{}, types.ErrEmptyQueue
		case <-ctx.Done():
			return types.Task{}, ctx.Err()
		}
	}
}

// MarkDone acknowledges that a dequeued task has finished. It must be called
// exactly once per dequeued task; extra calls return types.ErrTaskNotInFlight
// and leave the outstanding count untouched.
func (q *TaskQueue) MarkDone(task types.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.inflight[task.ID]
	if n == 0 {
		return fmt.Errorf("mark done %s: %w", task, types.ErrTaskNotInFlight)
	}
	if n == 1 {
		delete(q.inflight, task.ID)
	} else {
		q.inflight[task.ID] = n - 1
	}

	q.releaseLocked(1)
	return nil
}

// Join blocks until every enqueued task has been acknowledged, or ctx ends.
// Tasks enqueued while Join waits extend the wait.
func (q *TaskQueue) Join(ctx context.Context) error {
	for {
		q.mu.Lock()
		drained := q.drained
		q.mu.Unlock()

		select {
		case <-drained:
			q.mu.Lock()
			done := q.outstanding == 0
			q.mu.Unlock()
			if done {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops the queue from accepting tasks. Pending tasks are still served;
// once they are gone TryDequeue returns types.ErrQueueClosed without waiting.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.broadcastLocked()
}

// Abandon removes every pending task without executing it and acknowledges it,
// so Join can return once the tasks already in flight finish. It returns the
// abandoned tasks in queue order.
func (q *TaskQueue) Abandon() []types.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	abandoned := q.items
	q.items = make([]types.Task, 0)
	q.releaseLocked(len(abandoned))
	return abandoned
}

// Len returns the number of pending tasks
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Outstanding returns the number of tasks not yet acknowledged
func (q *TaskQueue) Outstanding() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.outstanding
}

// InFlight returns the number of dequeued tasks awaiting MarkDone
func (q *TaskQueue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.outstanding - len(q.items)
}

// IsClosed reports whether Close was called
func (q *TaskQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *TaskQueue) popLocked() (types.Task, bool) {
	if len(q.items) == 0 {
		return types.Task{}, false
	}
	task := q.items[0]
	q.items[0] = types.Task{}
	q.items = q.items[1:]
	q.inflight[task.ID]++
	return task, true
}

func (q *TaskQueue) releaseLocked(n int) {
	if n == 0 {
		return
	}
	q.outstanding -= n
	if q.outstanding == 0 {
		close(q.drained)
	}
}

func (q *TaskQueue) broadcastLocked() {
	close(q.ready)
	q.ready = make(chan struct{})
}

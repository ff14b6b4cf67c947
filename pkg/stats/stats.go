// Package stats aggregates worker events into per-run statistics
package stats

import (
	"errors"
	"maps"
	"sort"
	"sync"

	"github.com/jzx17/procsim/pkg/observer"
	"github.com/jzx17/procsim/pkg/types"
)

// Snapshot is a point-in-time copy of the aggregate statistics
type Snapshot struct {
	// CompletedPerWorker maps worker id to tasks it finished
	CompletedPerWorker map[int]int64 `json:"completed_per_worker" yaml:"completed_per_worker"`

	// FailedPerWorker maps worker id to tasks whose work faulted
	FailedPerWorker map[int]int64 `json:"failed_per_worker,omitempty" yaml:"failed_per_worker,omitempty"`

	// IdlePerWorker maps worker id to the idle value recorded at shutdown
	IdlePerWorker map[int]int `json:"idle_per_worker" yaml:"idle_per_worker"`

	// DurationPerWorker maps zero-based worker index to its reported duration sum
	DurationPerWorker map[int]int64 `json:"duration_per_worker" yaml:"duration_per_worker"`

	// TotalDuration sums the durations of every executed task
	TotalDuration int64 `json:"total_duration" yaml:"total_duration"`

	// Started counts started events
	Started int64 `json:"started" yaml:"started"`

	// AllDone reports whether the coordinator signalled completion
	AllDone bool `json:"all_done" yaml:"all_done"`
}

// Completed returns the number of tasks finished across all workers
func (s Snapshot) Completed() int64 {
	var total int64
	for _, n := range s.CompletedPerWorker {
		total += n
	}
	return total
}

// Failed returns the number of faulted tasks across all workers
func (s Snapshot) Failed() int64 {
	var total int64
	for _, n := range s.FailedPerWorker {
		total += n
	}
	return total
}

// Workers returns the ids of every worker that reported a shutdown, sorted
func (s Snapshot) Workers() []int {
	ids := make([]int, 0, len(s.IdlePerWorker))
	for id := range s.IdlePerWorker {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Verify checks the run invariants: every enqueued task was executed exactly
// once and the executed durations add up to expectedDuration.
func (s Snapshot) Verify(expectedTasks int, expectedDuration int64) error {
	var errs []error
	if got := s.Completed() + s.Failed(); got != int64(expectedTasks) {
		errs = append(errs, &types.InvariantError{Invariant: "tasks executed", Want: int64(expectedTasks), Got: got})
	}
	if s.Started != int64(expectedTasks) {
		errs = append(errs, &types.InvariantError{Invariant: "tasks started", Want: int64(expectedTasks), Got: s.Started})
	}
	if s.TotalDuration != expectedDuration {
		errs = append(errs, &types.InvariantError{Invariant: "total duration", Want: expectedDuration, Got: s.TotalDuration})
	}
	return errors.Join(errs...)
}

// Aggregator is an Observer that accumulates statistics. It is safe for
// concurrent use by every worker of a run.
type Aggregator struct {
	observer.Nop

	mu       sync.Mutex
	snapshot Snapshot
}

var _ observer.Observer = (*Aggregator)(nil)

// NewAggregator creates an empty aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{
		snapshot: Snapshot{
			CompletedPerWorker: make(map[int]int64),
			FailedPerWorker:    make(map[int]int64),
			IdlePerWorker:      make(map[int]int),
			DurationPerWorker:  make(map[int]int64),
		},
	}
}

func (a *Aggregator) Started(workerID, taskID, duration int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snapshot.Started++
}

func (a *Aggregator) Finished(workerID, taskID int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snapshot.CompletedPerWorker[workerID]++
}

func (a *Aggregator) Failed(workerID, taskID int, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snapshot.FailedPerWorker[workerID]++
}

func (a *Aggregator) DurationReported(workerIndex, duration int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snapshot.DurationPerWorker[workerIndex] += int64(duration)
	a.snapshot.TotalDuration += int64(duration)
}

// Shutdown records the worker's idle value and also seeds a zero
// CompletedPerWorker entry, so workers that never finished a task still appear
func (a *Aggregator) Shutdown(workerID, idle int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snapshot.IdlePerWorker[workerID] = idle
	if _, ok := a.snapshot.CompletedPerWorker[workerID]; !ok {
		a.snapshot.CompletedPerWorker[workerID] = 0
	}
}

func (a *Aggregator) AllDone() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snapshot.AllDone = true
}

// Snapshot returns a deep copy of the current statistics
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.snapshot
	s.CompletedPerWorker = maps.Clone(a.snapshot.CompletedPerWorker)
	s.FailedPerWorker = maps.Clone(a.snapshot.FailedPerWorker)
	s.IdlePerWorker = maps.Clone(a.snapshot.IdlePerWorker)
	s.DurationPerWorker = maps.Clone(a.snapshot.DurationPerWorker)
	return s
}

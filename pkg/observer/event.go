package observer

import (
	"fmt"
	"sync"
)

// Kind identifies an observer event
type Kind string

const (
	KindStarted          Kind = "started"
	KindFinished         Kind = "finished"
	KindFailed           Kind = "failed"
	KindDurationReported Kind = "duration_reported"
	KindShutdown         Kind = "shutdown"
	KindAllDone          Kind = "all_done"
)

// Event is the value form of one Observer call
type Event struct {
	Kind Kind `json:"kind" yaml:"kind"`

	// WorkerID is the 1-based worker id; for duration_reported it holds the
	// zero-based worker index
	WorkerID int    `json:"worker_id,omitempty" yaml:"worker_id,omitempty"`
	TaskID   int    `json:"task_id,omitempty" yaml:"task_id,omitempty"`
	Duration int    `json:"duration,omitempty" yaml:"duration,omitempty"`
	Idle     int    `json:"idle,omitempty" yaml:"idle,omitempty"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// String returns a one-line description of the event
func (e Event) String() string {
	switch e.Kind {
	case KindStarted:
		return fmt.Sprintf("worker %d started task %d (duration %d)", e.WorkerID, e.TaskID, e.Duration)
	case KindFinished:
		return fmt.Sprintf("worker %d finished task %d", e.WorkerID, e.TaskID)
	case KindFailed:
		return fmt.Sprintf("worker %d failed task %d: %s", e.WorkerID, e.TaskID, e.Error)
	case KindDurationReported:
		return fmt.Sprintf("worker index %d reported duration %d", e.WorkerID, e.Duration)
	case KindShutdown:
		return fmt.Sprintf("worker %d shut down (idle %d)", e.WorkerID, e.Idle)
	case KindAllDone:
		return "all tasks processed"
	default:
		return string(e.Kind)
	}
}

// Deliver replays the event on o
func (e Event) Deliver(o Observer) {
	switch e.Kind {
	case KindStarted:
		o.Started(e.WorkerID, e.TaskID, e.Duration)
	case KindFinished:
		o.Finished(e.WorkerID, e.TaskID)
	case KindFailed:
		o.Failed(e.WorkerID, e.TaskID, eventError(e.Error))
	case KindDurationReported:
		o.DurationReported(e.WorkerID, e.Duration)
	case KindShutdown:
		o.Shutdown(e.WorkerID, e.Idle)
	case KindAllDone:
		o.AllDone()
	}
}

type eventError string

func (e eventError) Error() string { return string(e) }

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Recorder keeps every event it receives. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

var _ Observer = (*Recorder)(nil)

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Started(workerID, taskID, duration int) {
	r.record(Event{Kind: KindStarted, WorkerID: workerID, TaskID: taskID, Duration: duration})
}

func (r *Recorder) Finished(workerID, taskID int) {
	r.record(Event{Kind: KindFinished, WorkerID: workerID, TaskID: taskID})
}

func (r *Recorder) Failed(workerID, taskID int, err error) {
	r.record(Event{Kind: KindFailed, WorkerID: workerID, TaskID: taskID, Error: errorString(err)})
}

func (r *Recorder) DurationReported(workerIndex, duration int) {
	r.record(Event{Kind: KindDurationReported, WorkerID: workerIndex, Duration: duration})
}

func (r *Recorder) Shutdown(workerID, idle int) {
	r.record(Event{Kind: KindShutdown, WorkerID: workerID, Idle: idle})
}

func (r *Recorder) AllDone() {
	r.record(Event{Kind: KindAllDone})
}

// Events returns a copy of the recorded events in arrival order
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Filter returns recorded events of the given kind
func (r *Recorder) Filter(kind Kind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of recorded events of the given kind
func (r *Recorder) Count(kind Kind) int {
	return len(r.Filter(kind))
}

// ForWorker returns the events emitted by one worker, in order
func (r *Recorder) ForWorker(workerID int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind == KindDurationReported {
			if e.WorkerID == workerID-1 {
				out = append(out, e)
			}
			continue
		}
		if e.Kind != KindAllDone && e.WorkerID == workerID {
			out = append(out, e)
		}
	}
	return out
}

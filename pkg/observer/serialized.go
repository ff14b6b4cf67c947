package observer

import "sync"

// Serialized delivers events to a sink from a single goroutine, in the order
// they were accepted. Use it for sinks that are not safe for concurrent use.
type Serialized struct {
	sink   Observer
	events chan Event
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

var _ Observer = (*Serialized)(nil)

// NewSerialized starts the delivery goroutine. buffer bounds how many events
// may wait before emitters block. Call Close to flush and stop it.
func NewSerialized(sink Observer, buffer int) *Serialized {
	if buffer < 0 {
		buffer = 0
	}
	s := &Serialized{
		sink:   sink,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *Serialized) loop() {
	defer close(s.done)
	for e := range s.events {
		e.Deliver(s.sink)
	}
}

// emit drops events that arrive after Close
func (s *Serialized) emit(e Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	s.events <- e
}

// Close flushes pending events to the sink and stops the delivery goroutine
func (s *Serialized) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *Serialized) Started(workerID, taskID, duration int) {
	s.emit(Event{Kind: KindStarted, WorkerID: workerID, TaskID: taskID, Duration: duration})
}

func (s *Serialized) Finished(workerID, taskID int) {
	s.emit(Event{Kind: KindFinished, WorkerID: workerID, TaskID: taskID})
}

func (s *Serialized) Failed(workerID, taskID int, err error) {
	s.emit(Event{Kind: KindFailed, WorkerID: workerID, TaskID: taskID, Error: errorString(err)})
}

func (s *Serialized) DurationReported(workerIndex, duration int) {
	s.emit(Event{Kind: KindDurationReported, WorkerID: workerIndex, Duration: duration})
}

func (s *Serialized) Shutdown(workerID, idle int) {
	s.emit(Event{Kind: KindShutdown, WorkerID: workerID, Idle: idle})
}

func (s *Serialized) AllDone() {
	s.emit(Event{Kind: KindAllDone})
}

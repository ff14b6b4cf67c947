// Package observer defines the events workers and the coordinator emit, and
// adapters that route them to presentation sinks (logs, statistics, metrics).
//
// Observer methods are called from worker goroutines concurrently. Sinks that
// are not safe for concurrent use should be wrapped with NewSerialized.
package observer

// Observer receives worker and coordinator events
type Observer interface {
	// Started fires when a worker picks up a task
	Started(workerID, taskID, duration int)

	// Finished fires after a task's work completed and was acknowledged
	Finished(workerID, taskID int)

	// Failed fires when a task's work faulted; the task is still acknowledged
	Failed(workerID, taskID int, err error)

	// DurationReported carries a task's duration for cumulative load views.
	// workerIndex is zero based.
	DurationReported(workerIndex, duration int)

	// Shutdown fires once per worker as it terminates
	Shutdown(workerID, idle int)

	// AllDone fires once per run after the queue drained and every worker exited
	AllDone()
}

// Nop ignores every event. Embed it to implement only some methods.
type Nop struct{}

var _ Observer = Nop{}

func (Nop) Started(workerID, taskID, duration int)     {}
func (Nop) Finished(workerID, taskID int)              {}
func (Nop) Failed(workerID, taskID int, err error)     {}
func (Nop) DurationReported(workerIndex, duration int) {}
func (Nop) Shutdown(workerID, idle int)                {}
func (Nop) AllDone()                                   {}

// Funcs adapts optional functions to Observer; nil fields are skipped
type Funcs struct {
	OnStarted          func(workerID, taskID, duration int)
	OnFinished         func(workerID, taskID int)
	OnFailed           func(workerID, taskID int, err error)
	OnDurationReported func(workerIndex, duration int)
	OnShutdown         func(workerID, idle int)
	OnAllDone          func()
}

var _ Observer = Funcs{}

func (f Funcs) Started(workerID, taskID, duration int) {
	if f.OnStarted != nil {
		f.OnStarted(workerID, taskID, duration)
	}
}

func (f Funcs) Finished(workerID, taskID int) {
	if f.OnFinished != nil {
		f.OnFinished(workerID, taskID)
	}
}

func (f Funcs) Failed(workerID, taskID int, err error) {
	if f.OnFailed != nil {
		f.OnFailed(workerID, taskID, err)
	}
}

func (f Funcs) DurationReported(workerIndex, duration int) {
	if f.OnDurationReported != nil {
		f.OnDurationReported(workerIndex, duration)
	}
}

func (f Funcs) Shutdown(workerID, idle int) {
	if f.OnShutdown != nil {
		f.OnShutdown(workerID, idle)
	}
}

func (f Funcs) AllDone() {
	if f.OnAllDone != nil {
		f.OnAllDone()
	}
}

// Multi fans every event out to each observer in order
type Multi []Observer

var _ Observer = Multi(nil)

// Join combines observers, skipping nils and flattening nested Multi values
func Join(observers ...Observer) Observer {
	var m Multi
	for _, o := range observers {
		switch v := o.(type) {
		case nil:
		case Multi:
			m = append(m, v...)
		default:
			m = append(m, v)
		}
	}
	switch len(m) {
	case 0:
		return Nop{}
	case 1:
		return m[0]
	default:
		return m
	}
}

func (m Multi) Started(workerID, taskID, duration int) {
	for _, o := range m {
		o.Started(workerID, taskID, duration)
	}
}

func (m Multi) Finished(workerID, taskID int) {
	for _, o := range m {
		o.Finished(workerID, taskID)
	}
}

func (m Multi) Failed(workerID, taskID int, err error) {
	for _, o := range m {
		o.Failed(workerID, taskID, err)
	}
}

func (m Multi) DurationReported(workerIndex, duration int) {
	for _, o := range m {
		o.DurationReported(workerIndex, duration)
	}
}

func (m Multi) Shutdown(workerID, idle int) {
	for _, o := range m {
		o.Shutdown(workerID, idle)
	}
}

func (m Multi) AllDone() {
	for _, o := range m {
		o.AllDone()
	}
}

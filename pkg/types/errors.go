// Package types defines error types
package types

import (
	"errors"
	"fmt"
)

// Predefined errors
var (
	// ErrEmptyQueue indicates no task became available within the wait window.
	// It is the signal a worker uses to decide to shut down, not a failure.
	ErrEmptyQueue = errors.New("queue is empty")

	// ErrQueueClosed indicates the queue was closed and holds no more tasks
	ErrQueueClosed = errors.New("queue is closed")

	// ErrTaskNotInFlight indicates MarkDone was called for a task that is not
	// currently dequeued (never dequeued, or already acknowledged)
	ErrTaskNotInFlight = errors.New("task is not in flight")

	// ErrInvalidConfiguration indicates invalid pool or run parameters
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrPoolAlreadyStarted indicates a worker or pool was started twice
	ErrPoolAlreadyStarted = errors.New("already started")

	// ErrRunAborted indicates a run was aborted by a fail-fast fault policy
	ErrRunAborted = errors.New("run aborted")
)

// TaskError represents a fault raised while a worker executed a task
type TaskError struct {
	// WorkerID is the worker that executed the task
	WorkerID int

	// TaskID is the task being executed
	TaskID int

	// Cause is the underlying error
	Cause error

	// Context contains error context information
	Context map[string]interface{}
}

// NewTaskError creates a new task error
func NewTaskError(workerID, taskID int, cause error) *TaskError {
	return &TaskError{
		WorkerID: workerID,
		TaskID:   taskID,
		Cause:    cause,
		Context:  make(map[string]interface{}),
	}
}

// Error implements the error interface
func (e *TaskError) Error() string {
	return fmt.Sprintf("worker %d failed task %d: %v", e.WorkerID, e.TaskID, e.Cause)
}

// Unwrap returns the underlying error
func (e *TaskError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is a specific error
func (e *TaskError) Is(target error) bool {
	return errors.Is(e.Cause, target)
}

// WithContext adds error context
func (e *TaskError) WithContext(key string, value interface{}) *TaskError {
	e.Context[key] = value
	return e
}

// InvariantError reports a violated run invariant found while verifying statistics
type InvariantError struct {
	// Invariant names the violated property
	Invariant string

	// Want is the expected value
	Want int64

	// Got is the observed value
	Got int64
}

// Error implements the error interface
func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant %s violated: want %d, got %d", e.Invariant, e.Want, e.Got)
}

// InvalidConfigf builds an ErrInvalidConfiguration with a formatted reason
func InvalidConfigf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}

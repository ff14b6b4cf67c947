// Package fault decides what a worker fault does to the rest of a run
package fault

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jzx17/procsim/internal/logger"
	"github.com/jzx17/procsim/pkg/types"
)

// Strategy defines fault handling strategy types
type Strategy int

const (
	// ContinueOnErrorStrategy records the fault and lets the worker go on
	ContinueOnErrorStrategy Strategy = iota
	// FailFastStrategy aborts the whole run on the first fault
	FailFastStrategy
)

// String returns the string representation of the strategy
func (s Strategy) String() string {
	switch s {
	case FailFastStrategy:
		return "fail-fast"
	case ContinueOnErrorStrategy:
		return "continue"
	default:
		return "unknown"
	}
}

// ParseStrategy parses the string form produced by Strategy.String
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "continue", "continue-on-error":
		return ContinueOnErrorStrategy, nil
	case "fail-fast", "failfast":
		return FailFastStrategy, nil
	default:
		return 0, types.InvalidConfigf("unknown fault strategy %q (expected: continue, fail-fast)", s)
	}
}

// Context describes a fault raised while a worker executed a task
type Context struct {
	// Err is the fault, usually a *types.TaskError
	Err error

	// WorkerID is the worker that executed the task
	WorkerID int

	// Task is the task being executed
	Task types.Task

	// Timestamp is when the fault was observed
	Timestamp time.Time
}

// NewContext creates a fault context stamped with the current time
func NewContext(err error, workerID int, task types.Task) *Context {
	return &Context{
		Err:       err,
		WorkerID:  workerID,
		Task:      task,
		Timestamp: time.Now(),
	}
}

// Handler decides whether a fault aborts the run
type Handler interface {
	// HandleFault returns nil to let the run continue, or the error that
	// aborts it
	HandleFault(ctx context.Context, fc *Context) error

	// Name returns the name of the handler
	Name() string
}

// New returns the built-in handler for a strategy
func New(strategy Strategy, log *logger.Logger) Handler {
	if strategy == FailFastStrategy {
		return NewFailFastHandler()
	}
	return NewContinueOnErrorHandler(log)
}

// FailFastHandler aborts the run on the first fault
type FailFastHandler struct{}

// NewFailFastHandler creates a fail-fast handler
func NewFailFastHandler() *FailFastHandler {
	return &FailFastHandler{}
}

// HandleFault implements Handler
func (h *FailFastHandler) HandleFault(ctx context.Context, fc *Context) error {
	return fmt.Errorf("%w: %w", types.ErrRunAborted, fc.Err)
}

// Name returns the handler name
func (h *FailFastHandler) Name() string {
	return FailFastStrategy.String()
}

// ContinueOnErrorHandler logs the fault and lets the run continue
type ContinueOnErrorHandler struct {
	log *logger.Logger
}

// NewContinueOnErrorHandler creates a continue-on-error handler; log may be nil
func NewContinueOnErrorHandler(log *logger.Logger) *ContinueOnErrorHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ContinueOnErrorHandler{log: log}
}

// HandleFault implements Handler
func (h *ContinueOnErrorHandler) HandleFault(ctx context.Context, fc *Context) error {
	h.log.WarnCtx(ctx, "task fault ignored",
		logger.F("worker_id", fc.WorkerID),
		logger.F("task_id", fc.Task.ID),
		logger.F("error", fc.Err))
	return nil
}

// Name returns the handler name
func (h *ContinueOnErrorHandler) Name() string {
	return ContinueOnErrorStrategy.String()
}

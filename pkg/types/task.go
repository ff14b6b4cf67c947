// Package types defines the core data model shared by the queue, the workers and their observers
package types

import (
	"fmt"
	"strings"
	"time"
)

// Task is a unit of simulated work. Tasks are values and never change after creation.
type Task struct {
	// ID is unique and positive, assigned at creation
	ID int `json:"id" yaml:"id"`

	// Duration is the simulated work time in time units
	Duration int `json:"duration" yaml:"duration"`
}

// NewTask creates a task, rejecting non-positive ids or durations
func NewTask(id, duration int) (Task, error) {
	if id <= 0 {
		return Task{}, InvalidConfigf("task id must be positive, got %d", id)
	}
	if duration <= 0 {
		return Task{}, InvalidConfigf("task %d duration must be positive, got %d", id, duration)
	}
	return Task{ID: id, Duration: duration}, nil
}

// Wall converts the task duration to wall time using the given unit
func (t Task) Wall(unit time.Duration) time.Duration {
	return time.Duration(t.Duration) * unit
}

// String returns a short description of the task
func (t Task) String() string {
	return fmt.Sprintf("task-%d(%d)", t.ID, t.Duration)
}

// ShutdownMode selects how workers learn that no more work is coming
type ShutdownMode int

const (
	// ShutdownOnIdleTimeout stops a worker on its first empty-queue timeout
	ShutdownOnIdleTimeout ShutdownMode = iota
	// ShutdownOnClose stops a worker once the queue is closed and drained;
	// empty timeouts only count idle cycles
	ShutdownOnClose
)

// String returns the string representation of ShutdownMode
func (m ShutdownMode) String() string {
	switch m {
	case ShutdownOnIdleTimeout:
		return "idle-timeout"
	case ShutdownOnClose:
		return "close"
	default:
		return "unknown"
	}
}

// ParseShutdownMode parses the string form produced by ShutdownMode.String
func ParseShutdownMode(s string) (ShutdownMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "idle-timeout", "timeout":
		return ShutdownOnIdleTimeout, nil
	case "close":
		return ShutdownOnClose, nil
	default:
		return 0, InvalidConfigf("unknown shutdown mode %q (expected: idle-timeout, close)", s)
	}
}

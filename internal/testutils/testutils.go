// Package testutils provides simplified testing utilities and helper functions
package testutils

import (
	"context"
	"testing"
	"time"

	"github.com/jzx17/procsim/pkg/types"
	"github.com/stretchr/testify/assert"
)

// DefaultTimeout bounds every test context created by Context
const DefaultTimeout = 5 * time.Second

// Context returns a context that is cancelled after timeout or when the test ends
func Context(t testing.TB, timeout time.Duration) context.Context {
	t.Helper()
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// Tasks builds tasks with ids 1..n and the given durations
func Tasks(durations ...int) []types.Task {
	tasks := make([]types.Task, len(durations))
	for i, d := range durations {
		tasks[i] = types.Task{ID: i + 1, Duration: d}
	}
	return tasks
}

// TotalDuration sums the durations of tasks
func TotalDuration(tasks []types.Task) int64 {
	var total int64
	for _, task := range tasks {
		total += int64(task.Duration)
	}
	return total
}

// Blocked asserts that ch does not become ready within wait
func Blocked[T any](t testing.TB, ch <-chan T, wait time.Duration, msgAndArgs ...interface{}) bool {
	t.Helper()
	select {
	case <-ch:
		return assert.Fail(t, "channel became ready unexpectedly", msgAndArgs...)
	case <-time.After(wait):
		return true
	}
}

// Receives asserts that ch becomes ready within wait and returns the value
func Receives[T any](t testing.TB, ch <-chan T, wait time.Duration, msgAndArgs ...interface{}) (T, bool) {
	t.Helper()
	select {
	case v := <-ch:
		return v, true
	case <-time.After(wait):
		var zero T
		return zero, assert.Fail(t, "timed out waiting for channel", msgAndArgs...)
	}
}

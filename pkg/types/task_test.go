package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	tests := []struct {
		name        string
		id          int
		duration    int
		expectError bool
	}{
		{"valid", 1, 5, false},
		{"zero id", 0, 5, true},
		{"negative id", -3, 5, true},
		{"zero duration", 1, 0, true},
		{"negative duration", 1, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, err := NewTask(tt.id, tt.duration)
			if tt.expectError {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidConfiguration))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Task{ID: tt.id, Duration: tt.duration}, task)
		})
	}
}

func TestTask_Wall(t *testing.T) {
	task := Task{ID: 1, Duration: 3}

	assert.Equal(t, 3*time.Second, task.Wall(time.Second))
	assert.Equal(t, 30*time.Millisecond, task.Wall(10*time.Millisecond))
	assert.Equal(t, "task-1(3)", task.String())
}

func TestShutdownMode(t *testing.T) {
	assert.Equal(t, "idle-timeout", ShutdownOnIdleTimeout.String())
	assert.Equal(t, "close", ShutdownOnClose.String())
	assert.Equal(t, "unknown", ShutdownMode(99).String())

	for _, in := range []string{"", "idle-timeout", "Timeout"} {
		mode, err := ParseShutdownMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, ShutdownOnIdleTimeout, mode)
	}

	mode, err := ParseShutdownMode("close")
	require.NoError(t, err)
	assert.Equal(t, ShutdownOnClose, mode)

	_, err = ParseShutdownMode("poison-pill")
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
}

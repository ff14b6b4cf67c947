package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		expectError bool
	}{
		{"defaults", Config{}, false},
		{"json stdout", Config{Level: "debug", Format: "json", Output: "stdout"}, false},
		{"text stderr", Config{Level: "warn", Format: "text", Output: "stderr"}, false},
		{"bad level", Config{Level: "loud"}, true},
		{"bad format", Config{Level: "info", Format: "xml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, log)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, log)
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "procsim.log")

	log, err := New(Config{Level: "info", Format: "text", Output: path})
	require.NoError(t, err)
	log.Info("hello", F("workers", 2))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello")
	assert.Contains(t, string(data), "workers=2")
}

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, slog.LevelDebug, "json")
	require.NoError(t, err)

	log.With(F("run_id", "abc")).Error("task failed", errors.New("boom"), F("task_id", 3))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "task failed", record["msg"])
	assert.Equal(t, "abc", record["run_id"])
	assert.Equal(t, "boom", record["error"])
	assert.Equal(t, float64(3), record["task_id"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, slog.LevelWarn, "text")
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("hidden")
	assert.Empty(t, buf.String())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	level, ok := ParseLevel("DEBUG")
	assert.True(t, ok)
	assert.Equal(t, slog.LevelDebug, level)

	_, ok = ParseLevel("verbose")
	assert.False(t, ok)
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jzx17/procsim/pkg/observer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandStructure(t *testing.T) {
	cmd := newRootCmd()

	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"run", "soak", "config", "version"} {
		assert.Contains(t, names, want)
	}

	run, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)
	for _, flag := range []string{"workers", "tasks", "max-duration", "time-unit", "idle-timeout", "shutdown-mode", "fault-strategy", "seed", "metrics-addr", "events", "quiet"} {
		assert.NotNil(t, run.Flags().Lookup(flag), flag)
	}
	assert.NotNil(t, cmd.PersistentFlags().ShorthandLookup("c"))
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: "+Version)
}

func TestRunCmd(t *testing.T) {
	out, err := execute(t, "run", "--quiet", "--log-level", "error",
		"--workers", "2", "--tasks", "6", "--max-duration", "3",
		"--time-unit", "1ms", "--idle-timeout", "20ms", "--seed", "11")
	require.NoError(t, err)

	assert.Contains(t, out, "Worker 1: shut down (idle 1)")
	assert.Contains(t, out, "Worker 2: shut down (idle 1)")
	assert.Contains(t, out, "All tasks processed")
	assert.Contains(t, out, "tasks=6 completed=6 failed=0 abandoned=0")
}

func TestRunCmd_NoTasks(t *testing.T) {
	out, err := execute(t, "run", "--quiet", "--log-level", "error",
		"--workers", "3", "--tasks", "0", "--time-unit", "1ms", "--idle-timeout", "5ms")
	require.NoError(t, err)

	assert.Contains(t, out, "Worker 3: shut down (idle 1)")
	assert.Contains(t, out, "tasks=0 completed=0")
}

func TestRunCmd_Events(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.yaml")
	_, err := execute(t, "run", "--quiet", "--log-level", "error",
		"--workers", "1", "--tasks", "2", "--time-unit", "1ms", "--idle-timeout", "5ms",
		"--events", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var dump struct {
		RunID  string           `yaml:"run_id"`
		Events []observer.Event `yaml:"events"`
	}
	require.NoError(t, yaml.Unmarshal(data, &dump))

	assert.NotEmpty(t, dump.RunID)
	require.NotEmpty(t, dump.Events)
	assert.Equal(t, observer.KindAllDone, dump.Events[len(dump.Events)-1].Kind)
	assert.Len(t, dump.Events, 2*3+2)
}

func TestRunCmd_InvalidFlags(t *testing.T) {
	_, err := execute(t, "run", "--workers", "0", "--shutdown-mode", "never")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 config errors")
	assert.Contains(t, err.Error(), "simulation.workers")
	assert.Contains(t, err.Error(), "simulation.shutdown_mode")
}

func TestConfigValidateCmd(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.toml")
	require.NoError(t, os.WriteFile(good, []byte("[simulation]\nworkers = 3\n"), 0o600))
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("logging:\n  format: xml\n"), 0o600))

	out, err := execute(t, "config", "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")

	_, err = execute(t, "config", "validate", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.format")
}

func TestConfigShowCmd(t *testing.T) {
	out, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "workers: 2"), out)
	assert.Contains(t, out, "shutdown_mode: idle-timeout")
}

func TestSoakCmd(t *testing.T) {
	out, err := execute(t, "soak", "--log-level", "error",
		"--schedule", "@every 1s", "--runs", "1",
		"--tasks", "3", "--time-unit", "1ms", "--idle-timeout", "5ms")
	require.NoError(t, err)
	assert.Contains(t, out, "runs=1 failures=0 tasks=3")
}

package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jzx17/procsim/internal/testutils"
	"github.com/jzx17/procsim/pkg/worker"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExporter_RecordsEvents(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewExporter("procsim", reg, Options{})
	require.NoError(t, err)

	exporter.Started(1, 1, 3)
	exporter.Started(2, 2, 4)
	assert.Equal(t, float64(2), testutil.ToFloat64(exporter.activeWorkers))

	exporter.Finished(1, 1)
	exporter.DurationReported(0, 3)
	exporter.Failed(2, 2, errors.New("boom"))
	exporter.Shutdown(1, 1)
	exporter.Shutdown(2, 4)
	exporter.AllDone()

	assert.Equal(t, float64(0), testutil.ToFloat64(exporter.activeWorkers))
	assert.Equal(t, float64(2), testutil.ToFloat64(exporter.tasksStartTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(exporter.tasksTotal.WithLabelValues("completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(exporter.tasksTotal.WithLabelValues("failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(exporter.shutdownsTotal.WithLabelValues("2")))
	assert.Equal(t, float64(4), testutil.ToFloat64(exporter.workerIdle.WithLabelValues("2")))
	assert.Equal(t, float64(1), testutil.ToFloat64(exporter.runsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(exporter.taskDuration, "procsim_task_duration_units"))
}

func TestExporter_NilIsSafe(t *testing.T) {
	var exporter *Exporter
	assert.NotPanics(t, func() {
		exporter.Started(1, 1, 1)
		exporter.Finished(1, 1)
		exporter.Failed(1, 1, nil)
		exporter.DurationReported(0, 1)
		exporter.Shutdown(1, 1)
		exporter.AllDone()
	})
}

func TestExporter_AlreadyRegisteredReuse(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := NewExporter("procsim", reg, Options{})
	require.NoError(t, err)
	second, err := NewExporter("procsim", reg, Options{})
	require.NoError(t, err)

	first.AllDone()
	second.AllDone()

	assert.Equal(t, float64(2), testutil.ToFloat64(first.runsTotal))
}

func TestExporter_ObservesRun(t *testing.T) {
	ctx := testutils.Context(t, 0)
	reg := prom.NewRegistry()
	exporter, err := NewExporter("", reg, Options{})
	require.NoError(t, err)

	pool, err := worker.NewPool(&worker.PoolConfig{
		PoolSize:    2,
		IdleTimeout: 20 * time.Millisecond,
		TimeUnit:    time.Millisecond,
	})
	require.NoError(t, err)

	_, err = pool.Simulate(ctx, testutils.Tasks(1, 2, 3, 4), exporter)
	require.NoError(t, err)

	assert.Equal(t, float64(4), testutil.ToFloat64(exporter.tasksTotal.WithLabelValues("completed")))
	assert.Equal(t, float64(0), testutil.ToFloat64(exporter.activeWorkers))
	assert.Equal(t, float64(1), testutil.ToFloat64(exporter.workerIdle.WithLabelValues("1")))
	assert.Equal(t, float64(1), testutil.ToFloat64(exporter.runsTotal))
}

func TestHandler(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewExporter("procsim", reg, Options{})
	require.NoError(t, err)
	exporter.AllDone()

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "procsim_runs_completed_total 1")
}

// Package metrics exports simulation events as Prometheus collectors
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/jzx17/procsim/pkg/observer"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options controls collector configuration
type Options struct {
	// DurationBuckets are histogram buckets in task duration units
	DurationBuckets []float64
}

// Exporter is an observer.Observer that records worker events as metrics.
// It is safe for concurrent use; collectors are shared between runs.
type Exporter struct {
	tasksTotal      *prom.CounterVec
	taskDuration    *prom.HistogramVec
	activeWorkers   prom.Gauge
	shutdownsTotal  *prom.CounterVec
	workerIdle      *prom.GaugeVec
	runsTotal       prom.Counter
	tasksStartTotal prom.Counter
}

var _ observer.Observer = (*Exporter)(nil)

// NewExporter creates and registers the simulation collectors on reg
func NewExporter(namespace string, reg prom.Registerer, opts Options) (*Exporter, error) {
	if namespace == "" {
		namespace = "procsim"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.LinearBuckets(1, 1, 10)
	}

	tasksVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_total",
		Help:      "Tasks processed by workers, by outcome.",
	}, []string{"outcome"})
	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_units",
		Help:      "Reported task durations in simulation units.",
		Buckets:   buckets,
	}, []string{"worker"})
	active := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "active_workers",
		Help:      "Workers currently executing a task.",
	})
	shutdownVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "worker_shutdowns_total",
		Help:      "Worker shutdowns, by worker id.",
	}, []string{"worker"})
	idleVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "worker_idle",
		Help:      "Idle value reported by a worker at its last shutdown.",
	}, []string{"worker"})
	runs := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "runs_completed_total",
		Help:      "Simulation runs that signalled completion.",
	})
	started := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_started_total",
		Help:      "Tasks dequeued and started by workers.",
	})

	var err error
	if tasksVec, err = registerCollector(reg, tasksVec); err != nil {
		return nil, err
	}
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if active, err = registerCollector(reg, active); err != nil {
		return nil, err
	}
	if shutdownVec, err = registerCollector(reg, shutdownVec); err != nil {
		return nil, err
	}
	if idleVec, err = registerCollector(reg, idleVec); err != nil {
		return nil, err
	}
	if runs, err = registerCollector(reg, runs); err != nil {
		return nil, err
	}
	if started, err = registerCollector(reg, started); err != nil {
		return nil, err
	}

	return &Exporter{
		tasksTotal:      tasksVec,
		taskDuration:    durationVec,
		activeWorkers:   active,
		shutdownsTotal:  shutdownVec,
		workerIdle:      idleVec,
		runsTotal:       runs,
		tasksStartTotal: started,
	}, nil
}

func (e *Exporter) Started(workerID, taskID, duration int) {
	if e == nil {
		return
	}
	e.tasksStartTotal.Inc()
	e.activeWorkers.Inc()
}

func (e *Exporter) Finished(workerID, taskID int) {
	if e == nil {
		return
	}
	e.tasksTotal.WithLabelValues("completed").Inc()
	e.activeWorkers.Dec()
}

func (e *Exporter) Failed(workerID, taskID int, err error) {
	if e == nil {
		return
	}
	e.tasksTotal.WithLabelValues("failed").Inc()
	e.activeWorkers.Dec()
}

// DurationReported labels the histogram with the 1-based worker id
func (e *Exporter) DurationReported(workerIndex, duration int) {
	if e == nil {
		return
	}
	e.taskDuration.WithLabelValues(workerLabel(workerIndex + 1)).Observe(float64(duration))
}

func (e *Exporter) Shutdown(workerID, idle int) {
	if e == nil {
		return
	}
	label := workerLabel(workerID)
	e.shutdownsTotal.WithLabelValues(label).Inc()
	e.workerIdle.WithLabelValues(label).Set(float64(idle))
}

func (e *Exporter) AllDone() {
	if e == nil {
		return
	}
	e.runsTotal.Inc()
}

// Handler serves the metrics gathered by g
func Handler(g prom.Gatherer) http.Handler {
	if g == nil {
		g = prom.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func workerLabel(id int) string {
	return strconv.Itoa(id)
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}

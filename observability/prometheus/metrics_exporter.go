package prometheus

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/Swind/go-job-system/core"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors. All
// record methods are label lookups plus an atomic update, cheap enough
// for the worker execution path.
type MetricsExporter struct {
	jobDurationSeconds *prom.HistogramVec
	jobExecutedTotal   *prom.CounterVec
	jobPanicTotal      *prom.CounterVec
	stealTotal         *prom.CounterVec
	queueDepth         *prom.GaugeVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "jobsystem"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Job slice execution duration in seconds.",
		Buckets:   buckets,
	}, []string{"worker", "kind"})
	executedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "job_executed_total",
		Help:      "Total number of executed job slices.",
	}, []string{"worker", "kind"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "job_panic_total",
		Help:      "Total number of job panics.",
	}, []string{"worker"})
	stealVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "steal_total",
		Help:      "Total number of jobs taken from another queue than the worker's own.",
	}, []string{"worker"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Sampled local queue depth per worker.",
	}, []string{"worker"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if executedVec, err = registerCollector(reg, executedVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if stealVec, err = registerCollector(reg, stealVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		jobDurationSeconds: durationVec,
		jobExecutedTotal:   executedVec,
		jobPanicTotal:      panicVec,
		stealTotal:         stealVec,
		queueDepth:         queueDepthVec,
	}, nil
}

// RecordJobExecuted records one completed job execution slice.
func (m *MetricsExporter) RecordJobExecuted(worker int32, kind core.JobKind, duration time.Duration) {
	if m == nil {
		return
	}
	w, k := workerLabel(worker), kindLabel(kind)
	m.jobExecutedTotal.WithLabelValues(w, k).Inc()
	m.jobDurationSeconds.WithLabelValues(w, k).Observe(duration.Seconds())
}

// RecordSteal records a job taken from another worker's global queue.
func (m *MetricsExporter) RecordSteal(worker int32) {
	if m == nil {
		return
	}
	m.stealTotal.WithLabelValues(workerLabel(worker)).Inc()
}

// RecordJobPanic records a panicking job body.
func (m *MetricsExporter) RecordJobPanic(worker int32) {
	if m == nil {
		return
	}
	m.jobPanicTotal.WithLabelValues(workerLabel(worker)).Inc()
}

// RecordQueueDepth records a sampled local queue depth.
func (m *MetricsExporter) RecordQueueDepth(worker int32, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(workerLabel(worker)).Set(float64(depth))
}

func workerLabel(worker int32) string {
	if worker < 0 {
		return "unknown"
	}
	return strconv.Itoa(int(worker))
}

func kindLabel(kind core.JobKind) string {
	switch kind {
	case core.JobKindCallable:
		return "callable"
	case core.JobKindPromise:
		return "promise"
	default:
		return "unknown"
	}
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

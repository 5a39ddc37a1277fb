package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-chronos/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	invocationDurationSeconds *prom.HistogramVec
	invocationPanicTotal      *prom.CounterVec
	overrunTotal              *prom.CounterVec
	protocolViolationTotal    *prom.CounterVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
// Collectors already registered under the same names are reused.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "chronos"
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
		Name:      "invocation_duration_seconds",
		Help:      "Timer callback duration in seconds.",
		Buckets:   buckets,
	}, []string{"timer"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "invocation_panic_total",
		Help:      "Total number of timer callbacks that panicked.",
	}, []string{"timer"})
	overrunVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "overrun_total",
		Help:      "Total number of fires dropped because an invocation was in progress.",
	}, []string{"timer"})
	violationVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "protocol_violation_total",
		Help:      "Total number of invocations ended without a matching begin.",
	}, []string{"timer"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if overrunVec, err = registerCollector(reg, overrunVec); err != nil {
		return nil, err
	}
	if violationVec, err = registerCollector(reg, violationVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		invocationDurationSeconds: durationVec,
		invocationPanicTotal:      panicVec,
		overrunTotal:              overrunVec,
		protocolViolationTotal:    violationVec,
	}, nil
}

// RecordInvocationDuration records callback execution duration.
func (m *MetricsExporter) RecordInvocationDuration(timerName string, duration time.Duration) {
	if m == nil {
		return
	}
	m.invocationDurationSeconds.WithLabelValues(normalizeLabel(timerName, "unknown")).Observe(duration.Seconds())
}

// RecordInvocationPanic records callback panics.
func (m *MetricsExporter) RecordInvocationPanic(timerName string, panicInfo any) {
	if m == nil {
		return
	}
	m.invocationPanicTotal.WithLabelValues(normalizeLabel(timerName, "unknown")).Inc()
}

// RecordOverrun records dropped fires.
func (m *MetricsExporter) RecordOverrun(timerName string) {
	if m == nil {
		return
	}
	m.overrunTotal.WithLabelValues(normalizeLabel(timerName, "unknown")).Inc()
}

// RecordProtocolViolation records unmatched EndInvocation calls.
func (m *MetricsExporter) RecordProtocolViolation(timerName string) {
	if m == nil {
		return
	}
	m.protocolViolationTotal.WithLabelValues(normalizeLabel(timerName, "unknown")).Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
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

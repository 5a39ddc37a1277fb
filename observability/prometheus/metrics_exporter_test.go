package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/Swind/go-chronos/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsExporter_RecordMethods(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("chronos", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewMetricsExporter failed: %v", err)
	}

	exporter.RecordInvocationDuration("timer-a", 250*time.Millisecond)
	exporter.RecordInvocationPanic("timer-a", "panic")
	exporter.RecordOverrun("timer-a")
	exporter.RecordOverrun("timer-a")
	exporter.RecordProtocolViolation("")

	if got := testutil.ToFloat64(exporter.invocationPanicTotal.WithLabelValues("timer-a")); got != 1 {
		t.Fatalf("panic total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(exporter.overrunTotal.WithLabelValues("timer-a")); got != 2 {
		t.Fatalf("overrun total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(exporter.protocolViolationTotal.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("protocol violation total = %v, want 1", got)
	}

	histCount, err := histogramSampleCount(exporter.invocationDurationSeconds.WithLabelValues("timer-a"))
	if err != nil {
		t.Fatalf("histogramSampleCount failed: %v", err)
	}
	if histCount != 1 {
		t.Fatalf("duration sample count = %d, want 1", histCount)
	}
}

func TestMetricsExporter_AlreadyRegisteredReuse(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := NewMetricsExporter("chronos", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("first NewMetricsExporter failed: %v", err)
	}
	second, err := NewMetricsExporter("chronos", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("second NewMetricsExporter failed: %v", err)
	}

	first.RecordInvocationPanic("timer-a", nil)
	second.RecordInvocationPanic("timer-a", nil)

	got := testutil.ToFloat64(first.invocationPanicTotal.WithLabelValues("timer-a"))
	if got != 2 {
		t.Fatalf("shared panic counter = %v, want 2", got)
	}
}

func TestMetricsExporter_NilReceiver(t *testing.T) {
	var exporter *MetricsExporter
	exporter.RecordInvocationDuration("timer-a", time.Millisecond)
	exporter.RecordInvocationPanic("timer-a", nil)
	exporter.RecordOverrun("timer-a")
	exporter.RecordProtocolViolation("timer-a")
}

// TestMetricsExporter_WiredIntoTimer verifies a timer reports through the exporter
// Given: A dispatch timer configured with a MetricsExporter
// When: Its callback runs a few times, panicking once
// Then: Durations and the panic are exported under the timer's name
func TestMetricsExporter_WiredIntoTimer(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("", reg, ExporterOptions{DurationBuckets: []float64{0.001, 0.01, 0.1}})
	if err != nil {
		t.Fatalf("NewMetricsExporter failed: %v", err)
	}

	cfg := core.DefaultTimerConfig()
	cfg.Name = "exported"
	cfg.Logger = core.NewNoOpLogger()
	cfg.PanicHandler = &core.DefaultPanicHandler{Logger: cfg.Logger}
	cfg.Metrics = exporter
	timer, err := core.NewDispatchTimerWithConfig(5*time.Millisecond, func(ctx context.Context, tm core.Timer, count int64) {
		if count == 1 {
			panic("boom")
		}
	}, cfg)
	if err != nil {
		t.Fatalf("NewDispatchTimer failed: %v", err)
	}
	defer timer.Cancel()

	timer.Start(true)
	assertEventually(t, 2*time.Second, func() bool { return timer.Count() >= 3 })
	timer.Pause()

	if got := testutil.ToFloat64(exporter.invocationPanicTotal.WithLabelValues("exported")); got != 1 {
		t.Fatalf("panic total = %v, want 1", got)
	}
	histCount, err := histogramSampleCount(exporter.invocationDurationSeconds.WithLabelValues("exported"))
	if err != nil {
		t.Fatalf("histogramSampleCount failed: %v", err)
	}
	if histCount < 3 {
		t.Fatalf("duration sample count = %d, want >= 3", histCount)
	}
}

func histogramSampleCount(observer prom.Observer) (uint64, error) {
	collector, ok := observer.(prom.Collector)
	if !ok {
		return 0, nil
	}

	metricCh := make(chan prom.Metric, 1)
	collector.Collect(metricCh)
	close(metricCh)
	for metric := range metricCh {
		msg := &dto.Metric{}
		if err := metric.Write(msg); err != nil {
			return 0, err
		}
		if msg.Histogram != nil {
			return msg.Histogram.GetSampleCount(), nil
		}
	}
	return 0, nil
}

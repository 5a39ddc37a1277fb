package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

func assertEventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

// quietConfig returns a config that does not write to the test log.
func quietConfig(name string) *TimerConfig {
	return &TimerConfig{
		Name:   name,
		Logger: NewNoOpLogger(),
	}
}

type recordedPanic struct {
	name  string
	count int64
	info  any
	timer Timer
}

type recordingPanicHandler struct {
	mu     sync.Mutex
	panics []recordedPanic
}

func (h *recordingPanicHandler) HandlePanic(ctx context.Context, name string, count int64, panicInfo any, stackTrace []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.panics = append(h.panics, recordedPanic{
		name:  name,
		count: count,
		info:  panicInfo,
		timer: CurrentTimer(ctx),
	})
}

func (h *recordingPanicHandler) snapshot() []recordedPanic {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]recordedPanic(nil), h.panics...)
}

type recordingMetrics struct {
	mu         sync.Mutex
	durations  map[string]int
	panics     map[string]int
	overruns   map[string]int
	violations map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		durations:  make(map[string]int),
		panics:     make(map[string]int),
		overruns:   make(map[string]int),
		violations: make(map[string]int),
	}
}

func (m *recordingMetrics) RecordInvocationDuration(timerName string, duration time.Duration) {
	m.mu.Lock()
	m.durations[timerName]++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordInvocationPanic(timerName string, panicInfo any) {
	m.mu.Lock()
	m.panics[timerName]++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordOverrun(timerName string) {
	m.mu.Lock()
	m.overruns[timerName]++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordProtocolViolation(timerName string) {
	m.mu.Lock()
	m.violations[timerName]++
	m.mu.Unlock()
}

func (m *recordingMetrics) get(kind map[string]int, name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return kind[name]
}

// countLog collects the counts a callback observed.
type countLog struct {
	mu     sync.Mutex
	values []int64
}

func (l *countLog) add(v int64) {
	l.mu.Lock()
	l.values = append(l.values, v)
	l.mu.Unlock()
}

func (l *countLog) get() []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int64(nil), l.values...)
}

func equalCounts(got, want []int64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

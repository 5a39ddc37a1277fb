package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// PanicHandler: Interface for handling callback panics
// =============================================================================

// PanicHandler is called when a timer callback or a queued task panics.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called after the panic has been recovered.
	//
	// Parameters:
	// - ctx: The context the callback ran with (CurrentTimer works on it)
	// - name: The timer or queue name
	// - count: The invocation count passed to the callback, -1 for plain queue tasks
	// - panicInfo: The recovered value
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, name string, count int64, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler reports panics at Error level.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs the panic and its stack trace.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, name string, count int64, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Error("callback panicked",
		F("name", name),
		F("count", count),
		F("panic", fmt.Sprint(panicInfo)),
		F("stack", string(stackTrace)),
	)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics collects timer execution metrics.
// Methods should be non-blocking and fast; they are called on the fire path.
type Metrics interface {
	// RecordInvocationDuration records how long one callback invocation took.
	RecordInvocationDuration(timerName string, duration time.Duration)

	// RecordInvocationPanic records that a callback panicked.
	RecordInvocationPanic(timerName string, panicInfo any)

	// RecordOverrun records a fire that was dropped because the previous
	// invocation was still in progress.
	RecordOverrun(timerName string)

	// RecordProtocolViolation records an EndInvocation without a matching begin.
	RecordProtocolViolation(timerName string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordInvocationDuration(timerName string, duration time.Duration) {}
func (m *NilMetrics) RecordInvocationPanic(timerName string, panicInfo any)             {}
func (m *NilMetrics) RecordOverrun(timerName string)                                    {}
func (m *NilMetrics) RecordProtocolViolation(timerName string)                          {}

// =============================================================================
// TimerConfig: Configuration for timers
// =============================================================================

const defaultHistoryCapacity = 32

// TimerConfig holds configuration options shared by all timer kinds.
// All fields are optional; zero values are replaced by defaults.
type TimerConfig struct {
	// Name identifies the timer in logs, metrics and the Registry.
	// Defaults to "chronos.<kind>.<uuid>".
	Name string

	// Queue executes the callback. Defaults to a SerialQueue owned by the
	// timer and shut down on Cancel. A caller-supplied queue is never shut down.
	Queue TaskRunner

	// Logger defaults to DefaultLogger.
	Logger Logger

	// PanicHandler defaults to DefaultPanicHandler using Logger.
	PanicHandler PanicHandler

	// Metrics defaults to NilMetrics.
	Metrics Metrics

	// HistoryCapacity bounds the invocation history. Defaults to 32.
	HistoryCapacity int
}

// DefaultTimerConfig returns a config with default handlers.
func DefaultTimerConfig() *TimerConfig {
	logger := NewDefaultLogger()
	return &TimerConfig{
		Logger:          logger,
		PanicHandler:    &DefaultPanicHandler{Logger: logger},
		Metrics:         &NilMetrics{},
		HistoryCapacity: defaultHistoryCapacity,
	}
}

// resolve returns a copy of cfg with every unset field defaulted.
// ownsQueue reports whether the queue was created here.
func (cfg *TimerConfig) resolve(kind string) (c TimerConfig, ownsQueue bool) {
	if cfg != nil {
		c = *cfg
	}
	if c.Name == "" {
		c.Name = fmt.Sprintf("chronos.%s.%s", kind, uuid.NewString())
	}
	if c.Logger == nil {
		c.Logger = NewDefaultLogger()
	}
	if c.PanicHandler == nil {
		c.PanicHandler = &DefaultPanicHandler{Logger: c.Logger}
	}
	if c.Metrics == nil {
		c.Metrics = &NilMetrics{}
	}
	if c.HistoryCapacity <= 0 {
		c.HistoryCapacity = defaultHistoryCapacity
	}
	if c.Queue == nil {
		c.Queue = NewSerialQueueWithConfig(c.Name+".queue", c.Logger, c.PanicHandler)
		ownsQueue = true
	}
	return c, ownsQueue
}

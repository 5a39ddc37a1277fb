package core

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Timer is the control surface shared by DispatchTimer, VariableTimer and
// OneShotTimer.
//
// A timer is created valid and paused. Start and Pause toggle it; Cancel
// invalidates it permanently. Start and Pause on a cancelled timer return
// ErrTimerInvalid. All methods are safe to call from the timer's own callback.
type Timer interface {
	Name() string

	// Start schedules the timer. If now is true the first fire happens
	// immediately, otherwise after one interval. Starting a running timer is
	// a no-op.
	Start(now bool) error

	// Pause stops future fires without resetting the count.
	Pause() error

	// Cancel permanently invalidates the timer. It is idempotent.
	Cancel()

	IsValid() bool

	// IsRunning reports whether the timer is started and not paused.
	IsRunning() bool

	// IsExecuting reports whether a callback invocation is in progress.
	IsExecuting() bool

	// Count returns the number of completed callback invocations.
	Count() int64

	RunState() *RunState
	Stats() TimerStats
	RecentInvocations(limit int) []InvocationRecord
}

// ExecutionFunc is the callback run when a repeating timer fires.
// count is the number of invocations completed before this one; the first
// call sees 0.
type ExecutionFunc func(ctx context.Context, t Timer, count int64)

// Scheduling states. They mirror the timer's public IsValid/IsRunning and
// are independent of the RunState, which tracks callback execution.
const (
	timerPaused int32 = iota
	timerStarted
)

const (
	timerInvalid int32 = iota
	timerValid
)

// timerBase carries the scheduling machinery. The concrete timer types only
// decide how delays are computed.
type timerBase struct {
	self      Timer
	kind      string
	cfg       TimerConfig
	ownsQueue bool
	fn        ExecutionFunc

	// delayFor returns the delay before the next fire given the number of
	// completed invocations.
	delayFor func(count int64) time.Duration
	// every re-arms the timer at each fire (fixed rate) when > 0.
	every time.Duration
	// rearmAfterRun re-arms once each invocation completes (fixed delay).
	rearmAfterRun bool
	// oneShot pauses the timer as soon as it fires.
	oneShot bool

	valid   atomic.Int32
	started atomic.Int32
	state   RunState

	// mu guards the armed timer, its generation, and deferred starts.
	// A fire whose generation is stale is ignored.
	mu          sync.Mutex
	timer       *time.Timer
	gen         uint64
	deferred    bool
	deferredNow bool

	overruns atomic.Int64
	history  *invocationHistory
}

func newTimerBase(kind string, fn ExecutionFunc, cfg *TimerConfig) *timerBase {
	resolved, owns := cfg.resolve(kind)
	b := &timerBase{
		kind:      kind,
		cfg:       resolved,
		ownsQueue: owns,
		fn:        fn,
		history:   newInvocationHistory(resolved.HistoryCapacity),
	}
	b.valid.Store(timerValid)
	return b
}

// Name returns the configured timer name.
func (b *timerBase) Name() string { return b.cfg.Name }

// Kind returns "dispatch", "variable" or "oneshot".
func (b *timerBase) Kind() string { return b.kind }

func (b *timerBase) IsValid() bool     { return b.valid.Load() == timerValid }
func (b *timerBase) IsRunning() bool   { return b.started.Load() == timerStarted }
func (b *timerBase) IsExecuting() bool { return b.state.IsRunning() }
func (b *timerBase) Count() int64      { return b.state.InvocationCount() }

// RunState exposes the timer's run state to monitors. Callers must treat it
// as read-only; beginning or ending sessions on it breaks the timer.
func (b *timerBase) RunState() *RunState { return &b.state }

// Overruns returns the number of fires dropped because an invocation was
// still in progress.
func (b *timerBase) Overruns() int64 { return b.overruns.Load() }

func (b *timerBase) Start(now bool) error {
	b.mu.Lock()
	if !b.IsValid() {
		b.mu.Unlock()
		return ErrTimerInvalid
	}
	if !b.started.CompareAndSwap(timerPaused, timerStarted) {
		b.mu.Unlock()
		return nil
	}
	if b.state.IsRunning() {
		// The invocation in progress arms the timer when it ends.
		b.deferred = true
		b.deferredNow = b.deferredNow || now
		b.mu.Unlock()
		return nil
	}
	if now {
		b.armLocked(0)
		b.mu.Unlock()
		return nil
	}
	gen := b.gen
	b.mu.Unlock()

	delay, ok := b.nextDelay(gen)
	if !ok {
		return ErrIntervalPanicked
	}
	b.armIfCurrent(gen, delay)
	return nil
}

func (b *timerBase) Pause() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.IsValid() {
		return ErrTimerInvalid
	}
	if b.started.CompareAndSwap(timerStarted, timerPaused) {
		b.disarmLocked()
	}
	return nil
}

func (b *timerBase) Cancel() {
	b.mu.Lock()
	if !b.valid.CompareAndSwap(timerValid, timerInvalid) {
		b.mu.Unlock()
		return
	}
	b.started.Store(timerPaused)
	b.disarmLocked()
	if q, ok := b.cfg.Queue.(*SerialQueue); ok && b.ownsQueue {
		// Invocations already queued still run and close their sessions.
		q.PostTask(func(context.Context) { q.Shutdown() })
	}
	b.mu.Unlock()

	b.cfg.Logger.Info("timer cancelled",
		F("timer", b.cfg.Name),
		F("invocations", b.state.InvocationCount()),
	)
}

func (b *timerBase) Stats() TimerStats {
	snap := b.state.Snapshot()
	st := TimerStats{
		Name:        b.cfg.Name,
		Kind:        b.kind,
		Valid:       b.IsValid(),
		Running:     b.IsRunning(),
		Executing:   snap.Running,
		Invocations: snap.Invocations,
		Overruns:    b.overruns.Load(),
	}
	if last, ok := b.history.Last(); ok {
		st.LastStartedAt = last.StartedAt
		st.LastDuration = last.Duration
	}
	return st
}

// RecentInvocations returns up to limit invocation records, newest first.
func (b *timerBase) RecentInvocations(limit int) []InvocationRecord {
	return b.history.Recent(limit)
}

// LastInvocation returns the most recent invocation record.
func (b *timerBase) LastInvocation() (InvocationRecord, bool) {
	return b.history.Last()
}

// =============================================================================
// Arming and firing
// =============================================================================

func (b *timerBase) armLocked(delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.gen++
	gen := b.gen
	b.timer = time.AfterFunc(delay, func() { b.fire(gen) })
}

func (b *timerBase) disarmLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.gen++
	b.deferred = false
	b.deferredNow = false
}

// armIfCurrent arms the timer unless it was paused, cancelled or re-armed
// since gen was read. delay is computed by the caller without holding mu so
// interval providers may call back into the timer.
func (b *timerBase) armIfCurrent(gen uint64, delay time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gen != gen || !b.IsValid() || !b.IsRunning() {
		return
	}
	b.armLocked(delay)
}

// pauseIfCurrent pauses the timer unless it was paused, cancelled or re-armed
// since gen was read.
func (b *timerBase) pauseIfCurrent(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gen != gen {
		return
	}
	if b.started.CompareAndSwap(timerStarted, timerPaused) {
		b.disarmLocked()
	}
}

// nextDelay asks delayFor for the delay before the next fire. If it panics
// the panic is reported like a callback panic and the timer is paused, since
// there is no delay to re-arm with.
func (b *timerBase) nextDelay(gen uint64) (delay time.Duration, ok bool) {
	count := b.state.InvocationCount()
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
			b.cfg.Metrics.RecordInvocationPanic(b.cfg.Name, rec)
			b.cfg.PanicHandler.HandlePanic(withTimer(context.Background(), b.self), b.cfg.Name, count, rec, debug.Stack())
			b.pauseIfCurrent(gen)
			b.cfg.Logger.Error("interval provider panicked, timer paused",
				F("timer", b.cfg.Name),
				F("invocations", count),
			)
		}
	}()
	return b.delayFor(count), true
}

func (b *timerBase) fire(gen uint64) {
	b.mu.Lock()
	if gen != b.gen || !b.IsValid() || !b.IsRunning() {
		b.mu.Unlock()
		return
	}

	switch {
	case b.every > 0:
		b.armLocked(b.every)
	case b.oneShot:
		b.started.Store(timerPaused)
		b.timer = nil
		b.gen++
	}

	if !b.state.TryBeginInvocation() {
		b.mu.Unlock()
		b.overruns.Add(1)
		b.cfg.Metrics.RecordOverrun(b.cfg.Name)
		b.cfg.Logger.Debug("fire skipped, previous invocation still running",
			F("timer", b.cfg.Name),
			F("invocations", b.state.InvocationCount()),
		)
		return
	}
	count := b.state.InvocationCount()
	// Posting under mu orders the invocation ahead of the queue shutdown a
	// concurrent Cancel posts, so an opened session is always closed.
	accepted := postTo(b.cfg.Queue, func(ctx context.Context) {
		b.invoke(ctx, count)
	})
	if accepted {
		b.mu.Unlock()
		return
	}

	// Nothing will run the invocation, so release the session uncounted and
	// stop firing into a queue that no longer accepts work.
	b.state.abandonInvocation()
	b.started.Store(timerPaused)
	b.disarmLocked()
	b.mu.Unlock()
	b.cfg.Logger.Error("queue rejected invocation, timer paused",
		F("timer", b.cfg.Name),
		F("invocations", count),
	)
}

func (b *timerBase) invoke(ctx context.Context, count int64) {
	runCtx := withTimer(ctx, b.self)
	startedAt := time.Now()
	panicked := false

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				panicked = true
				b.cfg.Metrics.RecordInvocationPanic(b.cfg.Name, rec)
				b.cfg.PanicHandler.HandlePanic(runCtx, b.cfg.Name, count, rec, debug.Stack())
			}
		}()
		b.fn(runCtx, b.self, count)
	}()

	finishedAt := time.Now()
	b.history.Add(InvocationRecord{
		Timer:      b.cfg.Name,
		Count:      count,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Duration:   finishedAt.Sub(startedAt),
		Panicked:   panicked,
	})
	b.cfg.Metrics.RecordInvocationDuration(b.cfg.Name, finishedAt.Sub(startedAt))

	b.finishInvocation()
}

// finishInvocation closes the RunState session and applies any re-arm the
// invocation is responsible for.
func (b *timerBase) finishInvocation() {
	b.mu.Lock()
	if err := b.state.EndInvocation(); err != nil {
		b.cfg.Metrics.RecordProtocolViolation(b.cfg.Name)
		b.cfg.Logger.Error("run state corrupted",
			F("timer", b.cfg.Name),
			F("error", err),
		)
	}

	if !b.IsRunning() {
		b.deferred = false
		b.deferredNow = false
		b.mu.Unlock()
		return
	}

	switch {
	case b.deferred && b.deferredNow:
		b.deferred = false
		b.deferredNow = false
		b.armLocked(0)
		b.mu.Unlock()
		return
	case b.deferred, b.rearmAfterRun:
		b.deferred = false
	default:
		b.mu.Unlock()
		return
	}
	gen := b.gen
	b.mu.Unlock()

	if delay, ok := b.nextDelay(gen); ok {
		b.armIfCurrent(gen, delay)
	}
}

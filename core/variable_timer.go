package core

import "time"

// IntervalFunc returns the delay before the next fire of a VariableTimer.
// count is the number of invocations completed so far.
type IntervalFunc func(t *VariableTimer, count int64) time.Duration

// VariableTimer fires its callback with a variable delay between invocations.
//
// The next delay is requested from the IntervalFunc after each invocation
// completes, so the delay is measured from the end of one invocation to the
// start of the next. Start(true) fires immediately without consulting it.
// A non-positive delay fires immediately.
type VariableTimer struct {
	*timerBase
	intervalFn IntervalFunc
}

var _ Timer = (*VariableTimer)(nil)

// NewVariableTimer creates a paused VariableTimer with a default config.
func NewVariableTimer(fn ExecutionFunc, intervalFn IntervalFunc) (*VariableTimer, error) {
	return NewVariableTimerWithConfig(fn, intervalFn, nil)
}

// NewVariableTimerWithConfig creates a paused VariableTimer.
func NewVariableTimerWithConfig(fn ExecutionFunc, intervalFn IntervalFunc, cfg *TimerConfig) (*VariableTimer, error) {
	if fn == nil || intervalFn == nil {
		return nil, ErrNilCallback
	}

	t := &VariableTimer{
		timerBase:  newTimerBase("variable", fn, cfg),
		intervalFn: intervalFn,
	}
	t.self = t
	t.rearmAfterRun = true
	t.delayFor = func(count int64) time.Duration { return t.intervalFn(t, count) }
	return t, nil
}

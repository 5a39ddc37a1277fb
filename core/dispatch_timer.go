package core

import "time"

// DispatchTimer fires its callback at a fixed interval.
//
// Ticks are scheduled at a fixed rate. A tick that arrives while the previous
// invocation is still running is dropped and counted as an overrun, so the
// callback never runs concurrently with itself.
type DispatchTimer struct {
	*timerBase
	interval time.Duration
}

var _ Timer = (*DispatchTimer)(nil)

// NewDispatchTimer creates a paused DispatchTimer with a default config.
func NewDispatchTimer(interval time.Duration, fn ExecutionFunc) (*DispatchTimer, error) {
	return NewDispatchTimerWithConfig(interval, fn, nil)
}

// NewDispatchTimerWithConfig creates a paused DispatchTimer.
func NewDispatchTimerWithConfig(interval time.Duration, fn ExecutionFunc, cfg *TimerConfig) (*DispatchTimer, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	if fn == nil {
		return nil, ErrNilCallback
	}

	t := &DispatchTimer{
		timerBase: newTimerBase("dispatch", fn, cfg),
		interval:  interval,
	}
	t.self = t
	t.every = interval
	t.delayFor = func(int64) time.Duration { return interval }
	return t, nil
}

// Interval returns the time between ticks.
func (t *DispatchTimer) Interval() time.Duration {
	return t.interval
}

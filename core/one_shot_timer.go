package core

import (
	"context"
	"time"
)

// OneShotFunc is the callback run when a OneShotTimer fires.
type OneShotFunc func(ctx context.Context, t Timer)

// OneShotTimer fires its callback once, after a delay.
//
// When it fires the timer returns to paused; it stays valid and can be
// started again for another shot.
type OneShotTimer struct {
	*timerBase
	delay time.Duration
}

var _ Timer = (*OneShotTimer)(nil)

// NewOneShotTimer creates a paused OneShotTimer with a default config.
func NewOneShotTimer(delay time.Duration, fn OneShotFunc) (*OneShotTimer, error) {
	return NewOneShotTimerWithConfig(delay, fn, nil)
}

// NewOneShotTimerWithConfig creates a paused OneShotTimer.
func NewOneShotTimerWithConfig(delay time.Duration, fn OneShotFunc, cfg *TimerConfig) (*OneShotTimer, error) {
	if delay <= 0 {
		return nil, ErrInvalidInterval
	}
	if fn == nil {
		return nil, ErrNilCallback
	}

	exec := func(ctx context.Context, t Timer, _ int64) { fn(ctx, t) }
	t := &OneShotTimer{
		timerBase: newTimerBase("oneshot", exec, cfg),
		delay:     delay,
	}
	t.self = t
	t.oneShot = true
	t.delayFor = func(int64) time.Duration { return delay }
	return t, nil
}

// Delay returns the configured delay.
func (t *OneShotTimer) Delay() time.Duration {
	return t.delay
}

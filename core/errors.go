package core

import "errors"

var (
	// ErrNotRunning is returned by RunState.EndInvocation when no session is open.
	ErrNotRunning = errors.New("chronos: end of invocation without a matching begin")

	// ErrTimerInvalid is returned when starting or pausing a cancelled timer.
	ErrTimerInvalid = errors.New("chronos: timer has been cancelled")

	// ErrInvalidInterval is returned for a non-positive interval or delay.
	ErrInvalidInterval = errors.New("chronos: interval must be > 0")

	// ErrNilCallback is returned when a timer is created without a callback.
	ErrNilCallback = errors.New("chronos: callback is nil")

	// ErrDuplicateTimer is returned by Registry.Register for a name already in use.
	ErrDuplicateTimer = errors.New("chronos: timer already registered")

	// ErrTimerNotFound is returned by Registry.Deregister for an unknown name.
	ErrTimerNotFound = errors.New("chronos: timer not found")

	// ErrIntervalPanicked is returned by Start when the interval provider
	// panicked while computing the first delay. The timer is left paused.
	ErrIntervalPanicked = errors.New("chronos: interval provider panicked")

	// ErrQueueClosed is returned by SerialQueue.WaitIdle after shutdown.
	ErrQueueClosed = errors.New("chronos: queue is closed")
)

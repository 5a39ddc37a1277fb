package core

import "context"

// Task is the unit of work (Closure)
type Task func(ctx context.Context)

// TaskRunner executes posted tasks. Timers post their callbacks to one.
// Implementations must not run posted tasks on the caller's goroutine.
type TaskRunner interface {
	PostTask(task Task)
}

// RejectingTaskRunner is a TaskRunner that can refuse work, for example once
// it has been shut down. TryPostTask reports whether task was accepted; an
// accepted task must eventually run. SerialQueue implements it.
type RejectingTaskRunner interface {
	TaskRunner
	TryPostTask(task Task) bool
}

// postTo posts task to r and reports whether r accepted it. Runners that
// cannot refuse work always accept.
func postTo(r TaskRunner, task Task) bool {
	if rr, ok := r.(RejectingTaskRunner); ok {
		return rr.TryPostTask(task)
	}
	r.PostTask(task)
	return true
}

// =============================================================================
// Context Helper
// =============================================================================
type timerKeyType struct{}

var timerKey timerKeyType

// CurrentTimer returns the timer whose callback is running with ctx, or nil.
func CurrentTimer(ctx context.Context) Timer {
	if v := ctx.Value(timerKey); v != nil {
		return v.(Timer)
	}
	return nil
}

func withTimer(ctx context.Context, t Timer) context.Context {
	return context.WithValue(ctx, timerKey, t)
}

package core

import "time"

// InvocationRecord captures one completed callback invocation.
type InvocationRecord struct {
	Timer      string
	Count      int64
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Panicked   bool
}

// TimerStats represents runtime observability state for a timer.
type TimerStats struct {
	Name          string
	Kind          string
	Valid         bool
	Running       bool
	Executing     bool
	Invocations   int64
	Overruns      int64
	LastStartedAt time.Time
	LastDuration  time.Duration
}

// QueueStats represents runtime observability state for a SerialQueue.
type QueueStats struct {
	Name     string
	Pending  int
	Executed int64
	Panics   int64
	Closed   bool
}

package chronos

import "github.com/Swind/go-chronos/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the chronos package for most use cases.

// RunState is the running-flag plus invocation-counter primitive.
type RunState = core.RunState

// RunStateSnapshot is a point-in-time copy of a RunState.
type RunStateSnapshot = core.RunStateSnapshot

// Timer is the control surface shared by all timer kinds.
type Timer = core.Timer

// DispatchTimer fires at a fixed interval.
type DispatchTimer = core.DispatchTimer

// VariableTimer computes the delay before each fire.
type VariableTimer = core.VariableTimer

// OneShotTimer fires once per Start.
type OneShotTimer = core.OneShotTimer

// ExecutionFunc is the callback of repeating timers.
type ExecutionFunc = core.ExecutionFunc

// IntervalFunc supplies VariableTimer delays.
type IntervalFunc = core.IntervalFunc

// OneShotFunc is the callback of a OneShotTimer.
type OneShotFunc = core.OneShotFunc

// TimerConfig configures a timer.
type TimerConfig = core.TimerConfig

// TimerStats and InvocationRecord describe timer activity.
type TimerStats = core.TimerStats
type InvocationRecord = core.InvocationRecord

// Registry names a set of timers.
type Registry = core.Registry

// SerialQueue runs tasks one at a time on a dedicated goroutine.
type SerialQueue = core.SerialQueue

// Task is a unit of work posted to a TaskRunner.
type Task = core.Task

// TaskRunner is the interface timers post invocations to.
type TaskRunner = core.TaskRunner

// RejectingTaskRunner is a TaskRunner that reports refused posts.
type RejectingTaskRunner = core.RejectingTaskRunner

// Logger, Metrics and PanicHandler are the pluggable handlers of TimerConfig.
type Logger = core.Logger
type Metrics = core.Metrics
type PanicHandler = core.PanicHandler

// Errors returned by timers and the registry.
var (
	ErrNotRunning      = core.ErrNotRunning
	ErrTimerInvalid    = core.ErrTimerInvalid
	ErrInvalidInterval = core.ErrInvalidInterval
	ErrNilCallback     = core.ErrNilCallback
	ErrDuplicateTimer  = core.ErrDuplicateTimer
	ErrTimerNotFound   = core.ErrTimerNotFound
	ErrQueueClosed     = core.ErrQueueClosed

	ErrIntervalPanicked = core.ErrIntervalPanicked
)

// Constructors.
var (
	NewRunState                = core.NewRunState
	NewDispatchTimer           = core.NewDispatchTimer
	NewDispatchTimerWithConfig = core.NewDispatchTimerWithConfig
	NewVariableTimer           = core.NewVariableTimer
	NewVariableTimerWithConfig = core.NewVariableTimerWithConfig
	NewOneShotTimer            = core.NewOneShotTimer
	NewOneShotTimerWithConfig  = core.NewOneShotTimerWithConfig
	NewRegistry                = core.NewRegistry
	NewSerialQueue             = core.NewSerialQueue
	DefaultTimerConfig         = core.DefaultTimerConfig
)

// CurrentTimer retrieves the timer whose callback is running from context
var CurrentTimer = core.CurrentTimer

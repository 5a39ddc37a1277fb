// Package chronos provides timers whose callbacks never overlap, built on a
// lock-free RunState primitive.
//
// A RunState pairs a "running" flag with a 64-bit invocation counter. Callers
// claim an invocation with TryBeginInvocation, do their work, and close it
// with EndInvocation, which bumps the counter before clearing the flag. At most
// one invocation is ever in progress, and the counter only grows.
//
// # Quick Start
//
// Guard any piece of work against re-entry:
//
//	var state chronos.RunState
//	if state.TryBeginInvocation() {
//		defer state.MustEndInvocation()
//		refresh()
//	}
//
// Run a callback at a fixed rate on its own serial queue:
//
//	timer, _ := chronos.NewDispatchTimer(time.Second, func(ctx context.Context, t chronos.Timer, count int64) {
//		fmt.Println("tick", count)
//	})
//	timer.Start(true)
//	defer timer.Cancel()
//
// # Timers
//
// DispatchTimer fires at a fixed interval. VariableTimer asks an IntervalFunc
// for the delay after each invocation completes. OneShotTimer fires once per
// Start. All three are created paused; Start, Pause and Cancel may be called
// from any goroutine, including the timer's own callback. A fire that arrives
// while the previous invocation is still running is dropped and counted as an
// overrun.
//
// # Global Registry
//
// Applications that manage many timers can name them in a Registry:
//
//	chronos.InitGlobalRegistry()
//	defer chronos.ShutdownGlobalRegistry()
//
//	timer, _ := chronos.CreateDispatchTimer("heartbeat", time.Second, beat)
//	timer.Start(false)
//
// Metrics and logging adapters live in observability/prometheus and
// observability/zerolog.
package chronos

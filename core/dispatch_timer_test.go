package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewDispatchTimer_Validation(t *testing.T) {
	noop := func(context.Context, Timer, int64) {}

	if _, err := NewDispatchTimer(0, noop); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("interval 0: error = %v, want ErrInvalidInterval", err)
	}
	if _, err := NewDispatchTimer(-time.Second, noop); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("negative interval: error = %v, want ErrInvalidInterval", err)
	}
	if _, err := NewDispatchTimer(time.Second, nil); !errors.Is(err, ErrNilCallback) {
		t.Errorf("nil callback: error = %v, want ErrNilCallback", err)
	}
}

// TestDispatchTimer_InitialState verifies a new timer is valid and paused
func TestDispatchTimer_InitialState(t *testing.T) {
	timer, err := NewDispatchTimerWithConfig(250*time.Millisecond, func(context.Context, Timer, int64) {}, quietConfig(""))
	if err != nil {
		t.Fatalf("NewDispatchTimer failed: %v", err)
	}
	defer timer.Cancel()

	if !timer.IsValid() {
		t.Error("IsValid() = false, want true")
	}
	if timer.IsRunning() {
		t.Error("IsRunning() = true, want false")
	}
	if timer.Count() != 0 {
		t.Errorf("Count() = %d, want 0", timer.Count())
	}
	if timer.Kind() != "dispatch" {
		t.Errorf("Kind() = %q, want dispatch", timer.Kind())
	}
	if timer.Interval() != 250*time.Millisecond {
		t.Errorf("Interval() = %v, want 250ms", timer.Interval())
	}
}

func TestDispatchTimer_DefaultName(t *testing.T) {
	timer, err := NewDispatchTimerWithConfig(time.Second, func(context.Context, Timer, int64) {}, &TimerConfig{Logger: NewNoOpLogger()})
	if err != nil {
		t.Fatalf("NewDispatchTimer failed: %v", err)
	}
	defer timer.Cancel()

	const prefix = "chronos.dispatch."
	if name := timer.Name(); len(name) <= len(prefix) || name[:len(prefix)] != prefix {
		t.Errorf("Name() = %q, want prefix %q", name, prefix)
	}
}

// TestDispatchTimer_FiresWithSequentialCounts verifies repeated firing
// Given: A 10ms timer started immediately
// When: It fires several times
// Then: The callback sees counts 0, 1, 2, ... in order
func TestDispatchTimer_FiresWithSequentialCounts(t *testing.T) {
	var seen countLog
	timer, err := NewDispatchTimerWithConfig(10*time.Millisecond, func(ctx context.Context, _ Timer, count int64) {
		seen.add(count)
	}, quietConfig("seq"))
	if err != nil {
		t.Fatalf("NewDispatchTimer failed: %v", err)
	}
	defer timer.Cancel()

	if err := timer.Start(true); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !timer.IsRunning() {
		t.Error("IsRunning() after Start = false, want true")
	}

	assertEventually(t, 2*time.Second, func() bool { return timer.Count() >= 5 })
	timer.Pause()

	got := seen.get()
	for i, v := range got {
		if v != int64(i) {
			t.Fatalf("counts = %v, want 0,1,2,...", got)
		}
	}
}

// TestDispatchTimer_StartNotNowWaitsOneInterval verifies the first fire is delayed
// Given: A 80ms timer started with now=false
// When: 30ms pass
// Then: The callback has not fired yet, but fires after the interval
func TestDispatchTimer_StartNotNowWaitsOneInterval(t *testing.T) {
	var fired atomic.Int32
	timer, _ := NewDispatchTimerWithConfig(80*time.Millisecond, func(context.Context, Timer, int64) {
		fired.Add(1)
	}, quietConfig("delayed"))
	defer timer.Cancel()

	timer.Start(false)

	time.Sleep(30 * time.Millisecond)
	if fired.Load() != 0 {
		t.Errorf("fired = %d after 30ms, want 0", fired.Load())
	}

	assertEventually(t, time.Second, func() bool { return fired.Load() >= 1 })
}

// TestDispatchTimer_StartPauseCancel walks the state transitions
func TestDispatchTimer_StartPauseCancel(t *testing.T) {
	timer, _ := NewDispatchTimerWithConfig(250*time.Millisecond, func(context.Context, Timer, int64) {}, quietConfig("transitions"))

	timer.Start(true)
	if !timer.IsValid() || !timer.IsRunning() {
		t.Errorf("after Start: valid=%v running=%v, want true/true", timer.IsValid(), timer.IsRunning())
	}

	if err := timer.Pause(); err != nil {
		t.Errorf("Pause() error = %v", err)
	}
	if !timer.IsValid() || timer.IsRunning() {
		t.Errorf("after Pause: valid=%v running=%v, want true/false", timer.IsValid(), timer.IsRunning())
	}

	timer.Cancel()
	if timer.IsValid() || timer.IsRunning() {
		t.Errorf("after Cancel: valid=%v running=%v, want false/false", timer.IsValid(), timer.IsRunning())
	}

	if err := timer.Start(true); !errors.Is(err, ErrTimerInvalid) {
		t.Errorf("Start() after Cancel error = %v, want ErrTimerInvalid", err)
	}
	if err := timer.Pause(); !errors.Is(err, ErrTimerInvalid) {
		t.Errorf("Pause() after Cancel error = %v, want ErrTimerInvalid", err)
	}

	// Cancel is idempotent.
	timer.Cancel()
}

// TestDispatchTimer_PauseStopsFiring verifies a paused timer keeps its count
// Given: A running 10ms timer
// When: It is paused
// Then: The count stops changing, and resumes after Start
func TestDispatchTimer_PauseStopsFiring(t *testing.T) {
	timer, _ := NewDispatchTimerWithConfig(10*time.Millisecond, func(context.Context, Timer, int64) {}, quietConfig("pause"))
	defer timer.Cancel()

	timer.Start(true)
	assertEventually(t, time.Second, func() bool { return timer.Count() >= 2 })

	timer.Pause()
	assertEventually(t, time.Second, func() bool { return !timer.IsExecuting() })
	paused := timer.Count()

	time.Sleep(60 * time.Millisecond)
	if got := timer.Count(); got != paused {
		t.Errorf("Count() while paused = %d, want %d", got, paused)
	}

	timer.Start(true)
	assertEventually(t, time.Second, func() bool { return timer.Count() > paused })
}

// TestDispatchTimer_PauseAndRestartInsideCallback mirrors repeated usage from the callback
// Given: A timer whose callback pauses and restarts it at count 5, and cancels at count 10
// When: It runs
// Then: State checks inside the callback hold and the timer ends cancelled
func TestDispatchTimer_PauseAndRestartInsideCallback(t *testing.T) {
	done := make(chan struct{})
	var failures atomic.Int32
	var restarted atomic.Bool

	timer, _ := NewDispatchTimerWithConfig(10*time.Millisecond, func(ctx context.Context, tm Timer, count int64) {
		if count == 5 && !restarted.Load() {
			restarted.Store(true)
			tm.Pause()
			if !tm.IsValid() || tm.IsRunning() {
				failures.Add(1)
			}
			tm.Start(true)
			if !tm.IsValid() || !tm.IsRunning() {
				failures.Add(1)
			}
		}
		if count == 10 && restarted.Load() {
			tm.Cancel()
			if tm.IsValid() || tm.IsRunning() {
				failures.Add(1)
			}
			close(done)
		}
	}, quietConfig("inside"))

	timer.Start(true)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("timer did not reach count 10")
	}

	if failures.Load() != 0 {
		t.Errorf("%d state checks failed inside the callback", failures.Load())
	}
	if timer.IsValid() {
		t.Error("IsValid() = true after Cancel, want false")
	}
}

// TestDispatchTimer_OverrunsAreDropped verifies the single-flight guard on a slow callback
// Given: A 5ms timer whose callback takes 30ms
// When: It runs for a while
// Then: Invocations never overlap and the skipped ticks are counted as overruns
func TestDispatchTimer_OverrunsAreDropped(t *testing.T) {
	metrics := newRecordingMetrics()
	var inside atomic.Int32
	var overlapped atomic.Bool

	cfg := quietConfig("slow")
	cfg.Metrics = metrics
	timer, _ := NewDispatchTimerWithConfig(5*time.Millisecond, func(context.Context, Timer, int64) {
		if inside.Add(1) > 1 {
			overlapped.Store(true)
		}
		time.Sleep(30 * time.Millisecond)
		inside.Add(-1)
	}, cfg)
	defer timer.Cancel()

	timer.Start(true)
	assertEventually(t, 2*time.Second, func() bool { return timer.Count() >= 3 })
	timer.Pause()
	assertEventually(t, time.Second, func() bool { return !timer.IsExecuting() })
	time.Sleep(10 * time.Millisecond)

	if overlapped.Load() {
		t.Error("callback invocations overlapped")
	}
	if timer.Overruns() == 0 {
		t.Error("Overruns() = 0, want > 0")
	}
	if got := metrics.get(metrics.overruns, "slow"); int64(got) != timer.Overruns() {
		t.Errorf("metrics overruns = %d, want %d", got, timer.Overruns())
	}
	if metrics.get(metrics.durations, "slow") == 0 {
		t.Error("no invocation durations recorded")
	}
}

// TestDispatchTimer_PanicClosesSession verifies panics are recovered and reported
// Given: A timer whose first invocation panics
// When: It keeps firing
// Then: The panic handler sees count 0, the session is closed, and later invocations run
func TestDispatchTimer_PanicClosesSession(t *testing.T) {
	handler := &recordingPanicHandler{}
	metrics := newRecordingMetrics()

	cfg := quietConfig("panicky")
	cfg.PanicHandler = handler
	cfg.Metrics = metrics

	timer, _ := NewDispatchTimerWithConfig(10*time.Millisecond, func(ctx context.Context, _ Timer, count int64) {
		if count == 0 {
			panic("boom")
		}
	}, cfg)
	defer timer.Cancel()

	timer.Start(true)
	assertEventually(t, 2*time.Second, func() bool { return timer.Count() >= 3 })
	timer.Pause()

	panics := handler.snapshot()
	if len(panics) != 1 {
		t.Fatalf("panics recorded = %d, want 1", len(panics))
	}
	if panics[0].name != "panicky" || panics[0].count != 0 || panics[0].info != "boom" {
		t.Errorf("panic = %+v, want panicky/0/boom", panics[0])
	}
	if panics[0].timer != Timer(timer) {
		t.Error("CurrentTimer(ctx) in panic handler is not the timer")
	}
	if got := metrics.get(metrics.panics, "panicky"); got != 1 {
		t.Errorf("metrics panics = %d, want 1", got)
	}

	history := timer.RecentInvocations(0)
	oldest := history[len(history)-1]
	if oldest.Count != 0 || !oldest.Panicked {
		t.Errorf("oldest record = %+v, want count 0 panicked", oldest)
	}
}

// TestDispatchTimer_CurrentTimer verifies the context carries the timer
func TestDispatchTimer_CurrentTimer(t *testing.T) {
	got := make(chan Timer, 1)
	timer, _ := NewDispatchTimerWithConfig(time.Hour, func(ctx context.Context, _ Timer, _ int64) {
		got <- CurrentTimer(ctx)
	}, quietConfig("ctx"))
	defer timer.Cancel()

	timer.Start(true)

	select {
	case current := <-got:
		if current != Timer(timer) {
			t.Errorf("CurrentTimer(ctx) = %v, want the firing timer", current)
		}
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	if CurrentTimer(context.Background()) != nil {
		t.Error("CurrentTimer(background) != nil")
	}
}

// TestDispatchTimer_Stats verifies the stats snapshot
func TestDispatchTimer_Stats(t *testing.T) {
	timer, _ := NewDispatchTimerWithConfig(10*time.Millisecond, func(context.Context, Timer, int64) {
		time.Sleep(2 * time.Millisecond)
	}, quietConfig("stats"))
	defer timer.Cancel()

	timer.Start(true)
	assertEventually(t, time.Second, func() bool { return timer.Count() >= 2 })

	st := timer.Stats()
	if st.Name != "stats" || st.Kind != "dispatch" {
		t.Errorf("Stats() name/kind = %s/%s, want stats/dispatch", st.Name, st.Kind)
	}
	if !st.Valid || !st.Running {
		t.Errorf("Stats() valid/running = %v/%v, want true/true", st.Valid, st.Running)
	}
	if st.Invocations < 2 {
		t.Errorf("Stats().Invocations = %d, want >= 2", st.Invocations)
	}
	if st.LastStartedAt.IsZero() || st.LastDuration <= 0 {
		t.Errorf("Stats() last = %v/%v, want set", st.LastStartedAt, st.LastDuration)
	}

	last, ok := timer.LastInvocation()
	if !ok || last.Timer != "stats" {
		t.Errorf("LastInvocation() = %+v, %v", last, ok)
	}
}

// TestDispatchTimer_CancelKeepsCount verifies the counter is never reset
func TestDispatchTimer_CancelKeepsCount(t *testing.T) {
	timer, _ := NewDispatchTimerWithConfig(5*time.Millisecond, func(context.Context, Timer, int64) {}, quietConfig("keep"))

	timer.Start(true)
	assertEventually(t, time.Second, func() bool { return timer.Count() >= 3 })
	timer.Cancel()
	assertEventually(t, time.Second, func() bool { return !timer.IsExecuting() })

	final := timer.Count()
	if final < 3 {
		t.Errorf("Count() after Cancel = %d, want >= 3", final)
	}
	time.Sleep(30 * time.Millisecond)
	if timer.Count() != final {
		t.Errorf("Count() changed after Cancel: %d -> %d", final, timer.Count())
	}
}

// TestDispatchTimer_SharedQueue verifies a caller-supplied queue is used and left open
func TestDispatchTimer_SharedQueue(t *testing.T) {
	queue := NewSerialQueueWithConfig("shared", NewNoOpLogger(), nil)
	defer queue.Stop()

	cfg := quietConfig("on-shared")
	cfg.Queue = queue
	timer, _ := NewDispatchTimerWithConfig(5*time.Millisecond, func(context.Context, Timer, int64) {}, cfg)

	timer.Start(true)
	assertEventually(t, time.Second, func() bool { return timer.Count() >= 2 })
	timer.Cancel()

	if queue.IsClosed() {
		t.Error("caller-supplied queue was closed by Cancel")
	}
	if queue.Stats().Executed < 2 {
		t.Errorf("queue executed = %d, want >= 2", queue.Stats().Executed)
	}
}

// TestDispatchTimer_StoppedQueueRejectsInvocation verifies a refused post does
// not leave an invocation open
// Given: A timer posting to a queue that was already stopped
// When: The timer is started and fires
// Then: The timer pauses itself with an error log and nothing is left executing
func TestDispatchTimer_StoppedQueueRejectsInvocation(t *testing.T) {
	queue := NewSerialQueueWithConfig("stopped", NewNoOpLogger(), nil)
	queue.Stop()

	logger := &captureLogger{}
	cfg := quietConfig("orphan")
	cfg.Logger = logger
	cfg.Queue = queue
	var ran atomic.Bool
	timer, err := NewDispatchTimerWithConfig(10*time.Millisecond, func(context.Context, Timer, int64) {
		ran.Store(true)
	}, cfg)
	if err != nil {
		t.Fatalf("NewDispatchTimer failed: %v", err)
	}
	defer timer.Cancel()

	if err := timer.Start(true); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	assertEventually(t, time.Second, func() bool {
		return logger.has("error", "queue rejected invocation, timer paused")
	})
	time.Sleep(50 * time.Millisecond)

	if timer.IsExecuting() {
		t.Error("IsExecuting() = true, want false")
	}
	if timer.IsRunning() {
		t.Error("IsRunning() = true, want false")
	}
	if timer.Count() != 0 {
		t.Errorf("Count() = %d, want 0", timer.Count())
	}
	if timer.Overruns() != 0 {
		t.Errorf("Overruns() = %d, want 0", timer.Overruns())
	}
	if ran.Load() {
		t.Error("callback ran on a stopped queue")
	}
	if !timer.RunState().TryBeginInvocation() {
		t.Error("session left open after rejected post")
	}
}

// TestDispatchTimer_ConcurrentStartPause verifies a started timer is armed
// Given: A paused timer with a long interval
// When: Start and Pause race from several goroutines
// Then: Once they return, the timer is armed exactly when it reports running
func TestDispatchTimer_ConcurrentStartPause(t *testing.T) {
	timer, _ := NewDispatchTimerWithConfig(time.Hour, func(context.Context, Timer, int64) {}, quietConfig("flip"))
	defer timer.Cancel()

	for round := 0; round < 50; round++ {
		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					timer.Start(false)
				}
			}()
			go func() {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					timer.Pause()
				}
			}()
		}
		wg.Wait()

		timer.mu.Lock()
		running, armed := timer.IsRunning(), timer.timer != nil
		timer.mu.Unlock()
		if running != armed {
			t.Fatalf("round %d: IsRunning() = %v but armed = %v", round, running, armed)
		}
	}
}

// TestDispatchTimer_ConcurrentStartCancel verifies Cancel wins over a racing Start
// Given: A fresh timer
// When: Start and Cancel are called concurrently
// Then: The timer ends invalid, not running and disarmed
func TestDispatchTimer_ConcurrentStartCancel(t *testing.T) {
	for i := 0; i < 100; i++ {
		timer, _ := NewDispatchTimerWithConfig(time.Hour, func(context.Context, Timer, int64) {}, quietConfig("race"))

		var wg sync.WaitGroup
		begin := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-begin
			if err := timer.Start(false); err != nil && !errors.Is(err, ErrTimerInvalid) {
				t.Errorf("Start() error = %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			<-begin
			timer.Cancel()
		}()
		close(begin)
		wg.Wait()

		timer.mu.Lock()
		armed := timer.timer != nil
		timer.mu.Unlock()
		if timer.IsValid() || timer.IsRunning() || armed {
			t.Fatalf("iteration %d: valid=%v running=%v armed=%v, want all false",
				i, timer.IsValid(), timer.IsRunning(), armed)
		}
	}
}

// TestDispatchTimer_FireAfterInvalidation verifies a pending fire is ignored once
// the timer is no longer valid
func TestDispatchTimer_FireAfterInvalidation(t *testing.T) {
	var ran atomic.Bool
	timer, _ := NewDispatchTimerWithConfig(time.Hour, func(context.Context, Timer, int64) {
		ran.Store(true)
	}, quietConfig("stale-fire"))
	defer timer.Cancel()

	timer.Start(false)
	timer.mu.Lock()
	gen := timer.gen
	timer.mu.Unlock()

	timer.valid.Store(timerInvalid)
	timer.fire(gen)
	timer.valid.Store(timerValid)

	queue := timer.cfg.Queue.(*SerialQueue)
	if err := queue.WaitIdle(context.Background()); err != nil {
		t.Fatalf("WaitIdle() error = %v", err)
	}
	if ran.Load() || timer.IsExecuting() || timer.Count() != 0 {
		t.Errorf("fire ran on an invalid timer: ran=%v executing=%v count=%d",
			ran.Load(), timer.IsExecuting(), timer.Count())
	}
}

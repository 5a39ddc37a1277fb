package core

import (
	"fmt"
	"sync/atomic"
)

// Run-state flag values. stateEnding is the window between claiming the end
// of a session and publishing the incremented counter; readers see it as
// running.
const (
	stateIdle int32 = iota
	stateActive
	stateEnding
)

// noCopy may be embedded into structs which must not be copied after first use.
// See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// RunState tracks whether a single recurring task is currently executing and
// how many times it has completed.
//
// At most one session (a successful TryBeginInvocation followed by its
// matching EndInvocation) is open at any time. The invocation counter is
// incremented when a session ends and never decreases.
//
// A RunState must be shared by pointer. The zero value is Idle with a count
// of zero and is ready to use.
type RunState struct {
	_ noCopy

	running     atomic.Int32
	invocations atomic.Int64
}

// RunStateSnapshot is a point-in-time read of both RunState fields.
//
// The two fields are loaded one after the other and may tear. If Running is
// false, Invocations already includes every session whose end was observed.
type RunStateSnapshot struct {
	Running     bool
	Invocations int64
}

// NewRunState returns an Idle RunState with a zero invocation count.
func NewRunState() *RunState {
	return &RunState{}
}

// TryBeginInvocation opens a session if none is open.
// It returns false, without side effects, when another session is in progress.
func (s *RunState) TryBeginInvocation() bool {
	return s.running.CompareAndSwap(stateIdle, stateActive)
}

// EndInvocation closes the open session and counts it.
//
// The counter is incremented before the running flag is cleared, so any
// reader that sees IsRunning() == false also sees the new count.
// It returns ErrNotRunning and leaves the counter untouched when no session
// is open; that always indicates a caller bug.
func (s *RunState) EndInvocation() error {
	if !s.running.CompareAndSwap(stateActive, stateEnding) {
		return ErrNotRunning
	}
	s.invocations.Add(1)
	s.running.Store(stateIdle)
	return nil
}

// abandonInvocation releases the open session without counting it. It is
// only for a session whose work was never started.
func (s *RunState) abandonInvocation() bool {
	return s.running.CompareAndSwap(stateActive, stateIdle)
}

// MustEndInvocation is like EndInvocation but panics when no session is open.
func (s *RunState) MustEndInvocation() {
	if err := s.EndInvocation(); err != nil {
		panic(fmt.Sprintf("RunState: EndInvocation called while idle (invocations=%d)", s.invocations.Load()))
	}
}

// IsRunning reports whether a session is open.
// The result may be stale by the time the caller acts on it; use
// TryBeginInvocation when mutual exclusion is required.
func (s *RunState) IsRunning() bool {
	return s.running.Load() != stateIdle
}

// InvocationCount returns the number of completed sessions.
func (s *RunState) InvocationCount() int64 {
	return s.invocations.Load()
}

// Snapshot loads the running flag and then the invocation count.
func (s *RunState) Snapshot() RunStateSnapshot {
	running := s.IsRunning()
	return RunStateSnapshot{
		Running:     running,
		Invocations: s.invocations.Load(),
	}
}

// TryRun runs fn inside a session. It returns false without calling fn when
// a session is already open. The session is closed even if fn panics; the
// panic is propagated.
func (s *RunState) TryRun(fn func()) bool {
	if !s.TryBeginInvocation() {
		return false
	}
	defer s.MustEndInvocation()
	fn()
	return true
}

func (s *RunState) String() string {
	snap := s.Snapshot()
	state := "idle"
	if snap.Running {
		state = "active"
	}
	return fmt.Sprintf("RunState{%s, invocations=%d}", state, snap.Invocations)
}

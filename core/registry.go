package core

import (
	"fmt"
	"sort"
	"sync"
)

// =============================================================================
// Registry - owner of timer lifetimes
// =============================================================================

// Registry owns a set of named timers. Registering a timer hands over its
// lifetime: Deregister and CancelAll cancel it. Monitors read timers through
// Stats and never mutate them.
type Registry struct {
	mu     sync.RWMutex
	timers map[string]Timer
	logger Logger
}

// NewRegistry creates an empty Registry that does not log.
func NewRegistry() *Registry {
	return &Registry{
		timers: make(map[string]Timer),
		logger: NewNoOpLogger(),
	}
}

// SetLogger sets the logger for the Registry
func (r *Registry) SetLogger(logger Logger) {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

// Register adds t under t.Name().
func (r *Registry) Register(t Timer) error {
	if t == nil {
		return fmt.Errorf("register: nil timer")
	}
	name := t.Name()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.timers[name]; exists {
		return fmt.Errorf("register %q: %w", name, ErrDuplicateTimer)
	}
	r.timers[name] = t
	r.logger.Debug("timer registered", F("timer", name))
	return nil
}

// Deregister removes the named timer and cancels it.
func (r *Registry) Deregister(name string) error {
	r.mu.Lock()
	t, ok := r.timers[name]
	if ok {
		delete(r.timers, name)
	}
	logger := r.logger
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("deregister %q: %w", name, ErrTimerNotFound)
	}
	t.Cancel()
	logger.Debug("timer deregistered", F("timer", name), F("invocations", t.Count()))
	return nil
}

// Get returns the named timer.
func (r *Registry) Get(name string) (Timer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.timers[name]
	return t, ok
}

// Len returns the number of registered timers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.timers)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.timers))
	for name := range r.timers {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Stats returns a snapshot of every registered timer, sorted by name.
func (r *Registry) Stats() []TimerStats {
	r.mu.RLock()
	timers := make([]Timer, 0, len(r.timers))
	for _, t := range r.timers {
		timers = append(timers, t)
	}
	r.mu.RUnlock()

	out := make([]TimerStats, 0, len(timers))
	for _, t := range timers {
		out = append(out, t.Stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CancelAll deregisters and cancels every timer.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	timers := r.timers
	r.timers = make(map[string]Timer)
	r.mu.Unlock()

	for _, t := range timers {
		t.Cancel()
	}
}

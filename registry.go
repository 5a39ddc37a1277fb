package chronos

import (
	"fmt"
	"sync"
	"time"

	"github.com/Swind/go-chronos/core"
)

// =============================================================================
// Global Registry Helper (Singleton)
// =============================================================================

var (
	globalRegistry *core.Registry
	globalMu       sync.Mutex
)

// InitGlobalRegistry initializes the global timer registry.
// Repeated calls are no-ops.
func InitGlobalRegistry() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalRegistry != nil {
		return
	}
	globalRegistry = core.NewRegistry()
}

// GetGlobalRegistry returns the global registry instance.
// It panics if InitGlobalRegistry has not been called.
func GetGlobalRegistry() *core.Registry {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalRegistry == nil {
		panic("GlobalRegistry not initialized. Call InitGlobalRegistry() first.")
	}
	return globalRegistry
}

// ShutdownGlobalRegistry cancels every registered timer and drops the registry.
func ShutdownGlobalRegistry() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalRegistry != nil {
		globalRegistry.CancelAll()
		globalRegistry = nil
	}
}

// CreateDispatchTimer creates a paused DispatchTimer named name and registers
// it with the global registry.
func CreateDispatchTimer(name string, interval time.Duration, fn ExecutionFunc) (*DispatchTimer, error) {
	t, err := core.NewDispatchTimerWithConfig(interval, fn, namedConfig(name))
	if err != nil {
		return nil, err
	}
	if err := register(t); err != nil {
		return nil, err
	}
	return t, nil
}

// CreateVariableTimer creates a paused VariableTimer named name and registers
// it with the global registry.
func CreateVariableTimer(name string, fn ExecutionFunc, intervalFn IntervalFunc) (*VariableTimer, error) {
	t, err := core.NewVariableTimerWithConfig(fn, intervalFn, namedConfig(name))
	if err != nil {
		return nil, err
	}
	if err := register(t); err != nil {
		return nil, err
	}
	return t, nil
}

// CreateOneShotTimer creates a paused OneShotTimer named name and registers
// it with the global registry.
func CreateOneShotTimer(name string, delay time.Duration, fn OneShotFunc) (*OneShotTimer, error) {
	t, err := core.NewOneShotTimerWithConfig(delay, fn, namedConfig(name))
	if err != nil {
		return nil, err
	}
	if err := register(t); err != nil {
		return nil, err
	}
	return t, nil
}

func namedConfig(name string) *core.TimerConfig {
	cfg := core.DefaultTimerConfig()
	cfg.Name = name
	return cfg
}

// register cancels t when the registry refuses it, so a failed Create
// leaves no goroutine behind.
func register(t core.Timer) error {
	if err := GetGlobalRegistry().Register(t); err != nil {
		t.Cancel()
		return fmt.Errorf("create timer: %w", err)
	}
	return nil
}

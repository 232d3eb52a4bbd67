package dutycycle

import (
	"sync"
	"sync/atomic"
)

// Mode is the maintenance flag. It is changed by the admin API and by
// SIGUSR1 while the scheduler reads it.
type Mode struct {
	maintenance atomic.Bool
	toggleMu    sync.Mutex

	mu      sync.Mutex
	changed chan struct{}
	onSet   func(maintenance bool)
}

// NewMode creates a mode flag.
func NewMode(maintenance bool) *Mode {
	m := &Mode{changed: make(chan struct{})}
	m.maintenance.Store(maintenance)
	return m
}

// Maintenance reports whether maintenance mode is on.
func (m *Mode) Maintenance() bool {
	return m.maintenance.Load()
}

// Set changes the mode and wakes anything waiting on Changed.
func (m *Mode) Set(maintenance bool) {
	if m.maintenance.Swap(maintenance) == maintenance {
		return
	}
	m.mu.Lock()
	close(m.changed)
	m.changed = make(chan struct{})
	onSet := m.onSet
	m.mu.Unlock()

	if onSet != nil {
		onSet(maintenance)
	}
}

// Toggle flips the mode and returns the new value.
func (m *Mode) Toggle() bool {
	m.toggleMu.Lock()
	defer m.toggleMu.Unlock()
	next := !m.Maintenance()
	m.Set(next)
	return next
}

// Changed returns a channel closed at the next mode change.
func (m *Mode) Changed() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changed
}

// OnChange registers a callback run after every change.
func (m *Mode) OnChange(fn func(maintenance bool)) {
	m.mu.Lock()
	m.onSet = fn
	m.mu.Unlock()
}

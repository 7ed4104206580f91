// Package timeutil abstracts the wall clock so time-dependent components can be
// driven deterministically in tests.
package timeutil

import (
	"sync"
	"time"
)

// Provider supplies the current time.
type Provider interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

type realProvider struct{}

func (realProvider) Now() time.Time                  { return time.Now() }
func (realProvider) Since(t time.Time) time.Duration { return time.Since(t) }

// Default returns a Provider backed by the system clock.
func Default() Provider { return realProvider{} }

// Mock is a manually advanced Provider.
type Mock struct {
	mu          sync.RWMutex
	CurrentTime time.Time
}

// Now returns the mocked current time.
func (m *Mock) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.CurrentTime
}

// Since returns the duration between t and the mocked current time.
func (m *Mock) Since(t time.Time) time.Duration { return m.Now().Sub(t) }

// Advance moves the mocked clock forward by d.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CurrentTime = m.CurrentTime.Add(d)
}

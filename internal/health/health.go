// Package health tracks credential exhaustion across both cadences.
// Exhaustion persisting on the strategic AND tactical cycles beyond
// the grace period surfaces as a degraded condition for external
// monitoring; it is never fatal.
package health

import (
	"sync"
	"time"
)

type Cycle string

const (
	CycleStrategic Cycle = "strategic"
	CycleTactical  Cycle = "tactical"
)

type Monitor struct {
	mu          sync.Mutex
	gracePeriod time.Duration
	since       map[Cycle]time.Time // start of current exhaustion streak
	now         func() time.Time
}

func NewMonitor(gracePeriod time.Duration) *Monitor {
	return &Monitor{
		gracePeriod: gracePeriod,
		since:       make(map[Cycle]time.Time),
		now:         time.Now,
	}
}

// NoteExhausted marks the cycle as currently starved of credentials.
func (m *Monitor) NoteExhausted(c Cycle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.since[c]; !ok {
		m.since[c] = m.now()
	}
}

// NoteOK clears the cycle's exhaustion streak.
func (m *Monitor) NoteOK(c Cycle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.since, c)
}

// Degraded reports whether both cycles have been exhausted for longer
// than the grace period.
func (m *Monitor) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for _, c := range []Cycle{CycleStrategic, CycleTactical} {
		since, ok := m.since[c]
		if !ok || now.Sub(since) < m.gracePeriod {
			return false
		}
	}
	return true
}

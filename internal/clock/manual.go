package clock

import (
	"sync"
	"time"
)

// Manual is a Scheduler whose time only moves when Advance is called.
// Due callbacks fire in deadline order; callbacks sharing a deadline fire in
// the order they were scheduled. Callbacks run on the goroutine calling Advance
// and may schedule further callbacks, which fire within the same Advance if due.
type Manual struct {
	mu      sync.Mutex
	now     time.Duration
	seq     uint64
	pending []*manualTimer
}

type manualTimer struct {
	m   *Manual
	at  time.Duration
	seq uint64
	f   func()
}

// NewManual returns a Manual scheduler at elapsed time zero.
func NewManual() *Manual { return &Manual{} }

// AfterFunc schedules f at now+d.
func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTimer{m: m, at: m.now + d, seq: m.seq, f: f}
	m.pending = append(m.pending, t)
	return t
}

// Stop removes the timer if it has not fired yet.
func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	for i, p := range t.m.pending {
		if p == t {
			t.m.pending = append(t.m.pending[:i], t.m.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Advance moves time forward by d, firing every callback that becomes due.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := -1
		for i, p := range m.pending {
			if p.at > target {
				continue
			}
			if next < 0 || p.at < m.pending[next].at ||
				(p.at == m.pending[next].at && p.seq < m.pending[next].seq) {
				next = i
			}
		}
		if next < 0 {
			m.now = target
			m.mu.Unlock()
			return
		}
		t := m.pending[next]
		m.pending = append(m.pending[:next], m.pending[next+1:]...)
		m.now = t.at
		m.mu.Unlock()

		t.f()
	}
}

// Elapsed reports how much time has passed since NewManual.
func (m *Manual) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending reports the number of callbacks that have not fired or been stopped.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

package concurrency

import (
	"sync/atomic"
	"time"
)

// LoadMeter measures operations per window without locking. Each window's
// count is flushed into the last-window rate when the first operation of
// the next window arrives.
type LoadMeter struct {
	window time.Duration
	now    func() time.Time

	start atomic.Int64 // unix nanos of the current window
	count atomic.Int64
	last  atomic.Int64
}

// NewLoadMeter returns a meter over window.
func NewLoadMeter(window time.Duration) *LoadMeter {
	return newLoadMeter(window, time.Now)
}

func newLoadMeter(window time.Duration, now func() time.Time) *LoadMeter {
	if window <= 0 {
		window = time.Second
	}
	m := &LoadMeter{window: window, now: now}
	m.start.Store(now().UnixNano())
	return m
}

// Record counts n operations.
func (m *LoadMeter) Record(n int64) {
	now := m.now().UnixNano()
	start := m.start.Load()
	if elapsed := now - start; elapsed >= int64(m.window) && m.start.CompareAndSwap(start, now) {
		m.last.Store(m.scale(m.count.Swap(0), elapsed))
	}
	m.count.Add(n)
}

// Rate returns the operations per window: the larger of the last full
// window and the current partial one, or the current count scaled to the
// window once the window has lapsed without a flush.
func (m *LoadMeter) Rate() int64 {
	elapsed := m.now().UnixNano() - m.start.Load()
	cur := m.count.Load()
	if elapsed < int64(m.window) {
		return max(m.last.Load(), cur)
	}
	return m.scale(cur, elapsed)
}

func (m *LoadMeter) scale(count, elapsed int64) int64 {
	if elapsed <= int64(m.window) {
		return count
	}
	return int64(float64(count) * float64(m.window) / float64(elapsed))
}

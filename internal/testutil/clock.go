package testutil

import (
	"sync"
	"time"
)

// FixedClock returns the same instant until it is moved.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock frozen at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{now: t}
}

// Now returns the frozen instant. Its method value fits any func() time.Time hook.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// SequenceSource is a deterministic stand-in for a random source.
//
// Intn cycles through the configured values (reduced modulo n). Without
// values it counts up from 0, so consecutive calls differ.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequenceSource struct {
	mu     sync.Mutex
	values []int
	calls  int
}

// NewSequenceSource creates a source returning values in order, then wrapping.
func NewSequenceSource(values ...int) *SequenceSource {
	return &SequenceSource{values: values}
}

// Intn returns the next value in [0, n).
func (s *SequenceSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.calls
	if len(s.values) > 0 {
		v = s.values[s.calls%len(s.values)]
	}
	s.calls++
	if n <= 0 {
		return 0
	}
	v %= n
	if v < 0 {
		v += n
	}
	return v
}

// Calls returns how many values were drawn.
func (s *SequenceSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Reset rewinds the source. The next Intn returns the first value again.
func (s *SequenceSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = 0
}

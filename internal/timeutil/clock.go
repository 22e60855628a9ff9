// Package timeutil provides the monotonic clock source consumed by the
// session loop, plus a deterministic fake for tests.
package timeutil

import (
	"sync"
	"time"
)

// Clock is a monotonic time source. Readings are strictly non-decreasing
// and free of wall-clock discontinuities; every duration measurement in a
// session is derived from it.
type Clock interface {
	Now() time.Time
}

// System reads the process monotonic clock via time.Now. Go time.Time
// values carry a monotonic component, so subtraction between readings is
// immune to wall-clock adjustment.
type System struct{}

// Now returns the current reading.
func (System) Now() time.Time {
	return time.Now()
}

// Fake is a manually advanced clock for tests.
//
// Unlike System, Fake can be positioned exactly on phase boundaries, which
// makes timeline assertions deterministic.
//
// Thread-safety: all methods are safe for concurrent use via internal
// mutex, though test usage is typically single-goroutine.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake creates a fake clock positioned at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the current position without advancing.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d and returns the new position.
// Panics on negative d: a fake that regresses would mask exactly the
// clock-source bugs the engine's regression check exists to catch.
func (f *Fake) Advance(d time.Duration) time.Time {
	if d < 0 {
		panic("timeutil: Fake.Advance called with negative duration")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	return f.now
}

// Set positions the clock at an absolute time. Intended for test setup
// only; Set does not enforce monotonicity.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

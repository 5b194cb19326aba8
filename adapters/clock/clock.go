// Package clock provides Clock implementations.
package clock

import (
	"sync/atomic"
	"time"

	"github.com/limitgate/limitgate/ports"
)

// Real returns the actual current time.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time {
	return time.Now()
}

var _ ports.Clock = Real{}

// Fake is a controllable clock for tests. Safe for concurrent use.
type Fake struct {
	t atomic.Pointer[time.Time]
}

// NewFake creates a fake clock set to the given time.
func NewFake(t time.Time) *Fake {
	f := &Fake{}
	f.t.Store(&t)
	return f
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	return *f.t.Load()
}

// Set sets the fake current time.
func (f *Fake) Set(t time.Time) {
	f.t.Store(&t)
}

// Advance moves the fake time forward by duration d.
func (f *Fake) Advance(d time.Duration) {
	for {
		old := f.t.Load()
		next := old.Add(d)
		if f.t.CompareAndSwap(old, &next) {
			return
		}
	}
}

var _ ports.Clock = (*Fake)(nil)

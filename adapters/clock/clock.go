// Package clock implements the Clock port.
package clock

import (
	"sync/atomic"
	"time"
)

// Real reads the system clock.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time {
	return time.Now()
}

// Fixed starts at a base instant and steps forward a fixed interval on
// every read, so elapsed times measured against it are deterministic.
type Fixed struct {
	base  time.Time
	step  time.Duration
	reads atomic.Int64
}

// NewFixed creates a stepping clock.
func NewFixed(base time.Time, step time.Duration) *Fixed {
	return &Fixed{base: base, step: step}
}

// Now returns base plus one step per prior read.
func (f *Fixed) Now() time.Time {
	n := f.reads.Add(1) - 1
	return f.base.Add(time.Duration(n) * f.step)
}

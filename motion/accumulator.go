// Package motion merges relative pointer motion from several producers and
// turns it into rate-limited synthetic move events.
package motion

import "sync"

// Delta is relative pointer motion since the last drain.
type Delta struct {
	DX, DY float64
}

// IsZero reports whether both axes are exactly zero.
func (d Delta) IsZero() bool { return d.DX == 0 && d.DY == 0 }

// Accumulator is a running sum of pending motion written by two producers
// (raw input and the assist channel) and drained by the dispatch tick.
//
// Both axes of an add land in the same drain: adds and Drain share one
// short critical section.
type Accumulator struct {
	mu     sync.Mutex
	raw    Delta
	assist Delta
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator { return &Accumulator{} }

// AddRaw adds motion reported by the raw pointer source.
func (a *Accumulator) AddRaw(dx, dy float64) {
	a.mu.Lock()
	a.raw.DX += dx
	a.raw.DY += dy
	a.mu.Unlock()
}

// AddAssist adds motion received over the assist channel.
func (a *Accumulator) AddAssist(dx, dy float64) {
	a.mu.Lock()
	a.assist.DX += dx
	a.assist.DY += dy
	a.mu.Unlock()
}

// Drain returns the sum of both accumulators and resets them to zero.
func (a *Accumulator) Drain() Delta {
	a.mu.Lock()
	d := a.raw.add(a.assist)
	a.raw, a.assist = Delta{}, Delta{}
	a.mu.Unlock()
	return d
}

// Reset discards any pending motion.
func (a *Accumulator) Reset() { _ = a.Drain() }

// Pending reports the current sum without draining it.
func (a *Accumulator) Pending() Delta {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.raw.add(a.assist)
}

func (d Delta) add(o Delta) Delta { return Delta{DX: d.DX + o.DX, DY: d.DY + o.DY} }

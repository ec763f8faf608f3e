// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time so that TTL expiry, restart backoff, and
// chaos-injection latency can be driven deterministically in tests instead
// of relying on real sleeps.
package clock

import "time"

// Clock is implemented by Real (production) and Fake (tests). Any kernel
// code that would otherwise call time.Now, time.After, time.AfterFunc,
// time.NewTicker, or time.Sleep directly should instead take a Clock.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	AfterFunc(d time.Duration, f func()) *Timer
	NewTicker(d time.Duration) *Ticker
	Sleep(d time.Duration)
}

// Ticker mirrors time.Ticker behind the Clock interface.
type Ticker struct {
	C <-chan time.Time

	stopFunc  func()
	resetFunc func(time.Duration)
}

// Stop releases the ticker. No further ticks are sent on C.
func (t *Ticker) Stop() { t.stopFunc() }

// Reset restarts the tick cycle at the new interval.
func (t *Ticker) Reset(d time.Duration) { t.resetFunc(d) }

// Timer mirrors time.Timer behind the Clock interface. C is nil for
// timers created via AfterFunc.
type Timer struct {
	C <-chan time.Time

	stopFunc  func() bool
	resetFunc func(time.Duration) bool
}

// Stop prevents the Timer from firing. Returns false if it already fired
// or was already stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Reset reschedules the Timer to fire after d.
func (t *Timer) Reset(d time.Duration) bool { return t.resetFunc(d) }

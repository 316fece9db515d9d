package service

import (
	"sync/atomic"
	"time"

	"github.com/juju/clock"
)

// Delays are the simulated round-trip times of the service operations.
// A zero delay makes the operation settle immediately.
type Delays struct {
	Auth   time.Duration // login, signup, rename
	Create time.Duration // add book, add review
	Update time.Duration // status and rating changes
	Search time.Duration // add-book lookup
}

// DefaultDelays mirrors the latency the front end was designed against.
func DefaultDelays() Delays {
	return Delays{
		Auth:   500 * time.Millisecond,
		Create: 500 * time.Millisecond,
		Update: 300 * time.Millisecond,
		Search: time.Second,
	}
}

// latency simulates a slow backend and tracks how many operations are in flight.
//
// The wait ignores context cancellation: once an operation has started it
// always runs to completion and applies its effect. Mutations pass
// context.WithoutCancel to the writes that follow the wait for the same
// reason.
type latency struct {
	clock    clock.Clock
	inflight atomic.Int32
}

// begin marks an operation in flight. Call the returned func when it settles.
func (l *latency) begin() func() {
	l.inflight.Add(1)
	return func() { l.inflight.Add(-1) }
}

// wait blocks for d on the injected clock.
func (l *latency) wait(d time.Duration) {
	if d <= 0 {
		return
	}
	<-l.clock.After(d)
}

// loading reports whether any operation is in flight.
func (l *latency) loading() bool {
	return l.inflight.Load() > 0
}

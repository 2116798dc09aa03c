// Package scheduler implements the deferred-callback, cancellable-event
// facility (component C1) that the replication coordinator uses to arm
// heartbeats and the election timer. It is a thin layer over
// github.com/juju/clock so the whole coordinator can be driven by a
// testclock.Clock in tests and clock.WallClock in production.
package scheduler

import (
	"sync"
	"time"

	"github.com/juju/clock"
)

// EventHandle lets a caller cancel a scheduled callback before it fires.
// Cancelling after the callback has started running has no effect; the
// scheduler never interrupts a running callback.
type EventHandle struct {
	s  *Scheduler
	id uint64
}

// Cancel prevents the event from firing if it has not already done so.
// Safe to call more than once, safe to call after the event has fired, and
// safe to call on the zero Handle (e.g. a field that was never armed).
func (h EventHandle) Cancel() {
	if h.s == nil {
		return
	}
	h.s.cancel(h.id)
}

type scheduledEvent struct {
	cancelled bool
	timer     clock.Timer
}

// Scheduler arms and cancels deferred callbacks against a single clock.
// All bookkeeping is protected by an internal mutex; callback execution
// happens on goroutines spawned by the underlying clock implementation, so
// callbacks must do their own handoff onto the coordinator's executor
// (spec §5) rather than mutate shared state directly.
type Scheduler struct {
	clock clock.Clock

	mu     sync.Mutex
	nextID uint64
	events map[uint64]*scheduledEvent
}

// New creates a Scheduler driven by clk.
func New(clk clock.Clock) *Scheduler {
	return &Scheduler{
		clock:  clk,
		events: make(map[uint64]*scheduledEvent),
	}
}

// Now returns the scheduler's current time.
func (s *Scheduler) Now() time.Time { return s.clock.Now() }

// Clock returns the underlying clock.Clock, for collaborators (e.g.
// github.com/juju/retry's CallArgs.Clock) that need the raw interface
// rather than the scheduler's cancellable-event wrapper.
func (s *Scheduler) Clock() clock.Clock { return s.clock }

// At arms fn to run at deadline (fires immediately if deadline is not
// after Now()). Returns a handle that can cancel the callback.
func (s *Scheduler) At(deadline time.Time, fn func()) EventHandle {
	return s.After(deadline.Sub(s.clock.Now()), fn)
}

// After arms fn to run once d has elapsed.
func (s *Scheduler) After(d time.Duration, fn func()) EventHandle {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	ev := &scheduledEvent{}
	s.events[id] = ev
	s.mu.Unlock()

	ev.timer = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		cancelled := ev.cancelled
		delete(s.events, id)
		s.mu.Unlock()
		if !cancelled {
			fn()
		}
	})

	return EventHandle{s: s, id: id}
}

func (s *Scheduler) cancel(id uint64) {
	s.mu.Lock()
	ev, ok := s.events[id]
	if ok {
		ev.cancelled = true
		delete(s.events, id)
	}
	s.mu.Unlock()
	if ok && ev.timer != nil {
		ev.timer.Stop()
	}
}

// Pending reports how many callbacks are currently armed, for tests.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

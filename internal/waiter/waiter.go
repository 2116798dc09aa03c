// Package waiter implements component C7: the registry of sleeping
// operations blocked on a write-concern or read-concern predicate (spec
// §3 Waiter, §4.6, §4.7, §5 Cancellation).
package waiter

import (
	"sync"
	"time"

	"github.com/jujuclone/replcoord/internal/rcerrors"
	"github.com/jujuclone/replcoord/internal/scheduler"
)

// Predicate reports whether a waiter's wake condition currently holds. It
// is evaluated by Register and on every Reevaluate call; the caller supplies
// it pre-bound to whatever OpTime/write-concern/read-concern it is
// waiting on, keeping this package ignorant of C5/C6's internals. A
// non-nil returned error means the wait can never succeed (e.g. a
// reconfig made a numeric write concern unsatisfiable, spec §4.2/§4.6)
// and the waiter wakes immediately with that error regardless of the
// bool.
type Predicate func() (bool, error)

// Handle is returned by Register; callers read Done() for the outcome and
// may call Cancel to give up early (used internally by deadline/shutdown
// paths, but also available to callers that abandon a wait).
type Handle struct {
	id uint64
	r  *Registry
	ch chan error
}

// Done blocks until the waiter wakes, returning nil (OK) or the error it
// woke with.
func (h Handle) Done() <-chan error { return h.ch }

// Cancel wakes the waiter immediately with rcerrors.Interrupted if it has
// not already resolved.
func (h Handle) Cancel() {
	if h.r == nil {
		// Resolved inside Register; there is nothing left to cancel.
		return
	}
	h.r.resolve(h.id, rcerrors.Interrupted)
}

type entry struct {
	opID      int64
	predicate Predicate
	ch        chan error
	resolved  bool
	timeout   scheduler.EventHandle
	// category distinguishes write-concern waiters (cancelled on stepdown
	// with NotMaster) from read-concern waiters (spec §5: "Stepdown
	// cancels majority/number-of-nodes write-concern waiters with
	// NotMaster but not read-concern waiters").
	category Category
}

// Category marks what kind of waiter this is, used to decide which
// cluster-wide Notify calls apply to it (spec §5).
type Category int

const (
	WriteConcernWaiter Category = iota
	ReadConcernWaiter
)

// Registry holds every currently-blocked waiter. All methods must be
// called from the coordinator's single-threaded executor (spec §5); the
// channel returned by Register is the only thing a blocked goroutine
// touches concurrently.
type Registry struct {
	mu      sync.Mutex
	sched   *scheduler.Scheduler
	nextID  uint64
	waiters map[uint64]*entry
}

// New creates an empty Registry driven by sched for deadline enforcement.
func New(sched *scheduler.Scheduler) *Registry {
	return &Registry{sched: sched, waiters: make(map[uint64]*entry)}
}

// Register adds a new waiter. If predicate() already holds (or reports it
// can never hold), it resolves immediately and no entry is kept.
// Otherwise it arms a timeout (if deadline is non-zero) that resolves
// with timeoutErr.
func (r *Registry) Register(opID int64, category Category, predicate Predicate, deadline time.Time, timeoutErr error) Handle {
	r.mu.Lock()
	if ok, err := predicate(); err != nil || ok {
		r.mu.Unlock()
		ch := make(chan error, 1)
		ch <- err
		return Handle{ch: ch}
	}

	id := r.nextID
	r.nextID++
	e := &entry{opID: opID, predicate: predicate, ch: make(chan error, 1), category: category}
	r.waiters[id] = e
	r.mu.Unlock()

	if !deadline.IsZero() {
		e.timeout = r.sched.At(deadline, func() {
			r.resolve(id, timeoutErr)
		})
	}

	return Handle{id: id, r: r, ch: e.ch}
}

// resolve wakes waiter id with err, if it has not already resolved.
func (r *Registry) resolve(id uint64, err error) {
	r.mu.Lock()
	e, ok := r.waiters[id]
	if !ok || e.resolved {
		r.mu.Unlock()
		return
	}
	e.resolved = true
	delete(r.waiters, id)
	r.mu.Unlock()

	if e.timeout != (scheduler.EventHandle{}) {
		e.timeout.Cancel()
	}
	e.ch <- err
}

// Reevaluate re-checks every registered waiter's predicate and wakes any
// that now hold (nil result) or have become permanently unsatisfiable
// (the predicate's error result, e.g. CannotSatisfyWriteConcern after a
// reconfig, spec §4.2). Called after any OpTime advance, config change,
// or other event that could affect a pending wait (spec §5: "A waiter
// registered before event E that transitions state will observe post-E
// state on wake").
func (r *Registry) Reevaluate() {
	for _, id := range r.snapshotIDs() {
		r.mu.Lock()
		e, ok := r.waiters[id]
		r.mu.Unlock()
		if !ok {
			continue
		}
		if ok, err := e.predicate(); err != nil {
			r.resolve(id, err)
		} else if ok {
			r.resolve(id, nil)
		}
	}
}

func (r *Registry) snapshotIDs() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uint64, 0, len(r.waiters))
	for id := range r.waiters {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown cancels every waiter with ShutdownInProgress (spec §5).
func (r *Registry) Shutdown() {
	for _, id := range r.snapshotIDs() {
		r.resolve(id, rcerrors.ShutdownInProgress)
	}
}

// Interrupt cancels every waiter registered for opID with Interrupted
// (spec §5).
func (r *Registry) Interrupt(opID int64) {
	for _, id := range r.idsForOp(opID) {
		r.resolve(id, rcerrors.Interrupted)
	}
}

func (r *Registry) idsForOp(opID int64) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uint64
	for id, e := range r.waiters {
		if e.opID == opID {
			ids = append(ids, id)
		}
	}
	return ids
}

// NotifyStepDown wakes only write-concern waiters with NotMaster, leaving
// read-concern waiters blocked until their own predicate holds (spec §5,
// §4.5: "wake all waiters with NotMaster (except reads...)").
func (r *Registry) NotifyStepDown() {
	for _, id := range r.idsForCategory(WriteConcernWaiter) {
		r.resolve(id, rcerrors.NotMaster)
	}
}

func (r *Registry) idsForCategory(cat Category) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uint64
	for id, e := range r.waiters {
		if e.category == cat {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len reports how many waiters are currently blocked, for tests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters)
}

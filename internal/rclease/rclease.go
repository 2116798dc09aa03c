// Package rclease tracks the rollback-ID counter (spec §4.11) and the
// election-generation token used to fence stale vote-requester goroutines
// (SPEC_FULL.md §4: generalizing "cancel the vote requester" from spec
// §4.4 into a concrete mechanism).
package rclease

import "sync/atomic"

// Tracker owns the monotone rollback ID and election generation. Both
// counters only move forward and only reset on full process restart
// (a fresh Tracker), per spec §4.11.
type Tracker struct {
	rbid       int64
	generation int64
}

// New creates a Tracker with rbid and generation both starting at 0.
func New() *Tracker { return &Tracker{} }

// RBID returns the current rollback ID (processReplSetGetRBID, spec §4.11).
func (t *Tracker) RBID() int64 { return atomic.LoadInt64(&t.rbid) }

// IncrementRollbackID advances the rollback ID by exactly one, called
// once per rollback start (spec §4.11: "writable only via
// incrementRollbackID").
func (t *Tracker) IncrementRollbackID() int64 {
	return atomic.AddInt64(&t.rbid, 1)
}

// Generation is a fencing token bumped at the start of every election
// attempt and whenever the node enters Rollback. A vote
// requester goroutine captures the generation at spawn time and checks
// IsCurrent before acting on its result; a setFollowerMode(Rollback)
// during candidate/dry-run phases (spec §4.4) bumps the generation so the
// in-flight requester's result is discarded.
func (t *Tracker) Generation() int64 { return atomic.LoadInt64(&t.generation) }

// NewGeneration bumps and returns the new election generation, fencing
// any vote requester spawned under a prior generation.
func (t *Tracker) NewGeneration() int64 {
	return atomic.AddInt64(&t.generation, 1)
}

// IsCurrent reports whether gen is still the live election generation.
func (t *Tracker) IsCurrent(gen int64) bool {
	return atomic.LoadInt64(&t.generation) == gen
}

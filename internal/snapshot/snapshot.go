// Package snapshot implements component C6: an ordered set of
// (opTime, snapshotName) pairs and the "current committed snapshot"
// selection rule from spec §4.8.
package snapshot

import (
	"sort"

	"github.com/jujuclone/replcoord/internal/optime"
)

// Snapshot is an opaque named capture of storage-engine state at a
// specific OpTime (spec §3).
type Snapshot struct {
	OpTime optime.OpTime
	Name   int64
}

// Tracker maintains every known snapshot and the currently-committed one.
type Tracker struct {
	snapshots []Snapshot // kept sorted by OpTime then Name
	current   Snapshot
	nextName  int64
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{nextName: 1}
}

// ReserveSnapshotName returns a fresh monotone name; each reservation
// strictly exceeds every prior one (spec §4.8).
func (t *Tracker) ReserveSnapshotName() int64 {
	name := t.nextName
	t.nextName++
	return name
}

// Create records a new snapshot. If its OpTime is at or below the commit
// point, the current committed snapshot is recomputed immediately (spec
// §4.8: "Creating a new snapshot whose OpTime ≤ commit advances it
// immediately").
func (t *Tracker) Create(ot optime.OpTime, name int64, committed optime.OpTime) {
	t.insert(Snapshot{OpTime: ot, Name: name})
	if ot.Compare(committed) <= 0 {
		t.recompute(committed)
	}
}

func (t *Tracker) insert(s Snapshot) {
	i := sort.Search(len(t.snapshots), func(i int) bool {
		return !less(t.snapshots[i], s)
	})
	t.snapshots = append(t.snapshots, Snapshot{})
	copy(t.snapshots[i+1:], t.snapshots[i:])
	t.snapshots[i] = s
}

func less(a, b Snapshot) bool {
	if c := a.OpTime.Compare(b.OpTime); c != 0 {
		return c < 0
	}
	return a.Name < b.Name
}

// OnCommitPointAdvance must be called whenever the commit point advances,
// so the current committed snapshot can be recomputed.
func (t *Tracker) OnCommitPointAdvance(committed optime.OpTime) {
	t.recompute(committed)
}

// recompute selects, among all tracked snapshots whose OpTime <= committed,
// the one with the greatest OpTime, tie-broken by the greatest name (spec
// §4.8).
func (t *Tracker) recompute(committed optime.OpTime) {
	best := Snapshot{}
	found := false
	for _, s := range t.snapshots {
		if s.OpTime.Compare(committed) > 0 {
			continue
		}
		if !found || less(best, s) {
			best = s
			found = true
		}
	}
	if found {
		t.current = best
	} else {
		t.current = Snapshot{}
	}
}

// CurrentCommittedSnapshot returns the snapshot tracking determined the
// current committed snapshot to be.
func (t *Tracker) CurrentCommittedSnapshot() Snapshot { return t.current }

// DropAll resets the current committed snapshot to zero and forgets every
// tracked snapshot (spec §4.8: "dropAllSnapshots resets the current
// committed snapshot to zero").
func (t *Tracker) DropAll() {
	t.snapshots = nil
	t.current = Snapshot{}
}

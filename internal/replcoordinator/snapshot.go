package replcoordinator

import "github.com/jujuclone/replcoord/internal/optime"

// ReserveSnapshotName hands out a fresh monotone snapshot name for a
// caller about to take a storage-engine snapshot (spec §4.8). Each
// reservation strictly exceeds every prior one, including any taken
// concurrently by an in-flight majority write concern.
func (c *Coordinator) ReserveSnapshotName() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.ReserveSnapshotName()
}

// OnSnapshotCreate records a newly taken storage-engine snapshot (spec
// §4.8). If ot is at or below the current commit point, the current
// committed snapshot advances immediately and blocked waiters are
// reevaluated, since that can satisfy a pending majority write concern.
func (c *Coordinator) OnSnapshotCreate(ot optime.OpTime, name int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.Create(ot, name, c.ot.LastCommittedOpTime())
	c.waiters.Reevaluate()
}

// DropAllSnapshots resets the current committed snapshot to zero and
// forgets every tracked snapshot (spec §4.8), used when storage state is
// discarded wholesale, e.g. at the start of rollback.
func (c *Coordinator) DropAllSnapshots() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.DropAll()
	c.waiters.Reevaluate()
}

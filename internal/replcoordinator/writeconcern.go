package replcoordinator

import (
	"context"
	"time"

	"github.com/jujuclone/replcoord/internal/memberstate"
	"github.com/jujuclone/replcoord/internal/optime"
	"github.com/jujuclone/replcoord/internal/optimetracker"
	"github.com/jujuclone/replcoord/internal/rcerrors"
	"github.com/jujuclone/replcoord/internal/topology"
	"github.com/jujuclone/replcoord/internal/waiter"
)

// AwaitReplication implements spec §4.6: block the caller until target has
// been replicated and acknowledged per wc, or until timeout/ctx
// cancellation. A zero timeout means wait forever. Returns NotMaster when
// the local node isn't Primary, unless running in legacy master/slave
// mode, where majority trivially holds (master/slave has no voting
// members to poll).
func (c *Coordinator) AwaitReplication(ctx context.Context, target optime.OpTime, wc optimetracker.WriteConcern, timeout time.Duration) error {
	c.mu.Lock()
	if err := c.checkNotShutDown(); err != nil {
		c.mu.Unlock()
		return err
	}
	if !c.settings.MasterSlave && c.tc.ObservedState() != memberstate.Primary {
		c.mu.Unlock()
		return rcerrors.NotMaster
	}

	majorityMode := wc.Mode == "majority" && !c.settings.MasterSlave
	var reservedSnapshotName int64
	if majorityMode {
		// Reserve a snapshot name at call start (spec §4.6/§4.8): a
		// "majority" write concern is only satisfied once the currently
		// committed snapshot is at least as new as this reservation, not
		// merely once a majority of voters have applied target.
		reservedSnapshotName = c.snap.ReserveSnapshotName()
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = c.sched.Now().Add(timeout)
	}
	opID := c.nextOpID()
	predicate := func() (bool, error) {
		if c.settings.MasterSlave && wc.Mode == "majority" {
			return true, nil
		}
		ok, err := c.ot.Resolve(target, wc)
		if err != nil || !ok {
			return false, err
		}
		if majorityMode {
			snap := c.snap.CurrentCommittedSnapshot()
			if !snap.OpTime.GreaterOrEqual(target) || snap.Name < reservedSnapshotName {
				return false, nil
			}
		}
		return true, nil
	}
	handle := c.waiters.Register(opID, waiter.WriteConcernWaiter, predicate, deadline, rcerrors.WriteConcernFailed)
	c.mu.Unlock()

	select {
	case err := <-handle.Done():
		return err
	case <-ctx.Done():
		handle.Cancel()
		return ctx.Err()
	}
}

// WaitUntilOpTime implements spec §4.7: block until this node's own
// applied position reaches target under the given read-concern level.
// Majority reads additionally require target to be covered by the current
// committed snapshot (spec §4.8); Local reads only need the applied
// position itself. Returns NotAReplicaSet outside ReplSet mode, and
// returns immediately (didWait=true) when target is absent (the zero
// OpTime), since there is nothing to wait for.
func (c *Coordinator) WaitUntilOpTime(ctx context.Context, target optime.OpTime, level ReadConcernLevel, timeout time.Duration) error {
	c.mu.Lock()
	if err := c.checkNotShutDown(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.tc.Mode != topology.ModeReplSet {
		c.mu.Unlock()
		return rcerrors.NotAReplicaSet
	}
	if target.IsZero() {
		c.mu.Unlock()
		return nil
	}
	if level == ReadConcernMajority && !c.settings.ReadConcernMajorityEnabled {
		c.mu.Unlock()
		return rcerrors.ReadConcernMajorityNotEnabled
	}

	predicate := func() (bool, error) { return c.readConcernSatisfiedLocked(target, level), nil }

	var deadline time.Time
	if timeout > 0 {
		deadline = c.sched.Now().Add(timeout)
	}
	opID := c.nextOpID()
	handle := c.waiters.Register(opID, waiter.ReadConcernWaiter, predicate, deadline, rcerrors.ExceededTimeLimit)
	c.mu.Unlock()

	select {
	case err := <-handle.Done():
		return err
	case <-ctx.Done():
		handle.Cancel()
		return ctx.Err()
	}
}

// readConcernSatisfiedLocked evaluates whether target is visible under
// level. Safe to call with or without c.mu held, since it only reads
// fields that are themselves safe for concurrent reads once published
// through the waiter Reevaluate path (the coordinator never mutates ot's
// backing maps concurrently with a Reevaluate call).
func (c *Coordinator) readConcernSatisfiedLocked(target optime.OpTime, level ReadConcernLevel) bool {
	switch level {
	case ReadConcernMajority:
		snap := c.snap.CurrentCommittedSnapshot()
		return snap.OpTime.GreaterOrEqual(target)
	default:
		return c.ot.MyLastAppliedOpTime().GreaterOrEqual(target)
	}
}

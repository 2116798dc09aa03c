// Package replcoordinator implements component C8, the Replication
// Coordinator: the single locked façade that owns every other component
// (topology, optimetracker, snapshot, waiter, scheduler, netdispatch,
// rclease) and is the only thing client code calls. Every exported method
// takes the coordinator's mutex for its synchronous part, matching the
// single-threaded-executor model from spec §5; methods that block on a
// predicate release the lock before waiting on a waiter.Handle.
package replcoordinator

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/loggo/v2"

	"github.com/jujuclone/replcoord/internal/memberstate"
	"github.com/jujuclone/replcoord/internal/metrics"
	"github.com/jujuclone/replcoord/internal/netdispatch"
	"github.com/jujuclone/replcoord/internal/optime"
	"github.com/jujuclone/replcoord/internal/optimetracker"
	"github.com/jujuclone/replcoord/internal/pubsubhub"
	"github.com/jujuclone/replcoord/internal/rcerrors"
	"github.com/jujuclone/replcoord/internal/rclease"
	"github.com/jujuclone/replcoord/internal/rsconfig"
	"github.com/jujuclone/replcoord/internal/scheduler"
	"github.com/jujuclone/replcoord/internal/snapshot"
	"github.com/jujuclone/replcoord/internal/topology"
	"github.com/jujuclone/replcoord/internal/waiter"
)

var logger = loggo.GetLogger("replcoord.replcoordinator")

// Coordinator is the Replication Coordinator façade. Construct with New.
type Coordinator struct {
	mu sync.Mutex

	settings Settings
	persist  PersistenceHook
	dispatch *netdispatch.Dispatcher

	tc      *topology.Coordinator
	ot      *optimetracker.Tracker
	snap    *snapshot.Tracker
	waiters *waiter.Registry
	sched   *scheduler.Scheduler
	lease   *rclease.Tracker
	metrics *metrics.Collector
	hub     *pubsubhub.Hub

	opSeq      int64
	heartbeats map[rsconfig.MemberId]scheduler.EventHandle
	electionTO scheduler.EventHandle
	shutDown   bool

	// currentPrimaryIndex is this node's best current guess at which
	// config-order index is Primary, or -1 if unknown. It is set when this
	// node wins an election or a heartbeat reply reports a peer Primary at
	// term >= ours, and cleared to -1 on any term bump or reconfig (spec
	// §4.8/§6): a stale index is worse than no index, since IsMaster's
	// primary field feeds client driver routing.
	currentPrimaryIndex int
}

// New constructs a Coordinator in Startup state. metricsCollector and hub
// may be nil; persist may be nil if the caller has no durable backing
// store (tests).
func New(settings Settings, clk clock.Clock, dispatch *netdispatch.Dispatcher, persist PersistenceHook, metricsCollector *metrics.Collector, hub *pubsubhub.Hub) *Coordinator {
	sched := scheduler.New(clk)
	if hub == nil {
		hub = pubsubhub.New(nil)
	}
	return &Coordinator{
		settings:            settings,
		persist:             persist,
		dispatch:            dispatch,
		tc:                  topology.New(settings.SelfHost),
		ot:                  optimetracker.New(rsconfig.Config{}, 0),
		snap:                snapshot.New(),
		waiters:             waiter.New(sched),
		sched:               sched,
		lease:               rclease.New(),
		metrics:             metricsCollector,
		hub:                 hub,
		heartbeats:          make(map[rsconfig.MemberId]scheduler.EventHandle),
		currentPrimaryIndex: -1,
	}
}

// MemberState returns the externally observable member state (spec §4.1
// overlay rules applied).
func (c *Coordinator) MemberState() memberstate.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tc.ObservedState()
}

// CurrentTerm returns the current replication term.
func (c *Coordinator) CurrentTerm() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tc.Self.Term
}

// CurrentPrimaryIndex returns this node's best current guess at which
// config-order index is Primary, or -1 if unknown (spec §4.8/§6).
func (c *Coordinator) CurrentPrimaryIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentPrimaryIndex
}

// MyLastAppliedOpTime returns this node's own applied position.
func (c *Coordinator) MyLastAppliedOpTime() optime.OpTime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ot.MyLastAppliedOpTime()
}

// SetMyLastOpTime sets this node's applied position unconditionally (spec
// §4.5's setMyLastOpTime: may move backward, used on rollback).
func (c *Coordinator) SetMyLastOpTime(ot optime.OpTime) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ot.SetMyLastOpTime(ot)
	c.waiters.Reevaluate()
}

// SetMyLastOpTimeForward sets this node's applied position only if ot is
// strictly newer, then advances the commit point and reevaluates waiters
// (spec §4.8, §5).
func (c *Coordinator) SetMyLastOpTimeForward(ot optime.OpTime) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	advanced := c.ot.SetMyLastOpTimeForward(ot)
	if advanced {
		c.advanceCommitPointLocked(ot)
	}
	return advanced
}

// advanceCommitPointLocked recomputes the commit point from the tracked
// member positions (its argument is not used) and propagates it to the
// snapshot tracker and blocked waiters. Must be called with c.mu held.
func (c *Coordinator) advanceCommitPointLocked(_ optime.OpTime) {
	before := c.ot.LastCommittedOpTime()
	c.ot.AdvanceCommitPoint(c.ot.MajorityCommittableOpTime())
	after := c.ot.LastCommittedOpTime()
	if after.Compare(before) > 0 {
		c.snap.OnCommitPointAdvance(after)
		if c.metrics != nil {
			c.metrics.CommitOpTimeLag.Set(lagSeconds(c.ot.MyLastAppliedOpTime(), after))
		}
	}
	c.waiters.Reevaluate()
}

func lagSeconds(self, committed optime.OpTime) float64 {
	d := self.Timestamp.Seconds - committed.Timestamp.Seconds
	if d < 0 {
		d = 0
	}
	return float64(d)
}

// nextOpID hands out a fresh id for Register/Interrupt correlation.
func (c *Coordinator) nextOpID() int64 {
	c.opSeq++
	return c.opSeq
}

// Interrupt cancels every waiter registered under opID (spec §5).
func (c *Coordinator) Interrupt(opID int64) {
	c.waiters.Interrupt(opID)
}

// Shutdown wakes every blocked waiter with ShutdownInProgress and stops
// accepting new mutating calls (spec §5).
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	c.shutDown = true
	for _, h := range c.heartbeats {
		h.Cancel()
	}
	c.electionTO.Cancel()
	c.mu.Unlock()
	c.waiters.Shutdown()
}

func (c *Coordinator) checkNotShutDown() error {
	if c.shutDown {
		return rcerrors.ShutdownInProgress
	}
	return nil
}

// ProcessReplSetGetRBID returns the current rollback ID (spec §4.11).
func (c *Coordinator) ProcessReplSetGetRBID() int64 { return c.lease.RBID() }

// IncrementRollbackID bumps the rollback ID, called once at rollback start
// (spec §4.11).
func (c *Coordinator) IncrementRollbackID() int64 { return c.lease.IncrementRollbackID() }

// SetMaintenanceMode toggles the maintenance-mode counter (spec §4.1).
func (c *Coordinator) SetMaintenanceMode(active bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkNotShutDown(); err != nil {
		return err
	}
	before := c.tc.ObservedState()
	if err := c.tc.SetMaintenanceMode(active); err != nil {
		return err
	}
	c.publishStateChangeLocked(before)
	return nil
}

// SetFollowerMode drives a non-election follower-state transition (spec
// §4.1). Sticky rollback-exit rules live in the topology coordinator.
func (c *Coordinator) SetFollowerMode(target memberstate.State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkNotShutDown(); err != nil {
		return err
	}
	before := c.tc.ObservedState()
	changed, err := c.tc.SetFollowerMode(target)
	if err != nil {
		return err
	}
	if changed && target == memberstate.Rollback {
		// Fence any election attempt whose votes are still in flight so
		// finishElectionAttempt discards its result.
		c.lease.NewGeneration()
	}
	if changed {
		c.publishStateChangeLocked(before)
	}
	return nil
}

// UpdateTerm installs term if it is newer, kicking off an asynchronous
// stepdown if this node was Primary (spec §4.4). A term strictly greater
// than the current one always returns StaleTerm to the caller, even
// though the term itself is installed and the stepdown is already
// underway in the background: the caller's own view is stale regardless
// of how the transition resolves.
func (c *Coordinator) UpdateTerm(term int64) error {
	c.mu.Lock()
	before := c.tc.Self.Term
	stepDownRequired, err := c.tc.UpdateTerm(term)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if before == c.tc.Self.Term {
		c.mu.Unlock()
		return nil
	}
	if stepDownRequired {
		logger.Infof("stepping down: observed higher term %d", term)
	}
	c.currentPrimaryIndex = -1
	c.ot.SetCurrentTerm(c.tc.Self.Term)
	if c.metrics != nil {
		c.metrics.Term.Set(float64(c.tc.Self.Term))
	}
	c.hub.PublishNewTerm(c.tc.Self.Term)
	c.mu.Unlock()

	if stepDownRequired {
		go func() {
			_ = c.StepDown(context.Background(), true, 0, 10*time.Second)
		}()
	}
	return rcerrors.StaleTerm
}

func (c *Coordinator) publishStateChangeLocked(before memberstate.State) {
	after := c.tc.ObservedState()
	if before == after {
		return
	}
	c.hub.PublishMemberStateChanged(before, after)
	if c.metrics != nil {
		c.metrics.MemberState.WithLabelValues(c.settings.SelfHost, before.String()).Set(0)
		c.metrics.MemberState.WithLabelValues(c.settings.SelfHost, after.String()).Set(1)
	}
	c.waiters.Reevaluate()
}

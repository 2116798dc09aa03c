package replcoordinator

import (
	"context"
	"sync"
	"time"

	"github.com/jujuclone/replcoord/internal/memberstate"
	"github.com/jujuclone/replcoord/internal/netdispatch"
	"github.com/jujuclone/replcoord/internal/optime"
	"github.com/jujuclone/replcoord/internal/rcerrors"
	"github.com/jujuclone/replcoord/internal/waiter"
)

// VoteRequest/VoteResponse are the wire shapes for the dry-run and
// candidate phases of spec §4.4's election.
type VoteRequest struct {
	SetName     string
	Term        int64
	DryRun      bool
	CandidateID int64
}

type VoteResponse struct {
	Granted bool
	Reason  string
}

// attemptElection runs the dry-run then real-vote phases of spec §4.4. A
// generation token captured at the start fences the result: if
// setFollowerMode moves this node out of candidacy (e.g. into Rollback)
// while votes are in flight, the stale result is discarded on return.
func (c *Coordinator) attemptElection() {
	c.mu.Lock()
	now := c.sched.Now()
	if !c.tc.CanStandForElection(now) {
		c.mu.Unlock()
		return
	}
	generation := c.lease.NewGeneration()
	term := c.tc.Self.Term + 1
	hosts := c.tc.OtherMemberHosts()
	setName := c.tc.Self.Config.Name
	c.mu.Unlock()

	if len(hosts) == 0 {
		c.finishElectionAttempt(generation, true)
		return
	}

	if !c.requestVotes(setName, term, true, hosts) {
		c.finishElectionAttempt(generation, false)
		return
	}
	won := c.requestVotes(setName, term, false, hosts)
	c.finishElectionAttempt(generation, won)
}

// requestVotes dispatches a vote request to every host and reports whether
// a majority (including this node's own vote) granted it.
func (c *Coordinator) requestVotes(setName string, term int64, dryRun bool, hosts []string) bool {
	granted := 1 // self always votes for itself
	needed := (len(hosts)+1)/2 + 1
	for _, host := range hosts {
		resp := c.dispatch.Send(context.Background(), netdispatch.Command{
			Target: host,
			Name:   "replSetRequestVotes",
			Body:   VoteRequest{SetName: setName, Term: term, DryRun: dryRun},
		})
		if !resp.OK {
			continue
		}
		if vr, ok := resp.Body.(VoteResponse); ok && vr.Granted {
			granted++
		}
	}
	return granted >= needed
}

// finishElectionAttempt installs the election outcome if this attempt's
// generation is still current, and records the metrics/pubsub either way.
func (c *Coordinator) finishElectionAttempt(generation int64, won bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := "lost"
	if !c.lease.IsCurrent(generation) {
		result = "superseded"
	} else if won {
		result = "won"
		if err := c.tc.PrepareElectionWin(c.sched.Now()); err == nil {
			c.ot.SetCurrentTerm(c.tc.Self.Term)
			c.currentPrimaryIndex = c.tc.Self.SelfIndex
			c.electionTO.Cancel()
			c.hub.PublishElectionWon()
			c.hub.PublishNewTerm(c.tc.Self.Term)
		} else {
			result = "lost"
		}
	}
	if c.metrics != nil {
		c.metrics.ElectionsTotal.WithLabelValues(result).Inc()
		c.metrics.Term.Set(float64(c.tc.Self.Term))
	}
}

// SignalDrainComplete reports that the no-op this node wrote on election
// has been fully applied, clearing DrainPending (spec §4.4).
func (c *Coordinator) SignalDrainComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tc.SignalDrainComplete()
}

// StepDown implements spec §4.5: wait (up to waitTimeout) for a caught-up
// secondary unless force is set, then transition Primary -> Secondary and
// wake write-concern waiters with NotMaster.
func (c *Coordinator) StepDown(ctx context.Context, force bool, waitTimeout, stepDownDuration time.Duration) error {
	c.mu.Lock()
	if c.tc.ObservedState() != memberstate.Primary {
		c.mu.Unlock()
		return rcerrors.NotMaster
	}

	if !force && !c.hasCaughtUpSecondaryLocked(c.ot.MyLastAppliedOpTime()) {
		// Entering catch-up: cancel every pending heartbeat and fire a fresh
		// round immediately instead of waiting out the rest of the normal
		// cadence, so the predicate above is re-checked as soon as possible
		// (spec §4.5: "On entering catch-up, cancel any pending heartbeats
		// and schedule a fresh round immediately").
		now := c.sched.Now()
		for id := range c.heartbeats {
			c.armHeartbeatLocked(id, now)
		}
		deadline := now.Add(waitTimeout)
		opID := c.nextOpID()
		handle := c.waiters.Register(opID, waiter.WriteConcernWaiter, func() (bool, error) {
			return c.hasCaughtUpSecondaryLocked(c.ot.MyLastAppliedOpTime()), nil
		}, deadline, rcerrors.ExceededTimeLimit)
		c.mu.Unlock()

		select {
		case err := <-handle.Done():
			if err != nil {
				return err
			}
		case <-ctx.Done():
			handle.Cancel()
			return ctx.Err()
		}
		c.mu.Lock()
	}

	before := c.tc.ObservedState()
	err := c.tc.StepDown(c.sched.Now(), stepDownDuration)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.publishStateChangeLocked(before)
	c.hub.PublishSteppedDown()
	c.mu.Unlock()

	c.waiters.NotifyStepDown()
	return nil
}

// StepDownHandle is the non-blocking stepDown variant from spec §4.5: the
// caller gets back a cancellable event instead of blocking its own
// goroutine on the catch-up wait.
type StepDownHandle struct {
	done   chan struct{}
	cancel context.CancelFunc
	mu     sync.Mutex
	err    error
}

// Done returns a channel that closes once the stepdown attempt has
// resolved one way or another; Err() is then safe to read.
func (h *StepDownHandle) Done() <-chan struct{} { return h.done }

// Cancel requests early termination of a still-pending stepdown attempt,
// standing in for the design's "operation cancelled by id" interrupt path.
func (h *StepDownHandle) Cancel() { h.cancel() }

// Err returns the resolved error, or nil on success. Valid only after Done
// has closed.
func (h *StepDownHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// StepDownNonBlocking starts a stepDown attempt without blocking the
// caller, returning a handle whose Done channel fires on completion (spec
// §4.5's "(lockHandle, eventHandle, resultSlot)" non-blocking variant).
func (c *Coordinator) StepDownNonBlocking(force bool, waitTimeout, stepDownDuration time.Duration) *StepDownHandle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &StepDownHandle{done: make(chan struct{}), cancel: cancel}
	go func() {
		err := c.StepDown(ctx, force, waitTimeout, stepDownDuration)
		h.mu.Lock()
		h.err = err
		h.mu.Unlock()
		close(h.done)
	}()
	return h
}

// hasCaughtUpSecondaryLocked reports whether at least one electable
// secondary has applied an OpTime at or past myOpTime, the catch-up
// condition spec §4.5 requires before a non-forced stepdown proceeds.
// Must be called with c.mu held.
func (c *Coordinator) hasCaughtUpSecondaryLocked(myOpTime optime.OpTime) bool {
	for id, remote := range c.tc.Remotes {
		member, ok := c.tc.Self.Config.FindMember(id)
		if !ok || !member.Electable() {
			continue
		}
		if remote.IsUp && remote.LastAppliedOpTime.GreaterOrEqual(myOpTime) {
			return true
		}
	}
	return false
}

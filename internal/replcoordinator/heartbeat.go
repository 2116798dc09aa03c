package replcoordinator

import (
	"context"
	"time"

	"github.com/jujuclone/replcoord/internal/memberstate"
	"github.com/jujuclone/replcoord/internal/netdispatch"
	"github.com/jujuclone/replcoord/internal/optime"
	"github.com/jujuclone/replcoord/internal/optimetracker"
	"github.com/jujuclone/replcoord/internal/rsconfig"
	"github.com/jujuclone/replcoord/internal/topology"
)

// applyActionsLocked carries out every Action the topology coordinator
// returned. Must be called with c.mu held; it never itself calls back
// into a method that takes c.mu (spec §5: TC produces actions, RC performs
// them, never the reverse).
func (c *Coordinator) applyActionsLocked(actions []topology.Action) {
	for _, a := range actions {
		switch a.Kind {
		case topology.ActionScheduleHeartbeat:
			c.armHeartbeatLocked(a.MemberId, a.At)
		case topology.ActionRescheduleElectionTimeout:
			c.armElectionTimeoutLocked(a.At)
		case topology.ActionClearElectionTimeout:
			c.electionTO.Cancel()
		case topology.ActionStartElection:
			c.scheduleElectionAttemptLocked()
		case topology.ActionStepDown:
			// Carried out by the caller of UpdateTerm; nothing to do here.
		case topology.ActionInstallConfig, topology.ActionNone:
		}
	}
}

func (c *Coordinator) armHeartbeatLocked(id rsconfig.MemberId, at time.Time) {
	if h, ok := c.heartbeats[id]; ok {
		h.Cancel()
	}
	c.heartbeats[id] = c.sched.At(at, func() { c.sendHeartbeat(id) })
}

func (c *Coordinator) armElectionTimeoutLocked(at time.Time) {
	c.electionTO.Cancel()
	c.electionTO = c.sched.At(at, func() { c.onElectionTimeout() })
}

func (c *Coordinator) scheduleElectionAttemptLocked() {
	c.sched.After(0, func() { c.attemptElection() })
}

func (c *Coordinator) onElectionTimeout() {
	c.mu.Lock()
	if !c.tc.CanStandForElection(c.sched.Now()) {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.attemptElection()
}

// sendHeartbeat dispatches a replSetHeartbeat to member id and feeds the
// reply back through the topology coordinator, mirroring spec §4.3. Called
// from a scheduler callback goroutine (spec §5: callbacks hand off to the
// executor via the coordinator's own locking, never mutate state inline).
func (c *Coordinator) sendHeartbeat(id rsconfig.MemberId) {
	c.mu.Lock()
	if c.shutDown {
		c.mu.Unlock()
		return
	}
	member, ok := c.tc.Self.Config.FindMember(id)
	cfg := c.tc.Self.Config
	selfHost := c.settings.SelfHost
	selfID := c.tc.SelfMemberId()
	heartbeatIntervalMillis := cfg.Settings.HeartbeatIntervalMillis
	electionTimeoutMillis := cfg.Settings.ElectionTimeoutMillis
	c.mu.Unlock()
	if !ok {
		return
	}

	req := HeartbeatRequest{
		SetName:         cfg.Name,
		ProtocolVersion: cfg.ProtocolVersion,
		ConfigVersion:   cfg.Version,
		SenderHost:      selfHost,
		SenderId:        selfID,
	}
	resp := c.dispatch.Send(context.Background(), netdispatch.Command{
		Target: member.Host,
		Name:   "replSetHeartbeat",
		Body:   req,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shutDown {
		return
	}
	if !resp.OK {
		c.tc.MarkDown(id)
		c.armHeartbeatLocked(id, c.sched.Now().Add(time.Duration(heartbeatIntervalMillis)*time.Millisecond))
		return
	}
	hb, ok := resp.Body.(HeartbeatResponse)
	if !ok {
		c.tc.MarkDown(id)
		return
	}
	peerState := memberstate.State(hb.State)
	if peerState == memberstate.Primary && hb.Term >= c.tc.Self.Term {
		c.currentPrimaryIndex = c.tc.MemberIndex(id)
	}
	actions := c.tc.ProcessHeartbeatResponse(
		id,
		c.sched.Now(),
		heartbeatIntervalMillis,
		electionTimeoutMillis,
		peerState,
		hb.Term,
		hb.OpTime,
		hb.ConfigVersion,
		hb.ElectionTime,
	)
	c.applyActionsLocked(actions)
}

// ProcessHeartbeatRequest answers an inbound replSetHeartbeat (the server
// side of spec §4.3/§6), used by the netdispatch Responder a caller wires
// in for test/production transport.
func (c *Coordinator) ProcessHeartbeatRequest(req HeartbeatRequest) HeartbeatResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	cfg := c.tc.Self.Config
	if cfg.Name == "" {
		return HeartbeatResponse{OK: false, RefusalReason: "Does not have a valid replica set config"}
	}
	if req.SetName != cfg.Name {
		return HeartbeatResponse{OK: false, RefusalReason: "replica set name mismatch"}
	}
	if _, ok := cfg.FindMember(req.SenderId); !ok && req.SenderHost != "" {
		if _, ok := cfg.FindSelf(req.SenderHost); !ok {
			logger.Warningf("heartbeat from member not in our config: %s", req.SenderHost)
		}
	}
	return HeartbeatResponse{
		OK:            true,
		SetName:       cfg.Name,
		State:         int(c.tc.ObservedState()),
		ConfigVersion: cfg.Version,
		Term:          c.tc.Self.Term,
		OpTime:        c.ot.MyLastAppliedOpTime(),
	}
}

// ApplyPositionUpdate implements spec §4.10's replSetUpdatePosition
// handler: applies every entry, advances the commit point, and
// reevaluates blocked waiters.
func (c *Coordinator) ApplyPositionUpdate(entries []PositionEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkNotShutDown(); err != nil {
		return err
	}
	var firstErr error
	for _, e := range entries {
		if err := c.ot.ApplyPositionUpdate(e.ConfigVersion, e.MemberId, e.OpTime); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.advanceCommitPointLocked(optime.Zero)
	return firstErr
}

// PrepareUpdatePositionCommand builds the outbound replSetUpdatePosition
// payload this node should forward upstream (spec §4.10): this node's own
// position plus every downstream position it has observed.
func (c *Coordinator) PrepareUpdatePositionCommand() UpdatePositionCommand {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmd := UpdatePositionCommand{}
	for _, m := range c.tc.Self.Config.Members {
		cmd.OpTimes = append(cmd.OpTimes, PositionEntry{
			ConfigVersion: c.tc.Self.Config.Version,
			MemberId:      m.Id,
			OpTime:        c.ot.AppliedOpTime(m.Id),
		})
	}
	return cmd
}

// ApplyReplicaSetMetadata installs a trusted peer's commit point and term
// (spec §4.8/§6), clearing any notion of "current primary" when the term
// changes.
func (c *Coordinator) ApplyReplicaSetMetadata(meta optimetracker.ReplicaSetMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	before := c.ot.LastCommittedOpTime()
	if c.ot.ApplyMetadata(meta) {
		stepDownRequired, _ := c.tc.UpdateTerm(meta.Term)
		if stepDownRequired {
			go func() {
				_ = c.StepDown(context.Background(), true, 0, 10*time.Second)
			}()
		}
		c.currentPrimaryIndex = -1
		c.hub.PublishNewTerm(meta.Term)
	}
	after := c.ot.LastCommittedOpTime()
	if after.Compare(before) > 0 {
		c.snap.OnCommitPointAdvance(after)
	}
	c.waiters.Reevaluate()
}

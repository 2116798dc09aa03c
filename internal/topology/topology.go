// Package topology implements the Topology Coordinator (component C4): a
// pure decision engine that, given inputs (heartbeat replies, the clock,
// and the current config), produces member-state transitions and a list
// of actions for the Replication Coordinator to carry out. It performs no
// I/O and takes no locks — every exported method is a plain function of
// the receiver's fields and its arguments.
package topology

import (
	"time"

	"github.com/juju/loggo/v2"

	"github.com/jujuclone/replcoord/internal/memberstate"
	"github.com/jujuclone/replcoord/internal/optime"
	"github.com/jujuclone/replcoord/internal/rcerrors"
	"github.com/jujuclone/replcoord/internal/rsconfig"
)

var logger = loggo.GetLogger("replcoord.topology")

// Mode is the replication mode determined at init (spec §4.1).
type Mode int

const (
	ModeNone Mode = iota
	ModeMasterSlave
	ModeReplSet
)

// MemberHeartbeatData is the per-remote bookkeeping from spec §3.
type MemberHeartbeatData struct {
	LastAppliedOpTime optime.OpTime
	LastHeartbeatRecv time.Time
	LastHeartbeatSent time.Time
	State             memberstate.State
	ConfigVersion     int64
	ElectionTime      time.Time
	IsUp              bool
	AuthIssue         bool
}

// Self is the local node's self-state from spec §3.
type Self struct {
	Term                 int64
	MemberState          memberstate.State
	Config               rsconfig.Config
	SelfIndex            int
	MyLastAppliedOpTime  optime.OpTime
	StepDownUntil        time.Time
	ElectionTimeoutAt    time.Time
	DrainPending         bool
	MaintenanceModeCount int
	Rbid                 int64
	hasCommittedConfig   bool
}

// ActionKind tags the variant of an Action (DESIGN NOTES §9).
type ActionKind int

const (
	ActionStartElection ActionKind = iota
	ActionScheduleHeartbeat
	ActionInstallConfig
	ActionStepDown
	ActionRescheduleElectionTimeout
	ActionClearElectionTimeout
	ActionNone
)

// Action is a value-typed description of a side effect the Replication
// Coordinator must carry out; TC never performs it itself.
type Action struct {
	Kind      ActionKind
	MemberId  rsconfig.MemberId
	At        time.Time
	NewConfig *rsconfig.Config
}

// Coordinator is the topology coordinator's mutable state, owned
// exclusively by the Replication Coordinator's single-threaded executor.
type Coordinator struct {
	Mode     Mode
	Self     Self
	Remotes  map[rsconfig.MemberId]*MemberHeartbeatData
	selfHost string
}

// New creates a Coordinator in Startup mode with no config.
func New(selfHost string) *Coordinator {
	return &Coordinator{
		Mode:     ModeNone,
		Self:     Self{MemberState: memberstate.Startup},
		Remotes:  make(map[rsconfig.MemberId]*MemberHeartbeatData),
		selfHost: selfHost,
	}
}

// InstallConfig installs cfg as the active configuration (spec §4.1/§4.2:
// "Startup -> {Secondary|Arbiter|Removed} on successful config install").
// It is used both by processReplSetInitiate and by heartbeat-driven config
// adoption; callers decide which validation applies before calling this.
func (tc *Coordinator) InstallConfig(cfg rsconfig.Config, now time.Time) []Action {
	logger.Tracef("installing config %q version %d (%d members)", cfg.Name, cfg.Version, len(cfg.Members))
	tc.Mode = ModeReplSet
	tc.Self.Config = cfg
	tc.Self.hasCommittedConfig = true

	self, found := cfg.FindSelf(tc.selfHost)
	if !found {
		tc.Self.MemberState = memberstate.Removed
		tc.Self.SelfIndex = -1
		return []Action{{Kind: ActionClearElectionTimeout}}
	}
	tc.Self.SelfIndex = indexOf(cfg, self.Id)

	newRemotes := make(map[rsconfig.MemberId]*MemberHeartbeatData, len(cfg.Members))
	for _, m := range cfg.Members {
		if m.Id == self.Id {
			continue
		}
		if existing, ok := tc.Remotes[m.Id]; ok {
			newRemotes[m.Id] = existing
		} else {
			newRemotes[m.Id] = &MemberHeartbeatData{}
		}
	}
	tc.Remotes = newRemotes

	switch {
	case self.ArbiterOnly:
		tc.Self.MemberState = memberstate.Arbiter
	default:
		if tc.Self.MemberState == memberstate.Startup || tc.Self.MemberState == memberstate.Startup2 {
			tc.Self.MemberState = memberstate.Secondary
		}
	}

	actions := make([]Action, 0, len(newRemotes)+1)
	for id := range newRemotes {
		actions = append(actions, Action{Kind: ActionScheduleHeartbeat, MemberId: id, At: now})
	}
	actions = append(actions, tc.electionTimerAction(now)...)
	return actions
}

func indexOf(cfg rsconfig.Config, id rsconfig.MemberId) int {
	for i, m := range cfg.Members {
		if m.Id == id {
			return i
		}
	}
	return -1
}

// electionTimerAction arms the election timer whenever the invariant from
// spec §4.3/§8.6 holds (protocolVersion==1, Secondary, electable) and
// clears it otherwise. Called on every config install so that a freshly
// installed single-member config (spec §4.4's "Single-node election", §8)
// starts its own timer instead of waiting on a heartbeat reply that will
// never arrive.
func (tc *Coordinator) electionTimerAction(now time.Time) []Action {
	if !tc.electionTimerEligible() {
		tc.Self.ElectionTimeoutAt = time.Time{}
		return []Action{{Kind: ActionClearElectionTimeout}}
	}
	deadline := now.Add(time.Duration(tc.Self.Config.Settings.ElectionTimeoutMillis) * time.Millisecond)
	tc.Self.ElectionTimeoutAt = deadline
	return []Action{{Kind: ActionRescheduleElectionTimeout, At: deadline}}
}

// electionTimerEligible implements the invariant from spec §4.3 and §8.6:
// the timer may only be armed when protocolVersion==1, state==Secondary,
// and self is electable.
func (tc *Coordinator) electionTimerEligible() bool {
	if tc.Self.Config.ProtocolVersion != rsconfig.ProtocolVersion1 {
		return false
	}
	if tc.Self.MemberState != memberstate.Secondary {
		return false
	}
	self, ok := tc.Self.Config.FindMember(tc.selfMemberId())
	if !ok {
		return false
	}
	return self.Electable()
}

// SelfMemberId returns this node's id within the active config, or -1 if
// self is not a member (e.g. Removed).
func (tc *Coordinator) SelfMemberId() rsconfig.MemberId {
	return tc.selfMemberId()
}

func (tc *Coordinator) selfMemberId() rsconfig.MemberId {
	if tc.Self.SelfIndex < 0 || tc.Self.SelfIndex >= len(tc.Self.Config.Members) {
		return -1
	}
	return tc.Self.Config.Members[tc.Self.SelfIndex].Id
}

// MemberIndex returns id's positional index within the active config's
// Members slice, or -1 if id is not a member. Used by the Replication
// Coordinator to track currentPrimaryIndex (spec §4.8/§6).
func (tc *Coordinator) MemberIndex(id rsconfig.MemberId) int {
	return indexOf(tc.Self.Config, id)
}

// ObservedState computes the externally-visible member state, applying
// the maintenance-mode and rollback overlays from spec §4.1.
func (tc *Coordinator) ObservedState() memberstate.State {
	if tc.Self.MemberState == memberstate.Rollback {
		return memberstate.Rollback
	}
	if tc.Self.MemberState == memberstate.Secondary && tc.Self.MaintenanceModeCount > 0 {
		return memberstate.Recovering
	}
	return tc.Self.MemberState
}

// SetMaintenanceMode implements the maintenance-mode counter from spec
// §4.1. set(true) increments; set(false) decrements and fails with
// OperationFailed if already zero. Disallowed outside
// Secondary/Recovering/Rollback.
func (tc *Coordinator) SetMaintenanceMode(active bool) error {
	switch tc.Self.MemberState {
	case memberstate.Secondary, memberstate.Recovering, memberstate.Rollback:
	default:
		return rcerrors.NotSecondary
	}
	if active {
		tc.Self.MaintenanceModeCount++
		logger.Tracef("maintenance mode count now %d", tc.Self.MaintenanceModeCount)
		return nil
	}
	if tc.Self.MaintenanceModeCount == 0 {
		return rcerrors.OperationFailed
	}
	tc.Self.MaintenanceModeCount--
	logger.Tracef("maintenance mode count now %d", tc.Self.MaintenanceModeCount)
	return nil
}

// SetFollowerMode implements spec §4.1's rollback-sticky transition rule:
// while in Rollback, a request to move to Secondary is always ignored;
// only a request for Recovering moves the node out of Rollback.
// Returns whether the state actually changed.
func (tc *Coordinator) SetFollowerMode(target memberstate.State) (bool, error) {
	switch target {
	case memberstate.Secondary, memberstate.Recovering, memberstate.Rollback:
	default:
		return false, rcerrors.Newf(rcerrors.BadValue, "invalid follower mode %s", target)
	}
	if tc.Self.MemberState == memberstate.Primary {
		return false, rcerrors.NotSecondary
	}
	if tc.Self.MemberState == memberstate.Rollback && target == memberstate.Secondary {
		// Sticky: ignored until an explicit non-Secondary transition, or
		// until the caller is processing the rollback-exit itself; since
		// target==Secondary here is exactly the case being masked, this
		// is always a no-op per spec §4.1/§8.8.
		return false, nil
	}
	if tc.Self.MemberState == target {
		return false, nil
	}
	logger.Tracef("follower mode %s -> %s", tc.Self.MemberState, target)
	tc.Self.MemberState = target
	return true, nil
}

// UpdateTerm implements spec §4.4's updateTerm state machine. It returns
// whether the caller (Primary) must begin an async stepdown.
func (tc *Coordinator) UpdateTerm(term int64) (stepDownRequired bool, err error) {
	if tc.Mode != ModeReplSet {
		return false, rcerrors.BadValue
	}
	if term <= tc.Self.Term {
		return false, nil
	}
	logger.Tracef("term %d -> %d", tc.Self.Term, term)
	tc.Self.Term = term
	if tc.Self.MemberState == memberstate.Primary {
		return true, nil
	}
	return false, nil
}

// PrepareElectionWin transitions Secondary -> Primary(drain) per spec
// §4.1/§4.4. Only valid from Secondary.
func (tc *Coordinator) PrepareElectionWin(now time.Time) error {
	if tc.Self.MemberState != memberstate.Secondary {
		return rcerrors.Newf(rcerrors.NotSecondary, "cannot become primary from %s", tc.Self.MemberState)
	}
	tc.Self.Term++
	tc.Self.MemberState = memberstate.Primary
	tc.Self.DrainPending = true
	tc.Self.ElectionTimeoutAt = time.Time{}
	logger.Tracef("won election, now primary at term %d", tc.Self.Term)
	return nil
}

// SignalDrainComplete clears DrainPending once the apply pipeline catches
// up to the no-op written on election (spec §4.4).
func (tc *Coordinator) SignalDrainComplete() {
	tc.Self.DrainPending = false
}

// StepDown transitions Primary -> Secondary and arms stepDownUntil (spec
// §4.5). Callers (the Replication Coordinator) are responsible for the
// catch-up wait before calling this.
func (tc *Coordinator) StepDown(now time.Time, stepDownDuration time.Duration) error {
	if tc.Self.MemberState != memberstate.Primary {
		return rcerrors.NotMaster
	}
	tc.Self.MemberState = memberstate.Secondary
	tc.Self.StepDownUntil = now.Add(stepDownDuration)
	logger.Tracef("stepped down, refusing to stand until %s", tc.Self.StepDownUntil)
	return nil
}

// CanStandForElection reports whether self is currently allowed to begin
// a campaign: Secondary, electable, protocol v1, and past stepDownUntil.
func (tc *Coordinator) CanStandForElection(now time.Time) bool {
	if tc.Self.MemberState != memberstate.Secondary {
		return false
	}
	if now.Before(tc.Self.StepDownUntil) {
		return false
	}
	return tc.electionTimerEligible()
}

// ProcessHeartbeatResponse records a reply from member id and returns the
// actions the Replication Coordinator must carry out: rescheduling the
// next heartbeat, and — per spec §4.3 — rescheduling the election timer
// either because a peer heartbeat arrived (v1, electable secondary) or
// because the peer reports itself Primary at term >= ours.
func (tc *Coordinator) ProcessHeartbeatResponse(
	id rsconfig.MemberId,
	now time.Time,
	heartbeatIntervalMillis int64,
	electionTimeoutMillis int64,
	peerState memberstate.State,
	peerTerm int64,
	peerOpTime optime.OpTime,
	peerConfigVersion int64,
	peerElectionTime time.Time,
) []Action {
	remote, ok := tc.Remotes[id]
	if !ok {
		remote = &MemberHeartbeatData{}
		tc.Remotes[id] = remote
	}
	logger.Tracef("heartbeat reply from member %d: state=%s term=%d opTime=%s", id, peerState, peerTerm, peerOpTime)
	remote.LastHeartbeatRecv = now
	remote.IsUp = true
	remote.State = peerState
	remote.ConfigVersion = peerConfigVersion
	remote.ElectionTime = peerElectionTime
	if peerOpTime.GreaterOrEqual(remote.LastAppliedOpTime) {
		remote.LastAppliedOpTime = peerOpTime
	}

	actions := []Action{{
		Kind:     ActionScheduleHeartbeat,
		MemberId: id,
		At:       now.Add(time.Duration(heartbeatIntervalMillis) * time.Millisecond),
	}}

	if tc.electionTimerEligible() {
		actions = append(actions, Action{
			Kind: ActionRescheduleElectionTimeout,
			At:   now.Add(time.Duration(electionTimeoutMillis) * time.Millisecond),
		})
	} else if !tc.Self.ElectionTimeoutAt.IsZero() {
		tc.Self.ElectionTimeoutAt = time.Time{}
		actions = append(actions, Action{Kind: ActionClearElectionTimeout})
	}

	if peerState == memberstate.Primary && peerTerm >= tc.Self.Term {
		newDeadline := now.Add(time.Duration(electionTimeoutMillis) * time.Millisecond)
		if newDeadline.After(tc.Self.ElectionTimeoutAt) {
			tc.Self.ElectionTimeoutAt = newDeadline
			actions = append(actions, Action{Kind: ActionRescheduleElectionTimeout, At: newDeadline})
		}
	}

	return actions
}

// MarkDown records that member id failed to respond / is unreachable.
func (tc *Coordinator) MarkDown(id rsconfig.MemberId) {
	if remote, ok := tc.Remotes[id]; ok {
		remote.IsUp = false
		remote.State = memberstate.Down
	}
}

// HasCommittedConfig reports whether a config has ever been installed,
// used by processReplSetInitiate's AlreadyInitialized check (spec §4.2).
func (tc *Coordinator) HasCommittedConfig() bool { return tc.Self.hasCommittedConfig }

// OtherMemberHosts returns every configured host except self, resolving
// the Open Question in spec §9: the correct contract is the multiset
// equality {otherNodes…} = config.hosts \ {self}, not whatever
// off-by-one the original test's else-branch happened to compare.
func (tc *Coordinator) OtherMemberHosts() []string {
	var out []string
	for _, m := range tc.Self.Config.Members {
		if m.Host == tc.selfHost {
			continue
		}
		out = append(out, m.Host)
	}
	return out
}

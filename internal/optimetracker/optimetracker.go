// Package optimetracker implements component C5: per-member applied-OpTime
// bookkeeping, commit-point advancement, and write-concern satisfaction
// (spec §4.6, §4.8, §4.10, §8.2/§8.3).
package optimetracker

import (
	"sort"

	"github.com/jujuclone/replcoord/internal/optime"
	"github.com/jujuclone/replcoord/internal/rcerrors"
	"github.com/jujuclone/replcoord/internal/rsconfig"
)

// WriteConcern is the durability predicate attached to a write (spec §4.6).
type WriteConcern struct {
	W    int    // numeric node count; 0 means "use Mode instead"
	Mode string // "majority" or a name from config.Settings.GetLastErrorModes
}

// Tracker records each member's last-applied OpTime and derives the
// commit point and write-concern satisfaction from it. It is owned by the
// single-threaded executor; no internal locking.
type Tracker struct {
	config        rsconfig.Config
	selfId        rsconfig.MemberId
	appliedByID   map[rsconfig.MemberId]optime.OpTime
	lastCommitted optime.OpTime
	currentTerm   int64
}

// New creates a Tracker for the given config and self id.
func New(config rsconfig.Config, selfId rsconfig.MemberId) *Tracker {
	t := &Tracker{
		config:      config,
		selfId:      selfId,
		appliedByID: make(map[rsconfig.MemberId]optime.OpTime, len(config.Members)),
	}
	return t
}

// SetConfig installs a new config, preserving tracked positions for
// members that still exist (spec §4.2 reconfig).
func (t *Tracker) SetConfig(config rsconfig.Config) {
	t.config = config
}

// SetSelfID updates which member id this tracker treats as "self", used
// once the Replication Coordinator learns its real id from the first
// installed config (construction happens before any config exists).
func (t *Tracker) SetSelfID(id rsconfig.MemberId) {
	t.selfId = id
}

// SetCurrentTerm is called whenever the local term changes; commit-point
// advancement only trusts votes cast in the current term (spec §4.8).
func (t *Tracker) SetCurrentTerm(term int64) {
	t.currentTerm = term
}

// CurrentTerm returns the term commit-point advancement currently trusts.
func (t *Tracker) CurrentTerm() int64 { return t.currentTerm }

// SetMyLastOpTime sets self's position; it is the only entry point that
// may move it backwards, matching setMyLastOpTime in spec §4.5/DESIGN.
func (t *Tracker) SetMyLastOpTime(ot optime.OpTime) {
	t.appliedByID[t.selfId] = ot
}

// SetMyLastOpTimeForward accepts ot only if it is strictly greater than
// the current value (spec §5: setMyLastOptimeForward semantics).
func (t *Tracker) SetMyLastOpTimeForward(ot optime.OpTime) bool {
	return t.advance(t.selfId, ot)
}

// MyLastAppliedOpTime returns self's last-applied position.
func (t *Tracker) MyLastAppliedOpTime() optime.OpTime { return t.appliedByID[t.selfId] }

// advance moves member id's position forward only, returning whether it
// changed. Used by both self-optime updates and position-update handling.
func (t *Tracker) advance(id rsconfig.MemberId, ot optime.OpTime) bool {
	cur, ok := t.appliedByID[id]
	if ok && cur.Compare(ot) >= 0 {
		return false
	}
	t.appliedByID[id] = ot
	return true
}

// AppliedOpTime returns the tracked position of member id.
func (t *Tracker) AppliedOpTime(id rsconfig.MemberId) optime.OpTime {
	return t.appliedByID[id]
}

// ApplyPositionUpdate implements spec §4.10's replSetUpdatePosition
// per-entry rule: self entries are ignored; unknown members error
// NodeNotFound; otherwise the position moves forward only.
func (t *Tracker) ApplyPositionUpdate(cfgVersion int64, id rsconfig.MemberId, ot optime.OpTime) error {
	if id == t.selfId {
		return nil
	}
	if cfgVersion != t.config.Version {
		return rcerrors.Newf(rcerrors.InvalidReplicaSetConfig,
			"position update cfgver %d does not match local configVersion %d", cfgVersion, t.config.Version)
	}
	if _, ok := t.config.FindMember(id); !ok {
		return rcerrors.Newf(rcerrors.NodeNotFound, "member %d not found in config", id)
	}
	t.advance(id, ot)
	return nil
}

// CountAtLeast returns how many members (including self) have an applied
// OpTime >= target.
func (t *Tracker) CountAtLeast(target optime.OpTime) int {
	n := 0
	for _, m := range t.config.Members {
		if t.appliedByID[m.Id].GreaterOrEqual(target) {
			n++
		}
	}
	return n
}

// TagCoverage returns, for the given tag key, the set of distinct tag
// values among members whose applied OpTime >= target.
func (t *Tracker) TagCoverage(tagKey string, target optime.OpTime) map[string]bool {
	values := make(map[string]bool)
	for _, m := range t.config.Members {
		if !t.appliedByID[m.Id].GreaterOrEqual(target) {
			continue
		}
		if v, ok := m.Tags[tagKey]; ok {
			values[v] = true
		}
	}
	return values
}

// MajorityVoterCountAtLeast returns how many majority-counting members
// (voting, non-arbiter; spec §4.6/§8.3) have an applied OpTime >= target.
func (t *Tracker) MajorityVoterCountAtLeast(target optime.OpTime) int {
	n := 0
	for _, m := range t.config.Members {
		if !m.CountsForMajority() {
			continue
		}
		if t.appliedByID[m.Id].GreaterOrEqual(target) {
			n++
		}
	}
	return n
}

// SatisfiesNumeric implements spec §4.6's numeric-w rule.
func (t *Tracker) SatisfiesNumeric(target optime.OpTime, w int) bool {
	return t.CountAtLeast(target) >= w
}

// SatisfiesMode implements spec §4.6's named-mode rule: for every tag key
// in the mode, the set of members with applied OpTime >= target must
// cover at least the required number of distinct values for that key.
func (t *Tracker) SatisfiesMode(target optime.OpTime, mode map[string]int) bool {
	for tagKey, required := range mode {
		if len(t.TagCoverage(tagKey, target)) < required {
			return false
		}
	}
	return true
}

// SatisfiesMajority implements the voter-majority half of spec §4.6's
// "majority" rule. The snapshot-gating half requires C6 (internal/snapshot)
// and is layered on top by the caller (replcoordinator.AwaitReplication).
func (t *Tracker) SatisfiesMajority(target optime.OpTime) bool {
	voters := t.config.MajorityVoters()
	if voters == 0 {
		return false
	}
	return t.MajorityVoterCountAtLeast(target)*2 > voters
}

// Resolve evaluates a WriteConcern against target, looking up named modes
// in the config's GetLastErrorModes. Returns UnknownReplWriteConcern for
// an unrecognized mode name.
func (t *Tracker) Resolve(target optime.OpTime, wc WriteConcern) (bool, error) {
	switch {
	case wc.Mode == "majority":
		return t.SatisfiesMajority(target), nil
	case wc.Mode != "":
		mode, ok := t.config.Settings.GetLastErrorModes[wc.Mode]
		if !ok {
			return false, rcerrors.UnknownReplWriteConcern
		}
		return t.SatisfiesMode(target, mode), nil
	default:
		if wc.W > len(t.config.Members) {
			return false, rcerrors.CannotSatisfyWriteConcern
		}
		return t.SatisfiesNumeric(target, wc.W), nil
	}
}

// MajorityCommittableOpTime returns the highest OpTime currently held by a
// strict majority of majority-counting members: the natural candidate for
// AdvanceCommitPoint after any position changes (spec §4.8).
func (t *Tracker) MajorityCommittableOpTime() optime.OpTime {
	var positions []optime.OpTime
	for _, m := range t.config.Members {
		if !m.CountsForMajority() {
			continue
		}
		positions = append(positions, t.appliedByID[m.Id])
	}
	if len(positions) == 0 {
		return optime.Zero
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Less(positions[j]) })
	idx := (len(positions) - 1) / 2
	return positions[idx]
}

// AdvanceCommitPoint implements spec §4.8: the commit point advances to X
// when a strict majority of voting members have applied OpTime >= X **in
// the current term**. It checks only the given candidate: the commit point
// moves to it when it is in the current term, above the current commit
// point, and satisfies majority; no other position is searched.
func (t *Tracker) AdvanceCommitPoint(candidate optime.OpTime) {
	if candidate.Term != t.currentTerm {
		return
	}
	if candidate.Compare(t.lastCommitted) <= 0 {
		return
	}
	if t.SatisfiesMajority(candidate) {
		t.lastCommitted = candidate
	}
}

// LastCommittedOpTime returns the current commit point.
func (t *Tracker) LastCommittedOpTime() optime.OpTime { return t.lastCommitted }

// ReplicaSetMetadata is the trusted-peer commit-bump payload from spec
// §4.8/§6.
type ReplicaSetMetadata struct {
	LastOpCommitted optime.OpTime
	ConfigVersion   int64
	Term            int64
}

// ApplyMetadata implements spec §4.8's rules for installing commit point
// and term from trusted peer metadata. Returns whether the term changed
// (the caller must then clear currentPrimaryIndex to -1).
func (t *Tracker) ApplyMetadata(meta ReplicaSetMetadata) (termChanged bool) {
	if meta.ConfigVersion != t.config.Version {
		return false
	}
	if meta.LastOpCommitted.Compare(t.lastCommitted) > 0 {
		t.lastCommitted = meta.LastOpCommitted
	}
	if meta.Term > t.currentTerm {
		t.currentTerm = meta.Term
		return true
	}
	return false
}

// Package rsconfig models the replica-set configuration document described
// in spec §3 and validated per §4.2. Field naming follows the vocabulary
// of github.com/juju/replicaset (Member, Tags, Votes) generalized to the
// coordinator's own member/election metadata.
package rsconfig

import (
	"github.com/jujuclone/replcoord/internal/rcerrors"
)

// MemberId uniquely identifies a member within a single config.
type MemberId int

// Member is one voting or non-voting participant of the replica set.
type Member struct {
	Id           MemberId
	Host         string
	Priority     float64
	Votes        int // 0 or 1
	ArbiterOnly  bool
	Hidden       bool
	BuildIndexes bool
	SlaveDelay   int64 // seconds
	Tags         map[string]string
}

// Validate enforces the per-member invariants from spec §3:
//
//	arbiterOnly ⇒ votes=1 ∧ priority=0
//	hidden ⇒ priority=0
//	votes=0 ⇒ priority=0
func (m Member) Validate() error {
	if m.Votes != 0 && m.Votes != 1 {
		return rcerrors.Invalidf("member %d: votes must be 0 or 1", m.Id)
	}
	if m.ArbiterOnly {
		if m.Votes != 1 {
			return rcerrors.Invalidf("member %d: arbiter must have votes:1", m.Id)
		}
		if m.Priority != 0 {
			return rcerrors.Invalidf("member %d: arbiter must have priority 0", m.Id)
		}
	}
	if m.Hidden && m.Priority != 0 {
		return rcerrors.Invalidf("priority must be 0 when hidden=true")
	}
	if m.Votes == 0 && m.Priority != 0 {
		return rcerrors.Invalidf("priority must be 0 when non-voting (votes:0)")
	}
	if m.Priority < 0 {
		return rcerrors.Invalidf("member %d: priority must be non-negative", m.Id)
	}
	return nil
}

// IsVoter reports whether the member casts a vote (arbiters count here;
// see CountsForMajority for the data-durability distinction).
func (m Member) IsVoter() bool { return m.Votes == 1 }

// CountsForMajority reports whether the member's applied position counts
// toward a majority write concern: voting and not an arbiter (spec §4.6).
func (m Member) CountsForMajority() bool { return m.Votes == 1 && !m.ArbiterOnly }

// Electable reports whether the member is eligible to run for election:
// not hidden, has priority, and is not an arbiter (spec §4.3).
func (m Member) Electable() bool {
	return !m.ArbiterOnly && !m.Hidden && m.Priority > 0 && m.Votes == 1
}

// ProtocolVersion selects the election/heartbeat protocol.
type ProtocolVersion int

const (
	ProtocolVersion0 ProtocolVersion = 0
	ProtocolVersion1 ProtocolVersion = 1
)

// Settings holds the tunable timings and named write-concern modes.
type Settings struct {
	ElectionTimeoutMillis   int64
	HeartbeatIntervalMillis int64
	// GetLastErrorModes maps a mode name to a tag-key -> required-distinct-
	// value-count requirement (spec §4.6 "Named modes").
	GetLastErrorModes map[string]map[string]int
}

// Config is the validated, parsed replica-set configuration document.
type Config struct {
	Name            string
	Version         int64
	ProtocolVersion ProtocolVersion
	Members         []Member
	Settings        Settings
}

// FindMember returns the member with the given id, if present.
func (c Config) FindMember(id MemberId) (Member, bool) {
	for _, m := range c.Members {
		if m.Id == id {
			return m, true
		}
	}
	return Member{}, false
}

// FindSelf finds the member whose Host matches selfHost.
func (c Config) FindSelf(selfHost string) (Member, bool) {
	for _, m := range c.Members {
		if m.Host == selfHost {
			return m, true
		}
	}
	return Member{}, false
}

// VotingMembers returns every member with Votes==1.
func (c Config) VotingMembers() []Member {
	var out []Member
	for _, m := range c.Members {
		if m.IsVoter() {
			out = append(out, m)
		}
	}
	return out
}

// MajorityVoters returns the number of members that count toward a
// majority write concern (voting, non-arbiter members; spec §4.6, §8.3).
func (c Config) MajorityVoters() int {
	n := 0
	for _, m := range c.Members {
		if m.CountsForMajority() {
			n++
		}
	}
	return n
}

// Validate checks the whole-document invariants from spec §3/§4.2:
//
//   - at least one non-arbiter voter
//   - member ids unique
//   - single-node initial config only on fresh initiate (checked by caller,
//     since it depends on whether a set-name flag was already present)
func (c Config) Validate() error {
	if c.Name == "" {
		return rcerrors.Invalidf("Missing expected field %q", "_id")
	}
	if c.Version < 1 {
		return rcerrors.Invalidf("configuration version must be >= 1")
	}
	if len(c.Members) == 0 {
		return rcerrors.Invalidf("must contain at least one non-arbiter member")
	}

	seen := make(map[MemberId]bool, len(c.Members))
	nonArbiterVoters := 0
	for _, m := range c.Members {
		if seen[m.Id] {
			return rcerrors.Invalidf("member id %d appears more than once", m.Id)
		}
		seen[m.Id] = true

		if err := m.Validate(); err != nil {
			return err
		}
		if m.Votes == 1 && !m.ArbiterOnly {
			nonArbiterVoters++
		}
	}
	if nonArbiterVoters == 0 {
		return rcerrors.Invalidf("must contain at least one non-arbiter member")
	}
	return nil
}

// ValidateReconfigVersion checks the version-bump rule from spec §4.2: a
// non-forced reconfig must install exactly current+1; a forced reconfig
// may install any version greater than current.
func ValidateReconfigVersion(current, next int64, force bool) error {
	if force {
		if next <= current {
			return rcerrors.Invalidf("have version %d, but found %d", current, next)
		}
		return nil
	}
	if next != current+1 {
		return rcerrors.Invalidf("have version %d, but found %d", current, next)
	}
	return nil
}

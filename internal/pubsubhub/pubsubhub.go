// Package pubsubhub fans out replication-coordinator state-transition
// events to in-process observers, mirroring the teacher's pubsub/apiserver
// structured hub used for IsMaster-style long-poll notification. Observers
// subscribe to the wrapped hub directly; the coordinator has no
// wait-for-member-state or wait-for-election helper built on it, and its
// own tests poll MemberState instead.
package pubsubhub

import (
	"github.com/juju/pubsub/v2"

	"github.com/jujuclone/replcoord/internal/memberstate"
)

// Topic names published on the hub.
const (
	TopicMemberStateChanged = "replcoord.member-state-changed"
	TopicElectionWon        = "replcoord.election-won"
	TopicSteppedDown        = "replcoord.stepped-down"
	TopicNewTerm            = "replcoord.new-term"
)

// MemberStateChanged is published whenever the local node's observed
// member state changes.
type MemberStateChanged struct {
	From memberstate.State
	To   memberstate.State
}

// NewTerm is published whenever the local term advances.
type NewTerm struct {
	Term int64
}

// Hub wraps a pubsub.StructuredHub with typed publish helpers.
type Hub struct {
	inner *pubsub.StructuredHub
}

// New creates a Hub. hub may be nil, in which case publishes are no-ops —
// convenient for tests that don't care about notification fan-out.
func New(hub *pubsub.StructuredHub) *Hub {
	return &Hub{inner: hub}
}

// PublishMemberStateChanged announces a local member-state transition.
func (h *Hub) PublishMemberStateChanged(from, to memberstate.State) {
	if h.inner == nil || from == to {
		return
	}
	_, _ = h.inner.Publish(TopicMemberStateChanged, MemberStateChanged{From: from, To: to})
}

// PublishElectionWon announces that this node won an election.
func (h *Hub) PublishElectionWon() {
	if h.inner == nil {
		return
	}
	_, _ = h.inner.Publish(TopicElectionWon, struct{}{})
}

// PublishSteppedDown announces a stepdown (voluntary, forced, or liveness).
func (h *Hub) PublishSteppedDown() {
	if h.inner == nil {
		return
	}
	_, _ = h.inner.Publish(TopicSteppedDown, struct{}{})
}

// PublishNewTerm announces a term bump.
func (h *Hub) PublishNewTerm(term int64) {
	if h.inner == nil {
		return
	}
	_, _ = h.inner.Publish(TopicNewTerm, NewTerm{Term: term})
}

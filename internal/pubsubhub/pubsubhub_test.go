package pubsubhub_test

import (
	stdtesting "testing"
	"time"

	"github.com/juju/pubsub/v2"
	"github.com/juju/tc"

	"github.com/jujuclone/replcoord/internal/memberstate"
	"github.com/jujuclone/replcoord/internal/pubsubhub"
)

func TestPackage(t *stdtesting.T) { tc.Run(t, &hubSuite{}) }

type hubSuite struct{}

func (s *hubSuite) TestPublishMemberStateChanged(c *tc.C) {
	inner := pubsub.NewStructuredHub(nil)
	hub := pubsubhub.New(inner)

	received := make(chan pubsubhub.MemberStateChanged, 1)
	unsub, err := inner.Subscribe(pubsubhub.TopicMemberStateChanged, func(_ string, evt pubsubhub.MemberStateChanged, err error) {
		c.Check(err, tc.ErrorIsNil)
		received <- evt
	})
	c.Assert(err, tc.ErrorIsNil)
	defer unsub.Unsubscribe()

	hub.PublishMemberStateChanged(memberstate.Secondary, memberstate.Primary)

	select {
	case evt := <-received:
		c.Check(evt.From, tc.Equals, memberstate.Secondary)
		c.Check(evt.To, tc.Equals, memberstate.Primary)
	case <-time.After(100 * time.Millisecond):
		c.Fatalf("timed out waiting for publish")
	}
}

func (s *hubSuite) TestPublishSameStateIsNoop(c *tc.C) {
	inner := pubsub.NewStructuredHub(nil)
	hub := pubsubhub.New(inner)

	received := make(chan struct{}, 1)
	unsub, err := inner.Subscribe(pubsubhub.TopicMemberStateChanged, func(_ string, _ pubsubhub.MemberStateChanged, _ error) {
		received <- struct{}{}
	})
	c.Assert(err, tc.ErrorIsNil)
	defer unsub.Unsubscribe()

	hub.PublishMemberStateChanged(memberstate.Secondary, memberstate.Secondary)

	select {
	case <-received:
		c.Fatalf("expected no publish for a same-state transition")
	case <-time.After(100 * time.Millisecond):
	}
}

func (s *hubSuite) TestNilHubPublishesAreNoops(c *tc.C) {
	hub := pubsubhub.New(nil)
	hub.PublishMemberStateChanged(memberstate.Secondary, memberstate.Primary)
	hub.PublishElectionWon()
	hub.PublishSteppedDown()
	hub.PublishNewTerm(3)
}

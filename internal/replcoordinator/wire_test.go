package replcoordinator_test

import (
	stdtesting "testing"

	"github.com/juju/tc"

	"github.com/jujuclone/replcoord/internal/optime"
	"github.com/jujuclone/replcoord/internal/replcoordinator"
)

func TestWire(t *stdtesting.T) { tc.Run(t, &wireSuite{}) }

type wireSuite struct{}

func (s *wireSuite) TestHeartbeatRequestRoundTrips(c *tc.C) {
	req := replcoordinator.HeartbeatRequest{
		SetName:       "rs0",
		ConfigVersion: 3,
		SenderHost:    "host2:27017",
	}
	data, err := replcoordinator.EncodeHeartbeatRequest(req)
	c.Assert(err, tc.ErrorIsNil)

	got, err := replcoordinator.DecodeHeartbeatRequest(data)
	c.Assert(err, tc.ErrorIsNil)
	c.Check(got, tc.DeepEquals, req)
}

func (s *wireSuite) TestHeartbeatResponseRoundTrips(c *tc.C) {
	resp := replcoordinator.HeartbeatResponse{
		OK:            true,
		SetName:       "rs0",
		ConfigVersion: 3,
		OpTime:        optime.OpTime{Timestamp: optime.Timestamp{Seconds: 42, Counter: 1}, Term: 2},
	}
	data, err := replcoordinator.EncodeHeartbeatResponse(resp)
	c.Assert(err, tc.ErrorIsNil)

	got, err := replcoordinator.DecodeHeartbeatResponse(data)
	c.Assert(err, tc.ErrorIsNil)
	c.Check(got, tc.DeepEquals, resp)
}

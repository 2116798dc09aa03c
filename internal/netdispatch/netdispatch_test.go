package netdispatch_test

import (
	"context"
	stdtesting "testing"

	"github.com/juju/tc"

	"github.com/jujuclone/replcoord/internal/netdispatch"
)

func TestPackage(t *stdtesting.T) { tc.Run(t, &dispatcherSuite{}) }

type dispatcherSuite struct{}

func (s *dispatcherSuite) TestSendRoutesThroughResponder(c *tc.C) {
	var seen netdispatch.Command
	d := netdispatch.New(netdispatch.ResponderFunc(func(ctx context.Context, cmd netdispatch.Command) netdispatch.Response {
		seen = cmd
		return netdispatch.Response{OK: true, Body: "pong"}
	}))

	resp := d.Send(context.Background(), netdispatch.Command{Target: "node2:1234", Name: "replSetHeartbeat"})
	c.Check(resp.OK, tc.IsTrue)
	c.Check(resp.Body, tc.Equals, "pong")
	c.Check(seen.Target, tc.Equals, "node2:1234")
}

func (s *dispatcherSuite) TestSendWithNoResponderErrors(c *tc.C) {
	d := netdispatch.New(nil)
	resp := d.Send(context.Background(), netdispatch.Command{})
	c.Check(resp.Err, tc.NotNil)
}

func (s *dispatcherSuite) TestSetResponderSwapsBehavior(c *tc.C) {
	d := netdispatch.New(netdispatch.ResponderFunc(func(ctx context.Context, cmd netdispatch.Command) netdispatch.Response {
		return netdispatch.Response{OK: true}
	}))
	d.SetResponder(netdispatch.ResponderFunc(func(ctx context.Context, cmd netdispatch.Command) netdispatch.Response {
		return netdispatch.Response{OK: false}
	}))
	resp := d.Send(context.Background(), netdispatch.Command{})
	c.Check(resp.OK, tc.IsFalse)
}

package scheduler_test

import (
	stdtesting "testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/tc"

	"github.com/jujuclone/replcoord/internal/scheduler"
)

func TestPackage(t *stdtesting.T) { tc.Run(t, &schedulerSuite{}) }

type schedulerSuite struct{}

func (s *schedulerSuite) TestAfterFiresOnAdvance(c *tc.C) {
	clk := testclock.NewClock(time.Unix(0, 0))
	sch := scheduler.New(clk)

	fired := make(chan struct{}, 1)
	sch.After(10*time.Second, func() { fired <- struct{}{} })

	c.Assert(clk.WaitAdvance(10*time.Second, time.Second, 1), tc.ErrorIsNil)
	select {
	case <-fired:
	case <-time.After(time.Second):
		c.Fatalf("callback did not fire")
	}
}

func (s *schedulerSuite) TestCancelPreventsFiring(c *tc.C) {
	clk := testclock.NewClock(time.Unix(0, 0))
	sch := scheduler.New(clk)

	fired := make(chan struct{}, 1)
	h := sch.After(10*time.Second, func() { fired <- struct{}{} })
	h.Cancel()

	// Cancel stopped the only timer, so none is left waiting on the clock.
	c.Assert(clk.WaitAdvance(10*time.Second, time.Second, 0), tc.ErrorIsNil)
	select {
	case <-fired:
		c.Fatalf("cancelled callback fired")
	case <-time.After(50 * time.Millisecond):
	}
	c.Check(sch.Pending(), tc.Equals, 0)
}

func (s *schedulerSuite) TestDoubleCancelIsSafe(c *tc.C) {
	clk := testclock.NewClock(time.Unix(0, 0))
	sch := scheduler.New(clk)

	h := sch.After(time.Second, func() {})
	h.Cancel()
	h.Cancel()
}

func (s *schedulerSuite) TestAtInThePastFiresImmediately(c *tc.C) {
	clk := testclock.NewClock(time.Unix(100, 0))
	sch := scheduler.New(clk)

	fired := make(chan struct{}, 1)
	sch.At(time.Unix(0, 0), func() { fired <- struct{}{} })

	select {
	case <-fired:
	case <-time.After(time.Second):
		c.Fatalf("callback scheduled in the past did not fire promptly")
	}
}

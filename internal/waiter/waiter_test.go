package waiter_test

import (
	stdtesting "testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/tc"

	"github.com/jujuclone/replcoord/internal/rcerrors"
	"github.com/jujuclone/replcoord/internal/scheduler"
	"github.com/jujuclone/replcoord/internal/waiter"
)

func TestPackage(t *stdtesting.T) { tc.Run(t, &registrySuite{}) }

type registrySuite struct{}

func (s *registrySuite) newRegistry() (*waiter.Registry, *testclock.Clock) {
	clk := testclock.NewClock(time.Unix(0, 0))
	return waiter.New(scheduler.New(clk)), clk
}

func (s *registrySuite) TestAlreadySatisfiedResolvesImmediately(c *tc.C) {
	r, _ := s.newRegistry()
	h := r.Register(1, waiter.WriteConcernWaiter, func() (bool, error) { return true, nil }, time.Time{}, nil)
	select {
	case err := <-h.Done():
		c.Check(err, tc.ErrorIsNil)
	default:
		c.Fatalf("expected immediate resolution")
	}
}

func (s *registrySuite) TestReevaluateWakesOnceTrue(c *tc.C) {
	r, _ := s.newRegistry()
	ready := false
	h := r.Register(1, waiter.WriteConcernWaiter, func() (bool, error) { return ready, nil }, time.Time{}, nil)
	c.Check(r.Len(), tc.Equals, 1)

	r.Reevaluate()
	select {
	case <-h.Done():
		c.Fatalf("woke before predicate was true")
	default:
	}

	ready = true
	r.Reevaluate()
	select {
	case err := <-h.Done():
		c.Check(err, tc.ErrorIsNil)
	case <-time.After(time.Second):
		c.Fatalf("did not wake")
	}
	c.Check(r.Len(), tc.Equals, 0)
}

func (s *registrySuite) TestReevaluateWakesUnsatisfiableWithPredicateError(c *tc.C) {
	r, _ := s.newRegistry()
	unsatisfiable := false
	h := r.Register(1, waiter.WriteConcernWaiter, func() (bool, error) {
		if unsatisfiable {
			return false, rcerrors.CannotSatisfyWriteConcern
		}
		return false, nil
	}, time.Time{}, nil)

	r.Reevaluate()
	select {
	case <-h.Done():
		c.Fatalf("woke before becoming unsatisfiable")
	default:
	}

	unsatisfiable = true
	r.Reevaluate()
	select {
	case err := <-h.Done():
		c.Check(err, tc.ErrorIs, rcerrors.CannotSatisfyWriteConcern)
	case <-time.After(time.Second):
		c.Fatalf("did not wake")
	}
}

func (s *registrySuite) TestTimeoutFiresWriteConcernFailed(c *tc.C) {
	r, clk := s.newRegistry()
	h := r.Register(1, waiter.WriteConcernWaiter, func() (bool, error) { return false, nil },
		clk.Now().Add(10*time.Second), rcerrors.WriteConcernFailed)

	c.Assert(clk.WaitAdvance(10*time.Second, time.Second, 1), tc.ErrorIsNil)
	select {
	case err := <-h.Done():
		c.Check(err, tc.ErrorIs, rcerrors.WriteConcernFailed)
	case <-time.After(time.Second):
		c.Fatalf("did not time out")
	}
}

func (s *registrySuite) TestShutdownWakesAllWithShutdownInProgress(c *tc.C) {
	r, _ := s.newRegistry()
	h1 := r.Register(1, waiter.WriteConcernWaiter, func() (bool, error) { return false, nil }, time.Time{}, nil)
	h2 := r.Register(2, waiter.ReadConcernWaiter, func() (bool, error) { return false, nil }, time.Time{}, nil)

	r.Shutdown()
	c.Check(<-h1.Done(), tc.ErrorIs, rcerrors.ShutdownInProgress)
	c.Check(<-h2.Done(), tc.ErrorIs, rcerrors.ShutdownInProgress)
}

func (s *registrySuite) TestInterruptOnlyWakesMatchingOp(c *tc.C) {
	r, _ := s.newRegistry()
	h1 := r.Register(42, waiter.WriteConcernWaiter, func() (bool, error) { return false, nil }, time.Time{}, nil)
	h2 := r.Register(43, waiter.WriteConcernWaiter, func() (bool, error) { return false, nil }, time.Time{}, nil)

	r.Interrupt(42)
	c.Check(<-h1.Done(), tc.ErrorIs, rcerrors.Interrupted)
	select {
	case <-h2.Done():
		c.Fatalf("unrelated op woke")
	default:
	}
}

func (s *registrySuite) TestStepDownWakesWriteConcernNotReadConcern(c *tc.C) {
	r, _ := s.newRegistry()
	write := r.Register(1, waiter.WriteConcernWaiter, func() (bool, error) { return false, nil }, time.Time{}, nil)
	read := r.Register(2, waiter.ReadConcernWaiter, func() (bool, error) { return false, nil }, time.Time{}, nil)

	r.NotifyStepDown()
	c.Check(<-write.Done(), tc.ErrorIs, rcerrors.NotMaster)
	select {
	case <-read.Done():
		c.Fatalf("read-concern waiter woke on stepdown")
	default:
	}
}

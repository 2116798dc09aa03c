package rclease_test

import (
	stdtesting "testing"

	"github.com/juju/tc"

	"github.com/jujuclone/replcoord/internal/rclease"
)

func TestPackage(t *stdtesting.T) { tc.Run(t, &trackerSuite{}) }

type trackerSuite struct{}

func (s *trackerSuite) TestRollbackIDIsMonotone(c *tc.C) {
	tr := rclease.New()
	c.Check(tr.RBID(), tc.Equals, int64(0))
	c.Check(tr.IncrementRollbackID(), tc.Equals, int64(1))
	c.Check(tr.IncrementRollbackID(), tc.Equals, int64(2))
	c.Check(tr.RBID(), tc.Equals, int64(2))
}

func (s *trackerSuite) TestGenerationFencing(c *tc.C) {
	tr := rclease.New()
	gen := tr.Generation()
	c.Check(tr.IsCurrent(gen), tc.IsTrue)

	tr.NewGeneration()
	c.Check(tr.IsCurrent(gen), tc.IsFalse)
}

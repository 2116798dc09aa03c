package snapshot_test

import (
	stdtesting "testing"

	"github.com/juju/tc"

	"github.com/jujuclone/replcoord/internal/optime"
	"github.com/jujuclone/replcoord/internal/snapshot"
)

func TestPackage(t *stdtesting.T) { tc.Run(t, &trackerSuite{}) }

type trackerSuite struct{}

func ot(seconds int64) optime.OpTime {
	return optime.OpTime{Timestamp: optime.Timestamp{Seconds: seconds}}
}

func (s *trackerSuite) TestReserveSnapshotNameIsMonotone(c *tc.C) {
	tr := snapshot.New()
	a := tr.ReserveSnapshotName()
	b := tr.ReserveSnapshotName()
	c.Check(b > a, tc.IsTrue)
}

func (s *trackerSuite) TestCurrentCommittedSnapshotPicksGreatestAtOrBelowCommit(c *tc.C) {
	tr := snapshot.New()
	tr.Create(ot(10), 1, ot(0))
	tr.Create(ot(20), 2, ot(0))
	tr.Create(ot(30), 3, ot(0))

	tr.OnCommitPointAdvance(ot(25))
	c.Check(tr.CurrentCommittedSnapshot(), tc.Equals, snapshot.Snapshot{OpTime: ot(20), Name: 2})

	tr.OnCommitPointAdvance(ot(100))
	c.Check(tr.CurrentCommittedSnapshot(), tc.Equals, snapshot.Snapshot{OpTime: ot(30), Name: 3})
}

func (s *trackerSuite) TestTieBrokenByGreatestName(c *tc.C) {
	tr := snapshot.New()
	tr.Create(ot(10), 1, ot(0))
	tr.Create(ot(10), 5, ot(0))
	tr.OnCommitPointAdvance(ot(10))
	c.Check(tr.CurrentCommittedSnapshot().Name, tc.Equals, int64(5))
}

func (s *trackerSuite) TestCreateAtOrBelowCommitAdvancesImmediately(c *tc.C) {
	tr := snapshot.New()
	name := tr.ReserveSnapshotName()
	tr.Create(ot(5), name, ot(10))
	c.Check(tr.CurrentCommittedSnapshot(), tc.Equals, snapshot.Snapshot{OpTime: ot(5), Name: name})
}

func (s *trackerSuite) TestDropAllResetsToZero(c *tc.C) {
	tr := snapshot.New()
	tr.Create(ot(5), 1, ot(10))
	c.Check(tr.CurrentCommittedSnapshot().OpTime.IsZero(), tc.IsFalse)

	tr.DropAll()
	c.Check(tr.CurrentCommittedSnapshot(), tc.Equals, snapshot.Snapshot{})
}

func (s *trackerSuite) TestNoSnapshotAtOrBelowCommitYieldsZero(c *tc.C) {
	tr := snapshot.New()
	tr.Create(ot(100), 1, ot(0))
	c.Check(tr.CurrentCommittedSnapshot(), tc.Equals, snapshot.Snapshot{})
}

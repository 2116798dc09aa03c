package optimetracker_test

import (
	stdtesting "testing"

	"github.com/juju/tc"

	"github.com/jujuclone/replcoord/internal/optime"
	"github.com/jujuclone/replcoord/internal/optimetracker"
	"github.com/jujuclone/replcoord/internal/rcerrors"
	"github.com/jujuclone/replcoord/internal/rsconfig"
)

func TestPackage(t *stdtesting.T) { tc.Run(t, &trackerSuite{}) }

type trackerSuite struct{}

func ot(seconds int64, term int64) optime.OpTime {
	return optime.OpTime{Timestamp: optime.Timestamp{Seconds: seconds}, Term: term}
}

func (s *trackerSuite) TestNumericWriteConcern(c *tc.C) {
	cfg := rsconfig.Config{
		Members: []rsconfig.Member{
			{Id: 0, Votes: 1}, {Id: 1, Votes: 1}, {Id: 2, Votes: 1},
		},
	}
	tr := optimetracker.New(cfg, 0)
	tr.SetCurrentTerm(0)
	tr.SetMyLastOpTime(ot(100, 0))
	tr.SetMyLastOpTimeForward(ot(100, 1))
	tr.ApplyPositionUpdate(cfg.Version, 1, ot(100, 1))

	ok, err := tr.Resolve(ot(100, 1), optimetracker.WriteConcern{W: 2})
	c.Assert(err, tc.ErrorIsNil)
	c.Check(ok, tc.IsTrue)

	ok, err = tr.Resolve(ot(100, 2), optimetracker.WriteConcern{W: 2})
	c.Assert(err, tc.ErrorIsNil)
	c.Check(ok, tc.IsFalse)
}

func fiveMemberTaggedConfig() rsconfig.Config {
	return rsconfig.Config{
		Members: []rsconfig.Member{
			{Id: 0, Votes: 1, Tags: map[string]string{"dc": "NA", "rack": "r1"}},
			{Id: 1, Votes: 1, Tags: map[string]string{"dc": "NA", "rack": "r2"}},
			{Id: 2, Votes: 1, Tags: map[string]string{"dc": "NA", "rack": "r3"}},
			{Id: 3, Votes: 1, Tags: map[string]string{"dc": "EU", "rack": "r4"}},
			{Id: 4, Votes: 1, Tags: map[string]string{"dc": "EU", "rack": "r5"}},
		},
		Settings: rsconfig.Settings{
			GetLastErrorModes: map[string]map[string]int{
				"multiDC":        {"dc": 2},
				"multiDCAndRack": {"dc": 2, "rack": 3},
			},
		},
	}
}

func (s *trackerSuite) TestNamedModesProgressively(c *tc.C) {
	cfg := fiveMemberTaggedConfig()
	tr := optimetracker.New(cfg, 0)
	tr.SetCurrentTerm(1)
	target := ot(100, 1)
	tr.SetMyLastOpTime(target)

	assertMode := func(name string, want bool) {
		ok, err := tr.Resolve(target, optimetracker.WriteConcern{Mode: name})
		c.Assert(err, tc.ErrorIsNil)
		c.Check(ok, tc.Equals, want, tc.Commentf("mode %s", name))
	}
	assertMode("majority", false)
	assertMode("multiDC", false)
	assertMode("multiDCAndRack", false)

	// Two more NA members catch up: majority satisfied (3/5 voters),
	// custom modes still fail (only one dc represented).
	tr.ApplyPositionUpdate(cfg.Version, 1, target)
	tr.ApplyPositionUpdate(cfg.Version, 2, target)
	assertMode("majority", true)
	assertMode("multiDC", false)
	assertMode("multiDCAndRack", false)

	// A third, EU member catches up too: both custom modes now hold.
	tr.ApplyPositionUpdate(cfg.Version, 3, target)
	assertMode("multiDC", true)
	assertMode("multiDCAndRack", true)
}

func (s *trackerSuite) TestUnknownModeErrors(c *tc.C) {
	tr := optimetracker.New(fiveMemberTaggedConfig(), 0)
	_, err := tr.Resolve(ot(1, 1), optimetracker.WriteConcern{Mode: "doesNotExist"})
	c.Check(err, tc.ErrorIs, rcerrors.UnknownReplWriteConcern)
}

func (s *trackerSuite) TestCannotSatisfyWriteConcernWhenWExceedsMembers(c *tc.C) {
	cfg := rsconfig.Config{Members: []rsconfig.Member{{Id: 0, Votes: 1}}}
	tr := optimetracker.New(cfg, 0)
	_, err := tr.Resolve(ot(1, 1), optimetracker.WriteConcern{W: 5})
	c.Check(err, tc.NotNil)
}

func (s *trackerSuite) TestMajorityRequiresVotersArbitersAndNonVotersDontCount(c *tc.C) {
	cfg := rsconfig.Config{
		Members: []rsconfig.Member{
			{Id: 0, Votes: 1},
			{Id: 1, Votes: 1, ArbiterOnly: true},
			{Id: 2, Votes: 0},
		},
	}
	tr := optimetracker.New(cfg, 0)
	tr.SetMyLastOpTime(ot(5, 0))
	tr.ApplyPositionUpdate(cfg.Version, 1, ot(5, 0))
	tr.ApplyPositionUpdate(cfg.Version, 2, ot(5, 0))

	// Only member 0 counts toward majority (1 of 1 majority voter): satisfied.
	c.Check(tr.SatisfiesMajority(ot(5, 0)), tc.IsTrue)
}

func (s *trackerSuite) TestPositionUpdateSelfIsNoop(c *tc.C) {
	cfg := rsconfig.Config{Members: []rsconfig.Member{{Id: 0, Votes: 1}, {Id: 1, Votes: 1}}}
	tr := optimetracker.New(cfg, 0)
	err := tr.ApplyPositionUpdate(cfg.Version, 0, ot(100, 1))
	c.Assert(err, tc.ErrorIsNil)
	c.Check(tr.MyLastAppliedOpTime(), tc.Equals, optime.Zero)
}

func (s *trackerSuite) TestPositionUpdateConfigVersionGuard(c *tc.C) {
	cfg := rsconfig.Config{Version: 5, Members: []rsconfig.Member{{Id: 0, Votes: 1}, {Id: 1, Votes: 1}}}
	tr := optimetracker.New(cfg, 0)
	err := tr.ApplyPositionUpdate(6, 1, ot(1, 1))
	c.Check(err, tc.NotNil)
	c.Check(tr.AppliedOpTime(1), tc.Equals, optime.Zero)
}

func (s *trackerSuite) TestPositionUpdateUnknownMember(c *tc.C) {
	cfg := rsconfig.Config{Members: []rsconfig.Member{{Id: 0, Votes: 1}}}
	tr := optimetracker.New(cfg, 0)
	err := tr.ApplyPositionUpdate(cfg.Version, 99, ot(1, 1))
	c.Check(err, tc.NotNil)
}

func (s *trackerSuite) TestPositionNeverRegresses(c *tc.C) {
	cfg := rsconfig.Config{Members: []rsconfig.Member{{Id: 0, Votes: 1}, {Id: 1, Votes: 1}}}
	tr := optimetracker.New(cfg, 0)
	tr.ApplyPositionUpdate(cfg.Version, 1, ot(100, 1))
	tr.ApplyPositionUpdate(cfg.Version, 1, ot(50, 1))
	c.Check(tr.AppliedOpTime(1), tc.Equals, ot(100, 1))
}

func (s *trackerSuite) TestCommitPointOnlyTrustsCurrentTerm(c *tc.C) {
	cfg := rsconfig.Config{Members: []rsconfig.Member{
		{Id: 0, Votes: 1}, {Id: 1, Votes: 1}, {Id: 2, Votes: 1},
	}}
	tr := optimetracker.New(cfg, 0)
	tr.SetCurrentTerm(2)
	tr.SetMyLastOpTime(ot(100, 1))
	tr.ApplyPositionUpdate(cfg.Version, 1, ot(100, 1))

	tr.AdvanceCommitPoint(ot(100, 1)) // wrong term: ignored
	c.Check(tr.LastCommittedOpTime(), tc.Equals, optime.Zero)

	tr.SetMyLastOpTime(ot(100, 2))
	tr.ApplyPositionUpdate(cfg.Version, 1, ot(100, 2))
	tr.AdvanceCommitPoint(ot(100, 2))
	c.Check(tr.LastCommittedOpTime(), tc.Equals, ot(100, 2))
}

func (s *trackerSuite) TestApplyMetadataBumpsCommitOnMatchingConfigVersion(c *tc.C) {
	cfg := rsconfig.Config{Version: 2, Members: []rsconfig.Member{{Id: 0, Votes: 1}}}
	tr := optimetracker.New(cfg, 0)
	tr.SetCurrentTerm(1)

	changed := tr.ApplyMetadata(optimetracker.ReplicaSetMetadata{
		LastOpCommitted: ot(10, 1), ConfigVersion: 2, Term: 1,
	})
	c.Check(changed, tc.IsFalse)
	c.Check(tr.LastCommittedOpTime(), tc.Equals, ot(10, 1))

	// Mismatched config version leaves commit untouched.
	changed = tr.ApplyMetadata(optimetracker.ReplicaSetMetadata{
		LastOpCommitted: ot(999, 1), ConfigVersion: 100, Term: 1,
	})
	c.Check(changed, tc.IsFalse)
	c.Check(tr.LastCommittedOpTime(), tc.Equals, ot(10, 1))
}

func (s *trackerSuite) TestApplyMetadataTermBump(c *tc.C) {
	cfg := rsconfig.Config{Version: 1, Members: []rsconfig.Member{{Id: 0, Votes: 1}}}
	tr := optimetracker.New(cfg, 0)
	tr.SetCurrentTerm(1)

	changed := tr.ApplyMetadata(optimetracker.ReplicaSetMetadata{ConfigVersion: 1, Term: 3})
	c.Check(changed, tc.IsTrue)
	c.Check(tr.CurrentTerm(), tc.Equals, int64(3))

	changed = tr.ApplyMetadata(optimetracker.ReplicaSetMetadata{ConfigVersion: 1, Term: 2})
	c.Check(changed, tc.IsFalse)
	c.Check(tr.CurrentTerm(), tc.Equals, int64(3))
}

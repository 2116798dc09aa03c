package metrics_test

import (
	stdtesting "testing"

	"github.com/juju/tc"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jujuclone/replcoord/internal/metrics"
)

func TestPackage(t *stdtesting.T) { tc.Run(t, &collectorSuite{}) }

type collectorSuite struct{}

func (s *collectorSuite) TestTermGaugeReportsSetValue(c *tc.C) {
	col := metrics.NewCollector()
	col.Term.Set(7)
	c.Check(testutil.ToFloat64(col.Term), tc.Equals, float64(7))
}

func (s *collectorSuite) TestElectionsTotalCountsByResult(c *tc.C) {
	col := metrics.NewCollector()
	col.ElectionsTotal.WithLabelValues("won").Inc()
	col.ElectionsTotal.WithLabelValues("won").Inc()
	col.ElectionsTotal.WithLabelValues("lost").Inc()
	c.Check(testutil.ToFloat64(col.ElectionsTotal.WithLabelValues("won")), tc.Equals, float64(2))
	c.Check(testutil.ToFloat64(col.ElectionsTotal.WithLabelValues("lost")), tc.Equals, float64(1))
}

func (s *collectorSuite) TestCollectReportsEveryMetric(c *tc.C) {
	col := metrics.NewCollector()
	n := testutil.CollectAndCount(col)
	c.Check(n > 0, tc.IsTrue)
}

// Package metrics exposes the coordinator's Prometheus collectors
// (SPEC_FULL.md §4: term, commit-point lag, blocked waiters, elections,
// per-member state), wired into github.com/prometheus/client_golang the
// way the teacher wires its own controller/worker metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector bundles every gauge/counter the Replication Coordinator
// updates. Register it with a prometheus.Registerer at construction time.
type Collector struct {
	Term             prometheus.Gauge
	CommitOpTimeLag  prometheus.Gauge
	WaitersBlocked   prometheus.Gauge
	ElectionsTotal   *prometheus.CounterVec
	MemberState      *prometheus.GaugeVec
}

// NewCollector builds an unregistered Collector.
func NewCollector() *Collector {
	return &Collector{
		Term: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "replcoord",
			Name:      "term",
			Help:      "Current replication term of this node.",
		}),
		CommitOpTimeLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "replcoord",
			Name:      "commit_optime_lag_seconds",
			Help:      "Seconds between this node's last applied OpTime and the commit point.",
		}),
		WaitersBlocked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "replcoord",
			Name:      "waiters_blocked",
			Help:      "Number of client operations currently blocked on a write/read concern.",
		}),
		ElectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "replcoord",
			Name:      "elections_total",
			Help:      "Elections this node has participated in, by result.",
		}, []string{"result"}),
		MemberState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "replcoord",
			Name:      "member_state",
			Help:      "1 if the member is currently observed in the given state, else 0.",
		}, []string{"member", "state"}),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.Term.Describe(ch)
	c.CommitOpTimeLag.Describe(ch)
	c.WaitersBlocked.Describe(ch)
	c.ElectionsTotal.Describe(ch)
	c.MemberState.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.Term.Collect(ch)
	c.CommitOpTimeLag.Collect(ch)
	c.WaitersBlocked.Collect(ch)
	c.ElectionsTotal.Collect(ch)
	c.MemberState.Collect(ch)
}

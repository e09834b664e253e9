package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-accessors/internal/host"
	"github.com/nerrad567/gray-logic-accessors/internal/infrastructure/statemirror"
	"github.com/nerrad567/gray-logic-accessors/internal/session"
)

// hostCollector reads instance and session state at scrape time.
type hostCollector struct {
	src Source

	instances   *prometheus.Desc
	connected   *prometheus.Desc
	events      *prometheus.Desc
	dropped     *prometheus.Desc
	failures    *prometheus.Desc
	suspensions *prometheus.Desc
	timeouts    *prometheus.Desc
}

func newHostCollector(src Source) *hostCollector {
	labels := []string{"accessor", "kind"}
	desc := func(name, help string, labels []string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &hostCollector{
		src:         src,
		instances:   desc("instances", "Accessor instances by kind and status.", []string{"kind", "status"}),
		connected:   desc("session_connected", "1 while the device session is connected.", labels),
		events:      desc("session_events_total", "Device-originated values observed.", labels),
		dropped:     desc("session_dropped_total", "Inbound messages dropped on a full inbox.", labels),
		failures:    desc("session_failures_total", "Fatal session failures.", labels),
		suspensions: desc("scheduler_suspensions_total", "Tasks suspended awaiting I/O.", labels),
		timeouts:    desc("scheduler_timeouts_total", "Suspended operations that timed out.", labels),
	}
}

func (c *hostCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.instances
	ch <- c.connected
	ch <- c.events
	ch <- c.dropped
	ch <- c.failures
	ch <- c.suspensions
	ch <- c.timeouts
}

func (c *hostCollector) Collect(ch chan<- prometheus.Metric) {
	type key struct{ kind, status string }
	counts := make(map[key]int)

	stats := c.src.SessionStats()
	for _, inst := range c.src.Instances() {
		counts[key{inst.Kind, string(inst.Status)}]++

		st, ok := stats[inst.ID]
		if !ok {
			continue
		}
		connected := 0.0
		if st.State == session.Connected {
			connected = 1
		}
		ch <- prometheus.MustNewConstMetric(c.connected, prometheus.GaugeValue, connected, inst.ID, inst.Kind)
		ch <- prometheus.MustNewConstMetric(c.events, prometheus.CounterValue, float64(st.Events), inst.ID, inst.Kind)
		ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(st.Dropped), inst.ID, inst.Kind)
		ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(st.Failures), inst.ID, inst.Kind)
		ch <- prometheus.MustNewConstMetric(c.suspensions, prometheus.CounterValue, float64(st.Scheduler.Suspensions), inst.ID, inst.Kind)
		ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, float64(st.Scheduler.Timeouts), inst.ID, inst.Kind)
	}

	for k, n := range counts {
		ch <- prometheus.MustNewConstMetric(c.instances, prometheus.GaugeValue, float64(n), k.kind, k.status)
	}
}

var _ prometheus.Collector = (*hostCollector)(nil)

// compile-time check that the host satisfies Source.
var _ Source = (*host.Host)(nil)

// MirrorSource is satisfied by *statemirror.Mirror.
type MirrorSource interface {
	Stats() statemirror.Stats
}

// mirrorCollector exports the state mirror's write counters.
type mirrorCollector struct {
	src MirrorSource

	written *prometheus.Desc
	dropped *prometheus.Desc
	failed  *prometheus.Desc
}

func newMirrorCollector(src MirrorSource) *mirrorCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "mirror", name), help, nil, nil)
	}
	return &mirrorCollector{
		src:     src,
		written: desc("written_total", "Port values written to the state mirror."),
		dropped: desc("dropped_total", "Port values dropped on a full mirror queue."),
		failed:  desc("failed_total", "State mirror writes that failed."),
	}
}

func (c *mirrorCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.written
	ch <- c.dropped
	ch <- c.failed
}

func (c *mirrorCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(c.written, prometheus.CounterValue, float64(st.Written))
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(st.Dropped))
	ch <- prometheus.MustNewConstMetric(c.failed, prometheus.CounterValue, float64(st.Failed))
}

var _ MirrorSource = (*statemirror.Mirror)(nil)

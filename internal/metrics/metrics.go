// Package metrics exposes accessor host state as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-accessors/internal/host"
	"github.com/nerrad567/gray-logic-accessors/internal/port"
	"github.com/nerrad567/gray-logic-accessors/internal/session"
)

const namespace = "accessorhost"

// Source is satisfied by *host.Host.
type Source interface {
	Instances() []host.Instance
	SessionStats() map[string]session.Stats
}

// Metrics owns a private registry with the host collector, a per-port
// event counter and the Go runtime collectors.
type Metrics struct {
	registry   *prometheus.Registry
	portEvents *prometheus.CounterVec
}

// New registers collectors reading from src.
func New(src Source) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		portEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "port_events_total",
			Help:      "Values pushed out of output ports.",
		}, []string{"accessor", "port"}),
	}
	m.registry.MustRegister(
		m.portEvents,
		newHostCollector(src),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// AddMirror exports the counters of a state mirror.
func (m *Metrics) AddMirror(src MirrorSource) {
	m.registry.MustRegister(newMirrorCollector(src))
}

// Deliver implements host.Sink.
func (m *Metrics) Deliver(id string, ev port.Event) {
	m.portEvents.WithLabelValues(id, ev.Port).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

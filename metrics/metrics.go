// Package metrics exposes bridge activity as Prometheus metrics.
//
// A Collector implements wasd.Observer. All methods are safe for concurrent
// use, and a nil *Collector is a valid no-op receiver.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	wasd "github.com/luhtfiimanal/serial-wasd"
)

const namespace = "serial_wasd"

// Collector tracks bridge metrics in its own registry.
type Collector struct {
	registry *prometheus.Registry

	bytesReceived  prometheus.Counter
	bytesDropped   prometheus.Counter
	lines          *prometheus.CounterVec
	keyEvents      *prometheus.CounterVec
	sinkErrors     prometheus.Counter
	sessionsActive prometheus.Gauge
	sessionsTotal  prometheus.Counter
	reconnects     prometheus.Counter
}

// New creates a Collector with Go runtime and process collectors registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Bytes delivered by the serial transport.",
		}),
		bytesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_dropped_total",
			Help:      "Bytes discarded because a line exceeded the buffer capacity.",
		}),
		lines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_total",
			Help:      "Complete lines by kind.",
		}, []string{"kind"}),
		keyEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "key_events_total",
			Help:      "Key events emitted to the virtual keyboard.",
		}, []string{"key", "state"}),
		sinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed writes to the virtual keyboard.",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently open.",
		}),
		sessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Sessions opened since start.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Times the serial device was reopened after a failure.",
		}),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.bytesReceived,
		c.bytesDropped,
		c.lines,
		c.keyEvents,
		c.sinkErrors,
		c.sessionsActive,
		c.sessionsTotal,
		c.reconnects,
	)
	return c
}

// Registry returns the registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ── wasd.Observer ────────────────────────────────────────────────────

// BytesReceived records n bytes read from the transport.
func (c *Collector) BytesReceived(n int) {
	if c == nil {
		return
	}
	c.bytesReceived.Add(float64(n))
}

// BytesDropped records n bytes lost to line overflow.
func (c *Collector) BytesDropped(n int) {
	if c == nil {
		return
	}
	c.bytesDropped.Add(float64(n))
}

// LineProcessed counts a complete line.
func (c *Collector) LineProcessed(kind wasd.LineKind) {
	if c == nil {
		return
	}
	c.lines.WithLabelValues(kind.String()).Inc()
}

// KeyEmitted counts a key event delivered to the sink.
func (c *Collector) KeyEmitted(cmd wasd.Command) {
	if c == nil {
		return
	}
	state := "release"
	if cmd.Pressed {
		state = "press"
	}
	c.keyEvents.WithLabelValues(cmd.Key.String(), state).Inc()
}

// SinkFailed counts a failed sink write.
func (c *Collector) SinkFailed() {
	if c == nil {
		return
	}
	c.sinkErrors.Inc()
}

// SessionOpened tracks a new session.
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.sessionsActive.Inc()
	c.sessionsTotal.Inc()
}

// SessionClosed tracks a closed session.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.sessionsActive.Dec()
}

// ── Supervisor ───────────────────────────────────────────────────────

// Reconnect records the serial device being reopened.
func (c *Collector) Reconnect() {
	if c == nil {
		return
	}
	c.reconnects.Inc()
}

var _ wasd.Observer = (*Collector)(nil)

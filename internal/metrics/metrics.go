// Package metrics exposes Prometheus collectors for the streaming
// engine's queue depths and backpressure state, the connection pool's
// occupancy, and the acquisition watchdog's reset/expire counts.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/finnstutzenstein/adcpd/internal/streaming"
)

// Collector implements streaming.Metrics and additionally tracks
// connection-pool and watchdog counters the daemon updates directly.
type Collector struct {
	queueDepth    *prometheus.GaugeVec
	httpPermitted prometheus.Gauge
	slowConns     prometheus.Counter
	activeConns   prometheus.Gauge
	watchdogReset prometheus.Counter
	watchdogFire  prometheus.Counter
}

var _ streaming.Metrics = (*Collector)(nil)

// New builds and registers the collector against reg. Passing
// prometheus.NewRegistry() keeps metrics isolated for tests; the daemon
// registers against prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "adcpd",
			Subsystem: "streaming",
			Name:      "queue_depth",
			Help:      "Current descriptor count in each streaming queue.",
		}, []string{"stream"}),
		httpPermitted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "adcpd",
			Subsystem: "streaming",
			Name:      "http_permitted",
			Help:      "1 if HTTP/WebSocket delivery is currently permitted, 0 if locked out by backpressure.",
		}),
		slowConns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adcpd",
			Subsystem: "streaming",
			Name:      "slow_connection_total",
			Help:      "Count of delivery attempts skipped due to a connection's write lock being held.",
		}),
		activeConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "adcpd",
			Subsystem: "netserver",
			Name:      "active_connections",
			Help:      "Currently connected clients across TCP and WebSocket.",
		}),
		watchdogReset: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adcpd",
			Subsystem: "acquisition",
			Name:      "watchdog_reset_total",
			Help:      "Count of DRDY events that fed the acquisition watchdog.",
		}),
		watchdogFire: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adcpd",
			Subsystem: "acquisition",
			Name:      "watchdog_expired_total",
			Help:      "Count of watchdog expirations (missed samples triggering an ADC reset).",
		}),
	}
	reg.MustRegister(c.queueDepth, c.httpPermitted, c.slowConns, c.activeConns, c.watchdogReset, c.watchdogFire)
	return c
}

func streamLabel(s streaming.Stream) string {
	switch s {
	case streaming.StreamDebug:
		return "debug"
	case streaming.StreamStatus:
		return "status"
	case streaming.StreamData:
		return "data"
	case streaming.StreamFFT:
		return "fft"
	default:
		return "unknown"
	}
}

// SetQueueDepth implements streaming.Metrics.
func (c *Collector) SetQueueDepth(s streaming.Stream, depth int) {
	c.queueDepth.WithLabelValues(streamLabel(s)).Set(float64(depth))
}

// SetHTTPPermitted implements streaming.Metrics.
func (c *Collector) SetHTTPPermitted(permitted bool) {
	if permitted {
		c.httpPermitted.Set(1)
		return
	}
	c.httpPermitted.Set(0)
}

// IncSlowConnection implements streaming.Metrics.
func (c *Collector) IncSlowConnection() {
	c.slowConns.Inc()
}

// SetActiveConnections records the netserver connection pool's current
// occupancy.
func (c *Collector) SetActiveConnections(n int) {
	c.activeConns.Set(float64(n))
}

// IncWatchdogReset counts one DRDY-fed watchdog reset.
func (c *Collector) IncWatchdogReset() {
	c.watchdogReset.Inc()
}

// IncWatchdogExpired counts one watchdog expiration (missed-sample ADC
// reset).
func (c *Collector) IncWatchdogExpired() {
	c.watchdogFire.Inc()
}

// Handler returns the promhttp handler for mounting at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

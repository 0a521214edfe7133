package mitmproxy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sentinel-intercept/proxy/internal/domain/eventbus"
)

// Metrics holds the Prometheus counters derived from Event Bus traffic
// (spec.md §6 event types), exposed on an optional /metrics listener.
type Metrics struct {
	FlowsTotal      prometheus.Counter
	InterceptsTotal *prometheus.CounterVec
	FindingsTotal   prometheus.Counter
	WSSessionsTotal prometheus.Counter
}

// NewMetrics registers the proxy's counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		FlowsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "sentinel_proxy",
			Name:      "flows_total",
			Help:      "Total Flow Records committed to History.",
		}),
		InterceptsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel_proxy",
			Name:      "intercepts_total",
			Help:      "Intercept Gate outcomes.",
		}, []string{"outcome"}),
		FindingsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "sentinel_proxy",
			Name:      "scan_findings_total",
			Help:      "Vulnerability findings recorded by the passive/active scanners.",
		}),
		WSSessionsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "sentinel_proxy",
			Name:      "ws_sessions_total",
			Help:      "WebSocket sessions observed.",
		}),
	}
}

// Subscribe drives the counters from bus events, on a goroutine it starts
// itself, until the returned unsubscribe func is called.
func (m *Metrics) Subscribe(bus *eventbus.Bus) (unsubscribe func()) {
	ch, unsubscribe := bus.Subscribe()
	go func() {
		for evt := range ch {
			switch evt.Type {
			case eventbus.TypeNewHistoryEntry:
				m.FlowsTotal.Inc()
			case eventbus.TypeInterceptTimeout:
				m.InterceptsTotal.WithLabelValues("timeout").Inc()
			case eventbus.TypeScanFinding:
				m.FindingsTotal.Inc()
			case eventbus.TypeWSSessionStarted:
				m.WSSessionsTotal.Inc()
			}
		}
	}()
	return unsubscribe
}

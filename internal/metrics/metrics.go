// Package metrics exposes the engine's system_health counters — events
// dropped by the bus, retried upstream fetches, and the insufficient-data
// rate of completed analyses — as Prometheus metrics on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sezginpak/gold-analyzer/internal/events"
)

// Registry holds the engine's Prometheus collectors, each registered
// against its own prometheus.Registry rather than the global default —
// so a process can construct more than one (tests do) without tripping
// a duplicate-registration panic.
type Registry struct {
	bus *events.EventBus
	reg *prometheus.Registry

	eventsDropped     *prometheus.GaugeVec
	retriesTotal      prometheus.Counter
	analysesTotal     prometheus.Counter
	insufficientTotal prometheus.Counter
}

// NewRegistry constructs and registers the engine's collectors.
func NewRegistry(bus *events.EventBus) *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		bus: bus,
		reg: reg,
		eventsDropped: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gold_analyzer",
			Name:      "events_dropped_total",
			Help:      "Events evicted from a subscriber's queue before delivery, by topic and subscription token.",
		}, []string{"topic", "token"}),
		retriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gold_analyzer",
			Name:      "upstream_retries_total",
			Help:      "Retried upstream adapter fetches.",
		}),
		analysesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gold_analyzer",
			Name:      "analyses_total",
			Help:      "Completed per-timeframe analyses, regardless of outcome.",
		}),
		insufficientTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gold_analyzer",
			Name:      "analyses_insufficient_data_total",
			Help:      "Analyses that returned HOLD for lack of minimum history.",
		}),
	}
}

// IncRetry records one retried upstream fetch.
func (r *Registry) IncRetry() { r.retriesTotal.Inc() }

// RetriesTotal exposes the upstream-retry counter itself, so callers (tests,
// mainly) can read its current value via prometheus/testutil.
func (r *Registry) RetriesTotal() prometheus.Counter { return r.retriesTotal }

// ObserveAnalysis records one completed analysis, tallying it against the
// insufficient-data counter when insufficient reports true.
func (r *Registry) ObserveAnalysis(insufficient bool) {
	r.analysesTotal.Inc()
	if insufficient {
		r.insufficientTotal.Inc()
	}
}

// Handler returns the /metrics HTTP handler for this registry's collectors.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// StartPolling periodically snapshots the event bus's per-subscriber
// dropped counts into the events_dropped gauge until the caller closes
// stop.
func (r *Registry) StartPolling(stop <-chan struct{}, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				r.poll()
			}
		}
	}()
}

func (r *Registry) poll() {
	stats := r.bus.Stats()
	for _, sub := range stats.Subscribers {
		r.eventsDropped.WithLabelValues(string(sub.Topic), sub.Token).Set(float64(sub.Dropped))
	}
}

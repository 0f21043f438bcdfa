// Package metrics exposes business counters in Prometheus format.
// HTTP and client metrics go through OpenTelemetry in the telemetry package;
// the counters here are the ones operators alert on.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "garden"

// Garden holds the service's Prometheus collectors.
type Garden struct {
	quoteRefresh *prometheus.CounterVec
	quoteServed  prometheus.Counter
	completions  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them on /-/metrics.
func New(reg prometheus.Registerer) (*Garden, error) {
	g := &Garden{
		quoteRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "daily_quote_refresh_total",
			Help:      "Daily quote refresh attempts by result.",
		}, []string{"result"}),
		quoteServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "daily_quote_served_total",
			Help:      "Daily quotes served to clients.",
		}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_requests_total",
			Help:      "Upstream completion requests by operation and result.",
		}, []string{"operation", "result"}),
	}

	for _, c := range []prometheus.Collector{g.quoteRefresh, g.quoteServed, g.completions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// QuoteRefresh increments the refresh counter for result.
func (g *Garden) QuoteRefresh(result string) {
	g.quoteRefresh.WithLabelValues(result).Inc()
}

// QuoteServed increments the served counter.
func (g *Garden) QuoteServed() {
	g.quoteServed.Inc()
}

// Completion increments the completion counter.
func (g *Garden) Completion(operation, result string) {
	g.completions.WithLabelValues(operation, result).Inc()
}

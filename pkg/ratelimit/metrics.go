package ratelimit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector receives guard events
type MetricsCollector interface {
	// IncCalls counts a guarded call, waited or not
	IncCalls(endpoint string)
	// IncWaits counts a call that had to wait for the quota reset
	IncWaits(endpoint string)
	// ObserveWait records how long a call waited
	ObserveWait(endpoint string, wait time.Duration)
}

type disabledMetrics struct{}

func (disabledMetrics) IncCalls(string)                   {}
func (disabledMetrics) IncWaits(string)                   {}
func (disabledMetrics) ObserveWait(string, time.Duration) {}

// PrometheusMetricsCollector exports guard events as Prometheus counters
type PrometheusMetricsCollector struct {
	Calls       *prometheus.CounterVec
	Waits       *prometheus.CounterVec
	WaitSeconds *prometheus.CounterVec
}

// NewPrometheusMetricsCollector creates the counters under namespace
func NewPrometheusMetricsCollector(namespace string) *PrometheusMetricsCollector {
	return &PrometheusMetricsCollector{
		Calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_calls_total",
			Help:      "Number of guarded API calls per endpoint category.",
		}, []string{"endpoint"}),
		Waits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_waits_total",
			Help:      "Number of calls that waited for the daily quota reset.",
		}, []string{"endpoint"}),
		WaitSeconds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_wait_seconds_total",
			Help:      "Total time spent waiting for the daily quota reset.",
		}, []string{"endpoint"}),
	}
}

// MustRegister registers the counters with reg
func (p *PrometheusMetricsCollector) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(p.Calls, p.Waits, p.WaitSeconds)
}

// Unregister removes the counters from reg
func (p *PrometheusMetricsCollector) Unregister(reg prometheus.Registerer) {
	reg.Unregister(p.Calls)
	reg.Unregister(p.Waits)
	reg.Unregister(p.WaitSeconds)
}

func (p *PrometheusMetricsCollector) IncCalls(endpoint string) {
	p.Calls.WithLabelValues(endpoint).Inc()
}

func (p *PrometheusMetricsCollector) IncWaits(endpoint string) {
	p.Waits.WithLabelValues(endpoint).Inc()
}

func (p *PrometheusMetricsCollector) ObserveWait(endpoint string, wait time.Duration) {
	p.WaitSeconds.WithLabelValues(endpoint).Add(wait.Seconds())
}

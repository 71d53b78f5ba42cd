// Package metrics holds the Prometheus collectors shared by the monitor,
// DNS cache, interceptor and job runner.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Connection monitor
	MonitorPolls         prometheus.Counter
	MonitorPollErrors    prometheus.Counter
	MonitorEvents        *prometheus.CounterVec
	MonitorEventsDropped prometheus.Counter

	// DNS cache
	DNSCacheHits    prometheus.Counter
	DNSCacheMisses  prometheus.Counter
	DNSCacheEntries prometheus.Gauge

	// Interceptor
	InterceptDecisions *prometheus.CounterVec

	// Task runner
	Jobs *prometheus.CounterVec
}

// New registers every collector on reg. A nil reg uses a private registry so
// callers that do not expose metrics never collide on the default one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		MonitorPolls: factory.NewCounter(prometheus.CounterOpts{
			Name: "sparrow_monitor_polls_total",
			Help: "Total number of connection table polls",
		}),
		MonitorPollErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "sparrow_monitor_poll_errors_total",
			Help: "Connection table polls that failed to enumerate",
		}),
		MonitorEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sparrow_monitor_events_total",
				Help: "Newly observed connections by transport",
			},
			[]string{"transport"},
		),
		MonitorEventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "sparrow_monitor_events_dropped_total",
			Help: "Connection events dropped because the queue was full",
		}),
		DNSCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "sparrow_dns_cache_hits_total",
			Help: "Resolutions answered from the cache",
		}),
		DNSCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "sparrow_dns_cache_misses_total",
			Help: "Resolutions that required a DoH query",
		}),
		DNSCacheEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sparrow_dns_cache_entries",
			Help: "Domains currently cached",
		}),
		InterceptDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sparrow_intercept_decisions_total",
				Help: "Interceptor decisions by action",
			},
			[]string{"action"},
		),
		Jobs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sparrow_jobs_total",
				Help: "Reconnaissance jobs by type and final status",
			},
			[]string{"type", "status"},
		),
	}
}

// Nop returns metrics bound to a throwaway registry.
func Nop() *Metrics {
	return New(nil)
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Failure reasons recorded by RecordFailure.
const (
	ReasonDiscovery = "discovery"
	ReasonNoShards  = "no_shards"
)

// PlacementMetrics instruments placement decisions and fleet aggregation.
type PlacementMetrics struct {
	// DecisionsTotal counts successful placements. Labels: source (cache, sticky, least_loaded)
	DecisionsTotal *prometheus.CounterVec

	// FailuresTotal counts failed placements. Labels: reason (discovery, no_shards)
	FailuresTotal *prometheus.CounterVec

	// FetchFailuresTotal counts per-shard snapshot fetches that were absorbed.
	FetchFailuresTotal prometheus.Counter

	// FleetShards is the number of shards that answered the last aggregation.
	FleetShards prometheus.Gauge

	// FleetUnreachable is the number of shards that failed the last aggregation.
	FleetUnreachable prometheus.Gauge

	// CacheClearsTotal counts administrative cache resets.
	CacheClearsTotal prometheus.Counter
}

// NewPlacementMetricsWithRegistry registers placement metrics with reg.
func NewPlacementMetricsWithRegistry(reg prometheus.Registerer) *PlacementMetrics {
	m := &PlacementMetrics{
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "placement",
				Name:      "decisions_total",
				Help:      "Successful placement decisions, by source.",
			},
			[]string{"source"},
		),
		FailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "placement",
				Name:      "failures_total",
				Help:      "Failed placement decisions, by reason.",
			},
			[]string{"reason"},
		),
		FetchFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fleet",
				Name:      "fetch_failures_total",
				Help:      "Shard snapshot fetches that failed and were excluded.",
			},
		),
		FleetShards: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "fleet",
				Name:      "shards",
				Help:      "Shards that answered the most recent aggregation.",
			},
		),
		FleetUnreachable: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "fleet",
				Name:      "unreachable_shards",
				Help:      "Discovered shards that failed the most recent aggregation.",
			},
		),
		CacheClearsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "placement",
				Name:      "cache_clears_total",
				Help:      "Administrative placement cache resets.",
			},
		),
	}

	reg.MustRegister(
		m.DecisionsTotal,
		m.FailuresTotal,
		m.FetchFailuresTotal,
		m.FleetShards,
		m.FleetUnreachable,
		m.CacheClearsTotal,
	)
	return m
}

// RecordDecision counts a successful placement.
func (m *PlacementMetrics) RecordDecision(source string) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(source).Inc()
}

// RecordFailure counts a failed placement.
func (m *PlacementMetrics) RecordFailure(reason string) {
	if m == nil {
		return
	}
	m.FailuresTotal.WithLabelValues(reason).Inc()
}

// RecordFetchFailure counts one absorbed shard fetch failure.
func (m *PlacementMetrics) RecordFetchFailure() {
	if m == nil {
		return
	}
	m.FetchFailuresTotal.Inc()
}

// ObserveFleet records the outcome of an aggregation pass.
func (m *PlacementMetrics) ObserveFleet(answered, failed int) {
	if m == nil {
		return
	}
	m.FleetShards.Set(float64(answered))
	m.FleetUnreachable.Set(float64(failed))
}

// RecordCacheClear counts a cache reset.
func (m *PlacementMetrics) RecordCacheClear() {
	if m == nil {
		return
	}
	m.CacheClearsTotal.Inc()
}

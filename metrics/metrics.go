// Package metrics exposes the engine's prometheus collectors. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vesting"

type Metrics struct {
	cacheLookups        *prometheus.CounterVec
	contractOutcomes    *prometheus.CounterVec
	abiResolutions      *prometheus.CounterVec
	strategyAttempts    *prometheus.CounterVec
	persistenceFailures prometheus.Counter
	fetchDuration       prometheus.Histogram
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Beneficiary cache lookups by result (hit, miss, hollow).",
		}, []string{"result"}),
		contractOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contract_resolutions_total",
			Help:      "Per contract resolution outcomes (cache_hit, fresh_fetch, error).",
		}, []string{"outcome"}),
		abiResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "abi_resolutions_total",
			Help:      "ABI resolutions by the source that answered, or none.",
		}, []string{"source"}),
		strategyAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strategy_attempts_total",
			Help:      "Strategy attempts by attempt kind and result (found, empty, unsupported, error, timeout).",
		}, []string{"attempt", "result"}),
		persistenceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Cache writes that failed after a successful fetch.",
		}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of live per beneficiary fetches.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		}),
	}
	reg.MustRegister(
		m.cacheLookups,
		m.contractOutcomes,
		m.abiResolutions,
		m.strategyAttempts,
		m.persistenceFailures,
		m.fetchDuration,
	)
	return m
}

func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ContractOutcome(outcome string) {
	if m == nil {
		return
	}
	m.contractOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ABIResolution(source string) {
	if m == nil {
		return
	}
	m.abiResolutions.WithLabelValues(source).Inc()
}

func (m *Metrics) StrategyAttempt(attempt, result string) {
	if m == nil {
		return
	}
	m.strategyAttempts.WithLabelValues(attempt, result).Inc()
}

func (m *Metrics) PersistenceFailure() {
	if m == nil {
		return
	}
	m.persistenceFailures.Inc()
}

func (m *Metrics) ObserveFetch(started time.Time) {
	if m == nil {
		return
	}
	m.fetchDuration.Observe(time.Since(started).Seconds())
}

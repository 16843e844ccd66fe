package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the bank integration.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	bankRequestDuration *prometheus.HistogramVec
	bankErrors          *prometheus.CounterVec
	tokenGrants         *prometheus.CounterVec
	cacheHits           *prometheus.CounterVec
	cacheMisses         *prometheus.CounterVec
	settlements         *prometheus.CounterVec
	reconEntries        *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		bankRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "erp_bank_request_duration_seconds",
				Help:    "Duration of bank API calls by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		bankErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erp_bank_errors_total",
				Help: "Total bank API failures by class.",
			},
			[]string{"class"},
		),
		tokenGrants: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erp_bank_token_grants_total",
				Help: "OAuth2 grants performed, by outcome.",
			},
			[]string{"outcome"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erp_bank_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erp_bank_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		settlements: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erp_bank_settlements_total",
				Help: "Settlement outcomes (created, repeated).",
			},
			[]string{"outcome"},
		),
		reconEntries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erp_bank_reconciliation_entries_total",
				Help: "Reconciliation entry outcomes (saved, duplicate, unmatched).",
			},
			[]string{"outcome"},
		),
	}
}

// RecordBankRequest records the duration of a bank API call.
func (m *Metrics) RecordBankRequest(operation string, d time.Duration) {
	m.bankRequestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrBankError increments the bank error counter for an error class.
func (m *Metrics) IncrBankError(class string) {
	m.bankErrors.WithLabelValues(class).Inc()
}

// IncrTokenGrant counts an OAuth2 grant attempt.
func (m *Metrics) IncrTokenGrant(outcome string) {
	m.tokenGrants.WithLabelValues(outcome).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrSettlement counts a settlement by outcome.
func (m *Metrics) IncrSettlement(outcome string) {
	m.settlements.WithLabelValues(outcome).Inc()
}

// AddReconEntries adds n to a reconciliation outcome counter.
func (m *Metrics) AddReconEntries(outcome string, n int) {
	m.reconEntries.WithLabelValues(outcome).Add(float64(n))
}

// IntegrationSnapshot is a point-in-time view of the integration
// counters, served by the ops endpoint.
type IntegrationSnapshot struct {
	TokenGrantsOK     float64 `json:"token_grants_ok"`
	TokenGrantsFailed float64 `json:"token_grants_failed"`
	TokenCacheHitRate float64 `json:"token_cache_hit_rate"`
	SettlementsNew    float64 `json:"settlements_new"`
	SettlementsRepeat float64 `json:"settlements_repeated"`
	EntriesSaved      float64 `json:"entries_saved"`
	EntriesDuplicate  float64 `json:"entries_duplicate"`
}

// Snapshot gathers current counter values.
// Note: Prometheus counters expose cumulative values.
func (m *Metrics) Snapshot() *IntegrationSnapshot {
	hits := getCounterValue(m.cacheHits, "token")
	misses := getCounterValue(m.cacheMisses, "token")

	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &IntegrationSnapshot{
		TokenGrantsOK:     getCounterValue(m.tokenGrants, "ok"),
		TokenGrantsFailed: getCounterValue(m.tokenGrants, "failed"),
		TokenCacheHitRate: hitRate,
		SettlementsNew:    getCounterValue(m.settlements, "created"),
		SettlementsRepeat: getCounterValue(m.settlements, "repeated"),
		EntriesSaved:      getCounterValue(m.reconEntries, "saved"),
		EntriesDuplicate:  getCounterValue(m.reconEntries, "duplicate"),
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

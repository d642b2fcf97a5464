package analyzer

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels
const (
	OutcomeOK          = "ok"
	OutcomeCached      = "cached"
	OutcomeInvalid     = "invalid"
	OutcomeUnavailable = "unavailable"
	OutcomeUnknown     = "unknown_symbol"
	OutcomeError       = "error"
)

// Metrics holds the analysis Prometheus collectors.
type Metrics struct {
	Requests  *prometheus.CounterVec
	Duration  *prometheus.HistogramVec
	Dropped   *prometheus.CounterVec
	CacheHits *prometheus.CounterVec
	CacheMiss *prometheus.CounterVec
	Fallbacks *prometheus.CounterVec
	NetGEX    *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gexdex_analysis_requests_total",
				Help: "Analysis requests by symbol and outcome",
			},
			[]string{"symbol", "outcome"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gexdex_analysis_duration_seconds",
				Help:    "End-to-end analysis duration including the provider fetch",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
			},
			[]string{"symbol", "source"},
		),
		Dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gexdex_dropped_records_total",
				Help: "Raw quote records rejected during normalization",
			},
			[]string{"symbol"},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gexdex_cache_hits_total",
				Help: "Report cache hits by symbol",
			},
			[]string{"symbol"},
		),
		CacheMiss: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gexdex_cache_misses_total",
				Help: "Report cache misses by symbol",
			},
			[]string{"symbol"},
		),
		Fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gexdex_provider_fallbacks_total",
				Help: "Times the fallback data provider answered instead of the primary",
			},
			[]string{"symbol"},
		),
		NetGEX: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gexdex_net_gex_billions",
				Help: "Chain-wide net GEX of the latest analysis, in billions",
			},
			[]string{"symbol"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.Duration, m.Dropped, m.CacheHits, m.CacheMiss, m.Fallbacks, m.NetGEX)
	}
	return m
}

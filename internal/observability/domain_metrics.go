package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	engineCacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nl2sql_engine_cache_entries",
			Help: "Current number of cached engines.",
		},
	)
	engineAcquisitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nl2sql_engine_acquisitions_total",
			Help: "Total number of successful pooled connection acquisitions.",
		},
		[]string{"dialect"},
	)
	connectionErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nl2sql_connection_errors_total",
			Help: "Total number of failed connection acquisitions.",
		},
		[]string{"dialect"},
	)
	riskRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nl2sql_risk_rejections_total",
			Help: "Total number of SQL statements rejected by the risk validator.",
		},
		[]string{"pattern"},
	)
	statementDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nl2sql_statement_duration_seconds",
			Help:    "Latency of catalog reads and statement execution.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"dialect", "op"},
	)
)

func init() {
	prometheus.MustRegister(
		engineCacheEntries,
		engineAcquisitionsTotal,
		connectionErrorsTotal,
		riskRejectionsTotal,
		statementDurationSeconds,
	)
}

func SetEngineCacheEntries(n int) {
	if n < 0 {
		n = 0
	}
	engineCacheEntries.Set(float64(n))
}

func IncrementEngineAcquisitions(dialect string) {
	engineAcquisitionsTotal.WithLabelValues(dialect).Inc()
}

func IncrementConnectionErrors(dialect string) {
	connectionErrorsTotal.WithLabelValues(dialect).Inc()
}

func IncrementRiskRejections(pattern string) {
	riskRejectionsTotal.WithLabelValues(pattern).Inc()
}

// ObserveStatement records the latency of op ("schema" or "execute").
func ObserveStatement(dialect, op string, elapsed time.Duration) {
	statementDurationSeconds.WithLabelValues(dialect, op).Observe(elapsed.Seconds())
}

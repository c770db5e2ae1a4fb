package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sheetmap_build_info",
			Help: "Build information of sheetmap",
		},
		[]string{"version", "commit", "date"},
	)

	// Oracle metrics
	OracleRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetmap_oracle_requests_total",
			Help: "Total number of classification oracle requests",
		},
		[]string{"phase", "status"},
	)

	OracleRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sheetmap_oracle_request_duration_seconds",
			Help:    "Duration of classification oracle requests in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~410s
		},
		[]string{"phase"},
	)

	OracleTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetmap_oracle_tokens_total",
			Help: "Total number of oracle tokens used",
		},
		[]string{"type"}, // "input", "output"
	)

	// Identification run metrics
	IdentificationRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetmap_identification_runs_total",
			Help: "Total number of identification runs",
		},
		[]string{"status"}, // "success", "sheet_failure", "error"
	)

	ColumnsMappedPerRun = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sheetmap_columns_mapped_per_run",
			Help:    "Number of target columns mapped per identification run",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		},
	)

	ColumnFailuresPerRun = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sheetmap_column_failures_per_run",
			Help:    "Number of per-column classification failures per run",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		},
	)
)

// RecordOracleRequest records metrics for one oracle request.
func RecordOracleRequest(phase string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	OracleRequestsTotal.WithLabelValues(phase, status).Inc()
	OracleRequestDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// RecordOracleTokens records token usage for one oracle request.
func RecordOracleTokens(inputTokens, outputTokens int64) {
	OracleTokensTotal.WithLabelValues("input").Add(float64(inputTokens))
	OracleTokensTotal.WithLabelValues("output").Add(float64(outputTokens))
}

// RecordIdentificationRun records metrics for a completed identification run.
func RecordIdentificationRun(status string, mapped, failed int) {
	IdentificationRunsTotal.WithLabelValues(status).Inc()
	ColumnsMappedPerRun.Observe(float64(mapped))
	ColumnFailuresPerRun.Observe(float64(failed))
}

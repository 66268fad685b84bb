package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// These are the service-level instruments named in SPEC_FULL.md §4.0. They
// are registered against the default registry so promhttp.Handler() (used
// by Server in server.go) exposes them without extra wiring, the same way the
// teacher's package-level RecordAlert/RecordAction helpers work against
// prometheus.DefaultRegisterer.
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests handled, by endpoint and final status code.",
	}, []string{"endpoint", "status"})

	HTTPRequestDuration = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: "http_request_duration_seconds",
		Help: "HTTP request handling duration, by endpoint.",
	}, []string{"endpoint"})

	DiscoveryQueryDuration = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: "discovery_query_duration_seconds",
		Help: "Duration of named discovery SQL operations.",
	}, []string{"query"})

	DiscoveryNewCanonicalDives = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "discovery_new_canonical_dives_total",
		Help: "Count of new canonical dive rows created by consolidation.",
	})

	LabelSyncLastSuccess = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "labelsync_last_success_timestamp",
		Help: "Unix timestamp of the last successful sync per annotation project.",
	}, []string{"project"})

	OrchestratorJobsReaped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_jobs_reaped_total",
		Help: "Count of jobs transitioned to expired by the reaper, by job type.",
	}, []string{"job_type"})

	FileCacheOccupiedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "filecache_occupied_bytes",
		Help: "Current occupied bytes in the staged-file cache.",
	})

	FileCacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "filecache_entries",
		Help: "Current number of staged entries in the file cache.",
	})

	CatalogRowCount = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "catalog_row_count",
		Help: "Row count per catalog table, refreshed by the summary worker.",
	}, []string{"table"})

	CatalogJobsByStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "catalog_jobs_by_status",
		Help: "Job row count by status, refreshed by the summary worker.",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		DiscoveryQueryDuration,
		DiscoveryNewCanonicalDives,
		LabelSyncLastSuccess,
		OrchestratorJobsReaped,
		FileCacheOccupiedBytes,
		FileCacheEntries,
		CatalogRowCount,
		CatalogJobsByStatus,
	)
}

// RecordHTTPRequest records the per-endpoint call counter, per-status
// counter and duration summary described in spec.md §4.3 Observability.
func RecordHTTPRequest(endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// TimeQuery records a named discovery SQL operation's duration, the Go
// equivalent of sql_utils.py's do_query Prometheus Summary timer.
func TimeQuery(query string) func() {
	start := time.Now()
	return func() {
		DiscoveryQueryDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
	}
}

// Package metrics provides Prometheus metrics for the file-sharing agent.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Peer transfer metrics
	transfersServedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileshare_transfers_served_total",
			Help: "Total number of peer transfer requests served",
		},
		[]string{"status"},
	)

	transferBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileshare_transfer_bytes_total",
			Help: "Total bytes moved over the peer transfer protocol",
		},
		[]string{"direction"},
	)

	transfersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fileshare_transfers_active",
			Help: "Number of peer transfers currently in flight",
		},
	)

	// Share synchronization metrics
	syncPassesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fileshare_sync_passes_total",
			Help: "Total number of completed share reconcile passes",
		},
	)

	syncRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fileshare_sync_retries_total",
			Help: "Total number of immediate re-registration retries after a lost heartbeat",
		},
	)

	syncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fileshare_sync_duration_seconds",
			Help:    "Duration of one share reconcile pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	listedFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fileshare_listed_files",
			Help: "Number of files currently registered with the share registry",
		},
	)

	// Registry client metrics
	registryCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileshare_registry_calls_total",
			Help: "Total number of registry calls",
		},
		[]string{"op", "status"},
	)

	// Change notification metrics
	shareEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileshare_share_events_total",
			Help: "Total number of share change events published",
		},
		[]string{"type"},
	)
)

// RecordTransfer records the outcome of one served peer transfer.
func RecordTransfer(status string) {
	transfersServedTotal.WithLabelValues(status).Inc()
}

// AddTransferBytes counts bytes moved in the given direction ("sent" or "received").
func AddTransferBytes(direction string, n int64) {
	if n > 0 {
		transferBytesTotal.WithLabelValues(direction).Add(float64(n))
	}
}

// TransferStarted marks a transfer in flight.
func TransferStarted() {
	transfersActive.Inc()
}

// TransferFinished marks a transfer completed.
func TransferFinished() {
	transfersActive.Dec()
}

// RecordSyncPass records a completed reconcile pass and its duration.
func RecordSyncPass(d time.Duration) {
	syncPassesTotal.Inc()
	syncDuration.Observe(d.Seconds())
}

// RecordSyncRetry records one immediate re-registration retry.
func RecordSyncRetry() {
	syncRetriesTotal.Inc()
}

// SetListedFiles sets the current registration table size.
func SetListedFiles(n int) {
	listedFiles.Set(float64(n))
}

// RecordRegistryCall records a registry call outcome ("ok" or "error").
func RecordRegistryCall(op, status string) {
	registryCallsTotal.WithLabelValues(op, status).Inc()
}

// RecordShareEvent records a published share change event.
func RecordShareEvent(eventType string) {
	shareEventsTotal.WithLabelValues(eventType).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve starts a metrics HTTP server on addr. It blocks until the server
// exits.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Tree metrics
	TreeHeight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "netcache_tree_height",
			Help: "Current height of the B+ tree coordinate cache",
		},
	)

	TreeValuesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "netcache_tree_values_total",
			Help: "Total number of live values in the coordinate cache",
		},
	)

	TreeNodesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "netcache_tree_nodes_total",
			Help: "Total number of allocated tree nodes",
		},
	)

	TreeHeartbeatDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "netcache_tree_heartbeat_duration_seconds",
			Help:    "Time taken by one reclamation heartbeat pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Storage metrics
	PartsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "netcache_storage_parts_total",
			Help: "Total number of rotating storage parts currently open",
		},
	)

	BlobsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "netcache_storage_blobs_total",
			Help: "Total number of blobs by part",
		},
		[]string{"part"},
	)

	GCPassDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "netcache_gc_pass_duration_seconds",
			Help:    "Time taken by one garbage collection pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	GCReclaimedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "netcache_gc_reclaimed_total",
			Help: "Total number of blobs reclaimed by garbage collection",
		},
	)

	GCIncompletePassesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "netcache_gc_incomplete_passes_total",
			Help: "Total number of garbage collection passes that left contended blobs behind",
		},
	)

	GCPartsRemovedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "netcache_gc_parts_removed_total",
			Help: "Total number of empty non-current parts removed",
		},
	)

	PartRotationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "netcache_part_rotations_total",
			Help: "Total number of times a new current part was created",
		},
	)

	// Blob lock metrics
	BlobLockContentionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netcache_blob_lock_contention_total",
			Help: "Total number of blob lock acquisitions that had to wait, by mode",
		},
		[]string{"mode"},
	)

	BlobLockWaitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netcache_blob_lock_wait_duration_seconds",
			Help:    "Time spent waiting to acquire a blob lock, by mode",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	// Access metrics
	BlobAccessTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netcache_blob_access_total",
			Help: "Total number of blob accesses by kind and result",
		},
		[]string{"kind", "result"},
	)

	BlobAccessDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netcache_blob_access_duration_seconds",
			Help:    "Time taken to acquire and serve a blob access, by kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(TreeHeight)
	prometheus.MustRegister(TreeValuesTotal)
	prometheus.MustRegister(TreeNodesTotal)
	prometheus.MustRegister(TreeHeartbeatDuration)

	prometheus.MustRegister(PartsTotal)
	prometheus.MustRegister(BlobsTotal)
	prometheus.MustRegister(GCPassDuration)
	prometheus.MustRegister(GCReclaimedTotal)
	prometheus.MustRegister(GCIncompletePassesTotal)
	prometheus.MustRegister(GCPartsRemovedTotal)
	prometheus.MustRegister(PartRotationsTotal)

	prometheus.MustRegister(BlobLockContentionTotal)
	prometheus.MustRegister(BlobLockWaitDuration)

	prometheus.MustRegister(BlobAccessTotal)
	prometheus.MustRegister(BlobAccessDuration)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations against a histogram.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer, started now.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simbridge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"endpoint", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "simbridge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "path", "status"},
	)

	sessionsOpened = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "simbridge",
			Subsystem: "session",
			Name:      "opened_total",
			Help:      "Sessions admitted through the gate.",
		},
	)
	sessionsBusy = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "simbridge",
			Subsystem: "session",
			Name:      "busy_total",
			Help:      "Open attempts rejected because the gate was held.",
		},
	)
	sessionsForced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "simbridge",
			Subsystem: "session",
			Name:      "forced_release_total",
			Help:      "Sessions evicted by shutdown or admin release.",
		},
	)
	sessionActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "simbridge",
			Subsystem: "session",
			Name:      "active",
			Help:      "Whether a session currently holds the channel (0 or 1).",
		},
	)

	slotWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simbridge",
			Subsystem: "slot",
			Name:      "writes_total",
			Help:      "Message writes committed to the slot.",
		},
		[]string{"truncated"},
	)
	slotReads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "simbridge",
			Subsystem: "slot",
			Name:      "reads_total",
			Help:      "Message reads draining the slot.",
		},
	)
	slotBytesAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "simbridge",
			Subsystem: "slot",
			Name:      "bytes_accepted_total",
			Help:      "Bytes committed by writes.",
		},
	)
	slotBytesDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "simbridge",
			Subsystem: "slot",
			Name:      "bytes_delivered_total",
			Help:      "Bytes delivered by reads.",
		},
	)
	slotCopyFaults = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "simbridge",
			Subsystem: "slot",
			Name:      "copy_faults_total",
			Help:      "Cross-boundary copies that failed before commit.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			sessionsOpened, sessionsBusy, sessionsForced, sessionActive,
			slotWrites, slotReads, slotBytesAccepted, slotBytesDelivered, slotCopyFaults,
		)
	})
}

func RecordHTTPRequest(endpoint, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(endpoint, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(endpoint, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordSessionOpened() {
	RegisterMetrics()
	sessionsOpened.Inc()
	sessionActive.Set(1)
}

func RecordSessionBusy() {
	RegisterMetrics()
	sessionsBusy.Inc()
}

func RecordSessionClosed() {
	RegisterMetrics()
	sessionActive.Set(0)
}

func RecordForcedRelease() {
	RegisterMetrics()
	sessionsForced.Inc()
	sessionActive.Set(0)
}

func RecordWrite(accepted int, truncated bool) {
	RegisterMetrics()
	slotWrites.WithLabelValues(strconv.FormatBool(truncated)).Inc()
	slotBytesAccepted.Add(float64(accepted))
}

func RecordRead(delivered int) {
	RegisterMetrics()
	slotReads.Inc()
	slotBytesDelivered.Add(float64(delivered))
}

func RecordCopyFault() {
	RegisterMetrics()
	slotCopyFaults.Inc()
}

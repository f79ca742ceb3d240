package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "videostream",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "videostream",
		Name:      "http_request_duration_seconds",
		Help:      "Time from a parsed request to a fully written response.",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
	}, []string{"method", "route"})

	ActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "videostream",
		Name:      "active_connections",
		Help:      "Number of open client connections.",
	})

	ConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "videostream",
		Name:      "connections_total",
		Help:      "Total accepted client connections.",
	})

	SessionErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "videostream",
		Name:      "session_errors_total",
		Help:      "Sessions terminated by a transport error, by phase.",
	}, []string{"phase"})

	BytesServedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "videostream",
		Name:      "media_bytes_served_total",
		Help:      "Total media body bytes written to clients.",
	})

	RangeRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "videostream",
		Name:      "range_requests_total",
		Help:      "Media requests carrying a Range header, by outcome.",
	}, []string{"outcome"})

	ScanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "videostream",
		Name:      "scan_duration_seconds",
		Help:      "Duration of media directory scans in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
	})

	ScanFilesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "videostream",
		Name:      "scan_files_found_total",
		Help:      "Total video files discovered across all scans.",
	})

	IndexedMedia = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "videostream",
		Name:      "indexed_media",
		Help:      "Number of records in the media index after the last scan.",
	})

	WorkersBusy = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "videostream",
		Name:      "workers_busy",
		Help:      "Number of worker goroutines currently serving a request.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ActiveConnections,
		ConnectionsTotal,
		SessionErrorsTotal,
		BytesServedTotal,
		RangeRequestsTotal,
		ScanDuration,
		ScanFilesTotal,
		IndexedMedia,
		WorkersBusy,
	)
}

// Package monitoring exposes the service's Prometheus collectors.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the background services update. All fields
// are registered on construction and safe for concurrent use.
type Metrics struct {
	CamerasOnline   prometheus.Gauge
	WorkersRunning  prometheus.Gauge
	ActiveDownloads prometheus.Gauge
	DriveUsage      *prometheus.GaugeVec

	FilesDiscovered    prometheus.Counter
	DownloadsCompleted prometheus.Counter
	DownloadsFailed    prometheus.Counter
	CleanupDeletions   prometheus.Counter

	HTTPRequests *prometheus.CounterVec
}

// New creates and registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CamerasOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camfleet_cameras_online",
			Help: "Cameras that passed the last health check.",
		}),
		WorkersRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camfleet_workers_running",
			Help: "Camera workers currently supervised.",
		}),
		ActiveDownloads: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camfleet_active_downloads",
			Help: "File transfers currently in flight.",
		}),
		DriveUsage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "camfleet_drive_usage_percent",
			Help: "Storage drive usage percentage.",
		}, []string{"drive"}),
		FilesDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camfleet_files_discovered_total",
			Help: "Remote files turned into download jobs.",
		}),
		DownloadsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camfleet_downloads_completed_total",
			Help: "Download jobs finished successfully.",
		}),
		DownloadsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camfleet_downloads_failed_total",
			Help: "Download jobs that ended in failure.",
		}),
		CleanupDeletions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camfleet_cleanup_deletions_total",
			Help: "Completed jobs deleted under storage pressure.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camfleet_http_requests_total",
			Help: "API requests by method, path and status.",
		}, []string{"method", "path", "status"}),
	}

	reg.MustRegister(
		m.CamerasOnline, m.WorkersRunning, m.ActiveDownloads, m.DriveUsage,
		m.FilesDiscovered, m.DownloadsCompleted, m.DownloadsFailed,
		m.CleanupDeletions, m.HTTPRequests,
	)
	return m
}

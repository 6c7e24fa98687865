package models

import "time"

// WorkerStatus is a read-only snapshot of one camera worker, surfaced through
// the status API without blocking reconciliation.
type WorkerStatus struct {
	CameraID            int64      `json:"camera_id"`
	CameraName          string     `json:"camera_name"`
	IsRunning           bool       `json:"is_running"`
	ActiveDownloadCount int        `json:"active_download_count"`
	LastCheckTime       *time.Time `json:"last_check_time,omitempty"`
	LastError           *string    `json:"last_error,omitempty"`
}

// DownloadsPerDay is one point of the dashboard downloads histogram.
type DownloadsPerDay struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// DashboardData aggregates fleet state for the admin dashboard.
type DashboardData struct {
	TotalCameras    int               `json:"total_cameras"`
	OnlineCameras   int               `json:"online_cameras"`
	OfflineCameras  int               `json:"offline_cameras"`
	Jobs            JobStats          `json:"jobs"`
	OfflineList     []Camera          `json:"offline_cameras_list"`
	StorageDrives   []StorageDrive    `json:"storage_drives"`
	DownloadsPerDay []DownloadsPerDay `json:"downloads_per_day"`
	Workers         []WorkerStatus    `json:"workers"`
}

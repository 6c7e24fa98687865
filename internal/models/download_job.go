package models

import "time"

// Download job statuses. Completed and cancelled are terminal; retry is only
// valid from a non-downloading state and puts the job back to pending.
const (
	JobStatusPending     = "pending"
	JobStatusDownloading = "downloading"
	JobStatusCompleted   = "completed"
	JobStatusFailed      = "failed"
	JobStatusCancelled   = "cancelled"
)

// File types recorded on a download job.
const (
	FileTypeVideo = "video"
	FileTypePhoto = "photo"
)

// FileDownloadJob tracks retrieval of one remote file from a camera.
// Jobs are deduplicated by (camera_id, file_name); discovery never creates a
// second job for a file that already has one.
type FileDownloadJob struct {
	ID       int64  `json:"id"`
	CameraID int64  `json:"camera_id"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
	FileSize int64  `json:"file_size"`

	DownloadPath string `json:"download_path"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`

	// Time window of the remote recording.
	FileStartTime time.Time `json:"file_start_time"`
	FileEndTime   time.Time `json:"file_end_time"`

	// Transfer lifecycle.
	StartTime    *time.Time `json:"start_time,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobStats holds aggregate job counts for the dashboard.
type JobStats struct {
	Pending     int `json:"pending"`
	Downloading int `json:"downloading"`
	Completed   int `json:"completed"`
	Failed      int `json:"failed"`
	Cancelled   int `json:"cancelled"`
	Total       int `json:"total"`
}

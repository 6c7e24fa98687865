package models

import "time"

// Storage drive statuses, driven by usage thresholds. Error means the mount
// was not readable during the last check.
const (
	DriveStatusNormal   = "Normal"
	DriveStatusWarning  = "Warning"
	DriveStatusCritical = "Critical"
	DriveStatusFull     = "Full"
	DriveStatusError    = "Error"
)

// StorageDrive is a monitored local mount used as a download destination.
// Space figures are refreshed by the storage monitor only.
type StorageDrive struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	RootPath   string `json:"root_path"`
	TotalSpace int64  `json:"total_space"`
	UsedSpace  int64  `json:"used_space"`
	FreeSpace  int64  `json:"free_space"`
	Status     string `json:"status"`

	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// UsagePercentage returns used space as a fraction of total, in percent.
func (d *StorageDrive) UsagePercentage() float64 {
	if d.TotalSpace <= 0 {
		return 0
	}
	return float64(d.UsedSpace) / float64(d.TotalSpace) * 100
}

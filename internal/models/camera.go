package models

import "time"

// Camera represents a configured network video source (standalone camera or
// multi-channel NVR). Health check state and download bookkeeping live here;
// the password is never serialized.
type Camera struct {
	ID        int64  `json:"id"`
	StoreID   *int64 `json:"store_id,omitempty"`
	Name      string `json:"name"`
	IPAddress string `json:"ip_address"`
	Port      int    `json:"port"`
	Username  string `json:"-"`
	Password  string `json:"-"`

	IsOnline          bool       `json:"is_online"`
	LastOnlineAt      *time.Time `json:"last_online_at,omitempty"`
	LastDownloadedAt  *time.Time `json:"last_downloaded_at,omitempty"`
	LastError         *string    `json:"last_error,omitempty"`
	LastErrorAt       *time.Time `json:"last_error_at,omitempty"`
	LastHealthCheckAt *time.Time `json:"last_health_check_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

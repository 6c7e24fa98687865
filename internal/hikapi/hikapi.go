// Package hikapi is the boundary to the vendor device-access tooling. The
// rest of the system only sees Client and Session; the wire protocol, codecs
// and SDK details stay behind the vendor console binary.
package hikapi

import (
	"context"
	"time"
)

// Channel is a single feed exposed by a multi-channel recorder. Standalone
// cameras report no channels and are treated as one direct feed.
type Channel struct {
	Number   int  `json:"number"`
	IsOnline bool `json:"is_online"`
}

// RemoteFile describes one recorded file available on a device.
type RemoteFile struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// DirectChannel selects the device's own feed instead of an NVR channel.
const DirectChannel = 0

// Session is one authenticated connection to a device. Every Session obtained
// from a Client must be closed on all exit paths; Close is safe to defer and
// to call with transfers still running.
type Session interface {
	// Channels lists the recorder's IP channels. An empty result means the
	// device is a standalone camera.
	Channels(ctx context.Context) ([]Channel, error)

	// FindFiles lists recorded files in [start, end] on the given channel
	// (DirectChannel for standalone cameras).
	FindFiles(ctx context.Context, start, end time.Time, channel int) ([]RemoteFile, error)

	// StartDownload begins transferring the named remote file to destPath and
	// returns a transfer id for polling.
	StartDownload(ctx context.Context, fileName, destPath string) (string, error)

	// PollProgress reports transfer completion in percent, 0..100.
	PollProgress(transferID string) (int, error)

	// StopDownload aborts or finalizes the transfer.
	StopDownload(transferID string)

	// Close releases the session and aborts any transfers still running.
	Close()
}

// Client opens device sessions.
type Client interface {
	Connect(ctx context.Context, addr string, port int, username, password string) (Session, error)
}

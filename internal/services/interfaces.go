package services

import (
	"context"
	"time"

	"camfleet-backend/internal/models"
)

// Store interfaces are declared on the consumer side so services can be
// exercised against in-memory fakes. The repositories package provides the
// PostgreSQL implementations.

type CameraStore interface {
	GetAll(ctx context.Context) ([]models.Camera, error)
	GetByID(ctx context.Context, id int64) (*models.Camera, error)
	MarkOnline(ctx context.Context, id int64) error
	MarkOffline(ctx context.Context, id int64, errMsg string) error
	RecordError(ctx context.Context, id int64, errMsg string) error
	SetLastDownloadedAt(ctx context.Context, id int64, at time.Time) error
}

type JobStore interface {
	Create(ctx context.Context, j *models.FileDownloadJob) error
	GetByID(ctx context.Context, id int64) (*models.FileDownloadJob, error)
	ExistsForFile(ctx context.Context, cameraID int64, fileName string) (bool, error)
	GetPendingForCamera(ctx context.Context, cameraID int64, limit int) ([]models.FileDownloadJob, error)
	GetOldestCompleted(ctx context.Context, cameraID int64, limit int) ([]models.FileDownloadJob, error)
	MarkDownloading(ctx context.Context, id int64) error
	UpdateProgress(ctx context.Context, id int64, progress int) error
	MarkCompleted(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
	ResetPending(ctx context.Context, id int64, reason string) error
	ResetForRetry(ctx context.Context, id int64) error
	MarkCancelled(ctx context.Context, id int64) error
	SweepStaleDownloading(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id int64) error
}

type DriveStore interface {
	GetAll(ctx context.Context) ([]models.StorageDrive, error)
	Create(ctx context.Context, d *models.StorageDrive) error
	UpdateSpace(ctx context.Context, id int64, total, used, free int64, status string) error
	SetStatus(ctx context.Context, id int64, status string) error
}

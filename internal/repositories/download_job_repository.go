package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"camfleet-backend/internal/models"
)

type DownloadJobRepository struct {
	pool *pgxpool.Pool
}

func NewDownloadJobRepository(pool *pgxpool.Pool) *DownloadJobRepository {
	return &DownloadJobRepository{pool: pool}
}

const jobColumns = `id, camera_id, file_name, file_type, file_size, download_path,
	status, progress, file_start_time, file_end_time, start_time, end_time,
	error_message, created_at, updated_at`

func scanJob(row pgx.Row) (*models.FileDownloadJob, error) {
	j := &models.FileDownloadJob{}
	err := row.Scan(
		&j.ID, &j.CameraID, &j.FileName, &j.FileType, &j.FileSize, &j.DownloadPath,
		&j.Status, &j.Progress, &j.FileStartTime, &j.FileEndTime, &j.StartTime, &j.EndTime,
		&j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return j, nil
}

func (r *DownloadJobRepository) collect(rows pgx.Rows) ([]models.FileDownloadJob, error) {
	defer rows.Close()
	var jobs []models.FileDownloadJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func (r *DownloadJobRepository) Create(ctx context.Context, j *models.FileDownloadJob) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO file_download_jobs
			(camera_id, file_name, file_type, file_size, download_path,
			 status, progress, file_start_time, file_end_time)
		VALUES ($1, $2, $3, $4, $5, 'pending', 0, $6, $7)
		RETURNING id, created_at, updated_at`,
		j.CameraID, j.FileName, j.FileType, j.FileSize, j.DownloadPath,
		j.FileStartTime, j.FileEndTime,
	).Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt)
}

func (r *DownloadJobRepository) GetByID(ctx context.Context, id int64) (*models.FileDownloadJob, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM file_download_jobs WHERE id = $1`, id)
	return scanJob(row)
}

// ExistsForFile is the discovery dedup check: one job per (camera, file name).
func (r *DownloadJobRepository) ExistsForFile(ctx context.Context, cameraID int64, fileName string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM file_download_jobs WHERE camera_id = $1 AND file_name = $2
		)`, cameraID, fileName).Scan(&exists)
	return exists, err
}

// GetAll returns recent jobs, newest first.
func (r *DownloadJobRepository) GetAll(ctx context.Context, limit int) ([]models.FileDownloadJob, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM file_download_jobs
		ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *DownloadJobRepository) GetByStatus(ctx context.Context, status string, limit int) ([]models.FileDownloadJob, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM file_download_jobs
		WHERE status = $1
		ORDER BY created_at DESC LIMIT $2`, status, limit)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

// GetPendingForCamera returns the camera's pending and failed jobs, oldest
// created first, capped at limit.
func (r *DownloadJobRepository) GetPendingForCamera(ctx context.Context, cameraID int64, limit int) ([]models.FileDownloadJob, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM file_download_jobs
		WHERE camera_id = $1 AND status IN ('pending', 'failed')
		ORDER BY created_at ASC LIMIT $2`, cameraID, limit)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

// GetOldestCompleted returns the camera's oldest completed jobs by end time,
// used by storage-pressure cleanup.
func (r *DownloadJobRepository) GetOldestCompleted(ctx context.Context, cameraID int64, limit int) ([]models.FileDownloadJob, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM file_download_jobs
		WHERE camera_id = $1 AND status = 'completed' AND end_time IS NOT NULL
		ORDER BY end_time ASC LIMIT $2`, cameraID, limit)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

// MarkDownloading claims the job for a transfer. The WHERE clause refuses the
// claim if another routine got there first.
func (r *DownloadJobRepository) MarkDownloading(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE file_download_jobs
		SET status = 'downloading', start_time = NOW(), error_message = NULL, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'failed')`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %d is not claimable: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateProgress persists transfer progress. The GREATEST keeps progress
// monotone even if a stale poll lands late.
func (r *DownloadJobRepository) UpdateProgress(ctx context.Context, id int64, progress int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE file_download_jobs
		SET progress = GREATEST(progress, $2), updated_at = NOW()
		WHERE id = $1 AND status = 'downloading'`, id, progress)
	return err
}

func (r *DownloadJobRepository) MarkCompleted(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE file_download_jobs
		SET status = 'completed', progress = 100, end_time = NOW(),
		    error_message = NULL, updated_at = NOW()
		WHERE id = $1`, id)
	return err
}

// MarkFailed records the error and keeps the last observed progress.
func (r *DownloadJobRepository) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE file_download_jobs
		SET status = 'failed', error_message = $2, updated_at = NOW()
		WHERE id = $1`, id, errMsg)
	return err
}

// ResetPending returns a job interrupted by cooperative cancellation to the
// queue without counting it as a failure. A job the operator already moved to
// cancelled stays cancelled.
func (r *DownloadJobRepository) ResetPending(ctx context.Context, id int64, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE file_download_jobs
		SET status = 'pending', error_message = $2, updated_at = NOW()
		WHERE id = $1 AND status <> 'cancelled'`, id, reason)
	return err
}

// ResetForRetry puts a failed or queued job back to a clean pending state.
// Refuses jobs that are currently downloading.
func (r *DownloadJobRepository) ResetForRetry(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE file_download_jobs
		SET status = 'pending', progress = 0, error_message = NULL,
		    start_time = NULL, end_time = NULL, updated_at = NOW()
		WHERE id = $1 AND status <> 'downloading'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %d cannot be retried: %w", id, ErrNotFound)
	}
	return nil
}

func (r *DownloadJobRepository) MarkCancelled(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE file_download_jobs
		SET status = 'cancelled', error_message = 'Cancelled by operator', updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'failed', 'downloading')`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %d cannot be cancelled: %w", id, ErrNotFound)
	}
	return nil
}

// SweepStaleDownloading fails every job left in downloading, so a restart
// never mistakes dead transfers for live ones. Returns rows affected.
func (r *DownloadJobRepository) SweepStaleDownloading(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE file_download_jobs
		SET status = 'failed', error_message = 'Interrupted by service shutdown', updated_at = NOW()
		WHERE status = 'downloading'`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Delete removes the job record (cleanup after the local file is gone).
func (r *DownloadJobRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM file_download_jobs WHERE id = $1`, id)
	return err
}

// GetStats returns aggregate counts per status.
func (r *DownloadJobRepository) GetStats(ctx context.Context) (*models.JobStats, error) {
	stats := &models.JobStats{}
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'downloading'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COUNT(*)
		FROM file_download_jobs`).Scan(
		&stats.Pending, &stats.Downloading, &stats.Completed,
		&stats.Failed, &stats.Cancelled, &stats.Total,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// CompletedPerDay returns completed download counts for the last N days.
func (r *DownloadJobRepository) CompletedPerDay(ctx context.Context, days int) ([]models.DownloadsPerDay, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT d::date, COUNT(j.id)
		FROM generate_series(CURRENT_DATE - ($1 - 1) * INTERVAL '1 day', CURRENT_DATE, INTERVAL '1 day') d
		LEFT JOIN file_download_jobs j
			ON j.status = 'completed' AND j.end_time::date = d::date
		GROUP BY d::date
		ORDER BY d::date`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DownloadsPerDay
	for rows.Next() {
		var day time.Time
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return nil, err
		}
		out = append(out, models.DownloadsPerDay{Label: day.Format("2006-01-02"), Value: count})
	}
	return out, rows.Err()
}

// FindFootage returns completed jobs whose recordings fall inside the window,
// optionally filtered by camera and file type. Newest recordings first.
func (r *DownloadJobRepository) FindFootage(ctx context.Context, cameraID int64, from, to time.Time, fileType string) ([]models.FileDownloadJob, error) {
	query := `
		SELECT ` + jobColumns + ` FROM file_download_jobs
		WHERE status = 'completed' AND file_start_time BETWEEN $1 AND $2`
	args := []any{from, to}

	if cameraID != 0 {
		args = append(args, cameraID)
		query += fmt.Sprintf(" AND camera_id = $%d", len(args))
	}
	if fileType != "" && fileType != "both" {
		args = append(args, fileType)
		query += fmt.Sprintf(" AND file_type = $%d", len(args))
	}
	query += " ORDER BY file_start_time DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

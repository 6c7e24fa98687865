package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"camfleet-backend/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

type CameraRepository struct {
	pool *pgxpool.Pool
}

func NewCameraRepository(pool *pgxpool.Pool) *CameraRepository {
	return &CameraRepository{pool: pool}
}

const cameraColumns = `id, store_id, name, ip_address, port, username, password,
	is_online, last_online_at, last_downloaded_at, last_error, last_error_at,
	last_health_check_at, created_at, updated_at`

func scanCamera(row pgx.Row) (*models.Camera, error) {
	c := &models.Camera{}
	var username, password *string
	err := row.Scan(
		&c.ID, &c.StoreID, &c.Name, &c.IPAddress, &c.Port, &username, &password,
		&c.IsOnline, &c.LastOnlineAt, &c.LastDownloadedAt, &c.LastError, &c.LastErrorAt,
		&c.LastHealthCheckAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if username != nil {
		c.Username = *username
	}
	if password != nil {
		c.Password = *password
	}
	return c, nil
}

// GetAll returns every camera, stable order by id.
func (r *CameraRepository) GetAll(ctx context.Context) ([]models.Camera, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+cameraColumns+` FROM cameras ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cameras []models.Camera
	for rows.Next() {
		c, err := scanCamera(rows)
		if err != nil {
			return nil, err
		}
		cameras = append(cameras, *c)
	}
	return cameras, rows.Err()
}

func (r *CameraRepository) GetByID(ctx context.Context, id int64) (*models.Camera, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+cameraColumns+` FROM cameras WHERE id = $1`, id)
	return scanCamera(row)
}

func (r *CameraRepository) Create(ctx context.Context, c *models.Camera) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO cameras (store_id, name, ip_address, port, username, password)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		c.StoreID, c.Name, c.IPAddress, c.Port, c.Username, c.Password,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *CameraRepository) Update(ctx context.Context, c *models.Camera) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE cameras
		SET store_id = $2, name = $3, ip_address = $4, port = $5,
		    username = $6, password = $7, updated_at = NOW()
		WHERE id = $1`,
		c.ID, c.StoreID, c.Name, c.IPAddress, c.Port, c.Username, c.Password)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the camera; its jobs go with it (ON DELETE CASCADE).
func (r *CameraRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cameras WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkOnline records a successful health check and clears the error fields.
func (r *CameraRepository) MarkOnline(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE cameras
		SET is_online = TRUE, last_online_at = NOW(), last_health_check_at = NOW(),
		    last_error = NULL, last_error_at = NULL, updated_at = NOW()
		WHERE id = $1`, id)
	return err
}

// MarkOffline records a failed health check with its error text.
func (r *CameraRepository) MarkOffline(ctx context.Context, id int64, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE cameras
		SET is_online = FALSE, last_health_check_at = NOW(),
		    last_error = $2, last_error_at = NOW(), updated_at = NOW()
		WHERE id = $1`, id, errMsg)
	return err
}

// RecordError attaches an error to the camera without changing the online
// flag (discovery failures while the device still answers health checks).
func (r *CameraRepository) RecordError(ctx context.Context, id int64, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE cameras
		SET last_error = $2, last_error_at = NOW(), updated_at = NOW()
		WHERE id = $1`, id, errMsg)
	return err
}

// SetLastDownloadedAt moves the camera's download watermark forward.
func (r *CameraRepository) SetLastDownloadedAt(ctx context.Context, id int64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE cameras SET last_downloaded_at = $2, updated_at = NOW() WHERE id = $1`,
		id, at)
	return err
}

package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"camfleet-backend/internal/models"
)

type StorageDriveRepository struct {
	pool *pgxpool.Pool
}

func NewStorageDriveRepository(pool *pgxpool.Pool) *StorageDriveRepository {
	return &StorageDriveRepository{pool: pool}
}

const driveColumns = `id, name, root_path, total_space, used_space, free_space,
	status, last_checked_at, created_at, updated_at`

func scanDrive(row pgx.Row) (*models.StorageDrive, error) {
	d := &models.StorageDrive{}
	err := row.Scan(
		&d.ID, &d.Name, &d.RootPath, &d.TotalSpace, &d.UsedSpace, &d.FreeSpace,
		&d.Status, &d.LastCheckedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

func (r *StorageDriveRepository) GetAll(ctx context.Context) ([]models.StorageDrive, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+driveColumns+` FROM storage_drives ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drives []models.StorageDrive
	for rows.Next() {
		d, err := scanDrive(rows)
		if err != nil {
			return nil, err
		}
		drives = append(drives, *d)
	}
	return drives, rows.Err()
}

func (r *StorageDriveRepository) GetByID(ctx context.Context, id int64) (*models.StorageDrive, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+driveColumns+` FROM storage_drives WHERE id = $1`, id)
	return scanDrive(row)
}

func (r *StorageDriveRepository) Create(ctx context.Context, d *models.StorageDrive) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO storage_drives (name, root_path, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		d.Name, d.RootPath, d.Status,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

func (r *StorageDriveRepository) Update(ctx context.Context, d *models.StorageDrive) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE storage_drives
		SET name = $2, root_path = $3, updated_at = NOW()
		WHERE id = $1`, d.ID, d.Name, d.RootPath)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *StorageDriveRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM storage_drives WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSpace records a successful disk measurement and the derived status.
func (r *StorageDriveRepository) UpdateSpace(ctx context.Context, id int64, total, used, free int64, status string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE storage_drives
		SET total_space = $2, used_space = $3, free_space = $4, status = $5,
		    last_checked_at = NOW(), updated_at = NOW()
		WHERE id = $1`, id, total, used, free, status)
	return err
}

// SetStatus stamps a status without new space figures (unreadable mounts).
func (r *StorageDriveRepository) SetStatus(ctx context.Context, id int64, status string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE storage_drives
		SET status = $2, last_checked_at = NOW(), updated_at = NOW()
		WHERE id = $1`, id, status)
	return err
}

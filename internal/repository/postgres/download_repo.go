package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/shadanga/kriya/internal/errs"
	"github.com/shadanga/kriya/internal/model"
)

// DownloadRepo implements DownloadRepository using PostgreSQL.
type DownloadRepo struct{ db *DB }

// NewDownloadRepo constructs a download repository.
func NewDownloadRepo(db *DB) *DownloadRepo { return &DownloadRepo{db: db} }

// UpsertDevice registers a device or refreshes its display name.
func (r *DownloadRepo) UpsertDevice(ctx context.Context, d model.Device) error {
	const q = `
INSERT INTO devices (user_id, device_id, name) VALUES ($1, $2, $3)
ON CONFLICT (user_id, device_id) DO UPDATE SET name=EXCLUDED.name`
	_, err := r.db.Pool.Exec(ctx, q, d.UserID, d.DeviceID, d.Name)
	return err
}

// DeviceExists reports whether (user, device) is registered.
func (r *DownloadRepo) DeviceExists(ctx context.Context, userID, deviceID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM devices WHERE user_id=$1 AND device_id=$2)`
	var ok bool
	err := r.db.Pool.QueryRow(ctx, q, userID, deviceID).Scan(&ok)
	return ok, err
}

// UpsertRegistration stores the key hash; a re-download replaces the previous hash.
func (r *DownloadRepo) UpsertRegistration(ctx context.Context, reg model.DownloadRegistration) error {
	const q = `
INSERT INTO download_registrations (user_id, lesson_id, device_id, key_hash) VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, lesson_id, device_id) DO UPDATE SET key_hash=EXCLUDED.key_hash, created_at=now()`
	_, err := r.db.Pool.Exec(ctx, q, reg.UserID, reg.LessonID, reg.DeviceID, reg.KeyHash)
	return err
}

// DeleteRegistration removes a single registration.
func (r *DownloadRepo) DeleteRegistration(ctx context.Context, userID, lessonID, deviceID uuid.UUID) error {
	const q = `DELETE FROM download_registrations WHERE user_id=$1 AND lesson_id=$2 AND device_id=$3`
	tag, err := r.db.Pool.Exec(ctx, q, userID, lessonID, deviceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// DeleteDeviceRegistrations removes every registration of a device.
func (r *DownloadRepo) DeleteDeviceRegistrations(ctx context.Context, userID, deviceID uuid.UUID) (int64, error) {
	const q = `DELETE FROM download_registrations WHERE user_id=$1 AND device_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, userID, deviceID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/beamline/signage-server-go/internal/model"
)

type DeviceRepository interface {
	FindByID(ctx context.Context, id string) (*model.Device, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.Device, error)
	ListByOwnerID(ctx context.Context, ownerID string) ([]model.Device, error)
	Upsert(ctx context.Context, params model.UpsertDeviceParams) (*model.Device, error)
	// Touch records a heartbeat. The update only applies when now is
	// newer than the stored last_seen_at, so delayed out-of-order
	// heartbeats cannot regress the timestamp. Returns whether the
	// heartbeat was applied.
	Touch(ctx context.Context, id string, now time.Time) (bool, error)
	SetAssignedPlaylist(ctx context.Context, id string, playlistID *string, now time.Time) error
	Delete(ctx context.Context, id string) error
	// MarkOfflineStale flips the advisory status column to offline for
	// devices whose last heartbeat predates cutoff. Reads never trust
	// the stored column, this is bookkeeping for dashboards.
	MarkOfflineStale(ctx context.Context, cutoff time.Time) (int64, error)
	Count(ctx context.Context) (int, error)
	CountSeenSince(ctx context.Context, cutoff time.Time) (int, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) DeviceRepository
}

type deviceRepo struct {
	db sqlxExecer
}

func NewDeviceRepository(db *sqlx.DB) DeviceRepository {
	return &deviceRepo{db: db}
}

func (r *deviceRepo) WithTx(tx *sqlx.Tx) DeviceRepository {
	return &deviceRepo{db: tx}
}

func (r *deviceRepo) FindByID(ctx context.Context, id string) (*model.Device, error) {
	var device model.Device
	err := r.db.GetContext(ctx, &device, `
		SELECT * FROM devices WHERE id = $1
	`, id)
	return HandleNotFound(&device, err)
}

func (r *deviceRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Device, error) {
	var device model.Device
	err := r.db.GetContext(ctx, &device, `
		SELECT * FROM devices WHERE token_hash = $1
	`, tokenHash)
	return HandleNotFound(&device, err)
}

func (r *deviceRepo) ListByOwnerID(ctx context.Context, ownerID string) ([]model.Device, error) {
	var devices []model.Device
	err := r.db.SelectContext(ctx, &devices, `
		SELECT * FROM devices WHERE owner_id = $1 ORDER BY created_at
	`, ownerID)
	return devices, err
}

func (r *deviceRepo) Upsert(ctx context.Context, params model.UpsertDeviceParams) (*model.Device, error) {
	var device model.Device
	err := r.db.GetContext(ctx, &device, `
		INSERT INTO devices (id, owner_id, name, token_hash, status, screen_width, screen_height)
		VALUES ($1, $2, $3, $4, 'offline', $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			name = EXCLUDED.name,
			token_hash = EXCLUDED.token_hash,
			screen_width = EXCLUDED.screen_width,
			screen_height = EXCLUDED.screen_height,
			updated_at = NOW()
		RETURNING *
	`, params.ID, params.OwnerID, params.Name, params.TokenHash, params.ScreenWidth, params.ScreenHeight)
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *deviceRepo) Touch(ctx context.Context, id string, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE devices SET
			last_seen_at = $2,
			status = 'online',
			updated_at = $2
		WHERE id = $1 AND (last_seen_at IS NULL OR last_seen_at < $2)
	`, id, now)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *deviceRepo) SetAssignedPlaylist(ctx context.Context, id string, playlistID *string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE devices SET
			assigned_playlist_id = $2,
			updated_at = $3
		WHERE id = $1
	`, id, playlistID, now)
	return err
}

func (r *deviceRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = $1`, id)
	return err
}

func (r *deviceRepo) MarkOfflineStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE devices SET status = 'offline'
		WHERE status = 'online'
		AND (last_seen_at IS NULL OR last_seen_at < $1)
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *deviceRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM devices`)
	return count, err
}

func (r *deviceRepo) CountSeenSince(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM devices WHERE last_seen_at >= $1
	`, cutoff)
	return count, err
}

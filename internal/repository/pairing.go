package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/beamline/signage-server-go/internal/model"
)

// Redeemed and expired codes are kept around for this long so operators
// can see what happened to a code; after that the cleanup job drops them.
const codeRetention = 24 * time.Hour

type PairingCodeRepository interface {
	FindByCode(ctx context.Context, code string) (*model.PairingCode, error)
	FindActiveByOwnerID(ctx context.Context, ownerID string, now time.Time) ([]model.PairingCode, error)
	CountActiveByOwnerID(ctx context.Context, ownerID string, now time.Time) (int, error)
	Create(ctx context.Context, params model.CreatePairingCodeParams) (*model.PairingCode, error)
	// RedeemPending atomically marks a pending, unexpired code as
	// redeemed by deviceID. Returns nil with no error when no row
	// matched, i.e. the code is missing, expired, or already redeemed.
	RedeemPending(ctx context.Context, code string, deviceID string, now time.Time) (*model.PairingCode, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	CountActive(ctx context.Context, now time.Time) (int, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) PairingCodeRepository
}

type pairingCodeRepo struct {
	db sqlxExecer
}

func NewPairingCodeRepository(db *sqlx.DB) PairingCodeRepository {
	return &pairingCodeRepo{db: db}
}

func (r *pairingCodeRepo) WithTx(tx *sqlx.Tx) PairingCodeRepository {
	return &pairingCodeRepo{db: tx}
}

func (r *pairingCodeRepo) FindByCode(ctx context.Context, code string) (*model.PairingCode, error) {
	var pc model.PairingCode
	err := r.db.GetContext(ctx, &pc, `
		SELECT * FROM pairing_codes WHERE code = $1
	`, code)
	return HandleNotFound(&pc, err)
}

func (r *pairingCodeRepo) FindActiveByOwnerID(ctx context.Context, ownerID string, now time.Time) ([]model.PairingCode, error) {
	var codes []model.PairingCode
	err := r.db.SelectContext(ctx, &codes, `
		SELECT * FROM pairing_codes
		WHERE owner_id = $1 AND redeemed_at IS NULL AND expires_at > $2
		ORDER BY issued_at DESC
	`, ownerID, now)
	return codes, err
}

func (r *pairingCodeRepo) CountActiveByOwnerID(ctx context.Context, ownerID string, now time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM pairing_codes
		WHERE owner_id = $1 AND redeemed_at IS NULL AND expires_at > $2
	`, ownerID, now)
	return count, err
}

func (r *pairingCodeRepo) Create(ctx context.Context, params model.CreatePairingCodeParams) (*model.PairingCode, error) {
	var pc model.PairingCode
	err := r.db.GetContext(ctx, &pc, `
		INSERT INTO pairing_codes (code, owner_id, issued_at, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.Code, params.OwnerID, params.IssuedAt, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

func (r *pairingCodeRepo) RedeemPending(ctx context.Context, code string, deviceID string, now time.Time) (*model.PairingCode, error) {
	var pc model.PairingCode
	err := r.db.GetContext(ctx, &pc, `
		UPDATE pairing_codes SET
			redeemed_at = $3,
			redeemed_device_id = $2
		WHERE code = $1 AND redeemed_at IS NULL AND expires_at > $3
		RETURNING *
	`, code, deviceID, now)
	return HandleNotFound(&pc, err)
}

func (r *pairingCodeRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM pairing_codes
		WHERE (expires_at < $1 OR redeemed_at IS NOT NULL)
		AND issued_at < $2
	`, now, now.Add(-codeRetention))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *pairingCodeRepo) CountActive(ctx context.Context, now time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM pairing_codes
		WHERE redeemed_at IS NULL AND expires_at > $1
	`, now)
	return count, err
}

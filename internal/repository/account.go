package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/beamline/signage-server-go/internal/model"
)

type AccountRepository interface {
	FindByID(ctx context.Context, id string) (*model.Account, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.Account, error)
	Count(ctx context.Context) (int, error)
}

type accountRepo struct {
	db *sqlx.DB
}

func NewAccountRepository(db *sqlx.DB) AccountRepository {
	return &accountRepo{db: db}
}

func (r *accountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	var account model.Account
	err := r.db.GetContext(ctx, &account, `
		SELECT * FROM accounts WHERE id = $1 AND disabled_at IS NULL
	`, id)
	return HandleNotFound(&account, err)
}

func (r *accountRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Account, error) {
	var account model.Account
	err := r.db.GetContext(ctx, &account, `
		SELECT * FROM accounts
		WHERE api_token_hash = $1 AND disabled_at IS NULL
	`, tokenHash)
	return HandleNotFound(&account, err)
}

func (r *accountRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM accounts WHERE disabled_at IS NULL`)
	return count, err
}

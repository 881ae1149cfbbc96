package postgres

import (
	"context"
	"errors"
	"time"

	domain "identity/backend/internal/domain/account"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VerificationCodeRepository persists email verification codes in PostgreSQL.
type VerificationCodeRepository struct {
	pool *pgxpool.Pool
}

// NewVerificationCodeRepository constructs a repository.
func NewVerificationCodeRepository(pool *pgxpool.Pool) *VerificationCodeRepository {
	return &VerificationCodeRepository{pool: pool}
}

// Create inserts a new verification code row. Existing codes are left
// untouched; issuance never mutates earlier codes.
func (r *VerificationCodeRepository) Create(ctx context.Context, code *domain.VerificationCode) error {
	const query = `
INSERT INTO verification_codes (id, account_id, code, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5)
`
	_, err := r.pool.Exec(ctx, query,
		code.ID,
		code.AccountID,
		code.Code,
		code.ExpiresAt,
		code.CreatedAt,
	)
	return err
}

// FindValid returns the most recent code matching the account and value that
// has not expired at the provided instant.
func (r *VerificationCodeRepository) FindValid(ctx context.Context, accountID, code string, now time.Time) (*domain.VerificationCode, error) {
	const query = `
SELECT id, account_id, code, expires_at, created_at
FROM verification_codes
WHERE account_id = $1 AND code = $2 AND expires_at >= $3
ORDER BY created_at DESC
LIMIT 1
`
	row := r.pool.QueryRow(ctx, query, accountID, code, now)

	var vc domain.VerificationCode
	err := row.Scan(&vc.ID, &vc.AccountID, &vc.Code, &vc.ExpiresAt, &vc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCodeInvalid
		}
		return nil, err
	}
	return &vc, nil
}

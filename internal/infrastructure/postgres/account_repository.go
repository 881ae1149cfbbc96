package postgres

import (
	"context"
	"errors"
	"time"

	domain "identity/backend/internal/domain/account"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountRepository persists accounts and their profiles in PostgreSQL.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository constructs a repository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

const accountColumns = `
a.id, a.email, a.password_hash, a.role, a.verified, a.last_login_at, a.created_at, a.updated_at,
p.id, p.first_name, p.last_name, p.avatar_url
`

// Create inserts the account together with its profile in one transaction.
// A partially created account without a profile must never be observable.
func (r *AccountRepository) Create(ctx context.Context, acc *domain.Account) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertAccount = `
INSERT INTO accounts (id, email, password_hash, role, verified, last_login_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`
	if _, err := tx.Exec(ctx, insertAccount,
		acc.ID,
		acc.Email,
		acc.PasswordHash,
		acc.Role,
		acc.Verified,
		acc.LastLoginAt,
		acc.CreatedAt,
		acc.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailExists
		}
		return err
	}

	const insertProfile = `
INSERT INTO profiles (id, account_id, first_name, last_name, avatar_url)
VALUES ($1, $2, $3, $4, $5)
`
	if _, err := tx.Exec(ctx, insertProfile,
		acc.Profile.ID,
		acc.ID,
		acc.Profile.FirstName,
		acc.Profile.LastName,
		acc.Profile.AvatarURL,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetByEmail fetches an account by email, profile included.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `
SELECT ` + accountColumns + `
FROM accounts a
JOIN profiles p ON p.account_id = a.id
WHERE a.email = $1
`
	row := r.pool.QueryRow(ctx, query, email)
	acc, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return acc, nil
}

// GetByID retrieves an account by id, profile included.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	query := `
SELECT ` + accountColumns + `
FROM accounts a
JOIN profiles p ON p.account_id = a.id
WHERE a.id = $1
`
	row := r.pool.QueryRow(ctx, query, id)
	acc, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return acc, nil
}

// List returns accounts filtered by the provided criteria.
func (r *AccountRepository) List(ctx context.Context, filter domain.Filter) ([]*domain.Account, error) {
	query := `
SELECT ` + accountColumns + `
FROM accounts a
JOIN profiles p ON p.account_id = a.id
`
	var args []any
	if filter.Role != "" {
		query += "WHERE a.role = $1 "
		args = append(args, filter.Role)
	}
	query += "ORDER BY a.created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

// CountByRole reports how many accounts hold the given role.
func (r *AccountRepository) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	const query = `SELECT COUNT(*) FROM accounts WHERE role = $1`
	var count int
	if err := r.pool.QueryRow(ctx, query, role).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// MarkVerified flips the verified flag. Re-marking an already verified
// account is a successful no-op update.
func (r *AccountRepository) MarkVerified(ctx context.Context, id string, updatedAt time.Time) error {
	const query = `
UPDATE accounts
SET verified = TRUE, updated_at = $2
WHERE id = $1
`
	ct, err := r.pool.Exec(ctx, query, id, updatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// UpdateLastLogin records the timestamp of a successful login.
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	const query = `
UPDATE accounts
SET last_login_at = $2, updated_at = $2
WHERE id = $1
`
	ct, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// Delete removes an account; the profile and any outstanding verification
// codes go with it via FK cascade.
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM accounts WHERE id = $1`
	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var acc domain.Account
	var profile domain.Profile
	err := row.Scan(
		&acc.ID,
		&acc.Email,
		&acc.PasswordHash,
		&acc.Role,
		&acc.Verified,
		&acc.LastLoginAt,
		&acc.CreatedAt,
		&acc.UpdatedAt,
		&profile.ID,
		&profile.FirstName,
		&profile.LastName,
		&profile.AvatarURL,
	)
	if err != nil {
		return nil, err
	}
	profile.AccountID = acc.ID
	acc.Profile = &profile
	return &acc, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

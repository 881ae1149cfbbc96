package account

import (
	"context"
	"time"
)

// Repository defines persistence operations for accounts and their profiles.
type Repository interface {
	// Create persists the account and its profile as one atomic unit.
	Create(ctx context.Context, acc *Account) error
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByID(ctx context.Context, id string) (*Account, error)
	List(ctx context.Context, filter Filter) ([]*Account, error)
	CountByRole(ctx context.Context, role Role) (int, error)
	MarkVerified(ctx context.Context, id string, updatedAt time.Time) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// Filter allows narrowing account queries.
type Filter struct {
	Role Role
}

// VerificationCodeRepository persists one-time email verification codes.
type VerificationCodeRepository interface {
	Create(ctx context.Context, code *VerificationCode) error
	// FindValid returns the most recent unexpired code matching the account
	// and code value, or ErrCodeInvalid when none exists.
	FindValid(ctx context.Context, accountID, code string, now time.Time) (*VerificationCode, error)
}

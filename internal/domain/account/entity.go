package account

import (
	"errors"
	"time"
)

var (
	// ErrEmailExists signals a duplicate email registration.
	ErrEmailExists = errors.New("email already registered")
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidCredentials indicates a login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenInvalid means a supplied session token cannot be validated.
	ErrTokenInvalid = errors.New("token invalid or expired")
	// ErrCodeInvalid means a verification code is wrong or expired.
	ErrCodeInvalid = errors.New("verification code invalid or expired")
	// ErrAlreadyVerified indicates the account's email is already verified.
	ErrAlreadyVerified = errors.New("email already verified")
	// ErrNotVerified indicates the account has not verified its email.
	ErrNotVerified = errors.New("email not verified")
	// ErrRoleNotAllowed indicates the account's role is not permitted.
	ErrRoleNotAllowed = errors.New("role not permitted")
	// ErrInvalidRole indicates the provided role is not supported.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidInput wraps request validation failures so the boundary can
	// tell them apart from internal faults.
	ErrInvalidInput = errors.New("invalid input")
	// ErrMailDelivery indicates the verification email could not be dispatched.
	ErrMailDelivery = errors.New("verification email delivery failed")
)

// Role identifies the privileges assigned to an account.
type Role string

const (
	// RoleUser represents a standard application user.
	RoleUser Role = "user"
	// RoleAdmin represents an administrative user.
	RoleAdmin Role = "admin"
)

// DefaultAvatarURL is assigned to profiles created without an avatar.
const DefaultAvatarURL = "https://upload.wikimedia.org/wikipedia/commons/7/7c/Profile_avatar_placeholder_large.png"

// Account models the authentication identity persisted in storage.
type Account struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Verified     bool       `json:"verified"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	Profile      *Profile   `json:"profile,omitempty"`
}

// Profile holds the display data owned 1:1 by an account. It is created
// together with the account and removed when the account is deleted.
type Profile struct {
	ID        string `json:"id"`
	AccountID string `json:"-"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	AvatarURL string `json:"avatarUrl"`
}

// VerificationCode is a short-lived one-time code proving control of the
// account's email. Codes are never mutated; the account's verified flag is
// the durable outcome of redemption.
type VerificationCode struct {
	ID        string
	AccountID string
	Code      string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Credentials captures raw credential input for login.
type Credentials struct {
	Email    string
	Password string
}

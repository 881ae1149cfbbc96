package auth

import (
	domain "identity/backend/internal/domain/account"
)

// SessionClaims is the fixed claim set carried by a session token.
type SessionClaims struct {
	AccountID string
	Role      domain.Role
	Verified  bool
}

// TokenManager abstracts session token issuance and verification.
type TokenManager interface {
	Generate(claims SessionClaims) (string, error)
	Validate(token string) (SessionClaims, error)
}

// Message is an outbound email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer dispatches email through an external provider, best-effort.
type Mailer interface {
	Send(msg Message) error
}

package token

import (
	"errors"
	"time"

	domain "identity/backend/internal/domain/account"
	usecase "identity/backend/internal/usecase/auth"

	"github.com/golang-jwt/jwt/v5"
)

// JWTManager issues and validates signed session tokens.
type JWTManager struct {
	secret     []byte
	expiration time.Duration
	issuer     string
}

// NewJWTManager constructs a manager with the provided secret and expiration.
// Rotating the secret invalidates every outstanding token.
func NewJWTManager(secret string, expiration time.Duration, issuer string) *JWTManager {
	return &JWTManager{
		secret:     []byte(secret),
		expiration: expiration,
		issuer:     issuer,
	}
}

// Ensure JWTManager implements the TokenManager interface.
var _ usecase.TokenManager = (*JWTManager)(nil)

// claims is the fixed-shape wire form of a session token. Keeping the shape
// closed prevents accidental claim injection from dynamic payloads.
type claims struct {
	Role     domain.Role `json:"role"`
	Verified bool        `json:"verified"`
	jwt.RegisteredClaims
}

// Generate creates a signed token carrying the account id, role and
// verification flag.
func (m *JWTManager) Generate(sc usecase.SessionClaims) (string, error) {
	now := time.Now().UTC()
	c := claims{
		Role:     sc.Role,
		Verified: sc.Verified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sc.AccountID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(m.secret)
}

// Validate parses and validates the token returning its claims when valid.
func (m *JWTManager) Validate(tokenString string) (usecase.SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return usecase.SessionClaims{}, err
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return usecase.SessionClaims{}, errors.New("invalid token claims")
	}
	return usecase.SessionClaims{
		AccountID: c.Subject,
		Role:      c.Role,
		Verified:  c.Verified,
	}, nil
}

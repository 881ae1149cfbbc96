package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	domain "identity/backend/internal/domain/account"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is fixed; changing it only affects newly hashed credentials.
const bcryptCost = 10

// codeValidity is the redemption window of a verification code.
const codeValidity = time.Hour

// bootstrapAdminLimit is how many accounts are granted the admin role before
// registrations default to the user role.
const bootstrapAdminLimit = 3

// Service coordinates authentication workflows between domain and infrastructure.
type Service struct {
	accounts domain.Repository
	codes    domain.VerificationCodeRepository
	tokens   TokenManager
	mail     Mailer
	nowFunc  func() time.Time
	codeFunc func() string
}

// NewService constructs an auth service.
func NewService(accounts domain.Repository, codes domain.VerificationCodeRepository, tokens TokenManager, mail Mailer) *Service {
	return &Service{
		accounts: accounts,
		codes:    codes,
		tokens:   tokens,
		mail:     mail,
		nowFunc:  time.Now,
		codeFunc: randomCode,
	}
}

// RegisterInput defines the payload to register a new account.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Register creates a new account with its profile and returns the persisted
// entity without a password hash.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*domain.Account, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	password := strings.TrimSpace(input.Password)
	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", domain.ErrInvalidInput)
	}
	if firstName == "" || lastName == "" {
		return nil, fmt.Errorf("%w: first and last name are required", domain.ErrInvalidInput)
	}

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailExists
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	role, err := s.bootstrapRole(ctx)
	if err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.nowFunc().UTC()
	acc := &domain.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hashed),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
		Profile: &domain.Profile{
			ID:        uuid.NewString(),
			FirstName: firstName,
			LastName:  lastName,
			AvatarURL: domain.DefaultAvatarURL,
		},
	}
	acc.Profile.AccountID = acc.ID

	// The pre-check above is advisory only; the unique index is the
	// authority and concurrent registrations surface here as a conflict.
	if err := s.accounts.Create(ctx, acc); err != nil {
		return nil, err
	}

	return sanitizeAccount(acc), nil
}

// bootstrapRole grants admin to early registrations until the admin pool
// reaches its limit. A convenience for fresh deployments, not a security
// boundary: concurrent registrations may both observe a count below the
// limit.
func (s *Service) bootstrapRole(ctx context.Context) (domain.Role, error) {
	admins, err := s.accounts.CountByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return "", err
	}
	if admins < bootstrapAdminLimit {
		return domain.RoleAdmin, nil
	}
	return domain.RoleUser, nil
}

// Login validates credentials, records the login time and returns a session
// token plus the account.
func (s *Service) Login(ctx context.Context, creds domain.Credentials) (string, *domain.Account, error) {
	email := strings.TrimSpace(strings.ToLower(creds.Email))
	password := strings.TrimSpace(creds.Password)
	if email == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return "", nil, domain.ErrInvalidCredentials
	}

	now := s.nowFunc().UTC()
	if err := s.accounts.UpdateLastLogin(ctx, acc.ID, now); err != nil {
		return "", nil, err
	}
	acc.LastLoginAt = &now

	token, err := s.tokens.Generate(SessionClaims{
		AccountID: acc.ID,
		Role:      acc.Role,
		Verified:  acc.Verified,
	})
	if err != nil {
		return "", nil, err
	}

	return token, sanitizeAccount(acc), nil
}

// SendVerificationEmail issues a fresh one-time code for the account and
// mails it. The code is persisted before dispatch: a delivery failure is
// reported but leaves the code redeemable.
func (s *Service) SendVerificationEmail(ctx context.Context, accountID string) error {
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if acc.Verified {
		return domain.ErrAlreadyVerified
	}

	now := s.nowFunc().UTC()
	code := &domain.VerificationCode{
		ID:        uuid.NewString(),
		AccountID: acc.ID,
		Code:      s.codeFunc(),
		ExpiresAt: now.Add(codeValidity),
		CreatedAt: now,
	}
	if err := s.codes.Create(ctx, code); err != nil {
		return err
	}

	msg := Message{
		To:      acc.Email,
		Subject: "Verify your email",
		Text:    fmt.Sprintf("Your verification code is %s. It expires in 1 hour.", code.Code),
		HTML:    fmt.Sprintf("<p>Your verification code is <strong>%s</strong>.</p><p>It expires in 1 hour.</p>", code.Code),
	}
	if err := s.mail.Send(msg); err != nil {
		log.Printf("verification email to %s failed: %v", acc.Email, err)
		return domain.ErrMailDelivery
	}
	return nil
}

// VerifyEmail redeems a code and marks the account verified. Verifying an
// already verified account with a valid code succeeds again.
func (s *Service) VerifyEmail(ctx context.Context, accountID, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.ErrCodeInvalid
	}

	if _, err := s.codes.FindValid(ctx, accountID, code, s.nowFunc().UTC()); err != nil {
		return err
	}

	return s.accounts.MarkVerified(ctx, accountID, s.nowFunc().UTC())
}

// ValidateToken checks a session token and returns its claims. Used by the
// request guards; no store round-trip is involved.
func (s *Service) ValidateToken(tokenString string) (SessionClaims, error) {
	claims, err := s.tokens.Validate(tokenString)
	if err != nil {
		return SessionClaims{}, domain.ErrTokenInvalid
	}
	return claims, nil
}

// CurrentAccount resolves the account behind a set of claims.
func (s *Service) CurrentAccount(ctx context.Context, claims SessionClaims) (*domain.Account, error) {
	acc, err := s.accounts.GetByID(ctx, claims.AccountID)
	if err != nil {
		return nil, err
	}
	return sanitizeAccount(acc), nil
}

// randomCode picks a 6-digit code uniformly from [100000, 999999] using the
// crypto source; the code travels over email and gates account verification.
func randomCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		// The platform entropy source failing is not recoverable here.
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return fmt.Sprintf("%06d", 100000+n.Int64())
}

func sanitizeAccount(acc *domain.Account) *domain.Account {
	if acc == nil {
		return nil
	}
	copy := *acc
	copy.PasswordHash = ""
	return &copy
}

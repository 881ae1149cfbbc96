package auth

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	domain "identity/backend/internal/domain/account"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- fakes ---

type fakeAccountRepo struct {
	byID    map[string]*domain.Account
	byEmail map[string]*domain.Account

	createErr error
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{
		byID:    map[string]*domain.Account{},
		byEmail: map[string]*domain.Account{},
	}
}

func (f *fakeAccountRepo) Create(ctx context.Context, acc *domain.Account) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, exists := f.byEmail[acc.Email]; exists {
		return domain.ErrEmailExists
	}
	stored := *acc
	f.byID[acc.ID] = &stored
	f.byEmail[acc.Email] = &stored
	return nil
}

func (f *fakeAccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	acc, ok := f.byEmail[email]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	copy := *acc
	return &copy, nil
}

func (f *fakeAccountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	acc, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	copy := *acc
	return &copy, nil
}

func (f *fakeAccountRepo) List(ctx context.Context, filter domain.Filter) ([]*domain.Account, error) {
	var out []*domain.Account
	for _, acc := range f.byID {
		if filter.Role == "" || acc.Role == filter.Role {
			copy := *acc
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (f *fakeAccountRepo) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	count := 0
	for _, acc := range f.byID {
		if acc.Role == role {
			count++
		}
	}
	return count, nil
}

func (f *fakeAccountRepo) MarkVerified(ctx context.Context, id string, updatedAt time.Time) error {
	acc, ok := f.byID[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	acc.Verified = true
	acc.UpdatedAt = updatedAt
	return nil
}

func (f *fakeAccountRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	acc, ok := f.byID[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	acc.LastLoginAt = &at
	acc.UpdatedAt = at
	return nil
}

func (f *fakeAccountRepo) Delete(ctx context.Context, id string) error {
	acc, ok := f.byID[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	delete(f.byID, id)
	delete(f.byEmail, acc.Email)
	return nil
}

type fakeCodeRepo struct {
	codes []*domain.VerificationCode
}

func (f *fakeCodeRepo) Create(ctx context.Context, code *domain.VerificationCode) error {
	stored := *code
	f.codes = append(f.codes, &stored)
	return nil
}

func (f *fakeCodeRepo) FindValid(ctx context.Context, accountID, code string, now time.Time) (*domain.VerificationCode, error) {
	var newest *domain.VerificationCode
	for _, vc := range f.codes {
		if vc.AccountID != accountID || vc.Code != code || vc.ExpiresAt.Before(now) {
			continue
		}
		if newest == nil || vc.CreatedAt.After(newest.CreatedAt) {
			newest = vc
		}
	}
	if newest == nil {
		return nil, domain.ErrCodeInvalid
	}
	copy := *newest
	return &copy, nil
}

type fakeTokenManager struct {
	generated  []SessionClaims
	claims     SessionClaims
	generate   string
	genErr     error
	validErr   error
	validCalls int
}

func (f *fakeTokenManager) Generate(claims SessionClaims) (string, error) {
	f.generated = append(f.generated, claims)
	if f.genErr != nil {
		return "", f.genErr
	}
	if f.generate != "" {
		return f.generate, nil
	}
	return "token-" + claims.AccountID, nil
}

func (f *fakeTokenManager) Validate(token string) (SessionClaims, error) {
	f.validCalls++
	if f.validErr != nil {
		return SessionClaims{}, f.validErr
	}
	return f.claims, nil
}

type fakeMailer struct {
	sent    []Message
	sendErr error
}

func (f *fakeMailer) Send(msg Message) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

// --- helpers ---

func newTestService(t *testing.T) (*Service, *fakeAccountRepo, *fakeCodeRepo, *fakeTokenManager, *fakeMailer) {
	t.Helper()
	accounts := newFakeAccountRepo()
	codes := &fakeCodeRepo{}
	tokens := &fakeTokenManager{}
	mail := &fakeMailer{}
	return NewService(accounts, codes, tokens, mail), accounts, codes, tokens, mail
}

func register(t *testing.T, svc *Service, email string) *domain.Account {
	t.Helper()
	acc, err := svc.Register(context.Background(), RegisterInput{
		Email:     email,
		Password:  "secret1",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	require.NoError(t, err)
	return acc
}

// --- tests ---

func TestRegister_BootstrapAdmins(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	for i := 1; i <= 3; i++ {
		acc := register(t, svc, "admin"+strconv.Itoa(i)+"@example.com")
		assert.Equal(t, domain.RoleAdmin, acc.Role, "account %d should be admin", i)
	}

	fourth := register(t, svc, "user@example.com")
	assert.Equal(t, domain.RoleUser, fourth.Role)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	register(t, svc, "a@example.com")

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:     "a@example.com",
		Password:  "secret1",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	assert.ErrorIs(t, err, domain.ErrEmailExists)
}

func TestRegister_StorageConflictSurfaces(t *testing.T) {
	// The store's unique index is the authority: a conflict at write time
	// must look identical to a pre-check duplicate.
	svc, accounts, _, _, _ := newTestService(t)
	accounts.createErr = domain.ErrEmailExists

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:     "race@example.com",
		Password:  "secret1",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	assert.ErrorIs(t, err, domain.ErrEmailExists)
}

func TestRegister_CreatesProfileAndHashesPassword(t *testing.T) {
	svc, accounts, _, _, _ := newTestService(t)
	acc := register(t, svc, "a@example.com")

	assert.Empty(t, acc.PasswordHash, "returned account must be redacted")
	require.NotNil(t, acc.Profile)
	assert.Equal(t, "Ada", acc.Profile.FirstName)
	assert.Equal(t, "Lovelace", acc.Profile.LastName)
	assert.Equal(t, domain.DefaultAvatarURL, acc.Profile.AvatarURL)
	assert.False(t, acc.Verified)

	stored := accounts.byEmail["a@example.com"]
	require.NotNil(t, stored)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")))
}

func TestRegister_NormalizesEmail(t *testing.T) {
	svc, accounts, _, _, _ := newTestService(t)
	acc, err := svc.Register(context.Background(), RegisterInput{
		Email:     "  Mixed.Case@Example.COM ",
		Password:  "secret1",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	require.NoError(t, err)
	assert.Equal(t, "mixed.case@example.com", acc.Email)
	assert.Contains(t, accounts.byEmail, "mixed.case@example.com")
}

func TestRegister_ValidatesInput(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	cases := []RegisterInput{
		{Email: "", Password: "secret1", FirstName: "A", LastName: "B"},
		{Email: "a@example.com", Password: "", FirstName: "A", LastName: "B"},
		{Email: "a@example.com", Password: "secret1", FirstName: "", LastName: "B"},
		{Email: "a@example.com", Password: "secret1", FirstName: "A", LastName: ""},
	}
	for _, input := range cases {
		_, err := svc.Register(context.Background(), input)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	}
}

func TestLogin_Success(t *testing.T) {
	svc, accounts, _, tokens, _ := newTestService(t)
	acc := register(t, svc, "a@example.com")

	token, logged, err := svc.Login(context.Background(), domain.Credentials{
		Email:    "a@example.com",
		Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, "token-"+acc.ID, token)
	assert.Empty(t, logged.PasswordHash)
	require.NotNil(t, logged.LastLoginAt)

	stored := accounts.byID[acc.ID]
	require.NotNil(t, stored.LastLoginAt)

	require.Len(t, tokens.generated, 1)
	claims := tokens.generated[0]
	assert.Equal(t, acc.ID, claims.AccountID)
	assert.Equal(t, acc.Role, claims.Role)
	assert.False(t, claims.Verified)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	register(t, svc, "a@example.com")

	_, _, err := svc.Login(context.Background(), domain.Credentials{
		Email:    "a@example.com",
		Password: "wrong",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLogin_UnknownEmail(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	_, _, err := svc.Login(context.Background(), domain.Credentials{
		Email:    "missing@example.com",
		Password: "secret1",
	})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestLogin_ClaimsCarryVerifiedAfterVerification(t *testing.T) {
	svc, _, codes, tokens, _ := newTestService(t)
	acc := register(t, svc, "a@example.com")

	require.NoError(t, svc.SendVerificationEmail(context.Background(), acc.ID))
	require.Len(t, codes.codes, 1)
	require.NoError(t, svc.VerifyEmail(context.Background(), acc.ID, codes.codes[0].Code))

	_, _, err := svc.Login(context.Background(), domain.Credentials{
		Email:    "a@example.com",
		Password: "secret1",
	})
	require.NoError(t, err)
	require.Len(t, tokens.generated, 1)
	assert.True(t, tokens.generated[0].Verified)
}

func TestSendVerificationEmail_IssuesCode(t *testing.T) {
	svc, _, codes, _, mail := newTestService(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.nowFunc = func() time.Time { return now }
	acc := register(t, svc, "a@example.com")

	require.NoError(t, svc.SendVerificationEmail(context.Background(), acc.ID))

	require.Len(t, codes.codes, 1)
	code := codes.codes[0]
	assert.Equal(t, acc.ID, code.AccountID)
	assert.Len(t, code.Code, 6)
	n, err := strconv.Atoi(code.Code)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 100000)
	assert.LessOrEqual(t, n, 999999)
	assert.Equal(t, now.Add(time.Hour), code.ExpiresAt)

	require.Len(t, mail.sent, 1)
	assert.Equal(t, "a@example.com", mail.sent[0].To)
	assert.Contains(t, mail.sent[0].Text, code.Code)
	assert.Contains(t, mail.sent[0].HTML, code.Code)
}

func TestSendVerificationEmail_ResendCreatesNewCode(t *testing.T) {
	svc, _, codes, _, _ := newTestService(t)
	svc.codeFunc = sequenceCodes("111111", "222222")
	acc := register(t, svc, "a@example.com")

	require.NoError(t, svc.SendVerificationEmail(context.Background(), acc.ID))
	require.NoError(t, svc.SendVerificationEmail(context.Background(), acc.ID))

	require.Len(t, codes.codes, 2)
	assert.NotEqual(t, codes.codes[0].Code, codes.codes[1].Code)

	// Both codes stay redeemable until expiry.
	assert.NoError(t, svc.VerifyEmail(context.Background(), acc.ID, "111111"))
}

func TestSendVerificationEmail_DeliveryFailureKeepsCode(t *testing.T) {
	svc, _, codes, _, mail := newTestService(t)
	mail.sendErr = errors.New("smtp refused")
	acc := register(t, svc, "a@example.com")

	err := svc.SendVerificationEmail(context.Background(), acc.ID)
	assert.ErrorIs(t, err, domain.ErrMailDelivery)

	// Issuance is not rolled back: the code remains redeemable.
	require.Len(t, codes.codes, 1)
	assert.NoError(t, svc.VerifyEmail(context.Background(), acc.ID, codes.codes[0].Code))
}

func TestSendVerificationEmail_AlreadyVerified(t *testing.T) {
	svc, _, codes, _, _ := newTestService(t)
	acc := register(t, svc, "a@example.com")

	require.NoError(t, svc.SendVerificationEmail(context.Background(), acc.ID))
	require.NoError(t, svc.VerifyEmail(context.Background(), acc.ID, codes.codes[0].Code))

	err := svc.SendVerificationEmail(context.Background(), acc.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyVerified)
}

func TestSendVerificationEmail_UnknownAccount(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	err := svc.SendVerificationEmail(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestVerifyEmail_WithinWindow(t *testing.T) {
	svc, accounts, codes, _, _ := newTestService(t)
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := issued
	svc.nowFunc = func() time.Time { return now }
	acc := register(t, svc, "a@example.com")

	require.NoError(t, svc.SendVerificationEmail(context.Background(), acc.ID))
	code := codes.codes[0].Code

	now = issued.Add(59 * time.Minute)
	require.NoError(t, svc.VerifyEmail(context.Background(), acc.ID, code))
	assert.True(t, accounts.byID[acc.ID].Verified)
}

func TestVerifyEmail_ExpiredCode(t *testing.T) {
	svc, accounts, codes, _, _ := newTestService(t)
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := issued
	svc.nowFunc = func() time.Time { return now }
	acc := register(t, svc, "a@example.com")

	require.NoError(t, svc.SendVerificationEmail(context.Background(), acc.ID))
	code := codes.codes[0].Code

	now = issued.Add(61 * time.Minute)
	err := svc.VerifyEmail(context.Background(), acc.ID, code)
	assert.ErrorIs(t, err, domain.ErrCodeInvalid)
	assert.False(t, accounts.byID[acc.ID].Verified)
}

func TestVerifyEmail_WrongCode(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	acc := register(t, svc, "a@example.com")

	require.NoError(t, svc.SendVerificationEmail(context.Background(), acc.ID))
	err := svc.VerifyEmail(context.Background(), acc.ID, "000000")
	assert.ErrorIs(t, err, domain.ErrCodeInvalid)
}

func TestVerifyEmail_CodeBoundToAccount(t *testing.T) {
	svc, accounts, codes, _, _ := newTestService(t)
	svc.codeFunc = sequenceCodes("111111", "222222")
	first := register(t, svc, "first@example.com")
	second := register(t, svc, "second@example.com")

	require.NoError(t, svc.SendVerificationEmail(context.Background(), first.ID))
	require.Len(t, codes.codes, 1)

	// The first account's code must not verify the second account.
	err := svc.VerifyEmail(context.Background(), second.ID, "111111")
	assert.ErrorIs(t, err, domain.ErrCodeInvalid)
	assert.False(t, accounts.byID[second.ID].Verified)
}

func TestVerifyEmail_Idempotent(t *testing.T) {
	svc, accounts, codes, _, _ := newTestService(t)
	acc := register(t, svc, "a@example.com")

	require.NoError(t, svc.SendVerificationEmail(context.Background(), acc.ID))
	code := codes.codes[0].Code

	require.NoError(t, svc.VerifyEmail(context.Background(), acc.ID, code))
	require.NoError(t, svc.VerifyEmail(context.Background(), acc.ID, code))
	assert.True(t, accounts.byID[acc.ID].Verified)
}

func TestVerifyEmail_EmptyCode(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	acc := register(t, svc, "a@example.com")

	err := svc.VerifyEmail(context.Background(), acc.ID, "  ")
	assert.ErrorIs(t, err, domain.ErrCodeInvalid)
}

func TestValidateToken(t *testing.T) {
	svc, _, _, tokens, _ := newTestService(t)
	tokens.claims = SessionClaims{AccountID: "id-1", Role: domain.RoleAdmin, Verified: true}

	claims, err := svc.ValidateToken("any")
	require.NoError(t, err)
	assert.Equal(t, tokens.claims, claims)

	tokens.validErr = errors.New("bad signature")
	_, err = svc.ValidateToken("any")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestCurrentAccount_Redacted(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	acc := register(t, svc, "a@example.com")

	current, err := svc.CurrentAccount(context.Background(), SessionClaims{AccountID: acc.ID})
	require.NoError(t, err)
	assert.Equal(t, acc.ID, current.ID)
	assert.Empty(t, current.PasswordHash)
}

func TestRandomCodeRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		code := randomCode()
		require.Len(t, code, 6)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func sequenceCodes(codes ...string) func() string {
	i := 0
	return func() string {
		code := codes[i%len(codes)]
		i++
		return code
	}
}

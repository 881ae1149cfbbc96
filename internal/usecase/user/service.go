package user

import (
	"context"
	"fmt"
	"strings"

	domain "identity/backend/internal/domain/account"
)

// Service provides account administration use cases for admin workflows.
type Service struct {
	repo domain.Repository
}

// NewService constructs a user service around the provided repository.
func NewService(repo domain.Repository) *Service {
	return &Service{repo: repo}
}

// Filter captures supported filters for listing accounts.
type Filter struct {
	Role string
}

// List returns accounts matching the supplied filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]*domain.Account, error) {
	domainFilter := domain.Filter{}
	if trimmed := strings.TrimSpace(strings.ToLower(filter.Role)); trimmed != "" {
		role, err := ensureRole(trimmed)
		if err != nil {
			return nil, err
		}
		domainFilter.Role = role
	}

	accounts, err := s.repo.List(ctx, domainFilter)
	if err != nil {
		return nil, err
	}
	return sanitizeAccounts(accounts), nil
}

// Get retrieves a single account by its identifier.
func (s *Service) Get(ctx context.Context, id string) (*domain.Account, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: account id is required", domain.ErrInvalidInput)
	}
	acc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return sanitizeAccount(acc), nil
}

// Delete removes the target account; its profile goes with it.
func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: account id is required", domain.ErrInvalidInput)
	}
	return s.repo.Delete(ctx, id)
}

func ensureRole(raw string) (domain.Role, error) {
	role := domain.Role(strings.TrimSpace(strings.ToLower(raw)))
	switch role {
	case domain.RoleUser, domain.RoleAdmin:
		return role, nil
	default:
		return "", domain.ErrInvalidRole
	}
}

func sanitizeAccount(acc *domain.Account) *domain.Account {
	if acc == nil {
		return nil
	}
	copy := *acc
	copy.PasswordHash = ""
	return &copy
}

func sanitizeAccounts(items []*domain.Account) []*domain.Account {
	out := make([]*domain.Account, 0, len(items))
	for _, item := range items {
		out = append(out, sanitizeAccount(item))
	}
	return out
}

package repository

import (
	"context"
	"strings"

	"otp-verification-service/internal/account/domain"
)

// MemoryRepository is a fixed in-memory account directory for development without a database.
type MemoryRepository struct {
	accounts []domain.Account
}

// NewMemoryRepository returns a directory holding copies of accounts.
func NewMemoryRepository(accounts ...domain.Account) *MemoryRepository {
	return &MemoryRepository{accounts: append([]domain.Account(nil), accounts...)}
}

// ResolveByIdentifier matches email case-insensitively or username exactly, preferring non-deleted rows.
func (r *MemoryRepository) ResolveByIdentifier(ctx context.Context, identifier string) (*domain.Account, error) {
	identifier = strings.TrimSpace(identifier)
	var found *domain.Account
	for i := range r.accounts {
		a := r.accounts[i]
		if !strings.EqualFold(a.Email, identifier) && a.Username != identifier {
			continue
		}
		if found == nil || (found.IsDeleted && !a.IsDeleted) {
			found = &a
		}
	}
	return found, nil
}

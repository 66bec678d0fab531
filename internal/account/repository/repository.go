package repository

import (
	"context"
	"errors"

	"otp-verification-service/internal/account/domain"
)

// ErrStoreUnavailable wraps driver or transport failures of the account store.
var ErrStoreUnavailable = errors.New("account store unavailable")

// Repository resolves accounts. It never mutates account records.
type Repository interface {
	// ResolveByIdentifier returns the account whose email (case-insensitive) or username equals
	// identifier, or nil if none matches. Deleted accounts are returned with IsDeleted set.
	ResolveByIdentifier(ctx context.Context, identifier string) (*domain.Account, error)
}

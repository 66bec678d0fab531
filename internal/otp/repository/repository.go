package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"otp-verification-service/internal/otp/domain"
)

var (
	// ErrStoreUnavailable wraps every driver or transport failure of the challenge store.
	ErrStoreUnavailable = errors.New("challenge store unavailable")
	// ErrChallengeTerminal is returned by Update when the row is already verified or invalidated.
	ErrChallengeTerminal = errors.New("challenge is terminal")
)

// Tx is the set of challenge operations available inside one store transaction.
// Lookups return nil, nil when no row matches.
type Tx interface {
	// LatestActive returns the most recently created valid, unverified, unexpired challenge for key.
	LatestActive(ctx context.Context, key domain.Key, now time.Time) (*domain.Challenge, error)
	// CountByDeviceSince counts challenges created for deviceID after since, across accounts.
	CountByDeviceSince(ctx context.Context, deviceID string, since time.Time) (int, error)
	// CountByAccountSince counts challenges created for accountID after since, across devices.
	CountByAccountSince(ctx context.Context, accountID string, since time.Time) (int, error)
	// SupersedeActive expires (expires_at = now) every active challenge for key.
	SupersedeActive(ctx context.Context, key domain.Key, now time.Time) (int64, error)
	// Create inserts c. ProcessID must be set.
	Create(ctx context.Context, c *domain.Challenge) error
	// GetForUpdate returns the challenge matching accountID, email and processID, locking it
	// until the transaction ends.
	GetForUpdate(ctx context.Context, accountID, email, processID string) (*domain.Challenge, error)
	// Update writes Verified, VerifiedAt, Valid and FailedAttempts of c. It only touches rows
	// that are still valid and unverified and returns ErrChallengeTerminal otherwise.
	Update(ctx context.Context, c *domain.Challenge) error
}

// Repository defines persistence for OTP challenges.
type Repository interface {
	// InTx runs fn in a single transaction. Any error returned by fn rolls back every write made through tx.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// DeleteStale removes challenges with expires_at < now or valid = false and returns how many were removed.
	DeleteStale(ctx context.Context, now time.Time) (int64, error)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

var (
	errDuplicateProcessID   = errors.New("duplicate process id")
	errExpiryNotAfterCreate = errors.New("expires_at must be after created_at")
)

// Package service implements the OTP challenge lifecycle: issuance under cooldown and
// windowed rate limits, verification with an attempt budget, and the stale-row reaper.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	devicedomain "otp-verification-service/internal/device/domain"
	"otp-verification-service/internal/otp"
	"otp-verification-service/internal/otp/domain"
	"otp-verification-service/internal/otp/repository"
)

// IssueRequest identifies who a challenge is for and which device asked for it.
type IssueRequest struct {
	AccountID string
	Email     string
	Purpose   domain.Purpose
	Device    devicedomain.DeviceInfo
}

// IssueResult carries the plain code back to the orchestrator for out-of-band delivery.
type IssueResult struct {
	ProcessID string
	Code      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Issuer creates challenges. Every rejection happens before any write.
type Issuer struct {
	repo    repository.Repository
	policy  domain.Policy
	metrics *Metrics
	logger  *zap.Logger
	now     func() time.Time
	newID   func() (string, error)
}

// NewIssuer returns an Issuer backed by repo. metrics and logger may be nil.
func NewIssuer(repo repository.Repository, policy domain.Policy, metrics *Metrics, logger *zap.Logger) *Issuer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Issuer{
		repo:    repo,
		policy:  policy,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
		newID:   newProcessID,
	}
}

// newProcessID returns a UUIDv7: millisecond timestamp plus 74 random bits from crypto/rand.
func newProcessID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Issue runs cooldown, per-device and per-account checks, supersedes the previous active
// challenge for the same (account, email, device, purpose) and inserts a new one, all in one transaction.
//
// Two concurrent issuances for the same key can both pass the cooldown check; both rows are
// inserted and the later one is what the next issuance supersedes.
func (i *Issuer) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	purpose := req.Purpose
	if purpose == "" {
		purpose = domain.PurposeVerification
	}
	code, err := otp.GenerateCode(i.policy.CodeLength)
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	processID, err := i.newID()
	if err != nil {
		return nil, fmt.Errorf("generate process id: %w", err)
	}

	now := i.now().UTC()
	c := &domain.Challenge{
		ProcessID:  processID,
		AccountID:  req.AccountID,
		Email:      req.Email,
		Purpose:    purpose,
		CodeHash:   otp.HashCode(code),
		DeviceID:   req.Device.DeviceID,
		DeviceName: req.Device.DeviceName,
		CreatedAt:  now,
		ExpiresAt:  now.Add(i.policy.TTL),
		Valid:      true,
	}

	err = i.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := i.admit(ctx, tx, c, now); err != nil {
			return err
		}
		superseded, err := tx.SupersedeActive(ctx, c.Key(), now)
		if err != nil {
			return err
		}
		if superseded > 0 {
			i.logger.Debug("superseded active challenges",
				zap.String("account_id", c.AccountID),
				zap.String("purpose", string(purpose)),
				zap.Int64("count", superseded))
		}
		return tx.Create(ctx, c)
	})
	if err != nil {
		if reason := Reason(err); reason != "error" && reason != "store_unavailable" {
			i.metrics.issuanceRejected(ctx, reason)
		}
		return nil, err
	}

	i.metrics.challengeIssued(ctx, string(purpose))
	return &IssueResult{ProcessID: processID, Code: code, CreatedAt: c.CreatedAt, ExpiresAt: c.ExpiresAt}, nil
}

// admit applies cooldown, then the per-device window, then the per-account window.
func (i *Issuer) admit(ctx context.Context, tx repository.Tx, c *domain.Challenge, now time.Time) error {
	latest, err := tx.LatestActive(ctx, c.Key(), now)
	if err != nil {
		return err
	}
	if latest != nil {
		if elapsed := now.Sub(latest.CreatedAt); elapsed < i.policy.ResendCooldown {
			return &CooldownError{RemainingSeconds: remainingSeconds(i.policy.ResendCooldown - elapsed)}
		}
	}

	since := now.Add(-i.policy.IssuanceWindow)
	if c.DeviceID != "" {
		n, err := tx.CountByDeviceSince(ctx, c.DeviceID, since)
		if err != nil {
			return err
		}
		if n >= i.policy.MaxIssuancePerDevice {
			return ErrDeviceRateLimited
		}
	}
	n, err := tx.CountByAccountSince(ctx, c.AccountID, since)
	if err != nil {
		return err
	}
	if n >= i.policy.MaxIssuancePerAccount() {
		return ErrAccountRateLimited
	}
	return nil
}

// remainingSeconds rounds d up to whole seconds, never below 1.
func remainingSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

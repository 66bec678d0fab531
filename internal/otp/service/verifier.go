package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	devicedomain "otp-verification-service/internal/device/domain"
	"otp-verification-service/internal/otp"
	"otp-verification-service/internal/otp/domain"
	"otp-verification-service/internal/otp/repository"
)

// VerifyRequest is one candidate code for a challenge.
type VerifyRequest struct {
	AccountID string
	Email     string
	Code      string
	ProcessID string
	Purpose   domain.Purpose
	Device    devicedomain.DeviceInfo
}

// VerificationResult is returned when a code is accepted.
type VerificationResult struct {
	ProcessID  string
	AccountID  string
	Purpose    domain.Purpose
	DeviceID   string
	VerifiedAt time.Time
}

// Verifier consumes codes against stored challenges.
type Verifier struct {
	repo    repository.Repository
	policy  domain.Policy
	metrics *Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewVerifier returns a Verifier backed by repo. metrics and logger may be nil.
func NewVerifier(repo repository.Repository, policy domain.Policy, metrics *Metrics, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{repo: repo, policy: policy, metrics: metrics, logger: logger, now: time.Now}
}

// Verify checks req.Code against the challenge (accountID, email, processID) of the same purpose.
//
// The row is locked for the whole read-modify-write, so concurrent wrong guesses each consume
// one attempt. Expiry, wrong codes and success each commit exactly one update; only the
// not-found and already-terminal paths write nothing.
func (v *Verifier) Verify(ctx context.Context, req VerifyRequest) (*VerificationResult, error) {
	purpose := req.Purpose
	if purpose == "" {
		purpose = domain.PurposeVerification
	}
	now := v.now().UTC()

	var (
		result  *VerificationResult
		outcome error
	)
	err := v.repo.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		c, err := tx.GetForUpdate(ctx, req.AccountID, req.Email, req.ProcessID)
		if err != nil {
			return err
		}
		if c == nil || c.Purpose != purpose {
			return ErrInvalidProcessID
		}
		if c.Verified {
			return ErrAlreadyUsed
		}
		if !c.Valid {
			return ErrInvalidProcessID
		}

		if c.ExpiredAt(now) {
			c.Valid = false
			outcome = ErrExpired
			return v.update(ctx, tx, c)
		}

		mismatch := v.policy.StrictDeviceBinding && c.DeviceID != "" && c.DeviceID != req.Device.DeviceID
		if mismatch || !otp.CodeEqual(req.Code, c.CodeHash) {
			c.FailedAttempts++
			switch {
			case c.FailedAttempts >= v.policy.MaxVerificationAttempts:
				c.Valid = false
				outcome = ErrTooManyFailedAttempts
			case mismatch:
				outcome = ErrDeviceMismatch
			default:
				outcome = &InvalidCodeError{AttemptsRemaining: v.policy.MaxVerificationAttempts - c.FailedAttempts}
			}
			return v.update(ctx, tx, c)
		}

		c.Verified = true
		c.VerifiedAt = &now
		c.FailedAttempts = 0
		if err := v.update(ctx, tx, c); err != nil {
			return err
		}
		result = &VerificationResult{
			ProcessID:  c.ProcessID,
			AccountID:  c.AccountID,
			Purpose:    c.Purpose,
			DeviceID:   c.DeviceID,
			VerifiedAt: now,
		}
		return nil
	})
	if err == nil {
		err = outcome
	}
	v.metrics.verification(ctx, Reason(err))
	if err != nil {
		if errors.Is(err, ErrTooManyFailedAttempts) || errors.Is(err, ErrDeviceMismatch) {
			v.logger.Info("otp challenge rejected",
				zap.String("account_id", req.AccountID),
				zap.String("process_id", req.ProcessID),
				zap.String("reason", Reason(err)))
		}
		return nil, err
	}
	return result, nil
}

func (v *Verifier) update(ctx context.Context, tx repository.Tx, c *domain.Challenge) error {
	err := tx.Update(ctx, c)
	if errors.Is(err, repository.ErrChallengeTerminal) {
		return ErrInvalidProcessID
	}
	return err
}

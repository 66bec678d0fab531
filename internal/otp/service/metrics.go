package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"otp-verification-service/internal/otp/repository"
)

// Metrics holds the OTel instruments for the challenge lifecycle. A nil *Metrics records nothing.
type Metrics struct {
	issued   metric.Int64Counter
	rejected metric.Int64Counter
	verified metric.Int64Counter
	reaped   metric.Int64Counter
}

// NewMetrics creates the challenge instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	issued, err := meter.Int64Counter("otp.challenges.issued",
		metric.WithDescription("OTP challenges created."))
	if err != nil {
		return nil, err
	}
	rejected, err := meter.Int64Counter("otp.issuance.rejected",
		metric.WithDescription("OTP issuance requests rejected by cooldown or rate limits."))
	if err != nil {
		return nil, err
	}
	verified, err := meter.Int64Counter("otp.verifications",
		metric.WithDescription("OTP verification attempts by outcome."))
	if err != nil {
		return nil, err
	}
	reaped, err := meter.Int64Counter("otp.reaper.deleted",
		metric.WithDescription("Stale OTP challenges removed by the reaper."))
	if err != nil {
		return nil, err
	}
	return &Metrics{issued: issued, rejected: rejected, verified: verified, reaped: reaped}, nil
}

func (m *Metrics) challengeIssued(ctx context.Context, purpose string) {
	if m == nil {
		return
	}
	m.issued.Add(ctx, 1, metric.WithAttributes(attribute.String("purpose", purpose)))
}

func (m *Metrics) issuanceRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) verification(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.verified.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) reaperDeleted(ctx context.Context, n int64) {
	if m == nil || n == 0 {
		return
	}
	m.reaped.Add(ctx, n)
}

// Reason returns the short label used in metrics and telemetry for an issuance or verification error.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCooldownActive):
		return "cooldown"
	case errors.Is(err, ErrDeviceRateLimited):
		return "device_rate_limited"
	case errors.Is(err, ErrAccountRateLimited):
		return "account_rate_limited"
	case errors.Is(err, ErrInvalidProcessID):
		return "invalid_process_id"
	case errors.Is(err, ErrAlreadyUsed):
		return "already_used"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, ErrTooManyFailedAttempts):
		return "too_many_failed_attempts"
	case errors.Is(err, ErrDeviceMismatch):
		return "device_mismatch"
	case errors.Is(err, repository.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "error"
	}
}

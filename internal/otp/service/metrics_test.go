package service

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"otp-verification-service/internal/otp/domain"
)

// counterValue sums the data points of the named counter whose attribute key has value want.
func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name, key, want string) int64 {
	t.Helper()
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s is %T, want Sum[int64]", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				if key == "" {
					total += dp.Value
					continue
				}
				if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == want {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestMetrics_RecordLifecycle(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(provider.Meter("otp-test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	f := newFixture(domain.DefaultPolicy())
	f.issuer.metrics = m
	f.verifier.metrics = m

	res := f.mustIssue(t, issueReq("acct-1", "dev_a"))
	_, _ = f.issuer.Issue(context.Background(), issueReq("acct-1", "dev_a"))
	_, _ = f.verifier.Verify(context.Background(), verifyReq(res, "acct-1", wrongCode(res.Code), "dev_a"))
	_, _ = f.verifier.Verify(context.Background(), verifyReq(res, "acct-1", res.Code, "dev_a"))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got := counterValue(t, rm, "otp.challenges.issued", "purpose", "verification"); got != 1 {
		t.Errorf("issued = %d, want 1", got)
	}
	if got := counterValue(t, rm, "otp.issuance.rejected", "reason", "cooldown"); got != 1 {
		t.Errorf("rejected{cooldown} = %d, want 1", got)
	}
	if got := counterValue(t, rm, "otp.verifications", "outcome", "invalid_code"); got != 1 {
		t.Errorf("verifications{invalid_code} = %d, want 1", got)
	}
	if got := counterValue(t, rm, "otp.verifications", "outcome", "ok"); got != 1 {
		t.Errorf("verifications{ok} = %d, want 1", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.challengeIssued(context.Background(), "verification")
	m.issuanceRejected(context.Background(), "cooldown")
	m.verification(context.Background(), "ok")
	m.reaperDeleted(context.Background(), 3)
}

func TestReason(t *testing.T) {
	testCases := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{&CooldownError{RemainingSeconds: 3}, "cooldown"},
		{ErrDeviceRateLimited, "device_rate_limited"},
		{ErrAccountRateLimited, "account_rate_limited"},
		{&InvalidCodeError{AttemptsRemaining: 1}, "invalid_code"},
		{ErrTooManyFailedAttempts, "too_many_failed_attempts"},
		{ErrExpired, "expired"},
		{ErrAlreadyUsed, "already_used"},
		{ErrInvalidProcessID, "invalid_process_id"},
		{ErrDeviceMismatch, "device_mismatch"},
	}
	for _, tc := range testCases {
		if got := Reason(tc.err); got != tc.want {
			t.Errorf("Reason(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

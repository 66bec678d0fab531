package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"otp-verification-service/internal/telemetry"
)

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil)
	if em == nil {
		t.Fatal("NewEventEmitter(nil) returned nil")
	}
	if err := em.Emit(context.Background(), &telemetry.Event{EventType: "x"}); err != nil {
		t.Errorf("noop Emit: %v", err)
	}
}

func TestEmit_NilEvent_ReturnsNil(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	if err := NewEventEmitter(provider).Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(ctx, nil): %v", err)
	}
}

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec otellog.Record
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.rec = rec
}

func attrs(rec otellog.Record) map[string]string {
	out := make(map[string]string)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		out[kv.Key] = kv.Value.AsString()
		return true
	})
	return out
}

func TestEmit_AttributeAndBodyMapping(t *testing.T) {
	cap := &recordCapture{}
	em := newEventEmitterWithLogger(cap)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	event := &telemetry.Event{
		EventType: telemetry.EventOTPVerifyFailed,
		Source:    telemetry.SourceAuthAPI,
		AccountID: "acct-1",
		DeviceID:  "dev_a",
		ProcessID: "p-1",
		Purpose:   "verification",
		Reason:    "invalid_code",
		CreatedAt: created,
		Metadata:  map[string]string{"attempts_remaining": "2"},
	}
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := cap.rec

	if got := rec.Body().AsString(); got != "otp.verify_failed" {
		t.Errorf("body = %q", got)
	}
	if !rec.Timestamp().Equal(created) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), created)
	}
	if rec.Severity() != otellog.SeverityWarn {
		t.Errorf("severity = %v, want warn", rec.Severity())
	}
	want := map[string]string{
		"event_type":              "otp.verify_failed",
		"source":                  "auth-api",
		"account_id":              "acct-1",
		"device_id":               "dev_a",
		"process_id":              "p-1",
		"purpose":                 "verification",
		"reason":                  "invalid_code",
		"meta.attempts_remaining": "2",
	}
	got := attrs(rec)
	for k, v := range want {
		if got[k] != v {
			t.Errorf("attr %s = %q, want %q", k, got[k], v)
		}
	}
}

func TestEmit_OmitsEmptyFieldsAndStampsTime(t *testing.T) {
	cap := &recordCapture{}
	em := newEventEmitterWithLogger(cap)
	if err := em.Emit(context.Background(), &telemetry.Event{EventType: telemetry.EventOTPIssued}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if cap.rec.Timestamp().IsZero() {
		t.Error("timestamp should default to now")
	}
	got := attrs(cap.rec)
	if _, ok := got["account_id"]; ok {
		t.Error("empty account_id should be omitted")
	}
	if cap.rec.Severity() != otellog.SeverityInfo {
		t.Errorf("severity = %v, want info", cap.rec.Severity())
	}
}

// Package telemetry carries OTP lifecycle events to best-effort sinks (OTel logs, Kafka).
package telemetry

import (
	"context"
	"errors"
	"time"
)

// Event types emitted by the auth flow.
const (
	EventOTPIssued         = "otp.issued"
	EventOTPDeliveryFailed = "otp.delivery_failed"
	EventOTPRejected       = "otp.rejected"
	EventOTPVerified       = "otp.verified"
	EventOTPVerifyFailed   = "otp.verify_failed"
)

// SourceAuthAPI marks events produced by the HTTP auth API.
const SourceAuthAPI = "auth-api"

// Event is a single OTP lifecycle record. It never carries the code or its hash.
type Event struct {
	EventType string            `json:"eventType"`
	Source    string            `json:"source"`
	AccountID string            `json:"accountId,omitempty"`
	DeviceID  string            `json:"deviceId,omitempty"`
	ProcessID string            `json:"processId,omitempty"`
	Purpose   string            `json:"purpose,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// EventEmitter emits telemetry events. Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}

// Multi fans an event out to every non-nil emitter and joins their errors.
func Multi(emitters ...EventEmitter) EventEmitter {
	out := make(multi, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

type multi []EventEmitter

func (m multi) Emit(ctx context.Context, event *Event) error {
	var errs []error
	for _, e := range m {
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"otp-verification-service/internal/telemetry"
)

const scopeName = "otp.telemetry"

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger(scopeName)}
}

// recordEmitter is the subset of otellog.Logger used by otelEmitter.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// newEventEmitterWithLogger builds an emitter around any record sink.
func newEventEmitterWithLogger(logger recordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *telemetry.Event) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the event to an OTel log record. The event type is the body; identifiers are attributes.
func (e *otelEmitter) Emit(ctx context.Context, event *telemetry.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	ts := event.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetBody(otellog.StringValue(event.EventType))
	rec.SetSeverity(severity(event.EventType))

	addString(&rec, "event_type", event.EventType)
	addString(&rec, "source", event.Source)
	addString(&rec, "account_id", event.AccountID)
	addString(&rec, "device_id", event.DeviceID)
	addString(&rec, "process_id", event.ProcessID)
	addString(&rec, "purpose", event.Purpose)
	addString(&rec, "reason", event.Reason)
	for k, v := range event.Metadata {
		addString(&rec, "meta."+k, v)
	}
	e.logger.Emit(ctx, rec)
	return nil
}

func addString(rec *otellog.Record, key, value string) {
	if value != "" {
		rec.AddAttributes(otellog.String(key, value))
	}
}

func severity(eventType string) otellog.Severity {
	switch eventType {
	case telemetry.EventOTPDeliveryFailed:
		return otellog.SeverityError
	case telemetry.EventOTPRejected, telemetry.EventOTPVerifyFailed:
		return otellog.SeverityWarn
	default:
		return otellog.SeverityInfo
	}
}

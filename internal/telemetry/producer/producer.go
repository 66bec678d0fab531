// Package producer publishes telemetry events to a message broker.
package producer

import (
	"otp-verification-service/internal/telemetry"
)

// Producer emits telemetry events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	telemetry.EventEmitter
	// Close flushes pending writes and releases the connection. Safe to call if already closed.
	Close() error
}

// Package notify delivers issued OTP codes out of band.
package notify

import (
	"context"
	"time"

	"otp-verification-service/internal/otp/domain"
)

// Message is one rendered-on-delivery OTP notification.
type Message struct {
	To         string
	Code       string
	Purpose    domain.Purpose
	DeviceName string
	ProcessID  string
	ExpiresAt  time.Time
	TTL        time.Duration
}

// Notifier delivers an OTP to its recipient. A delivery failure never affects the issued challenge.
type Notifier interface {
	Deliver(ctx context.Context, msg Message) error
}

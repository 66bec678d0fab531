package domain

import (
	"fmt"
	"time"
)

// Purpose scopes a challenge to the flow it was issued for. Cooldown, supersede
// and verification only ever match challenges of the same purpose.
type Purpose string

const (
	PurposeVerification Purpose = "verification"
	PurposeReset        Purpose = "reset"
	PurposeLogin        Purpose = "login"
	PurposeGeneral      Purpose = "general"
)

// ParsePurpose returns the Purpose for s. An empty string maps to PurposeVerification.
func ParsePurpose(s string) (Purpose, error) {
	switch p := Purpose(s); p {
	case "":
		return PurposeVerification, nil
	case PurposeVerification, PurposeReset, PurposeLogin, PurposeGeneral:
		return p, nil
	default:
		return "", fmt.Errorf("unknown otp purpose %q", s)
	}
}

// Challenge represents one OTP issuance (stored in otp_challenges table).
// The plain code is never persisted; CodeHash holds its SHA-256 hex digest.
type Challenge struct {
	ProcessID      string
	AccountID      string
	Email          string
	Purpose        Purpose
	CodeHash       string
	DeviceID       string // empty when the request carried no device signals
	DeviceName     string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	Verified       bool
	VerifiedAt     *time.Time
	Valid          bool
	FailedAttempts int
}

// Terminal reports whether the challenge can no longer change state.
func (c *Challenge) Terminal() bool {
	return !c.Valid || c.Verified
}

// ExpiredAt reports whether the challenge is expired at now. now == ExpiresAt counts as expired.
func (c *Challenge) ExpiredAt(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Active reports whether the challenge is valid, unverified and unexpired at now.
func (c *Challenge) Active(now time.Time) bool {
	return !c.Terminal() && !c.ExpiredAt(now)
}

// SupersededExpiry is the expiry a challenge takes when a newer one replaces it at now.
// It stays after CreatedAt, one microsecond being the storage resolution.
func (c *Challenge) SupersededExpiry(now time.Time) time.Time {
	if now.After(c.CreatedAt) {
		return now
	}
	return c.CreatedAt.Add(time.Microsecond)
}

// Key identifies the issuer's "one active challenge" scope.
type Key struct {
	AccountID string
	Email     string
	DeviceID  string
	Purpose   Purpose
}

// Key returns the issuance scope of c.
func (c *Challenge) Key() Key {
	return Key{AccountID: c.AccountID, Email: c.Email, DeviceID: c.DeviceID, Purpose: c.Purpose}
}

package service

import (
	"errors"
	"fmt"
)

// Sentinel errors for issuance and verification; the auth handler maps them to HTTP statuses.
var (
	ErrCooldownActive     = errors.New("otp resend cooldown active")
	ErrDeviceRateLimited  = errors.New("too many otp requests from this device")
	ErrAccountRateLimited = errors.New("too many otp requests for this account")

	ErrInvalidProcessID      = errors.New("invalid otp process id")
	ErrAlreadyUsed           = errors.New("otp already used")
	ErrExpired               = errors.New("otp expired")
	ErrInvalidCode           = errors.New("invalid otp code")
	ErrTooManyFailedAttempts = errors.New("too many failed otp attempts")
	ErrDeviceMismatch        = errors.New("otp presented from a different device")
)

// CooldownError reports how long the caller must wait before another code can be issued.
type CooldownError struct {
	RemainingSeconds int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: retry in %d seconds", ErrCooldownActive, e.RemainingSeconds)
}

func (e *CooldownError) Unwrap() error { return ErrCooldownActive }

// InvalidCodeError reports a wrong code and how many attempts are left before the challenge is invalidated.
type InvalidCodeError struct {
	AttemptsRemaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("%s: %d attempts remaining", ErrInvalidCode, e.AttemptsRemaining)
}

func (e *InvalidCodeError) Unwrap() error { return ErrInvalidCode }

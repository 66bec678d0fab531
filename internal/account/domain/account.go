package domain

import (
	"errors"
	"strings"
)

// StatusActive is the only account status code that may receive or verify OTPs.
const StatusActive = "ACT"

// Sentinel errors for account resolution; surfaced to the caller verbatim.
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountDeleted     = errors.New("account is deleted")
	ErrAccountDeactivated = errors.New("account is deactivated")
	ErrAccountNotActive   = errors.New("account is not active")
)

// Account is the read-only view of an account that the OTP flows need.
type Account struct {
	ID            string
	Username      string
	Email         string
	StatusCode    string
	StatusName    string // human label of StatusCode, e.g. "Suspended"
	IsDeleted     bool
	IsDeactivated bool
}

// NotActiveError reports an account whose status is not active, carrying the status label.
type NotActiveError struct {
	Status string
}

func (e *NotActiveError) Error() string {
	if e.Status == "" {
		return ErrAccountNotActive.Error()
	}
	return "account is " + strings.ToLower(e.Status)
}

func (e *NotActiveError) Unwrap() error { return ErrAccountNotActive }

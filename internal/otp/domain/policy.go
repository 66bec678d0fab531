package domain

import "time"

// Policy is the OTP configuration value object. It is built once at startup and
// injected into the issuer, verifier, reaper and orchestrator.
type Policy struct {
	CodeLength              int
	TTL                     time.Duration
	ResendCooldown          time.Duration
	MaxIssuancePerDevice    int
	IssuanceWindow          time.Duration
	AccountFanoutMultiplier int
	MaxVerificationAttempts int
	StrictDeviceBinding     bool
	CleanupInterval         time.Duration
	CleanupOnStartup        bool
}

// DefaultPolicy returns the documented defaults.
func DefaultPolicy() Policy {
	return Policy{
		CodeLength:              6,
		TTL:                     5 * time.Minute,
		ResendCooldown:          60 * time.Second,
		MaxIssuancePerDevice:    5,
		IssuanceWindow:          5 * time.Minute,
		AccountFanoutMultiplier: 3,
		MaxVerificationAttempts: 3,
		CleanupInterval:         60 * time.Minute,
		CleanupOnStartup:        true,
	}
}

// MaxIssuancePerAccount is the cap on issuances for one account across all devices per window.
func (p Policy) MaxIssuancePerAccount() int {
	return p.MaxIssuancePerDevice * p.AccountFanoutMultiplier
}

package handler

import "time"

type sendOTPRequest struct {
	Identifier string `json:"identifier" validate:"required,max=320"`
	Purpose    string `json:"purpose" validate:"omitempty,oneof=verification reset login general"`
}

type sendOTPResponse struct {
	ProcessID   string `json:"processId"`
	MaskedEmail string `json:"maskedEmail"`
	ExpiresIn   int    `json:"expiresIn"`
}

type verifyOTPRequest struct {
	Identifier string `json:"identifier" validate:"required,max=320"`
	OTP        string `json:"otp" validate:"required,number,min=4,max=10"`
	ProcessID  string `json:"processId" validate:"required,max=64"`
	Purpose    string `json:"purpose" validate:"omitempty,oneof=verification reset login general"`
}

type verifyOTPResponse struct {
	Verified       bool       `json:"verified"`
	ProcessID      string     `json:"processId"`
	AccountID      string     `json:"accountId"`
	Purpose        string     `json:"purpose"`
	VerifiedAt     time.Time  `json:"verifiedAt"`
	ResetToken     string     `json:"resetToken,omitempty"`
	ResetExpiresAt *time.Time `json:"resetExpiresAt,omitempty"`
}

type devOTPResponse struct {
	ProcessID string `json:"processId"`
	OTP       string `json:"otp"`
}

// errorResponse is the body of every non-2xx answer.
type errorResponse struct {
	Code              string            `json:"code"`
	Message           string            `json:"message"`
	RetryAfter        int               `json:"retry_after,omitempty"`
	AttemptsRemaining *int              `json:"attempts_remaining,omitempty"`
	ProcessID         string            `json:"processId,omitempty"`
	Fields            map[string]string `json:"fields,omitempty"`
}

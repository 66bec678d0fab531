package handler

import (
	"errors"
	"net/http"

	accountdomain "otp-verification-service/internal/account/domain"
	accountrepo "otp-verification-service/internal/account/repository"
	authservice "otp-verification-service/internal/auth/service"
	otprepo "otp-verification-service/internal/otp/repository"
	otpservice "otp-verification-service/internal/otp/service"
)

// Stable machine codes returned in errorResponse.Code.
const (
	CodeValidation            = "VALIDATION_ERROR"
	CodeAccountNotFound       = "ACCOUNT_NOT_FOUND"
	CodeAccountDeleted        = "ACCOUNT_DELETED"
	CodeAccountDeactivated    = "ACCOUNT_DEACTIVATED"
	CodeAccountNotActive      = "ACCOUNT_NOT_ACTIVE"
	CodeCooldownActive        = "OTP_COOLDOWN_ACTIVE"
	CodeDeviceRateLimited     = "OTP_DEVICE_RATE_LIMITED"
	CodeAccountRateLimited    = "OTP_ACCOUNT_RATE_LIMITED"
	CodeInvalidProcessID      = "OTP_INVALID_PROCESS_ID"
	CodeAlreadyUsed           = "OTP_ALREADY_USED"
	CodeExpired               = "OTP_EXPIRED"
	CodeInvalidCode           = "OTP_INVALID"
	CodeTooManyFailedAttempts = "OTP_TOO_MANY_ATTEMPTS"
	CodeDeviceMismatch        = "OTP_DEVICE_MISMATCH"
	CodeDeliveryFailed        = "OTP_DELIVERY_FAILED"
	CodeGrantFailed           = "RESET_GRANT_FAILED"
	CodeStoreUnavailable      = "STORE_UNAVAILABLE"
	CodeRateLimited           = "RATE_LIMITED"
	CodeNotFound              = "NOT_FOUND"
	CodeInternal              = "INTERNAL_ERROR"
)

// mapError turns a service error into a status and response body. Unknown errors are internal.
func mapError(err error) (int, errorResponse) {
	var (
		cooldown *otpservice.CooldownError
		invalid  *otpservice.InvalidCodeError
		inactive *accountdomain.NotActiveError
	)
	switch {
	case errors.Is(err, authservice.ErrInvalidPurpose):
		return http.StatusBadRequest, errorResponse{Code: CodeValidation, Message: "Unknown OTP purpose."}
	case errors.Is(err, accountdomain.ErrAccountNotFound):
		return http.StatusNotFound, errorResponse{Code: CodeAccountNotFound, Message: "No account matches this identifier."}
	case errors.Is(err, accountdomain.ErrAccountDeleted):
		return http.StatusForbidden, errorResponse{Code: CodeAccountDeleted, Message: "This account has been deleted."}
	case errors.Is(err, accountdomain.ErrAccountDeactivated):
		return http.StatusForbidden, errorResponse{Code: CodeAccountDeactivated, Message: "This account has been deactivated."}
	case errors.As(err, &inactive):
		msg := "Account is not active."
		if inactive.Status != "" {
			msg = "Account is not active (status: " + inactive.Status + ")."
		}
		return http.StatusForbidden, errorResponse{Code: CodeAccountNotActive, Message: msg}
	case errors.As(err, &cooldown):
		return http.StatusTooManyRequests, errorResponse{
			Code:       CodeCooldownActive,
			Message:    "Please wait before requesting another code.",
			RetryAfter: cooldown.RemainingSeconds,
		}
	case errors.Is(err, otpservice.ErrDeviceRateLimited):
		return http.StatusTooManyRequests, errorResponse{Code: CodeDeviceRateLimited, Message: "Too many codes requested from this device. Try again later."}
	case errors.Is(err, otpservice.ErrAccountRateLimited):
		return http.StatusTooManyRequests, errorResponse{Code: CodeAccountRateLimited, Message: "Too many codes requested for this account. Try again later."}
	case errors.Is(err, otpservice.ErrInvalidProcessID):
		return http.StatusBadRequest, errorResponse{Code: CodeInvalidProcessID, Message: "This verification request is not valid. Request a new code."}
	case errors.Is(err, otpservice.ErrAlreadyUsed):
		return http.StatusConflict, errorResponse{Code: CodeAlreadyUsed, Message: "This code has already been used."}
	case errors.Is(err, otpservice.ErrExpired):
		return http.StatusGone, errorResponse{Code: CodeExpired, Message: "This code has expired. Request a new one."}
	case errors.As(err, &invalid):
		remaining := invalid.AttemptsRemaining
		return http.StatusUnauthorized, errorResponse{
			Code:              CodeInvalidCode,
			Message:           "The code is incorrect.",
			AttemptsRemaining: &remaining,
		}
	case errors.Is(err, otpservice.ErrTooManyFailedAttempts):
		return http.StatusTooManyRequests, errorResponse{Code: CodeTooManyFailedAttempts, Message: "Too many incorrect attempts. Request a new code."}
	case errors.Is(err, otpservice.ErrDeviceMismatch):
		return http.StatusForbidden, errorResponse{Code: CodeDeviceMismatch, Message: "The code must be entered on the device that requested it."}
	case errors.Is(err, authservice.ErrDeliveryFailed):
		return http.StatusBadGateway, errorResponse{Code: CodeDeliveryFailed, Message: "The code could not be delivered."}
	case errors.Is(err, authservice.ErrGrantFailed):
		return http.StatusInternalServerError, errorResponse{Code: CodeGrantFailed, Message: "The code was accepted but the reset could not be authorized."}
	case errors.Is(err, otprepo.ErrStoreUnavailable), errors.Is(err, accountrepo.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, errorResponse{Code: CodeStoreUnavailable, Message: "Service temporarily unavailable."}
	default:
		return http.StatusInternalServerError, errorResponse{Code: CodeInternal, Message: "An unexpected error occurred."}
	}
}

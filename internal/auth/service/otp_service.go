// Package service composes account resolution, admission, device fingerprinting, challenge
// issuance/verification, delivery and reset grants into the send/verify OTP use cases.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	accountdomain "otp-verification-service/internal/account/domain"
	"otp-verification-service/internal/device"
	"otp-verification-service/internal/notify"
	otpdomain "otp-verification-service/internal/otp/domain"
	otpservice "otp-verification-service/internal/otp/service"
	"otp-verification-service/internal/policy/engine"
	"otp-verification-service/internal/telemetry"
)

// Sentinel errors for the orchestrator; the handler maps them to HTTP statuses.
var (
	// ErrDeliveryFailed means the challenge was issued but the code could not be delivered.
	// The SendResult is returned alongside it.
	ErrDeliveryFailed = errors.New("otp delivery failed")
	// ErrGrantFailed means the code was accepted but the reset grant could not be minted.
	// The VerifyResult is returned alongside it; the challenge is already consumed.
	ErrGrantFailed = errors.New("reset grant could not be issued")
	// ErrInvalidPurpose is returned for an unknown purpose string.
	ErrInvalidPurpose = errors.New("invalid otp purpose")
)

const tracerName = "otp-verification-service/internal/auth/service"

// AccountDirectory is the minimal account lookup needed by the orchestrator.
type AccountDirectory interface {
	ResolveByIdentifier(ctx context.Context, identifier string) (*accountdomain.Account, error)
}

// AdmissionPolicy decides whether a resolved (or missing) account may use OTP flows.
type AdmissionPolicy interface {
	Evaluate(ctx context.Context, account *accountdomain.Account) (engine.Decision, error)
}

// ChallengeIssuer issues challenges.
type ChallengeIssuer interface {
	Issue(ctx context.Context, req otpservice.IssueRequest) (*otpservice.IssueResult, error)
}

// ChallengeVerifier consumes codes.
type ChallengeVerifier interface {
	Verify(ctx context.Context, req otpservice.VerifyRequest) (*otpservice.VerificationResult, error)
}

// GrantMinter mints the short-lived grant handed out after a reset verification.
type GrantMinter interface {
	IssueResetGrant(accountID, processID string) (token string, expiresAt time.Time, err error)
}

// SendRequest carries an identifier (email or username) and the caller's device signals.
type SendRequest struct {
	Identifier    string
	Purpose       string
	UserAgent     string
	SourceAddress string
}

// SendResult is returned to the caller. It never carries the code.
type SendResult struct {
	ProcessID   string
	MaskedEmail string
	ExpiresIn   time.Duration
	ExpiresAt   time.Time
}

// VerifyRequest carries the code and processId the caller received.
type VerifyRequest struct {
	Identifier    string
	Code          string
	ProcessID     string
	Purpose       string
	UserAgent     string
	SourceAddress string
}

// Grant is the reset artifact minted after a reset-purpose verification.
type Grant struct {
	Token     string
	ExpiresAt time.Time
}

// VerifyResult is the verification receipt. Grant is set only for reset verifications when a
// grant minter is configured.
type VerifyResult struct {
	ProcessID  string
	AccountID  string
	Purpose    otpdomain.Purpose
	VerifiedAt time.Time
	Grant      *Grant
}

// OTPAuthService implements SendOTP and VerifyOTP.
type OTPAuthService struct {
	accounts  AccountDirectory
	admission AdmissionPolicy
	issuer    ChallengeIssuer
	verifier  ChallengeVerifier
	notifier  notify.Notifier
	grants    GrantMinter
	events    telemetry.EventEmitter
	ttl       time.Duration
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewOTPAuthService returns an OTPAuthService. grants and events may be nil; without grants,
// reset verifications succeed with no grant. ttl is the challenge lifetime reported to notifications.
func NewOTPAuthService(
	accounts AccountDirectory,
	admission AdmissionPolicy,
	issuer ChallengeIssuer,
	verifier ChallengeVerifier,
	notifier notify.Notifier,
	grants GrantMinter,
	events telemetry.EventEmitter,
	ttl time.Duration,
	logger *zap.Logger,
) *OTPAuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OTPAuthService{
		accounts:  accounts,
		admission: admission,
		issuer:    issuer,
		verifier:  verifier,
		notifier:  notifier,
		grants:    grants,
		events:    events,
		ttl:       ttl,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
	}
}

// SendOTP resolves and admits the account, issues a challenge for the caller's device and delivers the code.
// On delivery failure the challenge stays valid and the result is returned with ErrDeliveryFailed.
func (s *OTPAuthService) SendOTP(ctx context.Context, req SendRequest) (res *SendResult, err error) {
	ctx, span := s.tracer.Start(ctx, "OTPAuthService.SendOTP")
	defer func() { endSpan(span, err) }()

	purpose, err := parsePurpose(req.Purpose)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("otp.purpose", string(purpose)))

	account, err := s.admit(ctx, req.Identifier)
	if err != nil {
		s.emit(ctx, &telemetry.Event{EventType: telemetry.EventOTPRejected, Purpose: string(purpose), Reason: reason(err)})
		return nil, err
	}
	info := device.Fingerprint(req.UserAgent, req.SourceAddress)
	span.SetAttributes(attribute.String("otp.device_id", info.DeviceID))

	issued, err := s.issuer.Issue(ctx, otpservice.IssueRequest{
		AccountID: account.ID,
		Email:     account.Email,
		Purpose:   purpose,
		Device:    info,
	})
	if err != nil {
		s.emit(ctx, &telemetry.Event{
			EventType: telemetry.EventOTPRejected,
			AccountID: account.ID,
			DeviceID:  info.DeviceID,
			Purpose:   string(purpose),
			Reason:    reason(err),
		})
		return nil, err
	}
	span.SetAttributes(attribute.String("otp.process_id", issued.ProcessID))

	res = &SendResult{
		ProcessID:   issued.ProcessID,
		MaskedEmail: MaskEmail(account.Email),
		ExpiresIn:   issued.ExpiresAt.Sub(issued.CreatedAt),
		ExpiresAt:   issued.ExpiresAt,
	}
	event := &telemetry.Event{
		AccountID: account.ID,
		DeviceID:  info.DeviceID,
		ProcessID: issued.ProcessID,
		Purpose:   string(purpose),
	}

	derr := s.notifier.Deliver(ctx, notify.Message{
		To:         account.Email,
		Code:       issued.Code,
		Purpose:    purpose,
		DeviceName: info.DeviceName,
		ProcessID:  issued.ProcessID,
		ExpiresAt:  issued.ExpiresAt,
		TTL:        s.ttl,
	})
	if derr != nil {
		s.logger.Warn("otp delivery failed",
			zap.String("account_id", account.ID),
			zap.String("process_id", issued.ProcessID),
			zap.Error(derr),
		)
		event.EventType = telemetry.EventOTPDeliveryFailed
		s.emit(ctx, event)
		return res, fmt.Errorf("%w: %v", ErrDeliveryFailed, derr)
	}

	event.EventType = telemetry.EventOTPIssued
	s.emit(ctx, event)
	s.logger.Info("otp issued",
		zap.String("account_id", account.ID),
		zap.String("process_id", issued.ProcessID),
		zap.String("purpose", string(purpose)),
	)
	return res, nil
}

// VerifyOTP resolves and admits the account, then checks the code. A successful reset-purpose
// verification mints a grant when a minter is configured.
func (s *OTPAuthService) VerifyOTP(ctx context.Context, req VerifyRequest) (res *VerifyResult, err error) {
	ctx, span := s.tracer.Start(ctx, "OTPAuthService.VerifyOTP")
	defer func() { endSpan(span, err) }()

	purpose, err := parsePurpose(req.Purpose)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("otp.purpose", string(purpose)),
		attribute.String("otp.process_id", req.ProcessID),
	)

	account, err := s.admit(ctx, req.Identifier)
	if err != nil {
		s.emit(ctx, &telemetry.Event{
			EventType: telemetry.EventOTPVerifyFailed,
			ProcessID: req.ProcessID,
			Purpose:   string(purpose),
			Reason:    reason(err),
		})
		return nil, err
	}
	info := device.Fingerprint(req.UserAgent, req.SourceAddress)

	verified, err := s.verifier.Verify(ctx, otpservice.VerifyRequest{
		AccountID: account.ID,
		Email:     account.Email,
		Code:      req.Code,
		ProcessID: req.ProcessID,
		Purpose:   purpose,
		Device:    info,
	})
	if err != nil {
		ev := &telemetry.Event{
			EventType: telemetry.EventOTPVerifyFailed,
			AccountID: account.ID,
			DeviceID:  info.DeviceID,
			ProcessID: req.ProcessID,
			Purpose:   string(purpose),
			Reason:    reason(err),
		}
		var ic *otpservice.InvalidCodeError
		if errors.As(err, &ic) {
			ev.Metadata = map[string]string{"attempts_remaining": strconv.Itoa(ic.AttemptsRemaining)}
		}
		s.emit(ctx, ev)
		return nil, err
	}

	res = &VerifyResult{
		ProcessID:  verified.ProcessID,
		AccountID:  verified.AccountID,
		Purpose:    verified.Purpose,
		VerifiedAt: verified.VerifiedAt,
	}
	s.emit(ctx, &telemetry.Event{
		EventType: telemetry.EventOTPVerified,
		AccountID: account.ID,
		DeviceID:  info.DeviceID,
		ProcessID: verified.ProcessID,
		Purpose:   string(purpose),
	})

	if purpose != otpdomain.PurposeReset {
		return res, nil
	}
	if s.grants == nil {
		s.logger.Warn("reset verified but no grant issuer is configured",
			zap.String("account_id", account.ID),
			zap.String("process_id", verified.ProcessID),
		)
		return res, nil
	}
	token, expiresAt, gerr := s.grants.IssueResetGrant(account.ID, verified.ProcessID)
	if gerr != nil {
		s.logger.Error("mint reset grant",
			zap.String("account_id", account.ID),
			zap.String("process_id", verified.ProcessID),
			zap.Error(gerr),
		)
		return res, fmt.Errorf("%w: %v", ErrGrantFailed, gerr)
	}
	res.Grant = &Grant{Token: token, ExpiresAt: expiresAt}
	return res, nil
}

// admit resolves identifier and runs the admission policy. A missing account reaches the
// policy as nil so that the not-found reason comes from the same place as the others.
func (s *OTPAuthService) admit(ctx context.Context, identifier string) (*accountdomain.Account, error) {
	identifier = strings.TrimSpace(identifier)
	var account *accountdomain.Account
	if identifier != "" {
		var err error
		account, err = s.accounts.ResolveByIdentifier(ctx, identifier)
		if err != nil {
			return nil, err
		}
	}
	decision, err := s.admission.Evaluate(ctx, account)
	if err != nil {
		return nil, err
	}
	if err := decision.Err(account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *OTPAuthService) emit(ctx context.Context, event *telemetry.Event) {
	if s.events == nil {
		return
	}
	event.Source = telemetry.SourceAuthAPI
	telemetry.EmitAsync(ctx, s.events, event, s.logger)
}

func parsePurpose(s string) (otpdomain.Purpose, error) {
	p, err := otpdomain.ParsePurpose(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidPurpose, s)
	}
	return p, nil
}

// reason labels err for telemetry using the same vocabulary as the OTP metrics.
func reason(err error) string {
	switch {
	case errors.Is(err, accountdomain.ErrAccountNotFound):
		return engine.ReasonNotFound
	case errors.Is(err, accountdomain.ErrAccountDeleted):
		return engine.ReasonDeleted
	case errors.Is(err, accountdomain.ErrAccountDeactivated):
		return engine.ReasonDeactivated
	case errors.Is(err, accountdomain.ErrAccountNotActive):
		return engine.ReasonNotActive
	default:
		return otpservice.Reason(err)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// MaskEmail hides most of the local part: "alice@example.com" becomes "a***e@example.com".
// Local parts of two characters or fewer keep only the first character.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	local, domainPart := email[:at], email[at:]
	r := []rune(local)
	if len(r) <= 2 {
		return string(r[0]) + "***" + domainPart
	}
	return string(r[0]) + "***" + string(r[len(r)-1]) + domainPart
}

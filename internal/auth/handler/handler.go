// Package handler exposes the OTP send/verify use cases as a JSON API on a chi router.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	authservice "otp-verification-service/internal/auth/service"
)

const maxBodyBytes = 4 << 10

// OTPService is the orchestrator surface the handler needs.
type OTPService interface {
	SendOTP(ctx context.Context, req authservice.SendRequest) (*authservice.SendResult, error)
	VerifyOTP(ctx context.Context, req authservice.VerifyRequest) (*authservice.VerifyResult, error)
}

// DevCodes returns plain codes in dev OTP mode. Implemented by notify.DevStore.
type DevCodes interface {
	Get(ctx context.Context, processID string) (string, bool)
}

// ReadinessChecker is implemented by health.Checker.
type ReadinessChecker interface {
	Check(ctx context.Context) error
}

// Handler serves the OTP JSON API.
type Handler struct {
	svc      OTPService
	dev      DevCodes
	ready    ReadinessChecker
	validate *validator.Validate
	logger   *zap.Logger
	proxies  TrustedProxies
	limiter  *RateLimiter
}

// Option configures a Handler.
type Option func(*Handler)

// WithTrustedProxies sets the peers whose forwarding headers are honored. None by default.
func WithTrustedProxies(p TrustedProxies) Option {
	return func(h *Handler) { h.proxies = p }
}

// WithRateLimiter applies l to the OTP API routes.
func WithRateLimiter(l *RateLimiter) Option {
	return func(h *Handler) { h.limiter = l }
}

// NewHandler returns a Handler. dev is nil unless dev OTP mode is on; ready may be nil.
func NewHandler(svc OTPService, dev DevCodes, ready ReadinessChecker, logger *zap.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		svc:      svc,
		dev:      dev,
		ready:    ready,
		validate: newValidator(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router with request ids, panic recovery and access logging applied.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.accessLog)

	r.Get("/healthz", h.Healthz)
	r.Route("/api/v1/auth/otp", func(r chi.Router) {
		if h.limiter != nil {
			r.Use(h.rateLimit)
		}
		r.Post("/send", h.SendOTP)
		r.Post("/verify", h.VerifyOTP)
	})
	if h.dev != nil {
		r.Get("/dev/otp/{processId}", h.DevOTP)
	}
	return r
}

// SendOTP handles POST /api/v1/auth/otp/send.
func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.SendOTP(r.Context(), authservice.SendRequest{
		Identifier:    req.Identifier,
		Purpose:       req.Purpose,
		UserAgent:     r.UserAgent(),
		SourceAddress: h.proxies.ClientIP(r),
	})
	if err != nil {
		status, body := mapError(err)
		if res != nil {
			body.ProcessID = res.ProcessID
		}
		h.writeError(w, r, status, body, err)
		return
	}
	writeJSON(w, http.StatusOK, sendOTPResponse{
		ProcessID:   res.ProcessID,
		MaskedEmail: res.MaskedEmail,
		ExpiresIn:   int(res.ExpiresIn / time.Second),
	})
}

// VerifyOTP handles POST /api/v1/auth/otp/verify.
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.VerifyOTP(r.Context(), authservice.VerifyRequest{
		Identifier:    req.Identifier,
		Code:          req.OTP,
		ProcessID:     req.ProcessID,
		Purpose:       req.Purpose,
		UserAgent:     r.UserAgent(),
		SourceAddress: h.proxies.ClientIP(r),
	})
	if err != nil {
		status, body := mapError(err)
		if res != nil {
			body.ProcessID = res.ProcessID
		}
		h.writeError(w, r, status, body, err)
		return
	}
	out := verifyOTPResponse{
		Verified:   true,
		ProcessID:  res.ProcessID,
		AccountID:  res.AccountID,
		Purpose:    string(res.Purpose),
		VerifiedAt: res.VerifiedAt,
	}
	if res.Grant != nil {
		out.ResetToken = res.Grant.Token
		exp := res.Grant.ExpiresAt
		out.ResetExpiresAt = &exp
	}
	writeJSON(w, http.StatusOK, out)
}

// DevOTP handles GET /dev/otp/{processId}. Registered only in dev OTP mode.
func (h *Handler) DevOTP(w http.ResponseWriter, r *http.Request) {
	processID := chi.URLParam(r, "processId")
	code, ok := h.dev.Get(r.Context(), processID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Code: CodeNotFound, Message: "No pending code for this process id."})
		return
	}
	writeJSON(w, http.StatusOK, devOTPResponse{ProcessID: processID, OTP: code})
}

// Healthz answers 200 when ready and 503 otherwise.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready.Check(r.Context()); err != nil {
			h.logger.Warn("readiness check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads and validates a JSON body. It writes the error response and returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: CodeValidation, Message: "Invalid request body."})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    CodeValidation,
			Message: "Request validation failed.",
			Fields:  fieldErrors(err),
		})
		return false
	}
	return true
}

func fieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, body errorResponse, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("otp request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	if body.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(body.RetryAfter))
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Info("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

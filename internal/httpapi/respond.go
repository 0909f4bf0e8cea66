package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	auth "github.com/Tadeu17/authentication-template"
)

// Error codes carried in the "error" field of failure bodies.
const (
	codeValidation         = "VALIDATION_ERROR"
	codeEmailExists        = "EMAIL_EXISTS"
	codeInvalidCredentials = "INVALID_CREDENTIALS"
	codeEmailNotVerified   = "EMAIL_NOT_VERIFIED"
	codeNotFound           = "NOT_FOUND"
	codeInvalidToken       = "INVALID_TOKEN"
	codeTokenExpired       = "TOKEN_EXPIRED"
	codeRateLimited        = "RATE_LIMITED"
	codeInternal           = "INTERNAL_ERROR"

	codeInvalidVerificationToken = "INVALID_VERIFICATION_TOKEN"
	codeVerificationTokenExpired = "VERIFICATION_TOKEN_EXPIRED"
	codeInvalidResetToken        = "INVALID_RESET_TOKEN"
	codeResetTokenExpired        = "RESET_TOKEN_EXPIRED"
)

type errorBody struct {
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields,omitempty"`
	ResetAt string            `json:"resetAt,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorBody{Error: code})
}

func writeRateLimited(w http.ResponseWriter, rl *auth.RateLimitError, now time.Time) {
	retry := rl.RetryAfter
	if retry <= 0 {
		retry = rl.ResetAt.Sub(now)
	}
	w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds(retry), 10))
	writeJSON(w, http.StatusTooManyRequests, errorBody{
		Error:   codeRateLimited,
		ResetAt: rl.ResetAt.UTC().Format(time.RFC3339),
	})
}

// tokenCodes renames the generic token errors for a specific flow.
type tokenCodes struct {
	invalid string
	expired string
}

var (
	verificationTokenCodes = tokenCodes{invalid: codeInvalidVerificationToken, expired: codeVerificationTokenExpired}
	resetTokenCodes        = tokenCodes{invalid: codeInvalidResetToken, expired: codeResetTokenExpired}
)

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	s.respondFlowError(w, r, err, tokenCodes{invalid: codeInvalidToken, expired: codeTokenExpired})
}

func (s *Server) respondFlowError(w http.ResponseWriter, r *http.Request, err error, tc tokenCodes) {
	var (
		rl *auth.RateLimitError
		ve *auth.ValidationError
	)
	switch {
	case errors.As(err, &rl):
		writeRateLimited(w, rl, s.opts.Now())
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: codeValidation, Fields: ve.Fields})
	case errors.Is(err, auth.ErrValidation):
		writeError(w, http.StatusBadRequest, codeValidation)
	case errors.Is(err, auth.ErrEmailExists):
		writeError(w, http.StatusConflict, codeEmailExists)
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, codeInvalidCredentials)
	case errors.Is(err, auth.ErrEmailNotVerified):
		writeError(w, http.StatusForbidden, codeEmailNotVerified)
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound)
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusBadRequest, tc.invalid)
	case errors.Is(err, auth.ErrTokenExpired):
		writeError(w, http.StatusBadRequest, tc.expired)
	default:
		fields := []zap.Field{zap.String("path", r.URL.Path), zap.Error(err)}
		if rid, ok := requestIDFromContext(r.Context()); ok {
			fields = append(fields, zap.String("request_id", rid))
		}
		s.log.Error("request failed", fields...)
		writeError(w, http.StatusInternalServerError, codeInternal)
	}
}

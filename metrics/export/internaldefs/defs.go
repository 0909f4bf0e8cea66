package internaldefs

import (
	auth "github.com/Tadeu17/authentication-template"
)

// CounterDef maps an engine counter to its exported name.
type CounterDef struct {
	ID   auth.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   auth.MetricID
	Name string
	Help string
}

// CounterDefs lists every engine counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: auth.MetricRegisterSuccess, Name: "auth_register_success_total", Help: "Accounts created."},
	{ID: auth.MetricRegisterDuplicate, Name: "auth_register_duplicate_total", Help: "Registrations rejected because the email exists."},
	{ID: auth.MetricRegisterInvalid, Name: "auth_register_invalid_total", Help: "Registrations rejected by input validation."},
	{ID: auth.MetricLoginSuccess, Name: "auth_login_success_total", Help: "Successful logins."},
	{ID: auth.MetricLoginFailure, Name: "auth_login_failure_total", Help: "Logins rejected for invalid credentials."},
	{ID: auth.MetricLoginUnverified, Name: "auth_login_unverified_total", Help: "Logins rejected because the email is not verified."},
	{ID: auth.MetricEmailVerificationRequest, Name: "auth_email_verification_request_total", Help: "Verification emails issued on request."},
	{ID: auth.MetricEmailVerificationAlreadyVerified, Name: "auth_email_verification_already_verified_total", Help: "Verification requests for accounts already verified."},
	{ID: auth.MetricEmailVerificationSuccess, Name: "auth_email_verification_success_total", Help: "Verification tokens consumed."},
	{ID: auth.MetricEmailVerificationInvalid, Name: "auth_email_verification_invalid_total", Help: "Verification attempts with unknown tokens."},
	{ID: auth.MetricEmailVerificationExpired, Name: "auth_email_verification_expired_total", Help: "Verification attempts with expired tokens."},
	{ID: auth.MetricPasswordResetRequest, Name: "auth_password_reset_request_total", Help: "Reset emails issued for existing accounts."},
	{ID: auth.MetricPasswordResetUnknownEmail, Name: "auth_password_reset_unknown_email_total", Help: "Reset requests for unknown emails."},
	{ID: auth.MetricPasswordResetConfirmSuccess, Name: "auth_password_reset_confirm_success_total", Help: "Passwords replaced through a reset token."},
	{ID: auth.MetricPasswordResetInvalid, Name: "auth_password_reset_invalid_total", Help: "Reset attempts with unknown tokens."},
	{ID: auth.MetricPasswordResetExpired, Name: "auth_password_reset_expired_total", Help: "Reset attempts with expired tokens."},
	{ID: auth.MetricPasswordResetWeakPassword, Name: "auth_password_reset_weak_password_total", Help: "Reset attempts rejected by the password policy."},
	{ID: auth.MetricRateLimitHit, Name: "auth_rate_limit_hit_total", Help: "Requests denied by a rate limit."},
	{ID: auth.MetricEmailQueued, Name: "auth_email_queued_total", Help: "Registration emails queued for delivery."},
	{ID: auth.MetricEmailDropped, Name: "auth_email_dropped_total", Help: "Registration emails dropped before delivery."},
	{ID: auth.MetricEmailSent, Name: "auth_email_sent_total", Help: "Queued emails delivered."},
	{ID: auth.MetricEmailFailed, Name: "auth_email_failed_total", Help: "Queued emails that failed delivery."},
}

var HistogramDefs = []HistogramDef{
	{ID: auth.MetricPasswordHashLatency, Name: "auth_password_hash_seconds", Help: "Password hashing latency."},
}

// HistogramBounds are the upper bounds of the engine's eight buckets.
var HistogramBounds = []string{
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"+Inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing
// buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form
// exposition formats expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

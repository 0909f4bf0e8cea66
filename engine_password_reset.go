package auth

import (
	"context"

	internalflows "github.com/Tadeu17/authentication-template/internal/flows"
	"github.com/Tadeu17/authentication-template/internal/tokens"
	"github.com/Tadeu17/authentication-template/mail"
)

// RequestPasswordReset emails a reset link when the account exists. It
// returns nil for unknown emails so callers cannot tell the cases apart.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	return internalflows.RunRequestPasswordReset(ctx, email, e.passwordResetFlowDeps())
}

// ConfirmPasswordReset consumes token and replaces the account password.
//
// Errors: [ErrInvalidToken], [ErrTokenExpired], [*ValidationError] for a
// password that fails the policy.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	return internalflows.RunConfirmPasswordReset(ctx, token, newPassword, e.passwordResetFlowDeps())
}

func (e *Engine) passwordResetFlowDeps() internalflows.PasswordResetDeps {
	deps := internalflows.PasswordResetDeps{
		Common:        e.commonFlowDeps(),
		HashPassword:  e.hashFunc(),
		GenerateToken: tokens.Generate,
		Metrics: internalflows.PasswordResetMetrics{
			Requested:    int(MetricPasswordResetRequest),
			UnknownEmail: int(MetricPasswordResetUnknownEmail),
			Confirmed:    int(MetricPasswordResetConfirmSuccess),
			InvalidToken: int(MetricPasswordResetInvalid),
			Expired:      int(MetricPasswordResetExpired),
			WeakPassword: int(MetricPasswordResetWeakPassword),
		},
	}
	if e == nil {
		return deps
	}

	deps.TTL = e.config.Tokens.PasswordResetTTL
	deps.Links = mail.Links{BaseURL: e.config.Links.BaseURL}
	deps.Locale = e.config.Links.DefaultLocale
	deps.Validator = e.validator
	deps.SendTimeout = e.config.Mail.SendTimeout
	if e.mailer != nil {
		deps.SendEmail = e.mailer.Send
	}
	return deps
}

package auth

import (
	"context"

	internalflows "github.com/Tadeu17/authentication-template/internal/flows"
	"github.com/Tadeu17/authentication-template/internal/tokens"
	"github.com/Tadeu17/authentication-template/mail"
)

// RequestVerificationEmail issues a fresh verification token, superseding
// any earlier one, and sends it. An already-verified account succeeds
// without a new token.
//
// Unlike [Engine.RequestPasswordReset] an unknown email yields
// [ErrNotFound].
func (e *Engine) RequestVerificationEmail(ctx context.Context, email string) error {
	return internalflows.RunRequestVerificationEmail(ctx, email, e.verificationFlowDeps())
}

// ConfirmVerification consumes token and marks its account verified.
// Errors: [ErrInvalidToken], [ErrTokenExpired]; an expired token stays in
// place until a new one is requested.
func (e *Engine) ConfirmVerification(ctx context.Context, token string) error {
	return internalflows.RunConfirmVerification(ctx, token, e.verificationFlowDeps())
}

func (e *Engine) verificationFlowDeps() internalflows.VerificationDeps {
	deps := internalflows.VerificationDeps{
		Common:        e.commonFlowDeps(),
		GenerateToken: tokens.Generate,
		Metrics: internalflows.VerificationMetrics{
			Requested:       int(MetricEmailVerificationRequest),
			AlreadyVerified: int(MetricEmailVerificationAlreadyVerified),
			Confirmed:       int(MetricEmailVerificationSuccess),
			InvalidToken:    int(MetricEmailVerificationInvalid),
			Expired:         int(MetricEmailVerificationExpired),
		},
	}
	if e == nil {
		return deps
	}

	deps.TTL = e.config.Tokens.VerificationTTL
	deps.Links = mail.Links{BaseURL: e.config.Links.BaseURL}
	deps.Locale = e.config.Links.DefaultLocale
	deps.Validator = e.validator
	deps.SendTimeout = e.config.Mail.SendTimeout
	if e.mailer != nil {
		deps.SendEmail = e.mailer.Send
	}
	return deps
}

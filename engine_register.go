package auth

import (
	"context"

	internalflows "github.com/Tadeu17/authentication-template/internal/flows"
	"github.com/Tadeu17/authentication-template/internal/tokens"
	"github.com/Tadeu17/authentication-template/mail"
)

// Register creates an unverified account and queues its verification email.
//
// Errors: [*RateLimitError], [*ValidationError], [ErrEmailExists],
// [ErrInternal]. Email delivery problems are logged and never fail the call.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	u, err := internalflows.RunRegister(ctx, internalflows.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	}, e.registerFlowDeps())
	if err != nil {
		return nil, err
	}
	return publicUser(u), nil
}

func (e *Engine) registerFlowDeps() internalflows.RegisterDeps {
	deps := internalflows.RegisterDeps{
		Common:        e.commonFlowDeps(),
		HashPassword:  e.hashFunc(),
		GenerateToken: tokens.Generate,
		Metrics: internalflows.RegisterMetrics{
			Success:      int(MetricRegisterSuccess),
			Duplicate:    int(MetricRegisterDuplicate),
			Invalid:      int(MetricRegisterInvalid),
			EmailQueued:  int(MetricEmailQueued),
			EmailDropped: int(MetricEmailDropped),
		},
	}
	if e == nil {
		return deps
	}

	deps.VerificationTTL = e.config.Tokens.VerificationTTL
	deps.Links = mail.Links{BaseURL: e.config.Links.BaseURL}
	deps.Locale = e.config.Links.DefaultLocale
	deps.Validator = e.validator
	deps.EnqueueTimeout = e.config.Mail.SendTimeout
	if e.emails != nil {
		deps.EnqueueEmail = e.emails.Enqueue
	}
	return deps
}

package auth

import (
	"context"

	internalflows "github.com/Tadeu17/authentication-template/internal/flows"
)

// Login checks credentials and returns the identity to put in a session.
//
// An unknown email and a wrong password both yield [ErrInvalidCredentials]
// and cost the same single hash comparison. A correct password on an
// unverified account yields [ErrEmailNotVerified].
func (e *Engine) Login(ctx context.Context, email, password string) (*Identity, error) {
	u, err := internalflows.RunLogin(ctx, email, password, e.loginFlowDeps())
	if err != nil {
		return nil, err
	}
	return &Identity{UserID: u.ID, Email: u.Email, Name: u.Name}, nil
}

func (e *Engine) loginFlowDeps() internalflows.LoginDeps {
	deps := internalflows.LoginDeps{
		Common: e.commonFlowDeps(),
		Metrics: internalflows.LoginMetrics{
			Success:    int(MetricLoginSuccess),
			Failure:    int(MetricLoginFailure),
			Unverified: int(MetricLoginUnverified),
		},
	}
	if e == nil || e.hasher == nil {
		return deps
	}

	deps.VerifyPassword = e.hasher.Verify
	deps.DummyDigest = e.dummyDigest
	return deps
}

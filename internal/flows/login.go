package flows

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Tadeu17/authentication-template/internal/limiters"
	"github.com/Tadeu17/authentication-template/store"
)

// LoginMetrics maps login outcomes to metric ids.
type LoginMetrics struct {
	Success    int
	Failure    int
	Unverified int
}

// LoginDeps carries what RunLogin needs from the engine.
type LoginDeps struct {
	Common

	VerifyPassword func(plaintext, digest string) (bool, error)
	// DummyDigest is verified against when the account does not exist so
	// both failure paths cost one hash comparison.
	DummyDigest string

	Metrics LoginMetrics
}

// RunLogin checks credentials. Unknown email and wrong password both yield
// Errors.InvalidCredentials; a correct password on an unverified account
// yields Errors.EmailNotVerified.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) (*store.User, error) {
	normalizeCommon(&deps.Common)
	if !deps.ready() || deps.VerifyPassword == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if err := deps.CheckLimit(ctx, limiters.Login); err != nil {
		return nil, err
	}

	email = store.NormalizeEmail(email)
	if email == "" || password == "" {
		deps.burnVerify(password)
		deps.MetricInc(deps.Metrics.Failure)
		return nil, deps.Errors.InvalidCredentials
	}

	user, err := deps.Store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			deps.burnVerify(password)
			deps.MetricInc(deps.Metrics.Failure)
			return nil, deps.Errors.InvalidCredentials
		}
		return nil, deps.internal("login.find_user", err)
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		deps.Log.Warn("stored password digest unreadable",
			zap.String("op", "login.verify"),
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}
	if !ok {
		deps.MetricInc(deps.Metrics.Failure)
		return nil, deps.Errors.InvalidCredentials
	}

	if !user.Verified() {
		deps.MetricInc(deps.Metrics.Unverified)
		return nil, deps.Errors.EmailNotVerified
	}

	deps.MetricInc(deps.Metrics.Success)
	return user, nil
}

func (deps LoginDeps) burnVerify(password string) {
	if deps.DummyDigest == "" {
		return
	}
	_, _ = deps.VerifyPassword(password, deps.DummyDigest)
}

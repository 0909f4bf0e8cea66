package flows

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Tadeu17/authentication-template/internal/limiters"
	"github.com/Tadeu17/authentication-template/internal/tokens"
	"github.com/Tadeu17/authentication-template/mail"
	"github.com/Tadeu17/authentication-template/store"
)

// PasswordResetMetrics maps reset outcomes to metric ids.
type PasswordResetMetrics struct {
	Requested    int
	UnknownEmail int
	Confirmed    int
	InvalidToken int
	Expired      int
	WeakPassword int
}

// PasswordResetDeps carries what the reset flows need from the engine.
type PasswordResetDeps struct {
	Common

	TTL    time.Duration
	Links  mail.Links
	Locale string

	Validator     *Validator
	HashPassword  func(string) (string, error)
	GenerateToken func() (string, error)
	SendEmail     func(context.Context, mail.Message) error
	SendTimeout   time.Duration

	Metrics PasswordResetMetrics
}

// RunRequestPasswordReset issues a reset token when the account exists.
// Unknown emails return nil, same as success.
func RunRequestPasswordReset(ctx context.Context, email string, deps PasswordResetDeps) error {
	normalizeCommon(&deps.Common)
	if !deps.ready() || deps.Validator == nil || deps.GenerateToken == nil || deps.SendEmail == nil {
		return deps.Errors.EngineNotReady
	}

	if err := deps.CheckLimit(ctx, limiters.PasswordReset); err != nil {
		return err
	}

	email = store.NormalizeEmail(email)
	if msg := deps.Validator.Email(email); msg != "" {
		return deps.Errors.Validation(map[string]string{"email": msg})
	}

	user, err := deps.Store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			deps.MetricInc(deps.Metrics.UnknownEmail)
			return nil
		}
		return deps.internal("password_reset.find_user", err)
	}

	token, err := deps.GenerateToken()
	if err != nil {
		return deps.internal("password_reset.token", err, zap.String("user_id", user.ID))
	}
	if err := deps.Store.SetPasswordResetToken(ctx, user.ID, token, deps.Now().Add(deps.TTL)); err != nil {
		return deps.internal("password_reset.set_token", err, zap.String("user_id", user.ID))
	}

	msg, err := mail.PasswordResetMessage(user.Email, user.Name, deps.Links.PasswordReset(token), deps.TTL, deps.Locale)
	if err != nil {
		return deps.internal("password_reset.render", err, zap.String("user_id", user.ID))
	}
	if err := sendBounded(ctx, deps.SendEmail, deps.SendTimeout, msg); err != nil {
		return deps.internal("password_reset.send", err,
			zap.String("user_id", user.ID),
			zap.String("token_fp", tokens.Fingerprint(token)),
		)
	}

	deps.MetricInc(deps.Metrics.Requested)
	return nil
}

// RunConfirmPasswordReset consumes a reset token and stores the new
// password. Token checks run before the password policy so a stale link
// reports the token problem first.
func RunConfirmPasswordReset(ctx context.Context, token, newPassword string, deps PasswordResetDeps) error {
	normalizeCommon(&deps.Common)
	if !deps.ready() || deps.Validator == nil || deps.HashPassword == nil {
		return deps.Errors.EngineNotReady
	}

	if err := deps.CheckLimit(ctx, limiters.Generic); err != nil {
		return err
	}

	if token == "" {
		deps.MetricInc(deps.Metrics.InvalidToken)
		return deps.Errors.InvalidToken
	}

	rec, err := deps.Store.GetPasswordResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrEmptyToken) {
			deps.MetricInc(deps.Metrics.InvalidToken)
			return deps.Errors.InvalidToken
		}
		return deps.internal("password_reset.get_token", err, zap.String("token_fp", tokens.Fingerprint(token)))
	}
	if expired(deps.Now(), rec.ExpiresAt) {
		deps.MetricInc(deps.Metrics.Expired)
		return deps.Errors.TokenExpired
	}

	if msg := deps.Validator.Password(newPassword); msg != "" {
		deps.MetricInc(deps.Metrics.WeakPassword)
		return deps.Errors.Validation(map[string]string{"password": msg})
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		return deps.internal("password_reset.hash", err, zap.String("user_id", rec.UserID))
	}
	// Consumes the token only if no concurrent confirmation or reissue got
	// there first.
	if err := deps.Store.UpdatePassword(ctx, rec.UserID, token, hash); err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrEmptyToken) {
			deps.MetricInc(deps.Metrics.InvalidToken)
			return deps.Errors.InvalidToken
		}
		return deps.internal("password_reset.update_password", err, zap.String("user_id", rec.UserID))
	}

	deps.MetricInc(deps.Metrics.Confirmed)
	return nil
}

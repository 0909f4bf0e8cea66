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

// VerificationMetrics maps verification outcomes to metric ids.
type VerificationMetrics struct {
	Requested       int
	AlreadyVerified int
	Confirmed       int
	InvalidToken    int
	Expired         int
}

// VerificationDeps carries what the verification flows need from the engine.
type VerificationDeps struct {
	Common

	TTL    time.Duration
	Links  mail.Links
	Locale string

	Validator     *Validator
	GenerateToken func() (string, error)
	// SendEmail delivers synchronously. The caller bounds it with a timeout.
	SendEmail   func(context.Context, mail.Message) error
	SendTimeout time.Duration

	Metrics VerificationMetrics
}

// RunRequestVerificationEmail issues a fresh verification token for an
// unverified account and sends it. An already-verified account succeeds
// without a new token.
func RunRequestVerificationEmail(ctx context.Context, email string, deps VerificationDeps) error {
	normalizeCommon(&deps.Common)
	if !deps.ready() || deps.Validator == nil || deps.GenerateToken == nil || deps.SendEmail == nil {
		return deps.Errors.EngineNotReady
	}

	if err := deps.CheckLimit(ctx, limiters.VerificationResend); err != nil {
		return err
	}

	email = store.NormalizeEmail(email)
	if msg := deps.Validator.Email(email); msg != "" {
		return deps.Errors.Validation(map[string]string{"email": msg})
	}

	user, err := deps.Store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return deps.Errors.NotFound
		}
		return deps.internal("verification.find_user", err)
	}
	if user.Verified() {
		deps.MetricInc(deps.Metrics.AlreadyVerified)
		return nil
	}

	token, err := deps.GenerateToken()
	if err != nil {
		return deps.internal("verification.token", err, zap.String("user_id", user.ID))
	}
	if err := deps.Store.SetVerificationToken(ctx, user.ID, token, deps.Now().Add(deps.TTL)); err != nil {
		return deps.internal("verification.set_token", err, zap.String("user_id", user.ID))
	}

	msg, err := mail.VerificationMessage(user.Email, user.Name, deps.Links.Verification(token), deps.TTL, deps.Locale)
	if err != nil {
		return deps.internal("verification.render", err, zap.String("user_id", user.ID))
	}
	if err := sendBounded(ctx, deps.SendEmail, deps.SendTimeout, msg); err != nil {
		return deps.internal("verification.send", err,
			zap.String("user_id", user.ID),
			zap.String("token_fp", tokens.Fingerprint(token)),
		)
	}

	deps.MetricInc(deps.Metrics.Requested)
	return nil
}

// RunConfirmVerification consumes a verification token. An expired token is
// left in place.
func RunConfirmVerification(ctx context.Context, token string, deps VerificationDeps) error {
	normalizeCommon(&deps.Common)
	if !deps.ready() {
		return deps.Errors.EngineNotReady
	}

	if err := deps.CheckLimit(ctx, limiters.Generic); err != nil {
		return err
	}

	if token == "" {
		deps.MetricInc(deps.Metrics.InvalidToken)
		return deps.Errors.InvalidToken
	}

	rec, err := deps.Store.GetVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrEmptyToken) {
			deps.MetricInc(deps.Metrics.InvalidToken)
			return deps.Errors.InvalidToken
		}
		return deps.internal("verification.get_token", err, zap.String("token_fp", tokens.Fingerprint(token)))
	}
	if expired(deps.Now(), rec.ExpiresAt) {
		deps.MetricInc(deps.Metrics.Expired)
		return deps.Errors.TokenExpired
	}

	if err := deps.Store.VerifyUserEmail(ctx, rec.UserID, token); err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrEmptyToken) {
			deps.MetricInc(deps.Metrics.InvalidToken)
			return deps.Errors.InvalidToken
		}
		return deps.internal("verification.verify_user", err, zap.String("user_id", rec.UserID))
	}

	deps.MetricInc(deps.Metrics.Confirmed)
	return nil
}

func sendBounded(ctx context.Context, send func(context.Context, mail.Message) error, timeout time.Duration, msg mail.Message) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return send(ctx, msg)
}

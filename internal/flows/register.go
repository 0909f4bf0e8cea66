package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Tadeu17/authentication-template/internal/limiters"
	"github.com/Tadeu17/authentication-template/internal/tokens"
	"github.com/Tadeu17/authentication-template/mail"
	"github.com/Tadeu17/authentication-template/store"
)

// RegisterInput is the raw registration request. Email and Name are
// normalized by RunRegister.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// RegisterMetrics maps registration outcomes to metric ids.
type RegisterMetrics struct {
	Success      int
	Duplicate    int
	Invalid      int
	EmailQueued  int
	EmailDropped int
}

// RegisterDeps carries what RunRegister needs from the engine.
type RegisterDeps struct {
	Common

	VerificationTTL time.Duration
	Links           mail.Links
	Locale          string

	Validator     *Validator
	HashPassword  func(string) (string, error)
	GenerateToken func() (string, error)
	// EnqueueEmail hands the message to an asynchronous sender and reports
	// whether it was accepted.
	EnqueueEmail func(context.Context, mail.Message) bool
	// EnqueueTimeout bounds how long registration waits for queue space.
	EnqueueTimeout time.Duration

	Metrics RegisterMetrics
}

// RunRegister creates an unverified account and queues its verification
// email. A failure to queue or deliver the email does not fail registration.
func RunRegister(ctx context.Context, in RegisterInput, deps RegisterDeps) (*store.User, error) {
	normalizeCommon(&deps.Common)
	if !deps.ready() || deps.Validator == nil || deps.HashPassword == nil || deps.GenerateToken == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if err := deps.CheckLimit(ctx, limiters.Register); err != nil {
		return nil, err
	}

	email := store.NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if fields := deps.Validator.Registration(email, in.Password, name); fields != nil {
		deps.MetricInc(deps.Metrics.Invalid)
		return nil, deps.Errors.Validation(fields)
	}

	exists, err := deps.Store.EmailExists(ctx, email)
	if err != nil {
		return nil, deps.internal("register.email_exists", err)
	}
	if exists {
		deps.MetricInc(deps.Metrics.Duplicate)
		return nil, deps.Errors.EmailExists
	}

	hash, err := deps.HashPassword(in.Password)
	if err != nil {
		return nil, deps.internal("register.hash", err)
	}
	token, err := deps.GenerateToken()
	if err != nil {
		return nil, deps.internal("register.token", err)
	}

	user, err := deps.Store.CreateUser(ctx, store.CreateUserInput{
		Email:                 email,
		PasswordHash:          hash,
		Name:                  name,
		VerificationToken:     token,
		VerificationExpiresAt: deps.Now().Add(deps.VerificationTTL),
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			deps.MetricInc(deps.Metrics.Duplicate)
			return nil, deps.Errors.EmailExists
		}
		return nil, deps.internal("register.create", err)
	}
	deps.MetricInc(deps.Metrics.Success)

	queueVerificationEmail(ctx, user, token, deps)
	return user, nil
}

func queueVerificationEmail(ctx context.Context, user *store.User, token string, deps RegisterDeps) {
	if deps.EnqueueEmail == nil {
		return
	}
	log := deps.Log.With(
		zap.String("op", "register.email"),
		zap.String("user_id", user.ID),
		zap.String("token_fp", tokens.Fingerprint(token)),
	)

	msg, err := mail.VerificationMessage(user.Email, user.Name, deps.Links.Verification(token), deps.VerificationTTL, deps.Locale)
	if err != nil {
		log.Error("render verification email", zap.Error(err))
		return
	}
	// The request context may end as soon as the response is written.
	qctx := context.WithoutCancel(ctx)
	if deps.EnqueueTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(qctx, deps.EnqueueTimeout)
		defer cancel()
	}
	if !deps.EnqueueEmail(qctx, msg) {
		deps.MetricInc(deps.Metrics.EmailDropped)
		log.Warn("verification email dropped")
		return
	}
	deps.MetricInc(deps.Metrics.EmailQueued)
}

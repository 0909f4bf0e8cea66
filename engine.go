package auth

import (
	"time"

	"go.uber.org/zap"

	internalflows "github.com/Tadeu17/authentication-template/internal/flows"
	"github.com/Tadeu17/authentication-template/internal/limiters"
	"github.com/Tadeu17/authentication-template/mail"
	"github.com/Tadeu17/authentication-template/password"
	"github.com/Tadeu17/authentication-template/session"
	"github.com/Tadeu17/authentication-template/store"
)

// Engine runs the account flows. Build one with [New] and share it; all
// methods are safe for concurrent use.
type Engine struct {
	config      Config
	store       store.Store
	hasher      password.Hasher
	dummyDigest string
	validator   *internalflows.Validator
	limits      *limiters.Set
	mailer      mail.Mailer
	emails      *mail.Dispatcher
	sessions    *session.Manager
	metrics     *Metrics
	log         *zap.Logger
	now         func() time.Time
}

// Close drains the registration email queue. The store is owned by the
// caller and is not closed.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.emails != nil {
		e.emails.Close()
	}
}

// Sessions returns the session token manager configured for this engine.
func (e *Engine) Sessions() *session.Manager {
	if e == nil {
		return nil
	}
	return e.sessions
}

// MetricsSnapshot returns current counter values. Disabled metrics yield
// empty maps.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// EmailStats reports the registration email queue counters.
func (e *Engine) EmailStats() EmailStats {
	if e == nil || e.emails == nil {
		return EmailStats{}
	}
	return EmailStats{
		Sent:    e.emails.Sent(),
		Failed:  e.emails.Failed(),
		Dropped: e.emails.Dropped(),
	}
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) commonFlowDeps() internalflows.Common {
	deps := internalflows.Common{
		Errors: internalflows.Errors{
			Validation:         newValidationError,
			EmailExists:        ErrEmailExists,
			InvalidCredentials: ErrInvalidCredentials,
			EmailNotVerified:   ErrEmailNotVerified,
			NotFound:           ErrNotFound,
			InvalidToken:       ErrInvalidToken,
			TokenExpired:       ErrTokenExpired,
			Internal:           ErrInternal,
			EngineNotReady:     ErrEngineNotReady,
		},
	}
	if e == nil {
		return deps
	}

	deps.Store = e.store
	deps.CheckLimit = e.checkLimit
	deps.Now = e.now
	deps.Log = e.log
	deps.MetricInc = func(id int) { e.metricInc(MetricID(id)) }
	return deps
}

func (e *Engine) hashPassword(plaintext string) (string, error) {
	start := time.Now()
	digest, err := e.hasher.Hash(plaintext)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricPasswordHashLatency, time.Since(start))
	}
	return digest, err
}

func (e *Engine) hashFunc() func(string) (string, error) {
	if e == nil || e.hasher == nil {
		return nil
	}
	return e.hashPassword
}

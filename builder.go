package auth

import (
	"errors"
	"time"

	"go.uber.org/zap"

	internalflows "github.com/Tadeu17/authentication-template/internal/flows"
	"github.com/Tadeu17/authentication-template/internal/iphash"
	"github.com/Tadeu17/authentication-template/internal/limiters"
	"github.com/Tadeu17/authentication-template/internal/rate"
	"github.com/Tadeu17/authentication-template/internal/tokens"
	"github.com/Tadeu17/authentication-template/mail"
	"github.com/Tadeu17/authentication-template/password"
	"github.com/Tadeu17/authentication-template/session"
	"github.com/Tadeu17/authentication-template/store"
)

// Builder assembles an [Engine]. It is single-use: a second Build fails.
type Builder struct {
	config Config
	store  store.Store
	mailer mail.Mailer
	log    *zap.Logger
	now    func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. Build validates it.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStore sets the user store. Required.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithMailer sets the outbound mailer. Required.
func (b *Builder) WithMailer(m mail.Mailer) *Builder {
	b.mailer = m
	return b
}

// WithLogger sets the engine logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.log = log
	return b
}

// WithClock overrides the time source used for token expiry and rate
// windows.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles counter collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles per-operation latency histograms. Has no
// effect unless metrics are enabled.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
//
// Outside ProductionMode a missing IP hash salt or session secret is
// replaced by a development fallback and a warning is logged.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("user store required")
	}
	if b.mailer == nil {
		return nil, errors.New("mailer required")
	}

	log := b.log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("auth")
	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- SECURITY FALLBACKS --------
	if cfg.Security.IPHashSalt == "" {
		cfg.Security.IPHashSalt = iphash.FallbackSalt
		log.Warn("IP hash salt not configured; using the development fallback salt")
	}
	if cfg.Session.Secret == "" {
		secret, err := tokens.Generate()
		if err != nil {
			return nil, err
		}
		cfg.Session.Secret = secret
		log.Warn("session secret not configured; sessions will not survive a restart")
	}

	// -------- PASSWORD HASHER --------
	hasher, err := password.New(cfg.Password.Hasher)
	if err != nil {
		return nil, err
	}
	seed, err := tokens.Generate()
	if err != nil {
		return nil, err
	}
	dummy, err := hasher.Hash(seed)
	if err != nil {
		return nil, err
	}

	// -------- SESSIONS --------
	sessions, err := session.NewManager(session.Config{
		Secret: []byte(cfg.Session.Secret),
		TTL:    cfg.Session.TTL,
		Issuer: cfg.Session.Issuer,
		Now:    now,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:      cfg,
		store:       b.store,
		hasher:      hasher,
		dummyDigest: dummy,
		sessions:    sessions,
		validator: internalflows.NewValidator(internalflows.PasswordPolicy{
			MinLength:      cfg.Password.MinLength,
			MaxLength:      cfg.Password.MaxLength,
			RequireUpper:   cfg.Password.RequireUpper,
			RequireLower:   cfg.Password.RequireLower,
			RequireDigit:   cfg.Password.RequireDigit,
			MinEntropyBits: cfg.Password.MinEntropyBits,
		}),
		mailer:  b.mailer,
		metrics: NewMetrics(cfg.Metrics),
		log:     log,
		now:     now,
	}

	// -------- RATE LIMITS --------
	if cfg.RateLimit.Enabled {
		engine.limits = limiters.NewSet(rate.New(rate.Config{
			SweepInterval: cfg.RateLimit.SweepInterval,
			Now:           now,
		}), cfg.RateLimit.policies())
	}

	// -------- EMAIL QUEUE --------
	engine.emails = mail.NewDispatcher(mail.DispatcherConfig{
		BufferSize:  cfg.Mail.QueueSize,
		DropIfFull:  cfg.Mail.DropIfFull,
		SendTimeout: cfg.Mail.SendTimeout,
	}, b.mailer, log, func(r mail.Result) {
		if r.Err != nil {
			engine.metricInc(MetricEmailFailed)
			return
		}
		engine.metricInc(MetricEmailSent)
	})

	b.built = true

	return engine, nil
}

package auth

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Tadeu17/authentication-template/internal/iphash"
	"github.com/Tadeu17/authentication-template/internal/limiters"
	"github.com/Tadeu17/authentication-template/internal/rate"
	"github.com/Tadeu17/authentication-template/password"
	"github.com/Tadeu17/authentication-template/session"
)

// Config holds every tunable of an [Engine]. Start from [DefaultConfig] and
// override fields; [Builder.Build] validates the result.
type Config struct {
	Password  PasswordConfig
	Tokens    TokenConfig
	RateLimit RateLimitConfig
	Links     LinksConfig
	Security  SecurityConfig
	Session   SessionConfig
	Mail      MailConfig
	Metrics   MetricsConfig
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the hasher and the complexity policy applied at
// registration and reset.
type PasswordConfig struct {
	Hasher         password.Config
	MinLength      int
	MaxLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	MinEntropyBits float64 // 0 disables the entropy check
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig sets the lifetimes of emailed tokens.
type TokenConfig struct {
	VerificationTTL  time.Duration
	PasswordResetTTL time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RatePolicy allows Limit requests per Window.
type RatePolicy struct {
	Limit  int
	Window time.Duration
}

// RateLimitConfig holds one fixed-window policy per endpoint. Disabling it
// lets every request through.
type RateLimitConfig struct {
	Enabled            bool
	Register           RatePolicy
	Login              RatePolicy
	PasswordReset      RatePolicy
	VerificationResend RatePolicy
	Generic            RatePolicy
	SweepInterval      time.Duration
}

/*
====================================
LINKS, SECURITY, SESSION, MAIL
====================================
*/

// LinksConfig builds the URLs placed in outgoing email.
type LinksConfig struct {
	BaseURL       string
	DefaultLocale string
}

// SecurityConfig holds password hashing and rate limit settings.
type SecurityConfig struct {
	// ProductionMode makes Validate reject development fallbacks.
	ProductionMode bool
	// IPHashSalt salts client addresses before they become limiter keys.
	IPHashSalt string
}

// SessionConfig configures the token manager handed to HTTP collaborators.
// An empty Secret outside ProductionMode gets a random per-process secret.
type SessionConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// MailConfig controls the background verification email queue.
type MailConfig struct {
	// QueueSize bounds the asynchronous registration email queue.
	QueueSize   int
	DropIfFull  bool
	SendTimeout time.Duration
}

// MetricsConfig controls in-process metric collection.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the stock settings: bcrypt cost 12, 24h verification
// and 1h reset tokens, and the default per-endpoint rate limits.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	pol := limiters.DefaultPolicies()
	return Config{
		Password: PasswordConfig{
			Hasher:       password.DefaultConfig(),
			MinLength:    8,
			MaxLength:    128,
			RequireUpper: true,
			RequireLower: true,
			RequireDigit: true,
		},
		Tokens: TokenConfig{
			VerificationTTL:  24 * time.Hour,
			PasswordResetTTL: time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled:            true,
			Register:           RatePolicy(pol.Register),
			Login:              RatePolicy(pol.Login),
			PasswordReset:      RatePolicy(pol.PasswordReset),
			VerificationResend: RatePolicy(pol.VerificationResend),
			Generic:            RatePolicy(pol.Generic),
			SweepInterval:      rate.DefaultSweepInterval,
		},
		Links: LinksConfig{
			BaseURL:       "http://localhost:3000",
			DefaultLocale: "en",
		},
		Session: SessionConfig{
			TTL: session.DefaultTTL,
		},
		Mail: MailConfig{
			QueueSize:   256,
			DropIfFull:  true,
			SendTimeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks internal consistency. In ProductionMode it additionally
// requires a real IP hash salt, a session secret and an https base URL.
func (c *Config) Validate() error {
	// Password
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}
	if c.Password.MinEntropyBits < 0 {
		return errors.New("Password MinEntropyBits must be >= 0")
	}
	switch c.Password.Hasher.Algorithm {
	case "", password.AlgorithmBcrypt, password.AlgorithmArgon2:
	default:
		return fmt.Errorf("Password Hasher algorithm %q is not supported", c.Password.Hasher.Algorithm)
	}

	// Tokens
	if c.Tokens.VerificationTTL <= 0 {
		return errors.New("Tokens VerificationTTL must be > 0")
	}
	if c.Tokens.PasswordResetTTL <= 0 {
		return errors.New("Tokens PasswordResetTTL must be > 0")
	}

	// Rate limits
	if c.RateLimit.Enabled {
		if err := c.RateLimit.policies().Validate(); err != nil {
			return err
		}
		if c.RateLimit.SweepInterval < 0 {
			return errors.New("RateLimit SweepInterval must be >= 0")
		}
	}

	// Links
	base, err := url.Parse(c.Links.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return errors.New("Links BaseURL must be an absolute URL")
	}

	// Session
	if c.Session.TTL < 0 {
		return errors.New("Session TTL must be >= 0")
	}
	if c.Session.Secret != "" && len(c.Session.Secret) < session.MinSecretLength {
		return fmt.Errorf("Session Secret must be at least %d bytes", session.MinSecretLength)
	}

	// Mail
	if c.Mail.QueueSize <= 0 {
		return errors.New("Mail QueueSize must be > 0")
	}
	if c.Mail.SendTimeout <= 0 {
		return errors.New("Mail SendTimeout must be > 0")
	}

	if c.Security.ProductionMode {
		if c.Security.IPHashSalt == "" || c.Security.IPHashSalt == iphash.FallbackSalt {
			return errors.New("Security IPHashSalt is required in production")
		}
		if c.Session.Secret == "" {
			return errors.New("Session Secret is required in production")
		}
		if base.Scheme != "https" {
			return errors.New("Links BaseURL must use https in production")
		}
		if !c.RateLimit.Enabled {
			return errors.New("RateLimit must be enabled in production")
		}
	}

	return nil
}

func (c RateLimitConfig) policies() limiters.Policies {
	return limiters.Policies{
		Register:           rate.Policy(c.Register),
		Login:              rate.Policy(c.Login),
		PasswordReset:      rate.Policy(c.PasswordReset),
		VerificationResend: rate.Policy(c.VerificationResend),
		Generic:            rate.Policy(c.Generic),
	}
}

// Package appconfig reads process settings from the environment and an
// optional .env file.
package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	auth "github.com/Tadeu17/authentication-template"
	"github.com/Tadeu17/authentication-template/internal/logger"
	"github.com/Tadeu17/authentication-template/mail/smtp"
	"github.com/Tadeu17/authentication-template/password"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"

	EmailSMTP    = "smtp"
	EmailConsole = "console"
	EmailMemory  = "memory"
)

// Config is the process configuration read from the environment.
type Config struct {
	Env  string // development|production
	Port string

	StorageBackend string
	DatabaseURL    string
	RedisURL       string

	EmailBackend string
	SMTP         smtp.Config

	SessionSecret  string
	IPHashSalt     string
	BaseURL        string
	DefaultLocale  string
	PasswordHasher string
	CORSOrigins    []string

	Log logger.Options
}

// Load reads files (default ".env") into the environment without
// overriding variables already set, then builds a Config from it. Missing
// files are ignored.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults.
func FromEnv(getenv func(string) string) (*Config, error) {
	def := func(key, d string) string {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return d
		}
		return v
	}

	smtpPort, err := strconv.Atoi(def("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("SMTP_PORT: %w", err)
	}

	cfg := &Config{
		Env:  strings.ToLower(def("APP_ENV", "development")),
		Port: def("PORT", "8080"),

		StorageBackend: strings.ToLower(def("STORAGE_BACKEND", StorageMemory)),
		DatabaseURL:    getenv("DATABASE_URL"),
		RedisURL:       def("REDIS_URL", "redis://localhost:6379/0"),

		EmailBackend: strings.ToLower(def("EMAIL_BACKEND", EmailConsole)),
		SMTP: smtp.Config{
			Host:     getenv("SMTP_HOST"),
			Port:     smtpPort,
			Username: getenv("SMTP_USER"),
			Password: getenv("SMTP_PASSWORD"),
			From:     def("SMTP_FROM", "no-reply@localhost"),
		},

		SessionSecret:  getenv("SESSION_SECRET"),
		IPHashSalt:     getenv("IP_HASH_SALT"),
		BaseURL:        strings.TrimRight(def("BASE_URL", "http://localhost:3000"), "/"),
		DefaultLocale:  def("DEFAULT_LOCALE", "en"),
		PasswordHasher: strings.ToLower(def("PASSWORD_HASHER", string(password.AlgorithmBcrypt))),
		CORSOrigins:    splitList(getenv("CORS_ORIGINS")),

		Log: logger.Options{
			Level:  def("LOG_LEVEL", "info"),
			Format: strings.ToLower(getenv("LOG_FORMAT")),
			File:   getenv("LOG_FILE"),
		},
	}
	return cfg, nil
}

// Production reports whether APP_ENV selects production.
func (c *Config) Production() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate returns non-fatal warnings and a fatal error for settings the
// process cannot start with.
func (c *Config) Validate() (warnings []string, err error) {
	switch c.StorageBackend {
	case StorageMemory:
		if c.Production() {
			warnings = append(warnings, "STORAGE_BACKEND=memory loses all accounts on restart")
		}
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for STORAGE_BACKEND=postgres")
		}
	case StorageRedis:
		if c.RedisURL == "" {
			return nil, errors.New("REDIS_URL is required for STORAGE_BACKEND=redis")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.EmailBackend {
	case EmailSMTP:
		if c.SMTP.Host == "" {
			return nil, errors.New("SMTP_HOST is required for EMAIL_BACKEND=smtp")
		}
	case EmailConsole, EmailMemory:
		if c.Production() {
			warnings = append(warnings, "EMAIL_BACKEND="+c.EmailBackend+" does not deliver email")
		}
	default:
		return nil, fmt.Errorf("unknown EMAIL_BACKEND %q", c.EmailBackend)
	}

	switch password.Algorithm(c.PasswordHasher) {
	case password.AlgorithmBcrypt, password.AlgorithmArgon2:
	default:
		return nil, fmt.Errorf("unknown PASSWORD_HASHER %q", c.PasswordHasher)
	}

	if c.Production() {
		if c.SessionSecret == "" {
			return nil, errors.New("SESSION_SECRET is required in production")
		}
		if c.IPHashSalt == "" {
			return nil, errors.New("IP_HASH_SALT is required in production")
		}
	} else {
		if c.SessionSecret == "" {
			warnings = append(warnings, "SESSION_SECRET is empty; using a per-process secret")
		}
		if c.IPHashSalt == "" {
			warnings = append(warnings, "IP_HASH_SALT is empty; using the development salt")
		}
	}

	return warnings, nil
}

// AuthConfig maps the settings onto an engine configuration.
func (c *Config) AuthConfig() auth.Config {
	cfg := auth.DefaultConfig()
	cfg.Password.Hasher.Algorithm = password.Algorithm(c.PasswordHasher)
	cfg.Links.BaseURL = c.BaseURL
	cfg.Links.DefaultLocale = c.DefaultLocale
	cfg.Security.ProductionMode = c.Production()
	cfg.Security.IPHashSalt = c.IPHashSalt
	cfg.Session.Secret = c.SessionSecret
	return cfg
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package auth

import (
	"time"

	"github.com/Tadeu17/authentication-template/internal/limiters"
	"github.com/Tadeu17/authentication-template/session"
	"github.com/Tadeu17/authentication-template/store"
)

// RegisterRequest is the input to [Engine.Register].
type RegisterRequest struct {
	Email    string
	Password string
	Name     string
}

// User is the public view of an account. It never carries the password hash.
type User struct {
	ID            string
	Email         string
	Name          string
	EmailVerified bool
	CreatedAt     time.Time
}

// Identity is returned by a successful Login and is what a session carries.
type Identity = session.Identity

// Endpoint names a rate-limited operation.
type Endpoint string

const (
	EndpointRegister           Endpoint = Endpoint(limiters.Register)
	EndpointLogin              Endpoint = Endpoint(limiters.Login)
	EndpointPasswordReset      Endpoint = Endpoint(limiters.PasswordReset)
	EndpointVerificationResend Endpoint = Endpoint(limiters.VerificationResend)
	EndpointGeneric            Endpoint = Endpoint(limiters.Generic)
)

// RateLimitResult is the outcome of [Engine.Allow].
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// LimiterStats reports counter-table size and sweep activity.
type LimiterStats struct {
	Entries      int
	Sweeps       uint64
	EntriesSwept uint64
	LastSweep    time.Time
}

// EmailStats reports the registration email queue.
type EmailStats struct {
	Sent    uint64
	Failed  uint64
	Dropped uint64
}

func publicUser(u *store.User) *User {
	if u == nil {
		return nil
	}
	return &User{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		EmailVerified: u.Verified(),
		CreatedAt:     u.CreatedAt,
	}
}

package limiters

import (
	"errors"
	"fmt"
	"time"

	"github.com/Tadeu17/authentication-template/internal/rate"
)

// ErrRateLimited is returned by Check when the request is denied.
var ErrRateLimited = errors.New("rate limited")

// Endpoint names a rate-limited operation.
type Endpoint string

const (
	Register           Endpoint = "register"
	Login              Endpoint = "login"
	PasswordReset      Endpoint = "password-reset"
	VerificationResend Endpoint = "verification-resend"
	Generic            Endpoint = "generic"
)

// Policies holds one fixed-window policy per endpoint.
type Policies struct {
	Register           rate.Policy
	Login              rate.Policy
	PasswordReset      rate.Policy
	VerificationResend rate.Policy
	Generic            rate.Policy
}

// DefaultPolicies returns the stock per-endpoint limits.
func DefaultPolicies() Policies {
	return Policies{
		Register:           rate.Policy{Limit: 5, Window: time.Hour},
		Login:              rate.Policy{Limit: 10, Window: 15 * time.Minute},
		PasswordReset:      rate.Policy{Limit: 5, Window: time.Hour},
		VerificationResend: rate.Policy{Limit: 3, Window: time.Hour},
		Generic:            rate.Policy{Limit: 100, Window: time.Minute},
	}
}

// Policy returns the policy for e; unknown endpoints fall back to Generic.
func (p Policies) Policy(e Endpoint) rate.Policy {
	switch e {
	case Register:
		return p.Register
	case Login:
		return p.Login
	case PasswordReset:
		return p.PasswordReset
	case VerificationResend:
		return p.VerificationResend
	default:
		return p.Generic
	}
}

// Validate rejects policies with a non-positive limit or window.
func (p Policies) Validate() error {
	for _, e := range []Endpoint{Register, Login, PasswordReset, VerificationResend, Generic} {
		pol := p.Policy(e)
		if pol.Limit <= 0 {
			return fmt.Errorf("rate limit %s: limit must be > 0", e)
		}
		if pol.Window <= 0 {
			return fmt.Errorf("rate limit %s: window must be > 0", e)
		}
	}
	return nil
}

// Set applies [Policies] against a shared counter table.
type Set struct {
	limiter  *rate.Limiter
	policies Policies
}

// NewSet binds policies to limiter.
func NewSet(limiter *rate.Limiter, policies Policies) *Set {
	return &Set{limiter: limiter, policies: policies}
}

// Check counts one request from identifier against endpoint. When the
// request is denied the result is returned together with ErrRateLimited.
func (s *Set) Check(endpoint Endpoint, identifier string) (rate.Result, error) {
	if s == nil || s.limiter == nil {
		return rate.Result{Allowed: true}, nil
	}
	res := s.limiter.Check(identifier, string(endpoint), s.policies.Policy(endpoint))
	if !res.Allowed {
		return res, ErrRateLimited
	}
	return res, nil
}

// Stats reports the underlying table's sweep counters.
func (s *Set) Stats() rate.Stats {
	if s == nil || s.limiter == nil {
		return rate.Stats{}
	}
	return s.limiter.Stats()
}

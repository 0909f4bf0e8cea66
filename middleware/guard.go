package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Tadeu17/authentication-template/session"
)

// Verifier parses a session token. *session.Manager satisfies it.
type Verifier interface {
	Parse(token string) (*session.Claims, error)
}

type identityContextKey struct{}

// IdentityFromContext returns the identity attached by [Guard] or [Gate].
func IdentityFromContext(ctx context.Context) (session.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(session.Identity)
	return id, ok
}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id session.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// Guard rejects requests without a valid session with 401 and attaches the
// identity to the request context otherwise.
func Guard(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := identify(verifier, r)
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"UNAUTHORIZED"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// Identify reports the session identity carried by r, if any.
func Identify(verifier Verifier, r *http.Request) (session.Identity, bool) {
	return identify(verifier, r)
}

func identify(verifier Verifier, r *http.Request) (session.Identity, bool) {
	if verifier == nil {
		return session.Identity{}, false
	}
	token, ok := tokenFromRequest(r)
	if !ok {
		return session.Identity{}, false
	}
	claims, err := verifier.Parse(token)
	if err != nil {
		return session.Identity{}, false
	}
	return claims.Identity(), true
}

func tokenFromRequest(r *http.Request) (string, bool) {
	if c, err := r.Cookie(session.CookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

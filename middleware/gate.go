package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// Routes classifies paths for [Decide]. Entries match a path exactly or as a
// whole-segment prefix, so "/dashboard" covers "/dashboard/settings" but not
// "/dashboards".
type Routes struct {
	Protected   []string
	AuthOnly    []string
	LoginPath   string
	LandingPath string
}

// DefaultRoutes protects the dashboard and keeps signed-in users away from
// the credential pages.
func DefaultRoutes() Routes {
	return Routes{
		Protected:   []string{"/dashboard", "/profile", "/settings"},
		AuthOnly:    []string{"/login", "/register", "/forgot-password", "/reset-password"},
		LoginPath:   "/login",
		LandingPath: "/dashboard",
	}
}

// Decision is the outcome of [Decide]. RedirectTo is empty when Allow is true.
type Decision struct {
	Allow      bool
	RedirectTo string
}

// Decide maps (path, authenticated) to allow or redirect.
func Decide(path string, authenticated bool, routes Routes) Decision {
	switch {
	case !authenticated && matchesAny(path, routes.Protected):
		return Decision{RedirectTo: routes.LoginPath + "?callbackUrl=" + url.QueryEscape(path)}
	case authenticated && matchesAny(path, routes.AuthOnly):
		return Decision{RedirectTo: routes.LandingPath}
	default:
		return Decision{Allow: true}
	}
}

func matchesAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if matchPrefix(path, p) {
			return true
		}
	}
	return false
}

func matchPrefix(path, prefix string) bool {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return path == "/" || path == ""
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// Gate applies [Decide] to page requests, redirecting with 307.
func Gate(verifier Verifier, routes Routes) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, authenticated := identify(verifier, r)

			d := Decide(r.URL.Path, authenticated, routes)
			if !d.Allow {
				http.Redirect(w, r, d.RedirectTo, http.StatusTemporaryRedirect)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Package httpapi exposes the engine over JSON HTTP endpoints and gates page
// routes on the session cookie.
//
// # What this package must NOT do
//
//   - Decide authentication outcomes itself. Every decision comes from the
//     engine, the session manager or middleware.Decide.
//   - Echo raw tokens or passwords into logs.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	auth "github.com/Tadeu17/authentication-template"
	"github.com/Tadeu17/authentication-template/middleware"
	"github.com/Tadeu17/authentication-template/session"
)

// Engine is the subset of [auth.Engine] the handlers call.
type Engine interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, email, password string) (*auth.Identity, error)
	RequestVerificationEmail(ctx context.Context, email string) error
	ConfirmVerification(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	Allow(ctx context.Context, endpoint auth.Endpoint) (auth.RateLimitResult, error)
}

// Sessions issues and parses session tokens.
type Sessions interface {
	middleware.Verifier
	Issue(id session.Identity) (string, time.Time, error)
}

// Options configures a [Server].
type Options struct {
	// BaseURL is the public site root used for post-verification redirects.
	BaseURL string
	Routes  middleware.Routes
	// Pages serves non-API paths after the session gate. Nil responds 404.
	Pages   http.Handler
	Metrics http.Handler
	Log     *zap.Logger
	Now     func() time.Time
}

// Server exposes the engine over HTTP.
type Server struct {
	engine   Engine
	sessions Sessions
	opts     Options
	log      *zap.Logger
}

// New builds a Server. A nil Log becomes a no-op logger and a nil Now
// becomes time.Now.
func New(engine Engine, sessions Sessions, opts Options) *Server {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Routes.LoginPath == "" {
		opts.Routes = middleware.DefaultRoutes()
	}
	if opts.Pages == nil {
		opts.Pages = http.NotFoundHandler()
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &Server{
		engine:   engine,
		sessions: sessions,
		opts:     opts,
		log:      opts.Log.Named("http"),
	}
}

// Router builds the route table.
//
// Flow endpoints are rate limited inside the engine; the remaining /api
// routes pass through the generic limit here.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logging, s.recoverer, clientIP)

	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/auth").Subrouter()
	api.HandleFunc("/register", s.register).Methods(http.MethodPost)
	api.HandleFunc("/login", s.login).Methods(http.MethodPost)
	api.HandleFunc("/verify-email", s.requestVerification).Methods(http.MethodPost)
	api.HandleFunc("/verify-email", s.confirmVerification).Methods(http.MethodGet)
	api.HandleFunc("/forgot-password", s.forgotPassword).Methods(http.MethodPost)
	api.HandleFunc("/reset-password", s.resetPassword).Methods(http.MethodPost)

	limited := api.NewRoute().Subrouter()
	limited.Use(s.genericLimit)
	limited.HandleFunc("/logout", s.logout).Methods(http.MethodPost)
	limited.Handle("/session", middleware.Guard(s.sessions)(http.HandlerFunc(s.currentSession))).Methods(http.MethodGet)

	r.PathPrefix("/").Handler(middleware.Gate(s.sessions, s.opts.Routes)(s.opts.Pages))

	return r
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

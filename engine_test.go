package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Tadeu17/authentication-template/mail"
	"github.com/Tadeu17/authentication-template/store/memory"
)

var linkTokenRE = regexp.MustCompile(`token=([A-Za-z0-9_-]+)`)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEngine struct {
	*Engine
	mailer *mail.Recorder
	store  *memory.Store
	clock  *testClock
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Password.Hasher.BcryptCost = 4
	cfg.Links.BaseURL = "https://app.example.com"
	cfg.Security.IPHashSalt = "test-salt"
	return cfg
}

func newTestEngine(t *testing.T, mutate ...func(*Config)) *testEngine {
	t.Helper()

	cfg := testConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}
	clock := &testClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	st := memory.New(memory.WithClock(clock.Now))
	rec := mail.NewRecorder()

	engine, err := New().
		WithConfig(cfg).
		WithStore(st).
		WithMailer(rec).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEngine{Engine: engine, mailer: rec, store: st, clock: clock}
}

// waitForToken polls until a message to addr arrives whose link differs from
// skip, and returns its token.
func (te *testEngine) waitForToken(t *testing.T, addr, skip string) string {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if msg, ok := te.mailer.Last(addr); ok {
			m := linkTokenRE.FindStringSubmatch(msg.Text)
			if m != nil && m[1] != skip {
				return m[1]
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no email for %s", addr)
	return ""
}

func ipCtx(ip string) context.Context {
	return WithClientIP(context.Background(), ip)
}

func TestRegisterLoginVerifyScenario(t *testing.T) {
	te := newTestEngine(t)
	ctx := ipCtx("203.0.113.10")

	user, err := te.Register(ctx, RegisterRequest{Email: "a@x.com", Password: "Abcdef12", Name: "Ann"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.ID == "" || user.Email != "a@x.com" || user.Name != "Ann" || user.EmailVerified {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := te.Login(ctx, "a@x.com", "Abcdef12"); !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("expected ErrEmailNotVerified before verification, got %v", err)
	}

	token := te.waitForToken(t, "a@x.com", "")
	if err := te.ConfirmVerification(ctx, token); err != nil {
		t.Fatalf("ConfirmVerification failed: %v", err)
	}
	stored, err := te.store.FindUserByEmail(context.Background(), "a@x.com")
	if err != nil || !stored.Verified() {
		t.Fatalf("expected verified user, got %+v err=%v", stored, err)
	}

	id, err := te.Login(ctx, "A@X.com", "Abcdef12")
	if err != nil {
		t.Fatalf("Login after verification failed: %v", err)
	}
	if id.UserID != user.ID || id.Email != "a@x.com" || id.Name != "Ann" {
		t.Fatalf("unexpected identity: %+v", id)
	}

	if err := te.ConfirmVerification(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected consumed token to be invalid, got %v", err)
	}
}

func TestRegisterDistinctAndDuplicateEmails(t *testing.T) {
	te := newTestEngine(t)

	if _, err := te.Register(ipCtx("10.0.0.1"), RegisterRequest{Email: "one@x.com", Password: "Abcdef12", Name: "One"}); err != nil {
		t.Fatalf("Register one failed: %v", err)
	}
	if _, err := te.Register(ipCtx("10.0.0.2"), RegisterRequest{Email: "two@x.com", Password: "Abcdef12", Name: "Two"}); err != nil {
		t.Fatalf("Register two failed: %v", err)
	}
	_, err := te.Register(ipCtx("10.0.0.3"), RegisterRequest{Email: " ONE@x.com", Password: "Abcdef12", Name: "Again"})
	if !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}

func TestRegisterValidationError(t *testing.T) {
	te := newTestEngine(t)

	_, err := te.Register(ipCtx("10.0.0.1"), RegisterRequest{Email: "not-an-email", Password: "abcdefgh", Name: ""})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if verr.Fields["email"] == "" || verr.Fields["password"] == "" || verr.Fields["name"] == "" {
		t.Fatalf("expected field errors for email, password, name: %v", verr.Fields)
	}
}

func TestPasswordResetScenario(t *testing.T) {
	te := newTestEngine(t)
	ctx := ipCtx("198.51.100.7")

	if _, err := te.Register(ctx, RegisterRequest{Email: "a@x.com", Password: "Abcdef12", Name: "Ann"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	vt := te.waitForToken(t, "a@x.com", "")
	if err := te.ConfirmVerification(ctx, vt); err != nil {
		t.Fatalf("ConfirmVerification failed: %v", err)
	}

	if err := te.RequestPasswordReset(ctx, "a@x.com"); err != nil {
		t.Fatalf("first RequestPasswordReset failed: %v", err)
	}
	t1 := te.waitForToken(t, "a@x.com", vt)
	if err := te.RequestPasswordReset(ctx, "a@x.com"); err != nil {
		t.Fatalf("second RequestPasswordReset failed: %v", err)
	}
	t2 := te.waitForToken(t, "a@x.com", t1)
	if t1 == t2 {
		t.Fatal("expected distinct reset tokens")
	}

	if err := te.ConfirmPasswordReset(ctx, t1, "Newpass12"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected superseded token to fail with ErrInvalidToken, got %v", err)
	}
	if err := te.ConfirmPasswordReset(ctx, t2, "Newpass12"); err != nil {
		t.Fatalf("ConfirmPasswordReset failed: %v", err)
	}
	if err := te.ConfirmPasswordReset(ctx, t2, "Newpass12"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected consumed token to fail with ErrInvalidToken, got %v", err)
	}

	if _, err := te.Login(ctx, "a@x.com", "Abcdef12"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password to fail, got %v", err)
	}
	if _, err := te.Login(ctx, "a@x.com", "Newpass12"); err != nil {
		t.Fatalf("expected new password to work, got %v", err)
	}
}

func TestRequestPasswordResetUnknownEmail(t *testing.T) {
	te := newTestEngine(t)

	if err := te.RequestPasswordReset(ipCtx("10.0.0.1"), "ghost@x.com"); err != nil {
		t.Fatalf("expected nil for unknown email, got %v", err)
	}
	if n := len(te.mailer.Messages()); n != 0 {
		t.Fatalf("expected no email, got %d", n)
	}
}

func TestConfirmPasswordResetRejectsWeakPassword(t *testing.T) {
	te := newTestEngine(t)
	ctx := ipCtx("10.0.0.1")
	if _, err := te.Register(ctx, RegisterRequest{Email: "a@x.com", Password: "Abcdef12", Name: "Ann"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	vt := te.waitForToken(t, "a@x.com", "")
	if err := te.RequestPasswordReset(ctx, "a@x.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	rt := te.waitForToken(t, "a@x.com", vt)

	err := te.ConfirmPasswordReset(ctx, rt, "alllowercase1")
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Fields["password"] == "" {
		t.Fatalf("expected password validation error, got %v", err)
	}
	if err := te.ConfirmPasswordReset(ctx, rt, "Newpass12"); err != nil {
		t.Fatalf("expected token to survive a policy failure, got %v", err)
	}
}

func TestTokenExpiryBoundary(t *testing.T) {
	te := newTestEngine(t)
	ctx := ipCtx("10.0.0.1")
	if _, err := te.Register(ctx, RegisterRequest{Email: "a@x.com", Password: "Abcdef12", Name: "Ann"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	vt := te.waitForToken(t, "a@x.com", "")

	te.clock.Advance(24 * time.Hour)
	if err := te.ConfirmVerification(ctx, vt); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired at expiry, got %v", err)
	}
	if err := te.ConfirmVerification(ctx, vt); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expired token to stay in place, got %v", err)
	}

	if err := te.RequestVerificationEmail(ctx, "a@x.com"); err != nil {
		t.Fatalf("RequestVerificationEmail failed: %v", err)
	}
	fresh := te.waitForToken(t, "a@x.com", vt)
	if err := te.ConfirmVerification(ctx, vt); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected old token to be superseded, got %v", err)
	}
	te.clock.Advance(24*time.Hour - time.Second)
	if err := te.ConfirmVerification(ctx, fresh); err != nil {
		t.Fatalf("expected confirmation before expiry to succeed, got %v", err)
	}
}

func TestRequestVerificationEmail(t *testing.T) {
	te := newTestEngine(t)
	ctx := ipCtx("10.0.0.1")

	if err := te.RequestVerificationEmail(ctx, "ghost@x.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := te.Register(ctx, RegisterRequest{Email: "a@x.com", Password: "Abcdef12", Name: "Ann"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	vt := te.waitForToken(t, "a@x.com", "")
	if err := te.ConfirmVerification(ctx, vt); err != nil {
		t.Fatalf("ConfirmVerification failed: %v", err)
	}

	before := len(te.mailer.Messages())
	if err := te.RequestVerificationEmail(ctx, "a@x.com"); err != nil {
		t.Fatalf("expected idempotent success, got %v", err)
	}
	if after := len(te.mailer.Messages()); after != before {
		t.Fatalf("expected no new email for verified account, got %d -> %d", before, after)
	}
	if got := te.MetricsSnapshot().Counters[MetricEmailVerificationAlreadyVerified]; got != 1 {
		t.Fatalf("expected already-verified metric 1, got %d", got)
	}
}

func TestRegisterSucceedsWhenEmailFails(t *testing.T) {
	te := newTestEngine(t)
	te.mailer.FailWith(errors.New("smtp unavailable"))

	if _, err := te.Register(ipCtx("10.0.0.1"), RegisterRequest{Email: "a@x.com", Password: "Abcdef12", Name: "Ann"}); err != nil {
		t.Fatalf("expected registration to succeed, got %v", err)
	}
	te.Close()

	if te.store.Len() != 1 {
		t.Fatalf("expected persisted user, got %d", te.store.Len())
	}
	if stats := te.EmailStats(); stats.Failed != 1 || stats.Sent != 0 {
		t.Fatalf("unexpected email stats: %+v", stats)
	}
	if got := te.MetricsSnapshot().Counters[MetricEmailFailed]; got != 1 {
		t.Fatalf("expected email failed metric 1, got %d", got)
	}
}

func TestRequestPasswordResetSendFailureIsInternal(t *testing.T) {
	te := newTestEngine(t)
	ctx := ipCtx("10.0.0.1")
	if _, err := te.Register(ctx, RegisterRequest{Email: "a@x.com", Password: "Abcdef12", Name: "Ann"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	te.waitForToken(t, "a@x.com", "")
	te.mailer.FailWith(errors.New("smtp unavailable"))

	if err := te.RequestPasswordReset(ctx, "a@x.com"); !errors.Is(err, ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
}

func TestLoginUnknownAndWrongPasswordLookAlike(t *testing.T) {
	te := newTestEngine(t)
	ctx := ipCtx("10.0.0.1")
	if _, err := te.Register(ctx, RegisterRequest{Email: "a@x.com", Password: "Abcdef12", Name: "Ann"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, errUnknown := te.Login(ctx, "nobody@x.com", "Abcdef12")
	_, errWrong := te.Login(ctx, "a@x.com", "Wrong1234")
	if !errors.Is(errUnknown, ErrInvalidCredentials) || !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v and %v", errUnknown, errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Fatalf("expected identical messages, got %q and %q", errUnknown, errWrong)
	}
	if got := te.MetricsSnapshot().Counters[MetricLoginFailure]; got != 2 {
		t.Fatalf("expected 2 login failures, got %d", got)
	}
}

func TestNilEngineNotReady(t *testing.T) {
	var e *Engine
	ctx := context.Background()

	if _, err := e.Register(ctx, RegisterRequest{}); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("Register: expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.Login(ctx, "a@x.com", "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("Login: expected ErrEngineNotReady, got %v", err)
	}
	if err := e.ConfirmVerification(ctx, "t"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("ConfirmVerification: expected ErrEngineNotReady, got %v", err)
	}
	if err := e.RequestPasswordReset(ctx, "a@x.com"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("RequestPasswordReset: expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.Allow(ctx, EndpointGeneric); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("Allow: expected ErrEngineNotReady, got %v", err)
	}
	e.Close()
}

func TestSessionsManagerIssuesForLoginIdentity(t *testing.T) {
	te := newTestEngine(t)
	ctx := ipCtx("10.0.0.1")
	if _, err := te.Register(ctx, RegisterRequest{Email: "a@x.com", Password: "Abcdef12", Name: "Ann"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := te.ConfirmVerification(ctx, te.waitForToken(t, "a@x.com", "")); err != nil {
		t.Fatalf("ConfirmVerification failed: %v", err)
	}
	id, err := te.Login(ctx, "a@x.com", "Abcdef12")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	token, _, err := te.Sessions().Issue(*id)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	claims, err := te.Sessions().Parse(token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.Identity() != *id {
		t.Fatalf("expected %+v, got %+v", *id, claims.Identity())
	}
}

func TestLongPasswordsRoundTrip(t *testing.T) {
	te := newTestEngine(t)
	ctx := ipCtx("192.0.2.44")

	first := strings.Repeat("Abcdef12", 12) + "Xy9z"
	second := strings.Repeat("Qwerty34", 12) + "Mn7p"
	if len(first) != 100 || len(second) != 100 {
		t.Fatalf("bad fixture lengths %d %d", len(first), len(second))
	}

	if _, err := te.Register(ctx, RegisterRequest{Email: "long@x.com", Password: first, Name: "Lo"}); err != nil {
		t.Fatalf("Register with 100-char password failed: %v", err)
	}
	vt := te.waitForToken(t, "long@x.com", "")
	if err := te.ConfirmVerification(ctx, vt); err != nil {
		t.Fatalf("ConfirmVerification failed: %v", err)
	}
	if _, err := te.Login(ctx, "long@x.com", first); err != nil {
		t.Fatalf("Login with 100-char password failed: %v", err)
	}
	if _, err := te.Login(ctx, "long@x.com", first[:72]); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected 72-byte prefix to be rejected, got %v", err)
	}

	if err := te.RequestPasswordReset(ctx, "long@x.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	rt := te.waitForToken(t, "long@x.com", vt)
	if err := te.ConfirmPasswordReset(ctx, rt, second); err != nil {
		t.Fatalf("ConfirmPasswordReset with 100-char password failed: %v", err)
	}
	if _, err := te.Login(ctx, "long@x.com", second); err != nil {
		t.Fatalf("Login after reset failed: %v", err)
	}
}

// Package memory is the process-local reference implementation of
// store.Store.
//
// One record table plus three derived indexes (email, verification token,
// reset token) are mutated under a single RWMutex, so a record write and its
// index updates are observed together or not at all. Callers receive copies.
//
// Data lives only as long as the process; a restart loses every account and
// token. That is intentional for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tadeu17/authentication-template/store"
)

type record struct {
	user store.User

	verifyToken   string
	verifyExpires time.Time
	resetToken    string
	resetExpires  time.Time
}

// Store is a concurrency-safe in-memory store.Store.
type Store struct {
	mu sync.RWMutex

	users       map[string]*record
	byEmail     map[string]string
	byVerify    map[string]string
	byReset     map[string]string
	now         func() time.Time
	idGenerator func() string
}

// Option customises a Store.
type Option func(*Store)

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		users:       make(map[string]*record),
		byEmail:     make(map[string]string),
		byVerify:    make(map[string]string),
		byReset:     make(map[string]string),
		now:         time.Now,
		idGenerator: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ store.Store = (*Store)(nil)

// FindUserByEmail returns the user with the normalized email, or
// store.ErrNotFound.
func (s *Store) FindUserByEmail(_ context.Context, email string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[store.NormalizeEmail(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.users[id].snapshot(), nil
}

// FindUserByID returns the user with id, or store.ErrNotFound.
func (s *Store) FindUserByID(_ context.Context, id string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec.snapshot(), nil
}

// EmailExists reports whether an account uses the normalized email.
func (s *Store) EmailExists(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byEmail[store.NormalizeEmail(email)]
	return ok, nil
}

// CreateUser stores a new unverified user. It returns
// store.ErrDuplicateEmail when the email is taken.
func (s *Store) CreateUser(_ context.Context, in store.CreateUserInput) (*store.User, error) {
	email := store.NormalizeEmail(in.Email)
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[email]; taken {
		return nil, store.ErrDuplicateEmail
	}

	rec := &record{
		user: store.User{
			ID:           s.idGenerator(),
			Email:        email,
			PasswordHash: in.PasswordHash,
			Name:         in.Name,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
	s.users[rec.user.ID] = rec
	s.byEmail[email] = rec.user.ID
	if in.VerificationToken != "" {
		s.setVerifyLocked(rec, in.VerificationToken, in.VerificationExpiresAt)
	}
	return rec.snapshot(), nil
}

// SetVerificationToken replaces the user's pending verification token.
func (s *Store) SetVerificationToken(_ context.Context, userID, token string, expiresAt time.Time) error {
	if token == "" {
		return store.ErrEmptyToken
	}
	return s.mutate(userID, func(rec *record) {
		s.setVerifyLocked(rec, token, expiresAt)
	})
}

// GetVerificationToken resolves a verification token to its owner and
// expiry, or store.ErrNotFound.
func (s *Store) GetVerificationToken(_ context.Context, token string) (*store.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byVerify[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	rec := s.users[id]
	return &store.TokenRecord{UserID: id, ExpiresAt: rec.verifyExpires}, nil
}

// ClearVerificationToken removes the user's pending verification token.
func (s *Store) ClearVerificationToken(_ context.Context, userID string) error {
	return s.mutate(userID, s.clearVerifyLocked)
}

// SetPasswordResetToken replaces the user's pending reset token.
func (s *Store) SetPasswordResetToken(_ context.Context, userID, token string, expiresAt time.Time) error {
	if token == "" {
		return store.ErrEmptyToken
	}
	return s.mutate(userID, func(rec *record) {
		s.setResetLocked(rec, token, expiresAt)
	})
}

// GetPasswordResetToken resolves a reset token to its owner and expiry,
// or store.ErrNotFound.
func (s *Store) GetPasswordResetToken(_ context.Context, token string) (*store.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byReset[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	rec := s.users[id]
	return &store.TokenRecord{UserID: id, ExpiresAt: rec.resetExpires}, nil
}

// ClearPasswordResetToken removes the user's pending reset token.
func (s *Store) ClearPasswordResetToken(_ context.Context, userID string) error {
	return s.mutate(userID, s.clearResetLocked)
}

// VerifyUserEmail marks userID verified and consumes token, which must still
// be the user's current verification token.
func (s *Store) VerifyUserEmail(_ context.Context, userID, token string) error {
	if token == "" {
		return store.ErrEmptyToken
	}
	holds := func(rec *record) bool { return rec.verifyToken == token }
	return s.mutateWhere(userID, holds, func(rec *record) {
		if rec.user.EmailVerifiedAt == nil {
			at := rec.user.UpdatedAt
			rec.user.EmailVerifiedAt = &at
		}
		s.clearVerifyLocked(rec)
	})
}

// UpdatePassword replaces the hash and consumes token, which must still be the
// user's current reset token.
func (s *Store) UpdatePassword(_ context.Context, userID, token, passwordHash string) error {
	if token == "" {
		return store.ErrEmptyToken
	}
	holds := func(rec *record) bool { return rec.resetToken == token }
	return s.mutateWhere(userID, holds, func(rec *record) {
		rec.user.PasswordHash = passwordHash
		s.clearResetLocked(rec)
	})
}

// Len reports the number of stored users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// mutate runs fn on the user's record under the write lock and stamps
// UpdatedAt before fn runs.
func (s *Store) mutate(userID string, fn func(rec *record)) error {
	return s.mutateWhere(userID, nil, fn)
}

// mutateWhere is mutate guarded by cond, checked under the same lock. A
// failed cond leaves the record untouched and reports ErrNotFound.
func (s *Store) mutateWhere(userID string, cond func(rec *record) bool, fn func(rec *record)) error {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[userID]
	if !ok || (cond != nil && !cond(rec)) {
		return store.ErrNotFound
	}
	rec.user.UpdatedAt = now
	fn(rec)
	return nil
}

func (s *Store) setVerifyLocked(rec *record, token string, expiresAt time.Time) {
	if rec.verifyToken != "" {
		delete(s.byVerify, rec.verifyToken)
	}
	rec.verifyToken = token
	rec.verifyExpires = expiresAt
	s.byVerify[token] = rec.user.ID
}

func (s *Store) clearVerifyLocked(rec *record) {
	if rec.verifyToken != "" {
		delete(s.byVerify, rec.verifyToken)
	}
	rec.verifyToken = ""
	rec.verifyExpires = time.Time{}
}

func (s *Store) setResetLocked(rec *record, token string, expiresAt time.Time) {
	if rec.resetToken != "" {
		delete(s.byReset, rec.resetToken)
	}
	rec.resetToken = token
	rec.resetExpires = expiresAt
	s.byReset[token] = rec.user.ID
}

func (s *Store) clearResetLocked(rec *record) {
	if rec.resetToken != "" {
		delete(s.byReset, rec.resetToken)
	}
	rec.resetToken = ""
	rec.resetExpires = time.Time{}
}

func (r *record) snapshot() *store.User {
	u := r.user
	if r.user.EmailVerifiedAt != nil {
		at := *r.user.EmailVerifiedAt
		u.EmailVerifiedAt = &at
	}
	return &u
}

package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Tadeu17/authentication-template/store"
)

const (
	defaultPrefix     = "auth"
	defaultMaxRetries = 8

	// tokenIndexGrace keeps an index key alive past its token's expiry so a
	// late confirmation still resolves and reports the token as expired.
	tokenIndexGrace = 24 * time.Hour
)

var (
	ErrRedisUnavailable = errors.New("redisstore: redis unavailable")
	ErrContention       = errors.New("redisstore: transaction contention")
)

type document struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	PasswordHash    string     `json:"passwordHash"`
	Name            string     `json:"name"`
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`

	VerificationToken     string    `json:"verificationToken,omitempty"`
	VerificationExpiresAt time.Time `json:"verificationExpiresAt,omitempty"`
	ResetToken            string    `json:"resetToken,omitempty"`
	ResetExpiresAt        time.Time `json:"resetExpiresAt,omitempty"`
}

func (d *document) user() *store.User {
	u := &store.User{
		ID:           d.ID,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Name:         d.Name,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if d.EmailVerifiedAt != nil {
		at := *d.EmailVerifiedAt
		u.EmailVerifiedAt = &at
	}
	return u
}

// Config tunes a Store.
type Config struct {
	Prefix     string
	MaxRetries int
}

// Store is a Redis-backed store.Store.
type Store struct {
	redis      redis.UniversalClient
	prefix     string
	maxRetries int
	now        func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns a Store over redisClient. The caller owns the client.
func New(redisClient redis.UniversalClient, cfg Config) *Store {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	return &Store{
		redis:      redisClient,
		prefix:     cfg.Prefix,
		maxRetries: cfg.MaxRetries,
		now:        time.Now,
	}
}

func (s *Store) userKey(id string) string     { return s.prefix + ":user:" + id }
func (s *Store) emailKey(email string) string { return s.prefix + ":email:" + email }
func (s *Store) verifyKey(token string) string {
	return s.prefix + ":vt:" + token
}
func (s *Store) resetKey(token string) string {
	return s.prefix + ":rt:" + token
}

// FindUserByEmail returns the user with the normalized email, or
// store.ErrNotFound.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*store.User, error) {
	id, err := s.redis.Get(ctx, s.emailKey(store.NormalizeEmail(email))).Result()
	if err != nil {
		return nil, mapErr(err)
	}
	return s.FindUserByID(ctx, id)
}

// FindUserByID returns the user with id, or store.ErrNotFound.
func (s *Store) FindUserByID(ctx context.Context, id string) (*store.User, error) {
	doc, err := s.load(ctx, s.redis, id)
	if err != nil {
		return nil, err
	}
	return doc.user(), nil
}

// EmailExists reports whether an account uses the normalized email.
func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.emailKey(store.NormalizeEmail(email))).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// CreateUser stores a new unverified user. It returns
// store.ErrDuplicateEmail when the email is taken.
func (s *Store) CreateUser(ctx context.Context, in store.CreateUserInput) (*store.User, error) {
	now := s.now().UTC()
	doc := &document{
		ID:           uuid.NewString(),
		Email:        store.NormalizeEmail(in.Email),
		PasswordHash: in.PasswordHash,
		Name:         in.Name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.VerificationToken != "" {
		doc.VerificationToken = in.VerificationToken
		doc.VerificationExpiresAt = in.VerificationExpiresAt.UTC()
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	emailKey := s.emailKey(doc.Email)
	err = s.retry(ctx, func() error {
		return s.redis.Watch(ctx, func(tx *redis.Tx) error {
			n, err := tx.Exists(ctx, emailKey).Result()
			if err != nil {
				return err
			}
			if n > 0 {
				return store.ErrDuplicateEmail
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, s.userKey(doc.ID), encoded, 0)
				pipe.Set(ctx, emailKey, doc.ID, 0)
				if doc.VerificationToken != "" {
					pipe.Set(ctx, s.verifyKey(doc.VerificationToken), doc.ID, s.indexTTL(doc.VerificationExpiresAt))
				}
				return nil
			})
			return err
		}, emailKey)
	})
	if err != nil {
		return nil, err
	}
	return doc.user(), nil
}

// SetVerificationToken replaces the user's pending verification token.
func (s *Store) SetVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	if token == "" {
		return store.ErrEmptyToken
	}
	return s.mutate(ctx, userID, func(ctx context.Context, doc *document, pipe redis.Pipeliner) {
		if doc.VerificationToken != "" {
			pipe.Del(ctx, s.verifyKey(doc.VerificationToken))
		}
		doc.VerificationToken = token
		doc.VerificationExpiresAt = expiresAt.UTC()
		pipe.Set(ctx, s.verifyKey(token), doc.ID, s.indexTTL(doc.VerificationExpiresAt))
	})
}

// GetVerificationToken resolves a verification token to its owner and
// expiry, or store.ErrNotFound.
func (s *Store) GetVerificationToken(ctx context.Context, token string) (*store.TokenRecord, error) {
	return s.lookupToken(ctx, s.verifyKey(token), token, func(doc *document) (string, time.Time) {
		return doc.VerificationToken, doc.VerificationExpiresAt
	})
}

// ClearVerificationToken removes the user's pending verification token.
func (s *Store) ClearVerificationToken(ctx context.Context, userID string) error {
	return s.mutate(ctx, userID, s.clearVerify)
}

// SetPasswordResetToken replaces the user's pending reset token.
func (s *Store) SetPasswordResetToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	if token == "" {
		return store.ErrEmptyToken
	}
	return s.mutate(ctx, userID, func(ctx context.Context, doc *document, pipe redis.Pipeliner) {
		if doc.ResetToken != "" {
			pipe.Del(ctx, s.resetKey(doc.ResetToken))
		}
		doc.ResetToken = token
		doc.ResetExpiresAt = expiresAt.UTC()
		pipe.Set(ctx, s.resetKey(token), doc.ID, s.indexTTL(doc.ResetExpiresAt))
	})
}

// GetPasswordResetToken resolves a reset token to its owner and expiry,
// or store.ErrNotFound.
func (s *Store) GetPasswordResetToken(ctx context.Context, token string) (*store.TokenRecord, error) {
	return s.lookupToken(ctx, s.resetKey(token), token, func(doc *document) (string, time.Time) {
		return doc.ResetToken, doc.ResetExpiresAt
	})
}

// ClearPasswordResetToken removes the user's pending reset token.
func (s *Store) ClearPasswordResetToken(ctx context.Context, userID string) error {
	return s.mutate(ctx, userID, s.clearReset)
}

// VerifyUserEmail marks userID verified and consumes token, which must still
// be current when the transaction commits.
func (s *Store) VerifyUserEmail(ctx context.Context, userID, token string) error {
	if token == "" {
		return store.ErrEmptyToken
	}
	holds := func(doc *document) bool { return doc.VerificationToken == token }
	return s.mutateWhere(ctx, userID, holds, func(ctx context.Context, doc *document, pipe redis.Pipeliner) {
		if doc.EmailVerifiedAt == nil {
			at := doc.UpdatedAt
			doc.EmailVerifiedAt = &at
		}
		s.clearVerify(ctx, doc, pipe)
	})
}

// UpdatePassword replaces the hash and consumes token, which must still be
// current when the transaction commits.
func (s *Store) UpdatePassword(ctx context.Context, userID, token, passwordHash string) error {
	if token == "" {
		return store.ErrEmptyToken
	}
	holds := func(doc *document) bool { return doc.ResetToken == token }
	return s.mutateWhere(ctx, userID, holds, func(ctx context.Context, doc *document, pipe redis.Pipeliner) {
		doc.PasswordHash = passwordHash
		s.clearReset(ctx, doc, pipe)
	})
}

// indexTTL is the lifetime of a token index key: the time left until
// expiresAt plus tokenIndexGrace.
func (s *Store) indexTTL(expiresAt time.Time) time.Duration {
	left := expiresAt.Sub(s.now())
	if left < 0 {
		left = 0
	}
	return left + tokenIndexGrace
}

func (s *Store) clearVerify(ctx context.Context, doc *document, pipe redis.Pipeliner) {
	if doc.VerificationToken != "" {
		pipe.Del(ctx, s.verifyKey(doc.VerificationToken))
	}
	doc.VerificationToken = ""
	doc.VerificationExpiresAt = time.Time{}
}

func (s *Store) clearReset(ctx context.Context, doc *document, pipe redis.Pipeliner) {
	if doc.ResetToken != "" {
		pipe.Del(ctx, s.resetKey(doc.ResetToken))
	}
	doc.ResetToken = ""
	doc.ResetExpiresAt = time.Time{}
}

// mutate loads the user document under WATCH, lets fn queue index changes
// and edit the document, then writes the document in the same MULTI.
func (s *Store) mutate(ctx context.Context, userID string, fn func(ctx context.Context, doc *document, pipe redis.Pipeliner)) error {
	return s.mutateWhere(ctx, userID, nil, fn)
}

// mutateWhere is mutate guarded by cond, evaluated on the watched document.
// A failed cond writes nothing and reports ErrNotFound.
func (s *Store) mutateWhere(
	ctx context.Context,
	userID string,
	cond func(doc *document) bool,
	fn func(ctx context.Context, doc *document, pipe redis.Pipeliner),
) error {
	key := s.userKey(userID)
	return s.retry(ctx, func() error {
		return s.redis.Watch(ctx, func(tx *redis.Tx) error {
			doc, err := s.load(ctx, tx, userID)
			if err != nil {
				return err
			}
			if cond != nil && !cond(doc) {
				return store.ErrNotFound
			}
			doc.UpdatedAt = s.now().UTC()

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				fn(ctx, doc, pipe)
				encoded, err := json.Marshal(doc)
				if err != nil {
					return err
				}
				pipe.Set(ctx, key, encoded, 0)
				return nil
			})
			return err
		}, key)
	})
}

func (s *Store) lookupToken(
	ctx context.Context,
	indexKey, token string,
	slot func(doc *document) (string, time.Time),
) (*store.TokenRecord, error) {
	if token == "" {
		return nil, store.ErrNotFound
	}
	id, err := s.redis.Get(ctx, indexKey).Result()
	if err != nil {
		return nil, mapErr(err)
	}
	doc, err := s.load(ctx, s.redis, id)
	if err != nil {
		return nil, err
	}
	current, expiresAt := slot(doc)
	if current != token {
		return nil, store.ErrNotFound
	}
	return &store.TokenRecord{UserID: doc.ID, ExpiresAt: expiresAt}, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *Store) load(ctx context.Context, c getter, id string) (*document, error) {
	data, err := c.Get(ctx, s.userKey(id)).Bytes()
	if err != nil {
		return nil, mapErr(err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("redisstore: decode user %s: %w", id, err)
	}
	return &doc, nil
}

func (s *Store) retry(ctx context.Context, fn func() error) error {
	for i := 0; i < s.maxRetries; i++ {
		err := fn()
		if errors.Is(err, redis.TxFailedErr) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		if err != nil {
			return mapErr(err)
		}
		return nil
	}
	return ErrContention
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return store.ErrNotFound
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrDuplicateEmail),
		errors.Is(err, ErrRedisUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
}

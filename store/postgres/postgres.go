// Package postgres implements store.Store on PostgreSQL through database/sql
// and the pgx stdlib driver.
//
// Both token slots live on the user row. Unique partial indexes on the token
// columns make the row the index, so replacing or clearing a token is a
// single UPDATE and supersession needs no extra bookkeeping.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/Tadeu17/authentication-template/store"
	"github.com/Tadeu17/authentication-template/store/postgres/migrations"
)

const uniqueViolation = "23505"

// DBTX is the subset of database/sql the store uses; *sql.DB and *sql.Tx
// both satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	db    DBTX
	close func() error
	now   func() time.Time
	newID func() string
}

var _ store.Store = (*Store)(nil)

// New wraps an existing handle. The caller owns its lifecycle.
func New(db DBTX) *Store {
	return &Store{
		db:    db,
		close: func() error { return nil },
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Open connects with the pgx driver, pings, and applies migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	s := New(db)
	s.close = db.Close
	return s, nil
}

// Migrate applies every embedded migration.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Close releases the connection pool opened by [Open].
func (s *Store) Close() error {
	return s.close()
}

const userColumns = `id, email, password_hash, name, email_verified_at, created_at, updated_at`

// FindUserByEmail returns the user with the normalized email, or
// store.ErrNotFound.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, store.NormalizeEmail(email)))
}

// FindUserByID returns the user with id, or store.ErrNotFound.
func (s *Store) FindUserByID(ctx context.Context, id string) (*store.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, store.ErrNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// EmailExists reports whether an account uses the normalized email.
func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`,
		store.NormalizeEmail(email)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// CreateUser stores a new unverified user. It returns
// store.ErrDuplicateEmail when the email is taken.
func (s *Store) CreateUser(ctx context.Context, in store.CreateUserInput) (*store.User, error) {
	now := s.now().UTC()
	u := &store.User{
		ID:           s.newID(),
		Email:        store.NormalizeEmail(in.Email),
		PasswordHash: in.PasswordHash,
		Name:         in.Name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	query := `INSERT INTO users (id, email, password_hash, name, verification_token, verification_token_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Email, u.PasswordHash, u.Name,
		nullString(in.VerificationToken), nullTime(in.VerificationToken, in.VerificationExpiresAt),
		u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return nil, store.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

// SetVerificationToken replaces the user's pending verification token.
func (s *Store) SetVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	if token == "" {
		return store.ErrEmptyToken
	}
	return s.update(ctx,
		`UPDATE users SET verification_token = $2, verification_token_expires_at = $3, updated_at = $4 WHERE id = $1`,
		userID, token, expiresAt.UTC(), s.now().UTC())
}

// GetVerificationToken resolves a verification token to its owner and
// expiry, or store.ErrNotFound.
func (s *Store) GetVerificationToken(ctx context.Context, token string) (*store.TokenRecord, error) {
	return s.lookupToken(ctx,
		`SELECT id, verification_token_expires_at FROM users WHERE verification_token = $1`, token)
}

// ClearVerificationToken removes the user's pending verification token.
func (s *Store) ClearVerificationToken(ctx context.Context, userID string) error {
	return s.update(ctx,
		`UPDATE users SET verification_token = NULL, verification_token_expires_at = NULL, updated_at = $2 WHERE id = $1`,
		userID, s.now().UTC())
}

// SetPasswordResetToken replaces the user's pending reset token.
func (s *Store) SetPasswordResetToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	if token == "" {
		return store.ErrEmptyToken
	}
	return s.update(ctx,
		`UPDATE users SET reset_token = $2, reset_token_expires_at = $3, updated_at = $4 WHERE id = $1`,
		userID, token, expiresAt.UTC(), s.now().UTC())
}

// GetPasswordResetToken resolves a reset token to its owner and expiry,
// or store.ErrNotFound.
func (s *Store) GetPasswordResetToken(ctx context.Context, token string) (*store.TokenRecord, error) {
	return s.lookupToken(ctx,
		`SELECT id, reset_token_expires_at FROM users WHERE reset_token = $1`, token)
}

// ClearPasswordResetToken removes the user's pending reset token.
func (s *Store) ClearPasswordResetToken(ctx context.Context, userID string) error {
	return s.update(ctx,
		`UPDATE users SET reset_token = NULL, reset_token_expires_at = NULL, updated_at = $2 WHERE id = $1`,
		userID, s.now().UTC())
}

// VerifyUserEmail marks userID verified and consumes token in one UPDATE
// that matches only while token is still current.
func (s *Store) VerifyUserEmail(ctx context.Context, userID, token string) error {
	if token == "" {
		return store.ErrEmptyToken
	}
	return s.update(ctx,
		`UPDATE users SET email_verified_at = COALESCE(email_verified_at, $2),
			verification_token = NULL, verification_token_expires_at = NULL, updated_at = $2
		 WHERE id = $1 AND verification_token = $3`,
		userID, s.now().UTC(), token)
}

// UpdatePassword replaces the hash and consumes token in one UPDATE that
// matches only while token is still current.
func (s *Store) UpdatePassword(ctx context.Context, userID, token, passwordHash string) error {
	if token == "" {
		return store.ErrEmptyToken
	}
	return s.update(ctx,
		`UPDATE users SET password_hash = $2, reset_token = NULL, reset_token_expires_at = NULL, updated_at = $3
		 WHERE id = $1 AND reset_token = $4`,
		userID, passwordHash, s.now().UTC(), token)
}

// update runs a single-row UPDATE keyed by id ($1) and maps zero affected
// rows to ErrNotFound.
func (s *Store) update(ctx context.Context, query, userID string, args ...any) error {
	if _, err := uuid.Parse(userID); err != nil {
		return store.ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, query, append([]any{userID}, args...)...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) lookupToken(ctx context.Context, query, token string) (*store.TokenRecord, error) {
	if token == "" {
		return nil, store.ErrNotFound
	}
	var rec store.TokenRecord
	err := s.db.QueryRowContext(ctx, query, token).Scan(&rec.UserID, &rec.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &rec, nil
}

func (s *Store) scanUser(row *sql.Row) (*store.User, error) {
	var (
		u        store.User
		verified sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &verified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if verified.Valid {
		at := verified.Time
		u.EmailVerifiedAt = &at
	}
	return &u, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && (constraint == "" || pgErr.ConstraintName == constraint)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(token string, t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: token != ""}
}

package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound       = errors.New("store: not found")
	ErrDuplicateEmail = errors.New("store: duplicate email")
	ErrEmptyToken     = errors.New("store: empty token")
)

// User is a persisted account.
type User struct {
	ID              string
	Email           string
	PasswordHash    string
	Name            string
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Verified reports whether the account has confirmed its email.
func (u *User) Verified() bool {
	return u != nil && u.EmailVerifiedAt != nil
}

// CreateUserInput is persisted together with its initial verification token
// in a single call.
type CreateUserInput struct {
	Email                 string
	PasswordHash          string
	Name                  string
	VerificationToken     string
	VerificationExpiresAt time.Time
}

// TokenRecord is what a token lookup resolves to.
type TokenRecord struct {
	UserID    string
	ExpiresAt time.Time
}

// Store is the persistence contract for users and their single-use tokens.
type Store interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id string) (*User, error)
	CreateUser(ctx context.Context, in CreateUserInput) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)

	SetVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	GetVerificationToken(ctx context.Context, token string) (*TokenRecord, error)
	ClearVerificationToken(ctx context.Context, userID string) error

	SetPasswordResetToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	GetPasswordResetToken(ctx context.Context, token string) (*TokenRecord, error)
	ClearPasswordResetToken(ctx context.Context, userID string) error

	// VerifyUserEmail stamps the verification time and clears the
	// verification token, atomically and only while token is the user's
	// current verification token; otherwise it returns ErrNotFound.
	// Already-verified users keep their original stamp.
	VerifyUserEmail(ctx context.Context, userID, token string) error
	// UpdatePassword replaces the hash and clears the reset token, atomically
	// and only while token is the user's current reset token; otherwise it
	// returns ErrNotFound.
	UpdatePassword(ctx context.Context, userID, token, passwordHash string) error
}

// Closer is implemented by adapters that hold external connections.
type Closer interface {
	Close() error
}

// NormalizeEmail trims surrounding space and lower-cases.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

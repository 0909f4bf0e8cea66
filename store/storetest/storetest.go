// Package storetest is the shared contract suite for store adapters.
//
// Each adapter's tests call [Run] with a factory returning a fresh, empty
// store per subtest.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tadeu17/authentication-template/store"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) store.Store

// Run executes every contract case against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"CreateAndFind", testCreateAndFind},
		{"EmailIsCaseInsensitive", testEmailCaseInsensitive},
		{"DuplicateEmail", testDuplicateEmail},
		{"MissingUser", testMissingUser},
		{"CreateIndexesVerificationToken", testCreateIndexesVerificationToken},
		{"VerificationTokenSupersession", testVerificationSupersession},
		{"ClearVerificationToken", testClearVerificationToken},
		{"VerifyUserEmail", testVerifyUserEmail},
		{"ResetTokenSupersession", testResetSupersession},
		{"ClearPasswordResetToken", testClearPasswordResetToken},
		{"UpdatePasswordClearsResetToken", testUpdatePassword},
		{"TokenPurposesAreSeparate", testTokenPurposesSeparate},
		{"EmptyTokenRejected", testEmptyToken},
		{"ConcurrentTokenIssue", testConcurrentTokenIssue},
		{"StaleTokenConsumeRejected", testStaleTokenConsume},
		{"ConcurrentResetConsume", testConcurrentResetConsume},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

func expiry(d time.Duration) time.Time {
	return time.Now().Add(d).UTC().Truncate(time.Millisecond)
}

func createUser(t *testing.T, s store.Store, email, token string) *store.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), store.CreateUserInput{
		Email:                 email,
		PasswordHash:          "hash:" + email,
		Name:                  "Test User",
		VerificationToken:     token,
		VerificationExpiresAt: expiry(24 * time.Hour),
	})
	require.NoError(t, err)
	require.NotNil(t, u)
	return u
}

func testCreateAndFind(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := createUser(t, s, "ann@example.com", "vt-1")

	require.NotEmpty(t, u.ID)
	require.Equal(t, "ann@example.com", u.Email)
	require.Equal(t, "Test User", u.Name)
	require.Equal(t, "hash:ann@example.com", u.PasswordHash)
	require.Nil(t, u.EmailVerifiedAt)
	require.False(t, u.CreatedAt.IsZero())

	byEmail, err := s.FindUserByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)
	require.Equal(t, u.PasswordHash, byEmail.PasswordHash)

	byID, err := s.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "ann@example.com", byID.Email)

	exists, err := s.EmailExists(ctx, "ann@example.com")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = s.EmailExists(ctx, "bob@example.com")
	require.NoError(t, err)
	require.False(t, exists)
}

func testEmailCaseInsensitive(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := createUser(t, s, "  Mixed@Example.COM ", "vt-1")
	require.Equal(t, "mixed@example.com", u.Email)

	found, err := s.FindUserByEmail(ctx, "MIXED@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, found.ID)

	exists, err := s.EmailExists(ctx, " mixed@EXAMPLE.com")
	require.NoError(t, err)
	require.True(t, exists)
}

func testDuplicateEmail(t *testing.T, s store.Store) {
	createUser(t, s, "dup@example.com", "vt-1")

	_, err := s.CreateUser(context.Background(), store.CreateUserInput{
		Email:                 "DUP@example.com",
		PasswordHash:          "other",
		Name:                  "Other",
		VerificationToken:     "vt-2",
		VerificationExpiresAt: expiry(time.Hour),
	})
	require.ErrorIs(t, err, store.ErrDuplicateEmail)

	_, err = s.GetVerificationToken(context.Background(), "vt-2")
	require.ErrorIs(t, err, store.ErrNotFound, "rejected create must not index its token")
}

func testMissingUser(t *testing.T, s store.Store) {
	ctx := context.Background()
	missing := "00000000-0000-0000-0000-000000000000"

	_, err := s.FindUserByEmail(ctx, "ghost@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.FindUserByID(ctx, missing)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetVerificationToken(ctx, "nope")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetPasswordResetToken(ctx, "nope")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.ErrorIs(t, s.SetVerificationToken(ctx, missing, "t", expiry(time.Hour)), store.ErrNotFound)
	require.ErrorIs(t, s.SetPasswordResetToken(ctx, missing, "t", expiry(time.Hour)), store.ErrNotFound)
	require.ErrorIs(t, s.ClearVerificationToken(ctx, missing), store.ErrNotFound)
	require.ErrorIs(t, s.ClearPasswordResetToken(ctx, missing), store.ErrNotFound)
	require.ErrorIs(t, s.VerifyUserEmail(ctx, missing, "t"), store.ErrNotFound)
	require.ErrorIs(t, s.UpdatePassword(ctx, missing, "t", "h"), store.ErrNotFound)
}

func testCreateIndexesVerificationToken(t *testing.T, s store.Store) {
	u := createUser(t, s, "a@example.com", "vt-initial")

	rec, err := s.GetVerificationToken(context.Background(), "vt-initial")
	require.NoError(t, err)
	require.Equal(t, u.ID, rec.UserID)
	require.WithinDuration(t, time.Now().Add(24*time.Hour), rec.ExpiresAt, time.Minute)
}

func testVerificationSupersession(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := createUser(t, s, "a@example.com", "vt-old")

	exp := expiry(time.Hour)
	require.NoError(t, s.SetVerificationToken(ctx, u.ID, "vt-new", exp))

	_, err := s.GetVerificationToken(ctx, "vt-old")
	require.ErrorIs(t, err, store.ErrNotFound)

	rec, err := s.GetVerificationToken(ctx, "vt-new")
	require.NoError(t, err)
	require.Equal(t, u.ID, rec.UserID)
	require.WithinDuration(t, exp, rec.ExpiresAt, time.Millisecond)
}

func testClearVerificationToken(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := createUser(t, s, "a@example.com", "vt-1")

	require.NoError(t, s.ClearVerificationToken(ctx, u.ID))
	_, err := s.GetVerificationToken(ctx, "vt-1")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.ClearVerificationToken(ctx, u.ID), "clearing twice is a no-op")
}

func testVerifyUserEmail(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := createUser(t, s, "a@example.com", "vt-1")

	require.NoError(t, s.VerifyUserEmail(ctx, u.ID, "vt-1"))

	got, err := s.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EmailVerifiedAt)
	first := *got.EmailVerifiedAt

	_, err = s.GetVerificationToken(ctx, "vt-1")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.ErrorIs(t, s.VerifyUserEmail(ctx, u.ID, "vt-1"), store.ErrNotFound, "consumed token")

	require.NoError(t, s.SetVerificationToken(ctx, u.ID, "vt-2", expiry(time.Hour)))
	require.NoError(t, s.VerifyUserEmail(ctx, u.ID, "vt-2"))
	got, err = s.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, first.Equal(*got.EmailVerifiedAt), "second verify must keep the first stamp")
}

func testResetSupersession(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := createUser(t, s, "a@example.com", "vt-1")

	require.NoError(t, s.SetPasswordResetToken(ctx, u.ID, "rt-1", expiry(time.Hour)))
	require.NoError(t, s.SetPasswordResetToken(ctx, u.ID, "rt-2", expiry(time.Hour)))

	_, err := s.GetPasswordResetToken(ctx, "rt-1")
	require.ErrorIs(t, err, store.ErrNotFound)

	rec, err := s.GetPasswordResetToken(ctx, "rt-2")
	require.NoError(t, err)
	require.Equal(t, u.ID, rec.UserID)
}

func testClearPasswordResetToken(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := createUser(t, s, "a@example.com", "vt-1")

	require.NoError(t, s.SetPasswordResetToken(ctx, u.ID, "rt-1", expiry(time.Hour)))
	require.NoError(t, s.ClearPasswordResetToken(ctx, u.ID))

	_, err := s.GetPasswordResetToken(ctx, "rt-1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testUpdatePassword(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := createUser(t, s, "a@example.com", "vt-1")

	require.NoError(t, s.SetPasswordResetToken(ctx, u.ID, "rt-1", expiry(time.Hour)))
	require.NoError(t, s.UpdatePassword(ctx, u.ID, "rt-1", "new-hash"))

	got, err := s.FindUserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.Equal(t, "new-hash", got.PasswordHash)

	_, err = s.GetPasswordResetToken(ctx, "rt-1")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetVerificationToken(ctx, "vt-1")
	require.NoError(t, err, "password update must not touch the verification slot")
}

func testTokenPurposesSeparate(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := createUser(t, s, "a@example.com", "shared-value-vt")

	require.NoError(t, s.SetPasswordResetToken(ctx, u.ID, "rt-1", expiry(time.Hour)))

	_, err := s.GetPasswordResetToken(ctx, "shared-value-vt")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetVerificationToken(ctx, "rt-1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testEmptyToken(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := createUser(t, s, "a@example.com", "vt-1")

	require.ErrorIs(t, s.SetVerificationToken(ctx, u.ID, "", expiry(time.Hour)), store.ErrEmptyToken)
	require.ErrorIs(t, s.SetPasswordResetToken(ctx, u.ID, "", expiry(time.Hour)), store.ErrEmptyToken)

	_, err := s.GetVerificationToken(ctx, "")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.ErrorIs(t, s.VerifyUserEmail(ctx, u.ID, ""), store.ErrEmptyToken)
	require.ErrorIs(t, s.UpdatePassword(ctx, u.ID, "", "h"), store.ErrEmptyToken)
}

// Concurrent issuers for one user must leave exactly one reachable token.
func testConcurrentTokenIssue(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := createUser(t, s, "race@example.com", "vt-0")

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Adapters with optimistic locking may give up under contention;
			// a failed write must leave no trace.
			_ = s.SetPasswordResetToken(ctx, u.ID, fmt.Sprintf("rt-%d", i), expiry(time.Hour))
		}(i)
	}
	wg.Wait()

	live := 0
	for i := 0; i < writers; i++ {
		rec, err := s.GetPasswordResetToken(ctx, fmt.Sprintf("rt-%d", i))
		if err == nil {
			require.Equal(t, u.ID, rec.UserID)
			live++
			continue
		}
		require.ErrorIs(t, err, store.ErrNotFound)
	}
	require.Equal(t, 1, live)
}

// A token superseded between lookup and consume must not apply, and must not
// clear the newer token.
func testStaleTokenConsume(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := createUser(t, s, "stale@example.com", "vt-1")

	require.NoError(t, s.SetPasswordResetToken(ctx, u.ID, "rt-old", expiry(time.Hour)))
	require.NoError(t, s.SetPasswordResetToken(ctx, u.ID, "rt-new", expiry(time.Hour)))

	require.ErrorIs(t, s.UpdatePassword(ctx, u.ID, "rt-old", "stolen"), store.ErrNotFound)
	got, err := s.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "hash:stale@example.com", got.PasswordHash)

	rec, err := s.GetPasswordResetToken(ctx, "rt-new")
	require.NoError(t, err)
	require.Equal(t, u.ID, rec.UserID)

	require.NoError(t, s.SetVerificationToken(ctx, u.ID, "vt-2", expiry(time.Hour)))
	require.ErrorIs(t, s.VerifyUserEmail(ctx, u.ID, "vt-1"), store.ErrNotFound)
	got, err = s.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Nil(t, got.EmailVerifiedAt)
	_, err = s.GetVerificationToken(ctx, "vt-2")
	require.NoError(t, err)
}

// Concurrent confirmations of one reset token must apply exactly once.
func testConcurrentResetConsume(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := createUser(t, s, "once@example.com", "vt-1")
	require.NoError(t, s.SetPasswordResetToken(ctx, u.ID, "rt-1", expiry(time.Hour)))

	const confirmers = 16
	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok []string
	)
	for i := 0; i < confirmers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			hash := fmt.Sprintf("hash-%d", i)
			if err := s.UpdatePassword(ctx, u.ID, "rt-1", hash); err == nil {
				mu.Lock()
				ok = append(ok, hash)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	require.Len(t, ok, 1)
	got, err := s.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, ok[0], got.PasswordHash)
}

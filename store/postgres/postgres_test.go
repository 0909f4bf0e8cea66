package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/Tadeu17/authentication-template/store"
)

const testUserID = "6f1d1c3e-3a77-4f2b-9d4e-0f7c2b8a1e55"

var fixedNow = time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	s := New(db)
	s.now = func() time.Time { return fixedNow }
	s.newID = func() string { return testUserID }
	return s, mock
}

func userRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "password_hash", "name", "email_verified_at", "created_at", "updated_at"})
}

func TestCreateUser_Success(t *testing.T) {
	s, mock := newStoreWithMock(t)
	exp := fixedNow.Add(24 * time.Hour)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+users\s*\(id,\s*email,\s*password_hash,\s*name,\s*verification_token,\s*verification_token_expires_at,\s*created_at,\s*updated_at\)`).
		WithArgs(testUserID, "ann@example.com", "hash", "Ann",
			sql.NullString{String: "vt", Valid: true}, sql.NullTime{Time: exp, Valid: true},
			fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u, err := s.CreateUser(context.Background(), store.CreateUserInput{
		Email:                 " Ann@Example.com",
		PasswordHash:          "hash",
		Name:                  "Ann",
		VerificationToken:     "vt",
		VerificationExpiresAt: exp,
	})
	require.NoError(t, err)
	require.Equal(t, testUserID, u.ID)
	require.Equal(t, "ann@example.com", u.Email)
	require.True(t, u.CreatedAt.Equal(fixedNow))
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := s.CreateUser(context.Background(), store.CreateUserInput{Email: "a@x.com", PasswordHash: "h", Name: "A"})
	require.ErrorIs(t, err, store.ErrDuplicateEmail)
}

func TestCreateUser_TokenCollisionIsNotDuplicateEmail(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_verification_token_key"})

	_, err := s.CreateUser(context.Background(), store.CreateUserInput{Email: "a@x.com", PasswordHash: "h", Name: "A", VerificationToken: "t"})
	require.Error(t, err)
	require.False(t, errors.Is(err, store.ErrDuplicateEmail))
}

func TestFindUserByEmail_Found(t *testing.T) {
	s, mock := newStoreWithMock(t)
	verified := fixedNow.Add(-time.Hour)

	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*email,.*FROM\s+users\s+WHERE\s+email\s*=\s*\$1$`).
		WithArgs("ann@example.com").
		WillReturnRows(userRow().AddRow(testUserID, "ann@example.com", "hash", "Ann", verified, fixedNow, fixedNow))

	u, err := s.FindUserByEmail(context.Background(), "ANN@example.com")
	require.NoError(t, err)
	require.Equal(t, testUserID, u.ID)
	require.NotNil(t, u.EmailVerifiedAt)
	require.True(t, u.EmailVerifiedAt.Equal(verified))
}

func TestFindUserByEmail_NotFound(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*WHERE\s+email\s*=\s*\$1$`).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := s.FindUserByEmail(context.Background(), "ghost@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestFindUserByID_Unverified(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*WHERE\s+id\s*=\s*\$1$`).
		WithArgs(testUserID).
		WillReturnRows(userRow().AddRow(testUserID, "a@x.com", "h", "A", nil, fixedNow, fixedNow))

	u, err := s.FindUserByID(context.Background(), testUserID)
	require.NoError(t, err)
	require.Nil(t, u.EmailVerifiedAt)
}

func TestFindUserByID_MalformedID(t *testing.T) {
	s, _ := newStoreWithMock(t)
	_, err := s.FindUserByID(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestEmailExists(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT\s+EXISTS`).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := s.EmailExists(context.Background(), "A@x.com")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestEmailExists_DBError(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT\s+EXISTS`).WillReturnError(errors.New("db down"))

	_, err := s.EmailExists(context.Background(), "a@x.com")
	require.ErrorContains(t, err, "db down")
}

func TestSetVerificationToken(t *testing.T) {
	s, mock := newStoreWithMock(t)
	exp := fixedNow.Add(time.Hour)

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+verification_token\s*=\s*\$2,\s*verification_token_expires_at\s*=\s*\$3`).
		WithArgs(testUserID, "vt", exp, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.SetVerificationToken(context.Background(), testUserID, "vt", exp))
}

func TestSetVerificationToken_UnknownUser(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+verification_token`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.SetVerificationToken(context.Background(), testUserID, "vt", fixedNow)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetVerificationToken_Empty(t *testing.T) {
	s, _ := newStoreWithMock(t)
	require.ErrorIs(t, s.SetVerificationToken(context.Background(), testUserID, "", fixedNow), store.ErrEmptyToken)
}

func TestGetPasswordResetToken(t *testing.T) {
	s, mock := newStoreWithMock(t)
	exp := fixedNow.Add(time.Hour)

	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*reset_token_expires_at\s+FROM\s+users\s+WHERE\s+reset_token\s*=\s*\$1$`).
		WithArgs("rt").
		WillReturnRows(sqlmock.NewRows([]string{"id", "reset_token_expires_at"}).AddRow(testUserID, exp))

	rec, err := s.GetPasswordResetToken(context.Background(), "rt")
	require.NoError(t, err)
	require.Equal(t, testUserID, rec.UserID)
	require.True(t, rec.ExpiresAt.Equal(exp))
}

func TestGetVerificationToken_NotFound(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*verification_token_expires_at`).
		WithArgs("gone").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetVerificationToken(context.Background(), "gone")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestVerifyUserEmail_KeepsFirstStamp(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+email_verified_at\s*=\s*COALESCE\(email_verified_at,\s*\$2\),\s*verification_token\s*=\s*NULL`).
		WithArgs(testUserID, fixedNow, "vt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.VerifyUserEmail(context.Background(), testUserID, "vt-1"))
}

func TestUpdatePassword_ClearsResetToken(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+password_hash\s*=\s*\$2,\s*reset_token\s*=\s*NULL`).
		WithArgs(testUserID, "new-hash", fixedNow, "rt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.UpdatePassword(context.Background(), testUserID, "rt-1", "new-hash"))
}

func TestUpdatePassword_StaleTokenMatchesNoRow(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+password_hash.*WHERE\s+id\s*=\s*\$1\s+AND\s+reset_token\s*=\s*\$4`).
		WithArgs(testUserID, "new-hash", fixedNow, "rt-old").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdatePassword(context.Background(), testUserID, "rt-old", "new-hash")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestVerifyUserEmail_EmptyTokenSkipsQuery(t *testing.T) {
	s, _ := newStoreWithMock(t)

	require.ErrorIs(t, s.VerifyUserEmail(context.Background(), testUserID, ""), store.ErrEmptyToken)
}

func TestClearPasswordResetToken_DBError(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+reset_token\s*=\s*NULL`).
		WillReturnError(errors.New("conn reset"))

	err := s.ClearPasswordResetToken(context.Background(), testUserID)
	require.ErrorContains(t, err, "conn reset")
	require.False(t, errors.Is(err, store.ErrNotFound))
}

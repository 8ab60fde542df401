package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakewatch/lakes-portal-api/internal/models"
)

func newUserMock(t *testing.T) (*UserRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return NewUserRepository(sqlxDB), mock, func() { _ = db.Close() }
}

func userRows() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "first_name", "last_name", "gender", "organization", "designation", "role", "photo_path", "active", "last_login", "created_at", "updated_at"}).
		AddRow("user-1", "limnologist", "l@lakes.example", "$2a$hash", "Ada", "Karim", "female", "CARS", "Researcher", "MEMBER", "", true, nil, now, now)
}

func TestUserRepositoryFindByUsername(t *testing.T) {
	repo, mock, cleanup := newUserMock(t)
	defer cleanup()

	query := regexp.QuoteMeta(`SELECT id, username, email, password_hash, first_name, last_name, gender, organization, designation, role, photo_path, active, last_login, created_at, updated_at FROM users WHERE username = $1 LIMIT 1`)
	mock.ExpectQuery(query).WithArgs("limnologist").WillReturnRows(userRows())

	user, err := repo.FindByUsername(context.Background(), "limnologist")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, models.RoleMember, user.Role)
	assert.True(t, user.Active)
	assert.Nil(t, user.LastLogin)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByEmailNotFound(t *testing.T) {
	repo, mock, cleanup := newUserMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM users WHERE email").
		WithArgs("nobody@lakes.example").
		WillReturnError(sql.ErrNoRows)

	user, err := repo.FindByEmail(context.Background(), "nobody@lakes.example")
	assert.Nil(t, user)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreate(t *testing.T) {
	repo, mock, cleanup := newUserMock(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), "limnologist", "l@lakes.example", sqlmock.AnyArg(), "Ada", "Karim", "female", "CARS", "Researcher", models.RoleMember, "", false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	user := &models.User{
		Username:     "limnologist",
		Email:        "l@lakes.example",
		PasswordHash: "$2a$hash",
		FirstName:    "Ada",
		LastName:     "Karim",
		Gender:       "female",
		Organization: "CARS",
		Designation:  "Researcher",
		Role:         models.RoleMember,
	}
	err := repo.Create(context.Background(), user)
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryRefreshTokenLifecycle(t *testing.T) {
	repo, mock, cleanup := newUserMock(t)
	defer cleanup()

	expires := time.Now().UTC().Add(24 * time.Hour)
	mock.ExpectExec("INSERT INTO refresh_tokens").
		WithArgs(sqlmock.AnyArg(), "user-1", "opaque-token", sqlmock.AnyArg(), sqlmock.AnyArg(), false, nil, "127.0.0.1", "test-agent").
		WillReturnResult(sqlmock.NewResult(0, 1))

	token := &models.RefreshToken{
		UserID:    "user-1",
		Token:     "opaque-token",
		ExpiresAt: expires,
		IPAddress: "127.0.0.1",
		UserAgent: "test-agent",
	}
	require.NoError(t, repo.CreateRefreshToken(context.Background(), token))
	assert.NotEmpty(t, token.ID)

	findQuery := regexp.QuoteMeta(`SELECT id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent FROM refresh_tokens WHERE token = $1 LIMIT 1`)
	mock.ExpectQuery(findQuery).WithArgs("opaque-token").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token", "expires_at", "created_at", "revoked", "revoked_at", "ip_address", "user_agent"}).
			AddRow(token.ID, "user-1", "opaque-token", expires, token.CreatedAt, false, nil, "127.0.0.1", "test-agent"))

	found, err := repo.FindRefreshToken(context.Background(), "opaque-token")
	require.NoError(t, err)
	assert.Equal(t, "user-1", found.UserID)
	assert.False(t, found.Revoked)

	revokedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`)).
		WithArgs(token.ID, revokedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.RevokeRefreshToken(context.Background(), token.ID, revokedAt))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryAccountToken(t *testing.T) {
	repo, mock, cleanup := newUserMock(t)
	defer cleanup()

	expires := time.Now().UTC().Add(time.Hour)
	created := time.Now().UTC()
	findQuery := regexp.QuoteMeta(`SELECT id, user_id, token, purpose, expires_at, created_at, used_at FROM account_tokens WHERE user_id = $1 AND token = $2 AND purpose = $3 LIMIT 1`)
	mock.ExpectQuery(findQuery).WithArgs("user-1", "reset-token", models.TokenPurposePasswordReset).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token", "purpose", "expires_at", "created_at", "used_at"}).
			AddRow("tok-1", "user-1", "reset-token", string(models.TokenPurposePasswordReset), expires, created, nil))

	found, err := repo.FindAccountToken(context.Background(), "user-1", "reset-token", models.TokenPurposePasswordReset)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", found.ID)
	assert.Nil(t, found.UsedAt)

	usedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE account_tokens SET used_at = $2 WHERE id = $1 AND used_at IS NULL`)).
		WithArgs("tok-1", usedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.ConsumeAccountToken(context.Background(), "tok-1", usedAt))

	assert.NoError(t, mock.ExpectationsWereMet())
}

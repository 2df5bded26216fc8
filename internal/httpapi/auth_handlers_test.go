package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seedling/pitch-platform/internal/auth"
	"github.com/seedling/pitch-platform/internal/config"
	"github.com/seedling/pitch-platform/internal/schemas"
)

func newTestServer(t *testing.T) (*Server, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	s := &Server{
		DB: sqlx.NewDb(mockDB, "pgx"),
		Cfg: &config.Config{
			JWTSecret:         "test-secret",
			AccessTokenExpiry: 30 * time.Minute,
		},
		Log: zap.NewNop(),
	}
	return s, mock
}

func userRows(hashed string, active bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "username", "hashed_password", "is_active", "role"}).
		AddRow(1, "alice@example.com", "alice", hashed, active, "judge")
}

func postLogin(t *testing.T, s *Server, body schemas.LoginRequest) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestLoginSuccess(t *testing.T) {
	s, mock := newTestServer(t)
	hashed, err := auth.HashPassword("password123")
	require.NoError(t, err)
	mock.ExpectQuery(`select * from users where lower(username)=$1 or lower(email)=$1`).
		WithArgs("alice").
		WillReturnRows(userRows(hashed, true))

	rec := postLogin(t, s, schemas.LoginRequest{Username: "Alice", Password: "password123"})
	require.Equal(t, http.StatusOK, rec.Code)

	var tok schemas.Token
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	assert.Equal(t, "bearer", tok.TokenType)

	claims, err := auth.DecodeAccessToken("test-secret", tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "judge", claims.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginByEmailCaseInsensitive(t *testing.T) {
	s, mock := newTestServer(t)
	hashed, err := auth.HashPassword("password123")
	require.NoError(t, err)
	mock.ExpectQuery(`select * from users where lower(username)=$1 or lower(email)=$1`).
		WithArgs("alice@example.com").
		WillReturnRows(userRows(hashed, true))

	rec := postLogin(t, s, schemas.LoginRequest{Username: "ALICE@example.com", Password: "password123"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	s, mock := newTestServer(t)
	hashed, err := auth.HashPassword("password123")
	require.NoError(t, err)
	mock.ExpectQuery(`select * from users where lower(username)=$1 or lower(email)=$1`).
		WithArgs("alice").
		WillReturnRows(userRows(hashed, true))

	rec := postLogin(t, s, schemas.LoginRequest{Username: "alice", Password: "nope"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Incorrect username/email or password", body["detail"])
}

func TestLoginUnknownUser(t *testing.T) {
	s, mock := newTestServer(t)
	mock.ExpectQuery(`select * from users where lower(username)=$1 or lower(email)=$1`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rec := postLogin(t, s, schemas.LoginRequest{Username: "ghost", Password: "whatever"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginInactiveUser(t *testing.T) {
	s, mock := newTestServer(t)
	hashed, err := auth.HashPassword("password123")
	require.NoError(t, err)
	mock.ExpectQuery(`select * from users where lower(username)=$1 or lower(email)=$1`).
		WithArgs("alice").
		WillReturnRows(userRows(hashed, false))

	rec := postLogin(t, s, schemas.LoginRequest{Username: "alice", Password: "password123"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Inactive user", body["detail"])
}

func TestAuthenticateRejectsMissingBearer(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateRejectsBadToken(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoleForbidsWrongRole(t *testing.T) {
	s, mock := newTestServer(t)
	tok, err := auth.CreateAccessToken("test-secret", 1, "founder", time.Minute)
	require.NoError(t, err)
	rows := sqlmock.NewRows([]string{"id", "email", "username", "hashed_password", "is_active", "role"}).
		AddRow(1, "alice@example.com", "alice", "x", true, "founder")
	mock.ExpectQuery(`select * from users where id=$1`).
		WithArgs(int64(1)).
		WillReturnRows(rows)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["detail"], "Access denied")
}

package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedling/pitch-platform/internal/auth"
)

func expectCurrentUser(t *testing.T, mock sqlmock.Sqlmock, hashed string) string {
	t.Helper()
	tok, err := auth.CreateAccessToken("test-secret", 1, "founder", time.Minute)
	require.NoError(t, err)
	rows := sqlmock.NewRows([]string{"id", "email", "username", "hashed_password", "is_active", "role"}).
		AddRow(1, "alice@example.com", "alice", hashed, true, "founder")
	mock.ExpectQuery(`select * from users where id=$1`).
		WithArgs(int64(1)).
		WillReturnRows(rows)
	return tok
}

func patchMe(t *testing.T, s *Server, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPatch, "/users/me", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func detailOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["detail"]
}

func TestUpdateMeEmailChangeRequiresCurrentPassword(t *testing.T) {
	s, mock := newTestServer(t)
	tok := expectCurrentUser(t, mock, "irrelevant")

	rec := patchMe(t, s, tok, `{"email":"new@example.com"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Current password is required to change email", detailOf(t, rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMeRejectsWrongCurrentPassword(t *testing.T) {
	s, mock := newTestServer(t)
	hashed, err := auth.HashPassword("password123")
	require.NoError(t, err)
	tok := expectCurrentUser(t, mock, hashed)

	rec := patchMe(t, s, tok, `{"email":"new@example.com","current_password":"nope"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Current password is incorrect", detailOf(t, rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMeDuplicateEmailIsValidationError(t *testing.T) {
	s, mock := newTestServer(t)
	hashed, err := auth.HashPassword("password123")
	require.NoError(t, err)
	tok := expectCurrentUser(t, mock, hashed)
	mock.ExpectQuery(`select count(1) from users where lower(email)=$1 and id != $2`).
		WithArgs("taken@example.com", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rec := patchMe(t, s, tok, `{"email":"Taken@Example.com","current_password":"password123"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already registered", detailOf(t, rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMeDuplicateUsernameIsValidationError(t *testing.T) {
	s, mock := newTestServer(t)
	tok := expectCurrentUser(t, mock, "irrelevant")
	mock.ExpectQuery(`select count(1) from users where lower(username)=$1 and id != $2`).
		WithArgs("bob", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rec := patchMe(t, s, tok, `{"username":"Bob"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Username already taken", detailOf(t, rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMePersistsVerifiedEmailChange(t *testing.T) {
	s, mock := newTestServer(t)
	hashed, err := auth.HashPassword("password123")
	require.NoError(t, err)
	tok := expectCurrentUser(t, mock, hashed)
	mock.ExpectQuery(`select count(1) from users where lower(email)=$1 and id != $2`).
		WithArgs("new@example.com", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`update users set email=$1, username=$2, hashed_password=$3, updated_at=now() where id=$4`).
		WithArgs("new@example.com", "alice", hashed, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := patchMe(t, s, tok, `{"email":"New@Example.com","current_password":"password123"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "new@example.com", out["email"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeExposesAvatarKeyNotURL(t *testing.T) {
	s, mock := newTestServer(t)
	tok, err := auth.CreateAccessToken("test-secret", 1, "founder", time.Minute)
	require.NoError(t, err)
	rows := sqlmock.NewRows([]string{"id", "email", "username", "hashed_password", "is_active", "role", "avatar_key"}).
		AddRow(1, "alice@example.com", "alice", "x", true, "founder", "avatars/1/abc.png")
	mock.ExpectQuery(`select * from users where id=$1`).
		WithArgs(int64(1)).
		WillReturnRows(rows)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "avatars/1/abc.png", out["avatar_key"])
	assert.NotContains(t, out, "avatar_url")
}

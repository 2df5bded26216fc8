package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedling/pitch-platform/internal/auth"
	"github.com/seedling/pitch-platform/internal/client/cache"
	"github.com/seedling/pitch-platform/internal/client/session"
)

type navSpy struct {
	atLogin   bool
	redirects atomic.Int32
}

func (n *navSpy) AtLogin() bool  { return n.atLogin }
func (n *navSpy) RedirectLogin() { n.redirects.Add(1) }

func newSession(t *testing.T, c *cache.Cache) *session.Store {
	t.Helper()
	s := session.New(filepath.Join(t.TempDir(), "token"), c)
	tok, err := auth.CreateAccessToken("secret", 1, "judge", time.Hour)
	require.NoError(t, err)
	require.NoError(t, s.Login(tok))
	return s
}

func TestDoAttachesBearer(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]string{"ok": "1"})
	}))
	defer srv.Close()

	sess := newSession(t, nil)
	c := New(srv.URL, sess, nil)

	var out map[string]string
	require.NoError(t, c.Get(context.Background(), "/x", &out))
	assert.Equal(t, "Bearer "+sess.Token(), got)
}

func TestAnonymousRequestHasNoBearer(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, session.New(filepath.Join(t.TempDir(), "t"), nil), nil)
	require.NoError(t, c.Do(context.Background(), http.MethodGet, "/x", nil, nil))
	assert.Empty(t, got)
}

func TestUnauthorizedForcesSingleLogoutAndRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	reqCache := cache.New()
	sess := newSession(t, reqCache)
	nav := &navSpy{}
	c := New(srv.URL, sess, nav)

	err := c.Get(context.Background(), "/judging/assignments", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.False(t, sess.Authenticated())
	assert.Equal(t, int32(1), nav.redirects.Load())

	// A second rejected call must not stack another redirect.
	_ = c.Get(context.Background(), "/competitions", nil)
	assert.Equal(t, int32(1), nav.redirects.Load())
}

func TestUnauthorizedOnLoginPathIsPlainError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Incorrect username/email or password"})
	}))
	defer srv.Close()

	sess := newSession(t, nil)
	nav := &navSpy{}
	c := New(srv.URL, sess, nav)

	err := c.Login(context.Background(), "alice", "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Incorrect username/email or password", apiErr.Detail)

	// Failed login tears nothing down.
	assert.True(t, sess.Authenticated())
	assert.Equal(t, int32(0), nav.redirects.Load())
}

func TestUnauthorizedWhileAtLoginSkipsRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	sess := newSession(t, nil)
	nav := &navSpy{atLogin: true}
	c := New(srv.URL, sess, nav)

	_ = c.Get(context.Background(), "/users/me", nil)
	assert.False(t, sess.Authenticated())
	assert.Equal(t, int32(0), nav.redirects.Load())
}

func TestDecodeStringDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Competition is full"})
	}))
	defer srv.Close()

	c := New(srv.URL, newSession(t, nil), nil)
	err := c.Post(context.Background(), "/submissions", map[string]any{}, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Competition is full", apiErr.Detail)
	assert.Equal(t, "Competition is full", apiErr.Error())
}

func TestDecodeFieldErrorDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":[{"loc":["body","title"],"msg":"field required"},{"loc":["body","deadline"],"msg":"invalid datetime"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, newSession(t, nil), nil)
	err := c.Post(context.Background(), "/competitions", map[string]any{}, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "field required", apiErr.Fields["title"])
	assert.Equal(t, "invalid datetime", apiErr.Fields["deadline"])
	assert.Contains(t, apiErr.Detail, "title: field required")
}

func TestSuccessfulLoginResetsRedirectGuard(t *testing.T) {
	tok, err := auth.CreateAccessToken("secret", 2, "judge", time.Hour)
	require.NoError(t, err)
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": tok, "token_type": "bearer"})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sess := newSession(t, nil)
	nav := &navSpy{}
	c := New(srv.URL, sess, nav)

	_ = c.Get(context.Background(), "/users/me", nil)
	require.Equal(t, int32(1), nav.redirects.Load())

	require.NoError(t, c.Login(context.Background(), "alice", "pw"))
	_ = c.Get(context.Background(), "/users/me", nil)
	assert.Equal(t, int32(2), nav.redirects.Load())
}

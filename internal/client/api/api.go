package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/seedling/pitch-platform/internal/client/session"
	"github.com/seedling/pitch-platform/internal/schemas"
)

const loginPath = "/auth/login"

// Navigator is how the client asks the surrounding app where it is and to
// move to the login screen. The CLI implements it trivially.
type Navigator interface {
	AtLogin() bool
	RedirectLogin()
}

// APIError is a 4xx/5xx response decoded from the server's detail envelope.
type APIError struct {
	Status int
	Detail string
	Fields map[string]string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// Client wraps HTTP calls to the platform API. It attaches the session's
// bearer token and turns an unexpected 401 into a single forced logout plus
// redirect, never a loop.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Session *session.Store
	Nav     Navigator

	redirected atomic.Bool
}

func New(baseURL string, sess *session.Store, nav Navigator) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Session: sess,
		Nav:     nav,
	}
}

// Login authenticates and stores the issued token. A 401 here is an
// ordinary error shown next to the form, not a session teardown.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var tok schemas.Token
	err := c.Do(ctx, http.MethodPost, loginPath, schemas.LoginRequest{
		Username: username,
		Password: password,
	}, &tok)
	if err != nil {
		return err
	}
	if err := c.Session.Login(tok.AccessToken); err != nil {
		return err
	}
	c.redirected.Store(false)
	return nil
}

// Logout clears the session and its cache.
func (c *Client) Logout() {
	c.Session.Logout()
}

// Do performs one request. body is JSON-encoded when non-nil; a 2xx
// response is decoded into out when out is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Session.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && path != loginPath {
		c.forceLogout()
		return &APIError{Status: resp.StatusCode, Detail: "Session expired. Please log in again"}
	}
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, path, body, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// forceLogout tears the session down and redirects to login at most once.
// Already being at login, or having redirected already, suppresses the
// callback so rejected background calls cannot stack redirects.
func (c *Client) forceLogout() {
	c.Session.Logout()
	if c.Nav == nil || c.Nav.AtLogin() {
		return
	}
	if c.redirected.CompareAndSwap(false, true) {
		c.Nav.RedirectLogin()
	}
}

// detailEnvelope matches both shapes the server emits: a plain message or a
// list of field violations.
type detailEnvelope struct {
	Detail json.RawMessage `json:"detail"`
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apiErr
	}
	var env detailEnvelope
	if json.Unmarshal(raw, &env) != nil || len(env.Detail) == 0 {
		return apiErr
	}

	var msg string
	if json.Unmarshal(env.Detail, &msg) == nil {
		apiErr.Detail = msg
		return apiErr
	}
	var fields []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if json.Unmarshal(env.Detail, &fields) == nil {
		apiErr.Fields = make(map[string]string, len(fields))
		var parts []string
		for _, f := range fields {
			name := "body"
			if len(f.Loc) > 0 {
				name = fmt.Sprint(f.Loc[len(f.Loc)-1])
			}
			apiErr.Fields[name] = f.Msg
			parts = append(parts, name+": "+f.Msg)
		}
		apiErr.Detail = strings.Join(parts, "; ")
	}
	return apiErr
}

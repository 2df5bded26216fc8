package guard

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedling/pitch-platform/internal/auth"
	"github.com/seedling/pitch-platform/internal/client/session"
	"github.com/seedling/pitch-platform/internal/schemas"
)

func sessionWithRole(t *testing.T, role string) *session.Store {
	t.Helper()
	s := session.New(filepath.Join(t.TempDir(), "token"), nil)
	tok, err := auth.CreateAccessToken("secret", 5, role, time.Hour)
	require.NoError(t, err)
	require.NoError(t, s.Login(tok))
	return s
}

func TestRequireAnonymousRedirects(t *testing.T) {
	g := New(session.New(filepath.Join(t.TempDir(), "token"), nil))
	d := g.Require()
	assert.False(t, d.Allowed)
	assert.True(t, d.RedirectLogin)
	assert.Nil(t, d.Denied)
}

func TestRequireAuthenticatedAllows(t *testing.T) {
	g := New(sessionWithRole(t, "founder"))
	d := g.Require()
	assert.True(t, d.Allowed)
	assert.False(t, d.RedirectLogin)
}

func TestRequireRoleAnonymousRedirectsNotDenies(t *testing.T) {
	g := New(session.New(filepath.Join(t.TempDir(), "token"), nil))
	d := g.RequireRole(schemas.RoleAdmin)
	assert.True(t, d.RedirectLogin)
	assert.Nil(t, d.Denied)
}

func TestRequireRoleMatch(t *testing.T) {
	g := New(sessionWithRole(t, "judge"))
	assert.True(t, g.RequireRole(schemas.RoleJudge).Allowed)
	assert.True(t, g.RequireRole(schemas.RoleJudge, schemas.RoleAdmin).Allowed)
}

func TestRequireRoleMismatchCarriesContext(t *testing.T) {
	g := New(sessionWithRole(t, "founder"))
	d := g.RequireRole(schemas.RoleJudge, schemas.RoleAdmin)

	assert.False(t, d.Allowed)
	assert.False(t, d.RedirectLogin)
	require.NotNil(t, d.Denied)
	assert.Equal(t, []schemas.UserRole{schemas.RoleJudge, schemas.RoleAdmin}, d.Denied.Required)
	assert.Equal(t, schemas.RoleFounder, d.Denied.Actual)
	assert.Equal(t, "/dashboard", d.Denied.HomePath)
}

func TestDeniedHomePathFollowsRole(t *testing.T) {
	g := New(sessionWithRole(t, "judge"))
	d := g.RequireRole(schemas.RoleAdmin)
	require.NotNil(t, d.Denied)
	assert.Equal(t, "/judge", d.Denied.HomePath)
}

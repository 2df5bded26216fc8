package guard

import (
	"fmt"

	"github.com/seedling/pitch-platform/internal/client/session"
	"github.com/seedling/pitch-platform/internal/schemas"
)

// Decision is the guard's verdict for a protected view. Exactly one of the
// outcomes applies; there is no silent grant.
type Decision struct {
	Allowed       bool
	RedirectLogin bool
	Denied        *Denial
}

// Denial carries what the view needed versus what the session has, plus
// where to send the user instead.
type Denial struct {
	Required []schemas.UserRole
	Actual   schemas.UserRole
	HomePath string
}

func (d *Denial) Error() string {
	return fmt.Sprintf("access denied: requires %v, session role is %s", d.Required, d.Actual)
}

// Guard decides access from the session store alone.
type Guard struct {
	Session *session.Store
}

func New(sess *session.Store) *Guard {
	return &Guard{Session: sess}
}

// Require admits any authenticated session; anonymous gets a login redirect.
func (g *Guard) Require() Decision {
	if !g.Session.Authenticated() {
		return Decision{RedirectLogin: true}
	}
	return Decision{Allowed: true}
}

// RequireRole admits an authenticated session holding one of the roles.
// The wrong role is a denial with the session's own home path, not a
// login redirect.
func (g *Guard) RequireRole(roles ...schemas.UserRole) Decision {
	if !g.Session.Authenticated() {
		return Decision{RedirectLogin: true}
	}
	actual := g.Session.Role()
	for _, role := range roles {
		if actual == role {
			return Decision{Allowed: true}
		}
	}
	return Decision{Denied: &Denial{
		Required: roles,
		Actual:   actual,
		HomePath: actual.HomePath(),
	}}
}

package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/seedling/pitch-platform/internal/auth"
	"github.com/seedling/pitch-platform/internal/db"
	"github.com/seedling/pitch-platform/internal/schemas"
)

type ctxKey int

const userKey ctxKey = 0

// currentUser returns the authenticated user placed by Authenticate.
func currentUser(r *http.Request) *db.User {
	u, _ := r.Context().Value(userKey).(*db.User)
	return u
}

// Authenticate verifies the bearer token and loads the user. 401 carries the
// detail envelope so the client can tear the session down.
func (s *Server) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		claims, err := auth.DecodeAccessToken(s.Cfg.JWTSecret, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		var user db.User
		if err := s.DB.GetContext(r.Context(), &user, `select * from users where id=$1`, userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				writeDetail(w, http.StatusNotFound, "User not found")
				return
			}
			writeDetail(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !user.IsActive {
			writeDetail(w, http.StatusUnauthorized, "Inactive user")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, &user)))
	})
}

// RequireRole gates a route on one of the allowed roles, mirroring the guard
// on the client side: wrong role is a 403 naming the required roles.
func RequireRole(roles ...schemas.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := currentUser(r)
			if user == nil {
				writeDetail(w, http.StatusUnauthorized, "Not authenticated")
				return
			}
			for _, role := range roles {
				if schemas.UserRole(user.Role) == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			names := make([]string, len(roles))
			for i, role := range roles {
				names[i] = string(role)
			}
			writeDetail(w, http.StatusForbidden,
				fmt.Sprintf("Access denied. Required role(s): %s", strings.Join(names, ", ")))
		})
	}
}

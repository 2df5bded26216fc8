package httpapi

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/seedling/pitch-platform/internal/auth"
	"github.com/seedling/pitch-platform/internal/db"
	"github.com/seedling/pitch-platform/internal/schemas"
	"github.com/seedling/pitch-platform/internal/worker"
)

const resetTokenTTL = time.Hour

// login authenticates by username or email, case-insensitive.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req schemas.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	handle := strings.ToLower(strings.TrimSpace(req.Username))

	var user db.User
	err := s.DB.GetContext(r.Context(), &user,
		`select * from users where lower(username)=$1 or lower(email)=$1`, handle)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !auth.VerifyPassword(req.Password, user.HashedPassword)) {
		writeDetail(w, http.StatusUnauthorized, "Incorrect username/email or password")
		return
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !user.IsActive {
		writeDetail(w, http.StatusBadRequest, "Inactive user")
		return
	}

	token, err := auth.CreateAccessToken(s.Cfg.JWTSecret, user.ID, user.Role, s.Cfg.AccessTokenExpiry)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, schemas.Token{AccessToken: token, TokenType: "bearer"})
}

// requestPasswordReset always answers success so email addresses cannot be
// enumerated. The reset email goes out through the worker.
func (s *Server) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req schemas.PasswordResetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	reply := schemas.Message{Message: "If that email exists, a reset link has been sent"}

	var user db.User
	err := s.DB.GetContext(r.Context(), &user,
		`select * from users where lower(email)=$1`, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusOK, reply)
		return
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	resetToken := uuid.NewString()
	_, err = s.DB.ExecContext(r.Context(),
		`insert into password_reset_tokens(user_id, token_hash, expires_at) values($1,$2,$3)`,
		user.ID, auth.HashToken(resetToken), time.Now().UTC().Add(resetTokenTTL))
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	task := worker.NewPasswordResetTask(worker.PasswordResetPayload{
		Email:      user.Email,
		Username:   user.Username,
		ResetToken: resetToken,
	})
	if _, err := s.Asynq.Enqueue(task, asynq.MaxRetry(0)); err != nil {
		s.Log.Error("enqueue password reset email", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req schemas.PasswordReset
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.NewPassword) < 8 {
		writeDetail(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	var tok db.PasswordResetToken
	err := s.DB.GetContext(r.Context(), &tok,
		`select * from password_reset_tokens where token_hash=$1 and used=false and expires_at > now()`,
		auth.HashToken(req.Token))
	if errors.Is(err, sql.ErrNoRows) {
		writeDetail(w, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	hashed, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	err = db.WithTx(r.Context(), s.DB, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(r.Context(),
			`update users set hashed_password=$1, updated_at=now() where id=$2`, hashed, tok.UserID); err != nil {
			return err
		}
		_, err := tx.ExecContext(r.Context(),
			`update password_reset_tokens set used=true where id=$1`, tok.ID)
		return err
	})
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, schemas.Message{Message: "Password reset successfully"})
}

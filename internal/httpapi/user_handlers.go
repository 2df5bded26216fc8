package httpapi

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/seedling/pitch-platform/internal/auth"
	"github.com/seedling/pitch-platform/internal/db"
	"github.com/seedling/pitch-platform/internal/schemas"
	"github.com/seedling/pitch-platform/internal/storage"
)

func userOut(u *db.User) schemas.UserOut {
	return schemas.UserOut{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		Role:      schemas.UserRole(u.Role),
		IsActive:  u.IsActive,
		AvatarKey: u.AvatarKey.String,
		CreatedAt: u.CreatedAt,
	}
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req schemas.UserCreate
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" || req.Username == "" {
		writeDetail(w, http.StatusBadRequest, "Email and username are required")
		return
	}
	if len(req.Password) < 8 {
		writeDetail(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	var exists int
	if err := s.DB.GetContext(r.Context(), &exists,
		`select count(1) from users where lower(email)=$1 or lower(username)=$2`,
		strings.ToLower(req.Email), strings.ToLower(req.Username)); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if exists > 0 {
		writeDetail(w, http.StatusBadRequest, "Email or username already registered")
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	var user db.User
	err = s.DB.GetContext(r.Context(), &user,
		`insert into users(email, username, hashed_password, role) values($1,$2,$3,'founder') returning *`,
		req.Email, req.Username, hashed)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, userOut(&user))
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userOut(currentUser(r)))
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var user db.User
	err := s.DB.GetContext(r.Context(), &user, `select * from users where id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, userOut(&user))
}

func (s *Server) updateMe(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	var req schemas.UserUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email != nil {
		newEmail := strings.ToLower(strings.TrimSpace(*req.Email))
		if newEmail != strings.ToLower(user.Email) {
			// Rebinding the account email needs the current password.
			if req.CurrentPassword == nil || *req.CurrentPassword == "" {
				writeDetail(w, http.StatusBadRequest, "Current password is required to change email")
				return
			}
			if !auth.VerifyPassword(*req.CurrentPassword, user.HashedPassword) {
				writeDetail(w, http.StatusBadRequest, "Current password is incorrect")
				return
			}
			var taken int
			if err := s.DB.GetContext(r.Context(), &taken,
				`select count(1) from users where lower(email)=$1 and id != $2`, newEmail, user.ID); err != nil {
				writeDetail(w, http.StatusInternalServerError, err.Error())
				return
			}
			if taken > 0 {
				writeDetail(w, http.StatusBadRequest, "Email already registered")
				return
			}
		}
		user.Email = newEmail
	}
	if req.Username != nil {
		newUsername := strings.ToLower(strings.TrimSpace(*req.Username))
		if newUsername != strings.ToLower(user.Username) {
			var taken int
			if err := s.DB.GetContext(r.Context(), &taken,
				`select count(1) from users where lower(username)=$1 and id != $2`, newUsername, user.ID); err != nil {
				writeDetail(w, http.StatusInternalServerError, err.Error())
				return
			}
			if taken > 0 {
				writeDetail(w, http.StatusBadRequest, "Username already taken")
				return
			}
		}
		user.Username = newUsername
	}
	if req.Password != nil {
		if len(*req.Password) < 8 {
			writeDetail(w, http.StatusBadRequest, "Password must be at least 8 characters")
			return
		}
		hashed, err := auth.HashPassword(*req.Password)
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, err.Error())
			return
		}
		user.HashedPassword = hashed
	}
	_, err := s.DB.ExecContext(r.Context(),
		`update users set email=$1, username=$2, hashed_password=$3, updated_at=now() where id=$4`,
		user.Email, user.Username, user.HashedPassword, user.ID)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, userOut(user))
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	query := `select * from users order by id`
	args := []any{}
	if role := r.URL.Query().Get("role"); role != "" {
		query = `select * from users where role=$1 order by id`
		args = append(args, role)
	}
	var users []db.User
	if err := s.DB.SelectContext(r.Context(), &users, query, args...); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]schemas.UserOut, len(users))
	for i := range users {
		out[i] = userOut(&users[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) updateUserRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req struct {
		Role schemas.UserRole `json:"role"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !req.Role.Valid() {
		writeDetail(w, http.StatusBadRequest, "Invalid role. Must be one of: founder, judge, admin")
		return
	}
	var user db.User
	err := s.DB.GetContext(r.Context(), &user,
		`update users set role=$1, updated_at=now() where id=$2 returning *`, string(req.Role), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, userOut(&user))
}

func (s *Server) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if err := storage.ValidateImage(contentType, header.Size); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	key := storage.AvatarKey(user.ID, header.Filename)
	if err := s.S3.Put(r.Context(), key, contentType, file, map[string]string{
		"original_filename": storage.SanitizeFilename(header.Filename),
	}); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := s.DB.ExecContext(r.Context(),
		`update users set avatar_key=$1, updated_at=now() where id=$2`, key, user.ID); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	user.AvatarKey = sql.NullString{String: key, Valid: true}
	writeJSON(w, http.StatusOK, userOut(user))
}

func (s *Server) avatarURL(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if !user.AvatarKey.Valid {
		writeDetail(w, http.StatusNotFound, "No avatar set")
		return
	}
	url, expires, err := s.S3.SignedGetURL(r.Context(), user.AvatarKey.String, storage.SignedURLTTL)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, schemas.SignedURLOut{URL: url, ExpiresAt: expires})
}

func (s *Server) deleteAvatar(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user.AvatarKey.Valid {
		if err := s.S3.Delete(r.Context(), user.AvatarKey.String); err != nil {
			writeDetail(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if _, err := s.DB.ExecContext(r.Context(),
		`update users set avatar_key=null, updated_at=now() where id=$1`, user.ID); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package adapthttp

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"fitlog/internal/app"
	"fitlog/internal/domain"
)

type profileResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatarUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Server) profile(u *domain.User) profileResponse {
	return profileResponse{
		ID:        u.ID,
		Username:  u.Username,
		Name:      u.Name,
		Email:     u.Email,
		AvatarURL: s.avatars.URL(u),
		CreatedAt: u.CreatedAt,
	}
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.profile(userFromContext(r)))
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)

	var req struct {
		Name  *string `json:"name"`
		Email *string `json:"email"`
	}
	if err := parseJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	ctx := r.Context()
	if err := s.authSvc.UpdateProfile(ctx, user.ID, domain.ProfileUpdate{Name: req.Name, Email: req.Email}); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	updated, err := s.authSvc.Profile(ctx, user.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.profile(updated))
}

func (s *Server) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)

	r.Body = http.MaxBytesReader(w, r.Body, app.MaxAvatarBytes)
	if err := r.ParseMultipartForm(app.MaxAvatarBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if !errors.As(err, &tooLarge) {
			err = fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		s.writeServiceError(w, r, err)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("avatar")
	if err != nil {
		s.writeServiceError(w, r, fmt.Errorf("%w: avatar file is required", domain.ErrValidation))
		return
	}
	defer func() { _ = file.Close() }()

	if _, err := s.avatars.Upload(r.Context(), user.ID, header.Filename, file); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	updated, err := s.authSvc.Profile(r.Context(), user.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.profile(updated))
}

func (s *Server) handleAvatar(w http.ResponseWriter, r *http.Request) {
	rc, err := s.avatars.Open(r.Context(), r.PathValue("ref"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer func() { _ = rc.Close() }()

	// References are unique per upload, so the image never changes.
	w.Header().Set("Cache-Control", "private, max-age=604800, immutable")
	w.Header().Set("Content-Type", "image/png")
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("avatar copy interrupted", "ref", r.PathValue("ref"), "err", err)
	}
}

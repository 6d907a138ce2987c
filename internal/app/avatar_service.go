package app

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"fitlog/internal/domain"
	"fitlog/internal/gravatar"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	// DefaultAvatarSize is the edge length of stored avatar thumbnails.
	DefaultAvatarSize = 256
	// MaxAvatarBytes caps avatar uploads.
	MaxAvatarBytes = 2 << 20
	// MaxAvatarDimension caps the declared width and height of an upload,
	// checked before any pixels are decoded.
	MaxAvatarDimension = 4096
)

var (
	avatarExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true}
	avatarRefPattern = regexp.MustCompile(`^user_[0-9]+_[0-9a-f-]{36}\.png$`)
)

// AvatarService stores profile pictures and resolves avatar URLs.
type AvatarService struct {
	store    domain.AvatarStore
	users    domain.UserRepository
	size     int
	gravatar gravatar.Options
}

// NewAvatarService creates an AvatarService. A non-positive size falls back
// to DefaultAvatarSize.
func NewAvatarService(store domain.AvatarStore, users domain.UserRepository, size int, g gravatar.Options) *AvatarService {
	if size <= 0 {
		size = DefaultAvatarSize
	}
	return &AvatarService{store: store, users: users, size: size, gravatar: g}
}

// Upload decodes an uploaded picture, crops it to a square PNG thumbnail,
// stores it and points userID's profile at it. It returns the new reference.
func (s *AvatarService) Upload(ctx context.Context, userID int64, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !avatarExtensions[ext] {
		return "", fmt.Errorf("%w: avatar must be a png, jpg, jpeg or gif file", domain.ErrValidation)
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxAvatarBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > MaxAvatarBytes {
		return "", fmt.Errorf("%w: avatar exceeds %d bytes", domain.ErrValidation, MaxAvatarBytes)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: unreadable image: %v", domain.ErrValidation, err)
	}
	if cfg.Width > MaxAvatarDimension || cfg.Height > MaxAvatarDimension {
		return "", fmt.Errorf("%w: avatar is %dx%d, limit is %dx%d", domain.ErrValidation,
			cfg.Width, cfg.Height, MaxAvatarDimension, MaxAvatarDimension)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: unreadable image: %v", domain.ErrValidation, err)
	}
	thumb := imaging.Fill(img, s.size, s.size, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.PNG); err != nil {
		return "", err
	}

	ref := fmt.Sprintf("user_%d_%s.png", userID, uuid.NewString())
	if err := s.store.Put(ctx, ref, &buf, "image/png"); err != nil {
		return "", fmt.Errorf("store avatar: %w", err)
	}
	if err := s.users.UpdateProfile(ctx, userID, domain.ProfileUpdate{AvatarRef: &ref}); err != nil {
		return "", err
	}
	return ref, nil
}

// Open returns the stored PNG for ref.
func (s *AvatarService) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if !avatarRefPattern.MatchString(ref) {
		return nil, domain.ErrNotFound
	}
	return s.store.Open(ctx, ref)
}

// URL returns the URL a client should load u's avatar from, falling back to
// gravatar, or "" when there is nothing to show.
func (s *AvatarService) URL(u *domain.User) string {
	if u == nil {
		return ""
	}
	if u.AvatarRef != "" {
		return "/api/avatars/" + u.AvatarRef
	}
	return gravatar.URL(u.Email, s.gravatar)
}

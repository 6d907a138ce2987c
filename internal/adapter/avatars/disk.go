// Package avatars stores profile picture blobs on local disk or in an
// S3-compatible bucket.
package avatars

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"fitlog/internal/domain"
)

var (
	_ domain.AvatarStore = (*DiskStore)(nil)
	_ domain.AvatarStore = (*S3Store)(nil)
)

// DiskStore keeps avatars as files in a single directory.
type DiskStore struct {
	dir string
}

// NewDiskStore creates dir if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create avatar dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

func (s *DiskStore) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("%w: bad avatar key %q", domain.ErrValidation, key)
	}
	return filepath.Join(s.dir, key), nil
}

// Put writes r to key via a temp file and rename, so readers never see a
// partial image.
func (s *DiskStore) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	dst, err := s.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// Open returns the file stored under key.
func (s *DiskStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	f, err := os.Open(p) //nolint:gosec // key is a bare file name
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	return f, err
}

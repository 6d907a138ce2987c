package domain

import (
	"context"
	"io"
)

// AvatarStore is the port for profile picture blobs. Open returns ErrNotFound
// for unknown keys.
type AvatarStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

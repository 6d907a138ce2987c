// Package redisstore keeps login sessions in Redis so several fitlog instances can
// share them. Keys expire on their own, so DeleteExpired has nothing to do.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"fitlog/internal/domain"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "fitlog:session:"

var _ domain.SessionRepository = (*SessionRepo)(nil)

// SessionRepo stores each session as a hash with a TTL matching its expiry.
type SessionRepo struct {
	client *redis.Client
}

// Open parses a redis:// URL, connects and pings.
func Open(ctx context.Context, url string) (*SessionRepo, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client), nil
}

// New wraps an existing client.
func New(client *redis.Client) *SessionRepo {
	return &SessionRepo{client: client}
}

// Close closes the client.
func (r *SessionRepo) Close() error {
	return r.client.Close()
}

func key(token string) string {
	return keyPrefix + token
}

// Create stores a session. A session that is already expired is not stored.
func (r *SessionRepo) Create(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return r.client.Del(ctx, key(token)).Err()
	}

	now := time.Now().UTC()
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key(token),
			"user_id", userID,
			"expires_at", expiresAt.UTC().UnixNano(),
			"created_at", now.UnixNano(),
		)
		pipe.Expire(ctx, key(token), ttl)
		return nil
	})
	return err
}

// GetByToken retrieves a session by token, or nil if it is unknown or has
// expired out of Redis.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	fields, err := r.client.HGetAll(ctx, key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	userID, err := strconv.ParseInt(fields["user_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("session %s: bad user_id: %w", token, err)
	}
	expires, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("session %s: bad expires_at: %w", token, err)
	}
	created, _ := strconv.ParseInt(fields["created_at"], 10, 64)

	return &domain.Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: time.Unix(0, expires).UTC(),
		CreatedAt: time.Unix(0, created).UTC(),
	}, nil
}

// Delete deletes a session by token.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	return r.client.Del(ctx, key(token)).Err()
}

// DeleteExpired is a no-op; Redis evicts expired keys itself.
func (r *SessionRepo) DeleteExpired(ctx context.Context) error {
	return nil
}

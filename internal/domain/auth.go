// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"time"
)

// User represents an account holder.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	AvatarRef    string    `json:"avatarRef,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewUser carries the fields needed to create an account.
type NewUser struct {
	Username     string
	PasswordHash string
	Name         string
	Email        string
}

// ProfileUpdate is a partial profile change. Nil fields are left untouched.
type ProfileUpdate struct {
	Name      *string
	Email     *string
	AvatarRef *string
}

// Empty reports whether the update would change nothing.
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Email == nil && p.AvatarRef == nil
}

// Session represents an active user session.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserRepository defines the port for user persistence operations.
//
// Create must detect duplicate usernames through the store's own uniqueness
// guarantee and report them as ErrConflict. Lookups return (nil, nil) when the
// user does not exist.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, u NewUser) (*User, error)
	UpdateProfile(ctx context.Context, id int64, p ProfileUpdate) error
	Count(ctx context.Context) (int, error)
}

// SessionRepository defines the port for session persistence operations.
// GetByToken returns (nil, nil) for unknown tokens and Delete is idempotent.
type SessionRepository interface {
	Create(ctx context.Context, userID int64, token string, expiresAt time.Time) error
	GetByToken(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context) error
}

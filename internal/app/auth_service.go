// Package app holds the application services and business logic.
package app

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"fitlog/internal/domain"

	"github.com/charmbracelet/log"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials indicates that the provided username or password was incorrect.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrAuthRequired indicates that the request carries no valid identity.
	ErrAuthRequired = errors.New("authentication required")
	// ErrSessionNotFound indicates that the requested session does not exist.
	ErrSessionNotFound = fmt.Errorf("%w: session not found", ErrAuthRequired)
	// ErrSessionExpired indicates that the session has expired.
	ErrSessionExpired = fmt.Errorf("%w: session expired", ErrAuthRequired)
	// ErrUsernameTaken indicates a registration for an existing username.
	ErrUsernameTaken = fmt.Errorf("%w: username is already taken", domain.ErrConflict)
	// ErrRegistrationClosed indicates that self-service sign up is disabled.
	ErrRegistrationClosed = errors.New("registration is closed")
	// ErrPasswordAccount indicates an external identity that names an account
	// created with a password. Such accounts are never linked.
	ErrPasswordAccount = fmt.Errorf("%w: username belongs to a password account", domain.ErrConflict)
)

// fallbackDummyHash is used when the per-service dummy hash cannot be generated.
const fallbackDummyHash = "$2a$10$.vGA1O9wmRjrwAVXD98HNOgsNpDczlqm3Jq7KnEd1rVAGv3Fykk1a"

var hashPassword = bcrypt.GenerateFromPassword

// DefaultSessionTTL is how long a session stays valid after login.
const DefaultSessionTTL = 24 * time.Hour

// AuthService handles credentials, profiles and session management.
type AuthService struct {
	users    domain.UserRepository
	sessions domain.SessionRepository

	ttl              time.Duration
	openRegistration bool

	dummyOnce sync.Once
	dummyHash []byte
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithSessionTTL overrides DefaultSessionTTL.
func WithSessionTTL(d time.Duration) AuthOption {
	return func(s *AuthService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithRegistration toggles self-service registration. When closed, only the
// very first account can be created through Register.
func WithRegistration(open bool) AuthOption {
	return func(s *AuthService) { s.openRegistration = open }
}

// NewAuthService creates a new authentication service.
func NewAuthService(users domain.UserRepository, sessions domain.SessionRepository, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:            users,
		sessions:         sessions,
		ttl:              DefaultSessionTTL,
		openRegistration: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionTTL returns the configured session lifetime.
func (s *AuthService) SessionTTL() time.Duration {
	return s.ttl
}

// RegistrationOpen reports whether Register will currently accept new accounts.
func (s *AuthService) RegistrationOpen(ctx context.Context) (bool, error) {
	if s.openRegistration {
		return true, nil
	}
	count, err := s.users.Count(ctx)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// Register creates a new account. Duplicate usernames are rejected by the
// repository's uniqueness constraint and surface as ErrUsernameTaken.
func (s *AuthService) Register(ctx context.Context, username, password, name, email string) (*domain.User, error) {
	open, err := s.RegistrationOpen(ctx)
	if err != nil {
		return nil, err
	}
	if !open {
		return nil, ErrRegistrationClosed
	}
	return s.CreateUser(ctx, username, password, name, email)
}

// CreateUser creates an account regardless of the registration setting.
func (s *AuthService) CreateUser(ctx context.Context, username, password, name, email string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrValidation)
	}

	hash, err := hashPassword([]byte(password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, fmt.Errorf("%w: password is too long", domain.ErrValidation)
	}
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, domain.NewUser{
		Username:     username,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(name),
		Email:        strings.TrimSpace(email),
	})
	if errors.Is(err, domain.ErrConflict) {
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, err
	}
	log.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Authenticate verifies a username/password pair. Unknown users, wrong
// passwords and password-less SSO accounts all yield ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == "" {
		// Spend the same bcrypt work as a real comparison.
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates a user and creates a session, replacing previousToken
// if the browser already held one.
func (s *AuthService) Login(ctx context.Context, username, password, previousToken string) (string, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return "", err
	}
	return s.StartSession(ctx, user.ID, previousToken)
}

// StartSession issues a new session token for userID. A non-empty
// previousToken is invalidated first.
func (s *AuthService) StartSession(ctx context.Context, userID int64, previousToken string) (string, error) {
	if previousToken != "" {
		if err := s.sessions.Delete(ctx, previousToken); err != nil {
			return "", err
		}
	}

	token, err := generateToken()
	if err != nil {
		return "", err
	}

	if err := s.sessions.Create(ctx, userID, token, time.Now().Add(s.ttl)); err != nil {
		return "", err
	}
	return token, nil
}

// Logout invalidates a session. Unknown or empty tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}

// Resolve maps a session token to its user. Any failure to identify the
// caller wraps ErrAuthRequired.
func (s *AuthService) Resolve(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}

	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if time.Now().After(session.ExpiresAt) {
		s.dropSession(ctx, token, "expired")
		return nil, ErrSessionExpired
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.dropSession(ctx, token, "user gone")
		return nil, ErrSessionNotFound
	}
	return user, nil
}

func (s *AuthService) dropSession(ctx context.Context, token, reason string) {
	if err := s.sessions.Delete(ctx, token); err != nil {
		log.Warn("failed to delete session", "reason", reason, "err", err)
	}
}

// PruneSessions removes expired sessions from the store.
func (s *AuthService) PruneSessions(ctx context.Context) error {
	return s.sessions.DeleteExpired(ctx)
}

// Profile returns the user record for userID.
func (s *AuthService) Profile(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

// UpdateProfile applies a partial profile update for userID.
func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, p domain.ProfileUpdate) error {
	if p.Empty() {
		return nil
	}
	return s.users.UpdateProfile(ctx, userID, p)
}

// ValidateForwardAuth resolves the user named by a trusted reverse-proxy
// header, provisioning a password-less account on first sight. A name that
// belongs to a password account yields ErrPasswordAccount.
func (s *AuthService) ValidateForwardAuth(ctx context.Context, remoteUser string) (*domain.User, error) {
	if remoteUser == "" {
		return nil, ErrAuthRequired
	}
	return s.getOrProvision(ctx, remoteUser)
}

// LoginWithUser creates a session for an already authenticated user (e.g. via
// SSO). Like ValidateForwardAuth it only ever signs in password-less accounts.
func (s *AuthService) LoginWithUser(ctx context.Context, username, previousToken string) (string, error) {
	user, err := s.getOrProvision(ctx, username)
	if err != nil {
		return "", err
	}
	return s.StartSession(ctx, user.ID, previousToken)
}

func (s *AuthService) getOrProvision(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user, err = s.users.Create(ctx, domain.NewUser{Username: username})
		if errors.Is(err, domain.ErrConflict) {
			// Lost a provisioning race; the other request created the row.
			user, err = s.users.GetByUsername(ctx, username)
			if err == nil && user == nil {
				err = domain.ErrNotFound
			}
		}
		if err != nil {
			return nil, err
		}
	}

	if user.PasswordHash != "" {
		log.Warn("refusing external login for password account", "username", username)
		return nil, ErrPasswordAccount
	}
	return user, nil
}

func (s *AuthService) dummy() []byte {
	s.dummyOnce.Do(func() {
		h, err := hashPassword([]byte("fitlog-dummy-password"), bcrypt.DefaultCost)
		if err != nil {
			log.Warn("failed to generate dummy hash, using fallback", "err", err)
			h = []byte(fallbackDummyHash)
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// ConstantTimeCompare performs a constant-time comparison of two strings.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"fitlog/internal/domain"
)

// DB implements an in-memory database storage.
type DB struct {
	mu       sync.Mutex
	entries  []domain.FitnessEntry
	users    []*domain.User
	sessions map[string]*domain.Session
	avatars  map[string][]byte

	entryIDCounter int64
	userIDCounter  int64
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		sessions: make(map[string]*domain.Session),
		avatars:  make(map[string][]byte),
	}
}

// Ensure interfaces are met.
var _ domain.EntryRepository = (*DB)(nil)
var _ domain.UserRepository = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)
var _ domain.AvatarStore = (*AvatarStore)(nil)

// --- EntryRepository ---

// CreateEntry adds an entry owned by userID.
func (db *DB) CreateEntry(ctx context.Context, userID int64, in domain.EntryInput) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.entryIDCounter++
	id := db.entryIDCounter

	db.entries = append(db.entries, domain.FitnessEntry{
		ID:         id,
		UserID:     userID,
		Date:       in.Date,
		Steps:      in.Steps,
		Calories:   in.Calories,
		SleepHours: in.SleepHours,
		Notes:      in.Notes,
	})
	return id, nil
}

// ListEntries returns a copy of userID's entries inside r, oldest date first.
func (db *DB) ListEntries(ctx context.Context, userID int64, r domain.DateRange) ([]domain.FitnessEntry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	result := make([]domain.FitnessEntry, 0)
	for _, e := range db.entries {
		if e.UserID == userID && r.Contains(e.Date) {
			result = append(result, e)
		}
	}
	domain.SortEntries(result)
	return result, nil
}

// GetEntry returns a copy of the entry matching both id and userID.
func (db *DB) GetEntry(ctx context.Context, id, userID int64) (*domain.FitnessEntry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if i := db.indexOf(id, userID); i >= 0 {
		e := db.entries[i]
		return &e, nil
	}
	return nil, domain.ErrNotFound
}

// UpdateEntry replaces the mutable fields of the entry matching id and userID.
func (db *DB) UpdateEntry(ctx context.Context, id, userID int64, in domain.EntryInput) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	i := db.indexOf(id, userID)
	if i < 0 {
		return domain.ErrNotFound
	}
	e := &db.entries[i]
	e.Date = in.Date
	e.Steps = in.Steps
	e.Calories = in.Calories
	e.SleepHours = in.SleepHours
	e.Notes = in.Notes
	return nil
}

// DeleteEntry removes the entry matching id and userID, if any.
func (db *DB) DeleteEntry(ctx context.Context, id, userID int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if i := db.indexOf(id, userID); i >= 0 {
		db.entries = append(db.entries[:i], db.entries[i+1:]...)
	}
	return nil
}

func (db *DB) indexOf(id, userID int64) int {
	for i, e := range db.entries {
		if e.ID == id && e.UserID == userID {
			return i
		}
	}
	return -1
}

// --- UserRepository ---

// GetByUsername retrieves a user by username.
func (db *DB) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username == username {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

// GetByID retrieves a user by ID.
func (db *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if u := db.userByID(id); u != nil {
		c := *u
		return &c, nil
	}
	return nil, nil
}

// Create creates a new user. The uniqueness check and insert happen under one
// lock, so concurrent registrations cannot both succeed.
func (db *DB) Create(ctx context.Context, nu domain.NewUser) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username == nu.Username {
			return nil, domain.ErrConflict
		}
	}

	db.userIDCounter++
	u := &domain.User{
		ID:           db.userIDCounter,
		Username:     nu.Username,
		PasswordHash: nu.PasswordHash,
		Name:         nu.Name,
		Email:        nu.Email,
		CreatedAt:    time.Now().UTC(),
	}
	db.users = append(db.users, u)
	c := *u
	return &c, nil
}

// UpdateProfile applies the non-nil fields of p.
func (db *DB) UpdateProfile(ctx context.Context, id int64, p domain.ProfileUpdate) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	u := db.userByID(id)
	if u == nil {
		return domain.ErrNotFound
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.AvatarRef != nil {
		u.AvatarRef = *p.AvatarRef
	}
	return nil
}

// Count returns the total number of users.
func (db *DB) Count(ctx context.Context) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.users), nil
}

func (db *DB) userByID(id int64) *domain.User {
	for _, u := range db.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

// --- SessionRepository ---

// SessionRepo implements session persistence.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new session repository.
func (db *DB) NewSessionRepo() *SessionRepo {
	return &SessionRepo{db: db}
}

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.sessions[token] = &domain.Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

// GetByToken retrieves a session by token. Expiry is left to the caller.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if s, ok := r.db.sessions[token]; ok {
		c := *s
		return &c, nil
	}
	return nil, nil
}

// Delete deletes a session.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, token)
	return nil
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := time.Now()
	for k, v := range r.db.sessions {
		if now.After(v.ExpiresAt) {
			delete(r.db.sessions, k)
		}
	}
	return nil
}

// --- AvatarStore ---

// AvatarStore keeps avatar blobs in memory.
type AvatarStore struct {
	db *DB
}

// NewAvatarStore creates an avatar store sharing this database.
func (db *DB) NewAvatarStore() *AvatarStore {
	return &AvatarStore{db: db}
}

// Put stores the blob under key.
func (a *AvatarStore) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	a.db.avatars[key] = b
	return nil
}

// Open returns the blob stored under key.
func (a *AvatarStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	b, ok := a.db.avatars[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

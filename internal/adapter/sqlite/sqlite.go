// Package sqlite implements the domain repositories on an embedded SQLite
// file through gorm.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fitlog/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	_ domain.UserRepository    = (*Client)(nil)
	_ domain.EntryRepository   = (*Client)(nil)
	_ domain.SessionRepository = (*SessionRepo)(nil)
)

// Client wraps the gorm.DB instance.
type Client struct {
	db *gorm.DB
}

type userModel struct {
	ID           int64  `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"not null"`
	Avatar       string `gorm:"not null"`
	CreatedAt    time.Time
}

func (userModel) TableName() string { return "users" }

type entryModel struct {
	ID         int64      `gorm:"primaryKey"`
	UserID     int64      `gorm:"not null;index:idx_fitness_entries_user_date,priority:1"`
	User       *userModel `gorm:"foreignKey:UserID"`
	Date       string     `gorm:"not null;index:idx_fitness_entries_user_date,priority:2"`
	Steps      int        `gorm:"not null"`
	Calories   int        `gorm:"not null"`
	SleepHours float64    `gorm:"not null"`
	Notes      string     `gorm:"not null"`
}

func (entryModel) TableName() string { return "fitness_entries" }

type sessionModel struct {
	Token     string     `gorm:"primaryKey"`
	UserID    int64      `gorm:"not null;index"`
	User      *userModel `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	ExpiresAt time.Time  `gorm:"not null;index"`
	CreatedAt time.Time
}

func (sessionModel) TableName() string { return "sessions" }

// New opens (creating if needed) the database at path and migrates it.
func New(path string) (*Client, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// One writer at a time.
	sqlDB.SetMaxOpenConns(1)

	c := &Client{db: db}
	if err := c.Migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return c, nil
}

// Migrate creates or updates the schema.
func (c *Client) Migrate() error {
	if err := c.db.AutoMigrate(&userModel{}, &entryModel{}, &sessionModel{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// --- UserRepository ---

func (m *userModel) toDomain() *domain.User {
	return &domain.User{
		ID:           m.ID,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		Name:         m.Name,
		Email:        m.Email,
		AvatarRef:    m.Avatar,
		CreatedAt:    m.CreatedAt,
	}
}

func (c *Client) firstUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	var m userModel
	err := c.db.WithContext(ctx).Where(query, arg).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.toDomain(), nil
}

// GetByUsername retrieves a user by username.
func (c *Client) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return c.firstUser(ctx, "username = ?", username)
}

// GetByID retrieves a user by ID.
func (c *Client) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return c.firstUser(ctx, "id = ?", id)
}

// Create inserts a user, mapping a username collision to domain.ErrConflict.
func (c *Client) Create(ctx context.Context, nu domain.NewUser) (*domain.User, error) {
	m := userModel{
		Username:     nu.Username,
		PasswordHash: nu.PasswordHash,
		Name:         nu.Name,
		Email:        nu.Email,
	}
	if err := c.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isDuplicate(err) {
			return nil, domain.ErrConflict
		}
		return nil, err
	}
	return m.toDomain(), nil
}

// UpdateProfile applies the non-nil fields of p.
func (c *Client) UpdateProfile(ctx context.Context, id int64, p domain.ProfileUpdate) error {
	updates := map[string]any{}
	if p.Name != nil {
		updates["name"] = *p.Name
	}
	if p.Email != nil {
		updates["email"] = *p.Email
	}
	if p.AvatarRef != nil {
		updates["avatar"] = *p.AvatarRef
	}
	if len(updates) == 0 {
		u, err := c.GetByID(ctx, id)
		if err == nil && u == nil {
			err = domain.ErrNotFound
		}
		return err
	}

	res := c.db.WithContext(ctx).Model(&userModel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Count returns the total number of users.
func (c *Client) Count(ctx context.Context) (int, error) {
	var n int64
	if err := c.db.WithContext(ctx).Model(&userModel{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

// --- EntryRepository ---

func (m *entryModel) toDomain() domain.FitnessEntry {
	return domain.FitnessEntry{
		ID:         m.ID,
		UserID:     m.UserID,
		Date:       m.Date,
		Steps:      m.Steps,
		Calories:   m.Calories,
		SleepHours: m.SleepHours,
		Notes:      m.Notes,
	}
}

// CreateEntry adds an entry owned by userID.
func (c *Client) CreateEntry(ctx context.Context, userID int64, in domain.EntryInput) (int64, error) {
	m := entryModel{
		UserID:     userID,
		Date:       in.Date,
		Steps:      in.Steps,
		Calories:   in.Calories,
		SleepHours: in.SleepHours,
		Notes:      in.Notes,
	}
	if err := c.db.WithContext(ctx).Create(&m).Error; err != nil {
		return 0, err
	}
	return m.ID, nil
}

// ListEntries returns userID's entries inside r, oldest date first.
func (c *Client) ListEntries(ctx context.Context, userID int64, r domain.DateRange) ([]domain.FitnessEntry, error) {
	q := c.db.WithContext(ctx).Where("user_id = ?", userID)
	if r.Start != "" {
		q = q.Where("date >= ?", r.Start)
	}
	if r.End != "" {
		q = q.Where("date <= ?", r.End)
	}

	var rows []entryModel
	if err := q.Order("date ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.FitnessEntry, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

// GetEntry returns the entry matching both id and userID.
func (c *Client) GetEntry(ctx context.Context, id, userID int64) (*domain.FitnessEntry, error) {
	var m entryModel
	err := c.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e := m.toDomain()
	return &e, nil
}

// UpdateEntry replaces the mutable fields of the entry matching id and userID.
func (c *Client) UpdateEntry(ctx context.Context, id, userID int64, in domain.EntryInput) error {
	res := c.db.WithContext(ctx).Model(&entryModel{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{
			"date":        in.Date,
			"steps":       in.Steps,
			"calories":    in.Calories,
			"sleep_hours": in.SleepHours,
			"notes":       in.Notes,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteEntry removes the entry matching id and userID, if any.
func (c *Client) DeleteEntry(ctx context.Context, id, userID int64) error {
	return c.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&entryModel{}).Error
}

// --- SessionRepository ---

// SessionRepo implements session persistence on the same database.
type SessionRepo struct {
	c *Client
}

// NewSessionRepo wraps c as a SessionRepository.
func NewSessionRepo(c *Client) *SessionRepo {
	return &SessionRepo{c: c}
}

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	return r.c.db.WithContext(ctx).Create(&sessionModel{
		Token:     token,
		UserID:    userID,
		ExpiresAt: expiresAt.UTC(),
	}).Error
}

// GetByToken retrieves a session by token.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	var m sessionModel
	err := r.c.db.WithContext(ctx).Where("token = ?", token).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &domain.Session{Token: m.Token, UserID: m.UserID, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

// Delete deletes a session by token.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	return r.c.db.WithContext(ctx).Where("token = ?", token).Delete(&sessionModel{}).Error
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) error {
	return r.c.db.WithContext(ctx).Where("expires_at < ?", time.Now().UTC()).Delete(&sessionModel{}).Error
}

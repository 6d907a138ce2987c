package postgres

import (
	"context"
	"database/sql"
	"errors"

	"fitlog/internal/domain"
)

const userColumns = "id, username, password_hash, name, email, avatar, created_at"

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Name, &u.Email, &u.AvatarRef, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, dbError(err)
	}
	return &u, nil
}

// GetByUsername retrieves a user by username.
func (d *DB) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1", username))
}

// GetByID retrieves a user by ID.
func (d *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
}

// Create inserts a user. The unique index on username decides races.
func (d *DB) Create(ctx context.Context, nu domain.NewUser) (*domain.User, error) {
	u, err := scanUser(d.sql.QueryRowContext(ctx,
		"INSERT INTO users (username, password_hash, name, email) VALUES ($1, $2, $3, $4) RETURNING "+userColumns,
		nu.Username, nu.PasswordHash, nu.Name, nu.Email))
	if err != nil && isUniqueViolation(err) {
		return nil, domain.ErrConflict
	}
	return u, err
}

// UpdateProfile applies the non-nil fields of p.
func (d *DB) UpdateProfile(ctx context.Context, id int64, p domain.ProfileUpdate) error {
	res, err := d.sql.ExecContext(ctx,
		`UPDATE users SET name = COALESCE($2, name), email = COALESCE($3, email), avatar = COALESCE($4, avatar)
		 WHERE id = $1`,
		id, p.Name, p.Email, p.AvatarRef)
	if err != nil {
		return dbError(err)
	}
	return requireRow(res)
}

// Count returns the total number of users.
func (d *DB) Count(ctx context.Context) (int, error) {
	var count int
	if err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, dbError(err)
	}
	return count, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

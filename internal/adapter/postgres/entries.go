package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"fitlog/internal/domain"
)

// CreateEntry adds an entry owned by userID.
func (d *DB) CreateEntry(ctx context.Context, userID int64, in domain.EntryInput) (int64, error) {
	var id int64
	err := d.sql.QueryRowContext(ctx,
		`INSERT INTO fitness_entries (user_id, date, steps, calories, sleep_hours, notes)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		userID, in.Date, in.Steps, in.Calories, in.SleepHours, in.Notes,
	).Scan(&id)
	if err != nil {
		return 0, dbError(err)
	}
	return id, nil
}

// ListEntries returns userID's entries inside r, oldest date first.
func (d *DB) ListEntries(ctx context.Context, userID int64, r domain.DateRange) ([]domain.FitnessEntry, error) {
	var q strings.Builder
	q.WriteString("SELECT id, user_id, date, steps, calories, sleep_hours, notes FROM fitness_entries WHERE user_id = $1")
	args := []any{userID}
	if r.Start != "" {
		args = append(args, r.Start)
		q.WriteString(" AND date >= $" + strconv.Itoa(len(args)))
	}
	if r.End != "" {
		args = append(args, r.End)
		q.WriteString(" AND date <= $" + strconv.Itoa(len(args)))
	}
	q.WriteString(" ORDER BY date ASC, id ASC")

	rows, err := d.sql.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, dbError(err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]domain.FitnessEntry, 0)
	for rows.Next() {
		var e domain.FitnessEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Date, &e.Steps, &e.Calories, &e.SleepHours, &e.Notes); err != nil {
			return nil, dbError(err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err)
	}
	return out, nil
}

// GetEntry returns the entry matching both id and userID.
func (d *DB) GetEntry(ctx context.Context, id, userID int64) (*domain.FitnessEntry, error) {
	var e domain.FitnessEntry
	err := d.sql.QueryRowContext(ctx,
		"SELECT id, user_id, date, steps, calories, sleep_hours, notes FROM fitness_entries WHERE id = $1 AND user_id = $2",
		id, userID,
	).Scan(&e.ID, &e.UserID, &e.Date, &e.Steps, &e.Calories, &e.SleepHours, &e.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, dbError(err)
	}
	return &e, nil
}

// UpdateEntry replaces the mutable fields of the entry matching id and userID.
func (d *DB) UpdateEntry(ctx context.Context, id, userID int64, in domain.EntryInput) error {
	res, err := d.sql.ExecContext(ctx,
		`UPDATE fitness_entries SET date = $3, steps = $4, calories = $5, sleep_hours = $6, notes = $7
		 WHERE id = $1 AND user_id = $2`,
		id, userID, in.Date, in.Steps, in.Calories, in.SleepHours, in.Notes)
	if err != nil {
		return dbError(err)
	}
	return requireRow(res)
}

// DeleteEntry removes the entry matching id and userID, if any.
func (d *DB) DeleteEntry(ctx context.Context, id, userID int64) error {
	if _, err := d.sql.ExecContext(ctx, "DELETE FROM fitness_entries WHERE id = $1 AND user_id = $2", id, userID); err != nil {
		return dbError(err)
	}
	return nil
}

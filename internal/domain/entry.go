package domain

import (
	"context"
	"sort"
)

// FitnessEntry is a single day's record owned by one user.
type FitnessEntry struct {
	ID         int64   `json:"id"`
	UserID     int64   `json:"userId"`
	Date       string  `json:"date"`
	Steps      int     `json:"steps"`
	Calories   int     `json:"calories"`
	SleepHours float64 `json:"sleepHours"`
	Notes      string  `json:"notes"`
}

// EntryInput holds the mutable fields of an entry.
type EntryInput struct {
	Date       string
	Steps      int
	Calories   int
	SleepHours float64
	Notes      string
}

// DateRange bounds a listing by date, inclusive. Empty bounds are open.
type DateRange struct {
	Start string
	End   string
}

// Contains reports whether date falls inside the range.
func (r DateRange) Contains(date string) bool {
	if r.Start != "" && date < r.Start {
		return false
	}
	if r.End != "" && date > r.End {
		return false
	}
	return true
}

// EntryRepository is the port for fitness entry persistence. Every method is
// scoped by the owning user; an entry owned by someone else behaves exactly
// like one that does not exist.
type EntryRepository interface {
	CreateEntry(ctx context.Context, userID int64, in EntryInput) (int64, error)
	ListEntries(ctx context.Context, userID int64, r DateRange) ([]FitnessEntry, error)
	GetEntry(ctx context.Context, id, userID int64) (*FitnessEntry, error)
	UpdateEntry(ctx context.Context, id, userID int64, in EntryInput) error
	DeleteEntry(ctx context.Context, id, userID int64) error
}

// SortEntries orders entries by date ascending, keeping insertion (ID) order
// for entries on the same date.
func SortEntries(entries []FitnessEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Date != entries[j].Date {
			return entries[i].Date < entries[j].Date
		}
		return entries[i].ID < entries[j].ID
	})
}

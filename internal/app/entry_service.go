package app

import (
	"context"

	"fitlog/internal/domain"
)

// EntryService encapsulates fitness-entry use cases. Every call is scoped by
// the acting user's ID, which callers take from the resolved session.
type EntryService struct {
	repo domain.EntryRepository
}

// NewEntryService creates an EntryService backed by the given repository.
func NewEntryService(repo domain.EntryRepository) *EntryService {
	return &EntryService{repo: repo}
}

// Create stores a new entry for userID and returns its ID.
func (s *EntryService) Create(ctx context.Context, userID int64, in domain.EntryInput) (int64, error) {
	return s.repo.CreateEntry(ctx, userID, in)
}

// List returns all of userID's entries ordered by date ascending.
func (s *EntryService) List(ctx context.Context, userID int64) ([]domain.FitnessEntry, error) {
	return s.ListRange(ctx, userID, domain.DateRange{})
}

// ListRange returns userID's entries whose date falls inside r, ordered by
// date ascending.
func (s *EntryService) ListRange(ctx context.Context, userID int64, r domain.DateRange) ([]domain.FitnessEntry, error) {
	entries, err := s.repo.ListEntries(ctx, userID, r)
	if err != nil {
		return nil, err
	}
	// Stores already order rows; this pins tie-breaking to insertion order.
	domain.SortEntries(entries)
	return entries, nil
}

// Get returns one entry, or domain.ErrNotFound if it is missing or belongs to
// another user.
func (s *EntryService) Get(ctx context.Context, id, userID int64) (*domain.FitnessEntry, error) {
	return s.repo.GetEntry(ctx, id, userID)
}

// Update replaces the mutable fields of an entry owned by userID.
func (s *EntryService) Update(ctx context.Context, id, userID int64, in domain.EntryInput) error {
	return s.repo.UpdateEntry(ctx, id, userID, in)
}

// Delete removes an entry owned by userID. Missing entries are ignored.
func (s *EntryService) Delete(ctx context.Context, id, userID int64) error {
	return s.repo.DeleteEntry(ctx, id, userID)
}

// Dashboard returns the ordered entries together with their summary.
func (s *EntryService) Dashboard(ctx context.Context, userID int64) ([]domain.FitnessEntry, domain.Summary, error) {
	entries, err := s.List(ctx, userID)
	if err != nil {
		return nil, domain.Summary{}, err
	}
	return entries, domain.Summarize(entries), nil
}

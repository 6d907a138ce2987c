// Package repotest holds behavioural checks shared by every storage adapter,
// so memory, sqlite and postgres are held to the same ownership and ordering
// rules.
package repotest

import (
	"context"
	"testing"
	"time"

	"fitlog/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Users exercises a UserRepository. The repository must be empty.
func Users(t *testing.T, repo domain.UserRepository) {
	t.Helper()
	ctx := context.Background()

	u, err := repo.Create(ctx, domain.NewUser{Username: "bob", PasswordHash: "hash", Name: "Bob", Email: "bob@example.com"})
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Equal(t, "bob", u.Username)
	assert.Equal(t, "Bob", u.Name)

	_, err = repo.Create(ctx, domain.NewUser{Username: "bob", PasswordHash: "other"})
	require.ErrorIs(t, err, domain.ErrConflict)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "duplicate registration must not create a user")

	got, err := repo.GetByUsername(ctx, "bob")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	missing, err := repo.GetByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	missing, err = repo.GetByID(ctx, u.ID+1000)
	require.NoError(t, err)
	assert.Nil(t, missing)

	avatar := "user_1_x.png"
	require.NoError(t, repo.UpdateProfile(ctx, u.ID, domain.ProfileUpdate{AvatarRef: &avatar}))
	name := "Robert"
	require.NoError(t, repo.UpdateProfile(ctx, u.ID, domain.ProfileUpdate{Name: &name}))

	got, err = repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Robert", got.Name)
	assert.Equal(t, "bob@example.com", got.Email, "unset fields stay unchanged")
	assert.Equal(t, avatar, got.AvatarRef)
}

// Sessions exercises a SessionRepository.
func Sessions(t *testing.T, repo domain.SessionRepository, userID int64) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, userID, "live", time.Now().Add(time.Hour)))
	require.NoError(t, repo.Create(ctx, userID, "stale", time.Now().Add(-time.Hour)))

	s, err := repo.GetByToken(ctx, "live")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, userID, s.UserID)

	missing, err := repo.GetByToken(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.DeleteExpired(ctx))
	stale, err := repo.GetByToken(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, stale)

	require.NoError(t, repo.Delete(ctx, "live"))
	require.NoError(t, repo.Delete(ctx, "live"), "delete is idempotent")
	gone, err := repo.GetByToken(ctx, "live")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

// Entries exercises an EntryRepository with two distinct owners.
func Entries(t *testing.T, repo domain.EntryRepository, alice, bob int64) {
	t.Helper()
	ctx := context.Background()

	var ids []int64
	for _, d := range []string{"2024-01-03", "2024-01-01", "2024-01-02"} {
		id, err := repo.CreateEntry(ctx, alice, domain.EntryInput{Date: d, Steps: 1000, Calories: 100, SleepHours: 7.5, Notes: "n " + d})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	tie, err := repo.CreateEntry(ctx, alice, domain.EntryInput{Date: "2024-01-01", Notes: "second on the first"})
	require.NoError(t, err)

	bobsID, err := repo.CreateEntry(ctx, bob, domain.EntryInput{Date: "2024-01-01", Steps: 5})
	require.NoError(t, err)

	t.Run("list is date ascending and owner scoped", func(t *testing.T) {
		list, err := repo.ListEntries(ctx, alice, domain.DateRange{})
		require.NoError(t, err)
		require.Len(t, list, 4)
		assert.Equal(t, []string{"2024-01-01", "2024-01-01", "2024-01-02", "2024-01-03"}, dates(list))
		assert.Equal(t, ids[1], list[0].ID)
		assert.Equal(t, tie, list[1].ID, "ties keep insertion order")
		for _, e := range list {
			assert.Equal(t, alice, e.UserID)
		}
	})

	t.Run("list honours date range", func(t *testing.T) {
		list, err := repo.ListEntries(ctx, alice, domain.DateRange{Start: "2024-01-02", End: "2024-01-03"})
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-01-02", "2024-01-03"}, dates(list))
	})

	t.Run("get", func(t *testing.T) {
		e, err := repo.GetEntry(ctx, ids[0], alice)
		require.NoError(t, err)
		assert.Equal(t, "2024-01-03", e.Date)
		assert.Equal(t, 1000, e.Steps)
		assert.Equal(t, 100, e.Calories)
		assert.InDelta(t, 7.5, e.SleepHours, 1e-9)
		assert.Equal(t, "n 2024-01-03", e.Notes)
	})

	t.Run("foreign entries look missing", func(t *testing.T) {
		_, errForeign := repo.GetEntry(ctx, bobsID, alice)
		_, errMissing := repo.GetEntry(ctx, 999999, alice)
		require.ErrorIs(t, errForeign, domain.ErrNotFound)
		require.ErrorIs(t, errMissing, domain.ErrNotFound)

		require.ErrorIs(t, repo.UpdateEntry(ctx, bobsID, alice, domain.EntryInput{Date: "2030-01-01"}), domain.ErrNotFound)
		require.ErrorIs(t, repo.UpdateEntry(ctx, 999999, alice, domain.EntryInput{Date: "2030-01-01"}), domain.ErrNotFound)

		require.NoError(t, repo.DeleteEntry(ctx, bobsID, alice))
		still, err := repo.GetEntry(ctx, bobsID, bob)
		require.NoError(t, err)
		assert.Equal(t, "2024-01-01", still.Date, "foreign delete must not touch the row")
		assert.Equal(t, 5, still.Steps, "foreign update must not touch the row")
	})

	t.Run("update replaces fields", func(t *testing.T) {
		in := domain.EntryInput{Date: "2024-02-01", Steps: 42, Calories: 7, SleepHours: 9.25, Notes: "edited"}
		require.NoError(t, repo.UpdateEntry(ctx, ids[2], alice, in))
		// Same values again still counts as found.
		require.NoError(t, repo.UpdateEntry(ctx, ids[2], alice, in))

		e, err := repo.GetEntry(ctx, ids[2], alice)
		require.NoError(t, err)
		assert.Equal(t, in.Date, e.Date)
		assert.Equal(t, in.Steps, e.Steps)
		assert.Equal(t, in.Calories, e.Calories)
		assert.InDelta(t, in.SleepHours, e.SleepHours, 1e-9)
		assert.Equal(t, in.Notes, e.Notes)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, repo.DeleteEntry(ctx, ids[0], alice))
		require.NoError(t, repo.DeleteEntry(ctx, ids[0], alice))
		require.NoError(t, repo.DeleteEntry(ctx, 999999, alice))

		_, err := repo.GetEntry(ctx, ids[0], alice)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func dates(entries []domain.FitnessEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Date
	}
	return out
}

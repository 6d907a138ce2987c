package app_test

import (
	"context"
	"errors"
	"testing"

	"fitlog/internal/adapter/memory"
	"fitlog/internal/app"
	"fitlog/internal/domain"
)

func newEntryService(t *testing.T) *app.EntryService {
	t.Helper()
	return app.NewEntryService(memory.New())
}

func TestEntryService_ListOrdersByDate(t *testing.T) {
	ctx := context.Background()
	svc := newEntryService(t)

	for _, d := range []string{"2024-01-03", "2024-01-01", "2024-01-02"} {
		if _, err := svc.Create(ctx, 1, domain.EntryInput{Date: d}); err != nil {
			t.Fatalf("Create(%s): %v", d, err)
		}
	}

	entries, err := svc.List(ctx, 1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"2024-01-01", "2024-01-02", "2024-01-03"}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, d := range want {
		if entries[i].Date != d {
			t.Errorf("entry %d: expected %s, got %s", i, d, entries[i].Date)
		}
	}
}

func TestEntryService_OtherUsersEntriesAreInvisible(t *testing.T) {
	ctx := context.Background()
	svc := newEntryService(t)

	id, err := svc.Create(ctx, 1, domain.EntryInput{Date: "2024-01-01", Steps: 100})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Get(ctx, id, 2); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get: expected ErrNotFound, got %v", err)
	}
	if err := svc.Update(ctx, id, 2, domain.EntryInput{Date: "2024-05-05"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Update: expected ErrNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, id, 2); err != nil {
		t.Errorf("Delete: expected silent no-op, got %v", err)
	}

	others, _ := svc.List(ctx, 2)
	if len(others) != 0 {
		t.Errorf("expected user 2 to see nothing, got %d entries", len(others))
	}

	e, err := svc.Get(ctx, id, 1)
	if err != nil {
		t.Fatalf("owner Get: %v", err)
	}
	if e.Date != "2024-01-01" || e.Steps != 100 {
		t.Errorf("entry was modified by another user: %+v", e)
	}
}

func TestEntryService_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	svc := newEntryService(t)

	id, _ := svc.Create(ctx, 1, domain.EntryInput{Date: "2024-01-01", Steps: 1})
	if err := svc.Update(ctx, id, 1, domain.EntryInput{Date: "2024-01-02", Steps: 2, Notes: "walked"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	e, _ := svc.Get(ctx, id, 1)
	if e.Date != "2024-01-02" || e.Steps != 2 || e.Notes != "walked" {
		t.Errorf("unexpected entry after update: %+v", e)
	}

	if err := svc.Delete(ctx, id, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, id, 1); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if _, err := svc.Get(ctx, id, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestEntryService_Dashboard(t *testing.T) {
	ctx := context.Background()
	svc := newEntryService(t)

	inputs := []domain.EntryInput{
		{Date: "2024-01-02", Steps: 4000, Calories: 400, SleepHours: 6.5},
		{Date: "2024-01-01", Steps: 2000, Calories: 200, SleepHours: 7.83},
	}
	for _, in := range inputs {
		if _, err := svc.Create(ctx, 1, in); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	// Noise from another account.
	_, _ = svc.Create(ctx, 2, domain.EntryInput{Date: "2024-01-01", Steps: 99999})

	entries, sum, err := svc.Dashboard(ctx, 1)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if len(entries) != 2 || entries[0].Date != "2024-01-01" {
		t.Errorf("unexpected entries: %+v", entries)
	}
	if sum.Count != 2 || sum.TotalSteps != 6000 || sum.TotalCalories != 600 {
		t.Errorf("unexpected totals: %+v", sum)
	}
	if sum.AverageSleep != 7.17 {
		t.Errorf("expected average sleep 7.17, got %v", sum.AverageSleep)
	}
}

func TestEntryService_DashboardEmpty(t *testing.T) {
	entries, sum, err := newEntryService(t).Dashboard(context.Background(), 1)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if len(entries) != 0 || sum != (domain.Summary{}) {
		t.Errorf("expected empty dashboard, got %v %+v", entries, sum)
	}
}

package memory

import (
	"bytes"
	"context"
	"io"
	"testing"

	"fitlog/internal/adapter/repotest"
	"fitlog/internal/domain"
)

func TestEntryRepository(t *testing.T) {
	repotest.Entries(t, New(), 1, 2)
}

func TestUserRepository(t *testing.T) {
	repotest.Users(t, New())
}

func TestSessionRepository(t *testing.T) {
	repotest.Sessions(t, New().NewSessionRepo(), 1)
}

func TestListEntriesReturnsCopies(t *testing.T) {
	db := New()
	ctx := context.Background()

	id, err := db.CreateEntry(ctx, 1, domain.EntryInput{Date: "2024-01-01", Steps: 10})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	list, _ := db.ListEntries(ctx, 1, domain.DateRange{})
	list[0].Steps = 9999

	e, err := db.GetEntry(ctx, id, 1)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if e.Steps != 10 {
		t.Errorf("expected stored steps 10, got %d", e.Steps)
	}
}

func TestAvatarStore(t *testing.T) {
	store := New().NewAvatarStore()
	ctx := context.Background()

	if err := store.Put(ctx, "k.png", bytes.NewReader([]byte("png")), "image/png"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	rc, err := store.Open(ctx, "k.png")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close() //nolint:errcheck
	b, _ := io.ReadAll(rc)
	if string(b) != "png" {
		t.Errorf("expected png, got %q", b)
	}

	if _, err := store.Open(ctx, "missing.png"); err != domain.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

package repository

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestRepo(t *testing.T) *ActivityRepository {
	t.Helper()
	repo, err := NewActivityRepository(filepath.Join(t.TempDir(), "activity.db"))
	if err != nil {
		t.Fatalf("NewActivityRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRecordAndRecent(t *testing.T) {
	repo := newTestRepo(t)

	if err := repo.Record("whatsapp", "default", "outbound"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := repo.Record("whatsapp", "acct-2", "inbound"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	records, err := repo.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for _, record := range records {
		if record.ID == "" {
			t.Error("record should have a generated id")
		}
		if record.Channel != "whatsapp" {
			t.Errorf("channel = %q", record.Channel)
		}
	}
}

func TestCountSince(t *testing.T) {
	repo := newTestRepo(t)

	if err := repo.Record("whatsapp", "default", "outbound"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	count, err := repo.CountSince(time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("CountSince: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	count, err = repo.CountSince(time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("CountSince: %v", err)
	}
	if count != 0 {
		t.Errorf("count after future cutoff = %d, want 0", count)
	}
}

func TestCleanupBefore(t *testing.T) {
	repo := newTestRepo(t)

	if err := repo.Record("whatsapp", "default", "outbound"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	removed, err := repo.CleanupBefore(time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("CleanupBefore: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	count, err := repo.CountSince(time.Time{})
	if err != nil {
		t.Fatalf("CountSince: %v", err)
	}
	if count != 0 {
		t.Errorf("count after cleanup = %d, want 0", count)
	}
}

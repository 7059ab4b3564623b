package querylog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "logs", "test_searches.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewStoreCreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "searches.db")

	store, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNewStoreDefaultPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	store, err := NewStore("")
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("DefaultPath failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected database at %s: %v", path, err)
	}
}

func TestRecordSearchAndTotals(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	records := []struct {
		corpus string
		hits   int
	}{
		{"lassy", 10},
		{"lassy", 3},
		{"sonar", 0},
	}
	for _, r := range records {
		if err := store.RecordSearch(ctx, r.corpus, []string{"WRPE", "WSU"}, `//node[@cat="np"]`, r.hits); err != nil {
			t.Fatalf("RecordSearch failed: %v", err)
		}
	}

	totals, err := store.Totals(ctx)
	if err != nil {
		t.Fatalf("Totals failed: %v", err)
	}

	if got := totals["lassy"]; got.Searches != 2 || got.Hits != 13 {
		t.Errorf("Expected lassy {2 13}, got %+v", got)
	}
	if got := totals["sonar"]; got.Searches != 1 || got.Hits != 0 {
		t.Errorf("Expected sonar {1 0}, got %+v", got)
	}
	if _, ok := totals["cgn"]; ok {
		t.Error("Unexpected totals for a corpus that was never searched")
	}
}

func TestCountByDate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	day := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return day }
	for i := 0; i < 3; i++ {
		if err := store.RecordSearch(ctx, "lassy", nil, "//node", 1); err != nil {
			t.Fatalf("RecordSearch failed: %v", err)
		}
	}
	store.now = func() time.Time { return day.AddDate(0, 0, 1) }
	if err := store.RecordSearch(ctx, "lassy", nil, "//node", 1); err != nil {
		t.Fatalf("RecordSearch failed: %v", err)
	}

	count, err := store.CountByDate(ctx, "lassy", "2024-03-01")
	if err != nil {
		t.Fatalf("CountByDate failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 searches on 2024-03-01, got %d", count)
	}

	count, err = store.CountByDate(ctx, "lassy", "2024-01-01")
	if err != nil {
		t.Fatalf("CountByDate failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 searches on a day without searches, got %d", count)
	}
}

func TestRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.RecordSearch(ctx, "lassy", []string{"WRPE"}, "//node[@cat='np']", 5)
	_ = store.RecordSearch(ctx, "sonar", []string{"WRPE", "WSU"}, "//node[@cat='pp']", 7)
	_ = store.RecordSearch(ctx, "cgn", nil, "//node", 0)

	entries, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Corpus != "cgn" || entries[0].Components != nil {
		t.Errorf("Unexpected newest entry: %+v", entries[0])
	}
	if entries[1].Corpus != "sonar" || len(entries[1].Components) != 2 || entries[1].Hits != 7 {
		t.Errorf("Unexpected second entry: %+v", entries[1])
	}
}

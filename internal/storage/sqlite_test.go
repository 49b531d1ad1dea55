package storage

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndListDownloads(t *testing.T) {
	store := newTestStore(t)

	if err := store.RecordDownload("123", "某漫画", "100", StatusOK, "", 3*time.Second); err != nil {
		t.Fatalf("RecordDownload failed: %v", err)
	}
	if err := store.RecordDownload("456", "", "100", StatusFailed, "album not found", time.Second); err != nil {
		t.Fatalf("RecordDownload failed: %v", err)
	}

	records, err := store.RecentDownloads(10)
	if err != nil {
		t.Fatalf("RecentDownloads failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	// newest first
	if records[0].MangaID != "456" || records[1].MangaID != "123" {
		t.Errorf("order = [%s %s], want [456 123]", records[0].MangaID, records[1].MangaID)
	}
	if records[0].Status != StatusFailed || records[0].Detail != "album not found" {
		t.Errorf("failed record = %+v", records[0])
	}
	if records[1].Title != "某漫画" {
		t.Errorf("title = %q, want 某漫画", records[1].Title)
	}
	if records[1].Duration != 3*time.Second {
		t.Errorf("duration = %s, want 3s", records[1].Duration)
	}
}

func TestRecentDownloadsHonorsLimit(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		if err := store.RecordDownload("1", "", "100", StatusOK, "", 0); err != nil {
			t.Fatal(err)
		}
	}

	records, err := store.RecentDownloads(3)
	if err != nil {
		t.Fatalf("RecentDownloads failed: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("got %d records, want 3", len(records))
	}
}

func TestCountDownloads(t *testing.T) {
	store := newTestStore(t)

	total, failed, err := store.CountDownloads()
	if err != nil || total != 0 || failed != 0 {
		t.Fatalf("empty store counts = (%d, %d, %v)", total, failed, err)
	}

	store.RecordDownload("1", "", "100", StatusOK, "", 0)
	store.RecordDownload("2", "", "100", StatusFailed, "boom", 0)
	store.RecordDownload("3", "", "100", StatusOK, "", 0)

	total, failed, err = store.CountDownloads()
	if err != nil {
		t.Fatalf("CountDownloads failed: %v", err)
	}
	if total != 3 || failed != 1 {
		t.Errorf("counts = (%d, %d), want (3, 1)", total, failed)
	}
}

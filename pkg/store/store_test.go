package store

import (
	"path/filepath"
	"testing"
)

func TestStore_SetAndGetItemTracker(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "trc_state.json"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.SetItemTracker(ItemTracker{ItemID: "42", State: "detected", RetryCount: 1})

	got, ok := s.GetItemTracker("42")
	if !ok {
		t.Fatalf("expected tracker 42 to exist")
	}
	if got.State != "detected" || got.RetryCount != 1 {
		t.Errorf("got %+v, want state=detected retry_count=1", got)
	}
}

func TestStore_PersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trc_state.json")

	s1, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s1.SetItemTracker(ItemTracker{ItemID: "1", State: "scraping"})
	s1.SetDownload(DownloadTracker{TorrentID: "t1", ItemID: "1", Infohash: "abc"})
	s1.AddProcessed("1")

	s2, err := New(path)
	if err != nil {
		t.Fatalf("New (reload): %v", err)
	}
	if _, ok := s2.GetItemTracker("1"); !ok {
		t.Errorf("expected item tracker 1 to survive reload")
	}
	if _, ok := s2.GetDownload("t1"); !ok {
		t.Errorf("expected download t1 to survive reload")
	}
	if !s2.IsProcessed("1") {
		t.Errorf("expected item 1 to still be marked processed")
	}
}

func TestStore_RemoveItemTracker(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "trc_state.json"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.SetItemTracker(ItemTracker{ItemID: "5", State: "detected"})
	s.RemoveItemTracker("5")

	if _, ok := s.GetItemTracker("5"); ok {
		t.Errorf("expected tracker 5 to be removed")
	}
}

func TestStore_DirectoryPathFallsBackToFileInside(t *testing.T) {
	dir := t.TempDir()

	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.SetItemTracker(ItemTracker{ItemID: "x", State: "detected"})

	want := filepath.Join(dir, "state.json")
	if s.path != want {
		t.Errorf("path = %q, want %q", s.path, want)
	}
}

func TestStore_AddProcessedIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "trc_state.json"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.AddProcessed("7")
	s.AddProcessed("7")

	if len(s.doc.ProcessedItems) != 1 {
		t.Errorf("expected processed_items to contain exactly one entry, got %v", s.doc.ProcessedItems)
	}
}

package database

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	db := newTestDB(t)

	if v, err := db.GetSetting("missing"); err != nil || v != "" {
		t.Errorf("GetSetting(missing) = %q, %v, want empty", v, err)
	}

	if err := db.SetSetting("subtitles.default_language", "de"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := db.SetSetting("subtitles.default_language", "fr"); err != nil {
		t.Fatalf("SetSetting overwrite: %v", err)
	}

	v, err := db.GetSetting("subtitles.default_language")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if v != "fr" {
		t.Errorf("value = %q, want fr", v)
	}

	all, err := db.GetAllSettings()
	if err != nil {
		t.Fatalf("GetAllSettings: %v", err)
	}
	if all["subtitles.default_language"] != "fr" {
		t.Errorf("GetAllSettings = %v", all)
	}
}

func TestTaskHistory(t *testing.T) {
	db := newTestDB(t)

	old := &TaskHistoryEntry{
		TaskID: "aaa", TaskType: "download", Status: "complete",
		Total: 5, Succeeded: 4, Failed: 1,
		CreatedAt:   time.Now().Add(-48 * time.Hour),
		CompletedAt: time.Now().Add(-48 * time.Hour),
	}
	recent := &TaskHistoryEntry{
		TaskID: "bbb", TaskType: "delete", Status: "failed", Error: "unreachable",
		Total: 2, CreatedAt: time.Now(), CompletedAt: time.Now(),
	}
	for _, entry := range []*TaskHistoryEntry{old, recent} {
		if err := db.InsertTaskHistory(entry); err != nil {
			t.Fatalf("InsertTaskHistory: %v", err)
		}
	}

	entries, err := db.ListTaskHistory(10)
	if err != nil {
		t.Fatalf("ListTaskHistory: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].TaskID != "bbb" {
		t.Errorf("first entry = %s, want most recent (bbb)", entries[0].TaskID)
	}
	if entries[1].Succeeded != 4 || entries[1].Failed != 1 {
		t.Errorf("entry counts = %d/%d, want 4/1", entries[1].Succeeded, entries[1].Failed)
	}

	pruned, err := db.PruneTaskHistory(24 * time.Hour)
	if err != nil {
		t.Fatalf("PruneTaskHistory: %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned %d entries, want 1", pruned)
	}

	entries, err = db.ListTaskHistory(10)
	if err != nil {
		t.Fatalf("ListTaskHistory after prune: %v", err)
	}
	if len(entries) != 1 || entries[0].TaskID != "bbb" {
		t.Errorf("entries after prune = %v", entries)
	}
}

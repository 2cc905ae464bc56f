package retry

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRejects_AddAndReload(t *testing.T) {
	config := RejectsConfig{Enabled: true, FilePath: filepath.Join(t.TempDir(), "rejects.json")}

	r, err := OpenRejects(config)
	if err != nil {
		t.Fatalf("OpenRejects failed: %v", err)
	}
	if r.Size() != 0 {
		t.Fatalf("Expected empty rejects, got %d", r.Size())
	}

	if err := r.Add(Reject{Timestamp: time.Now(), LastError: "deadlock", FailureType: FailureMaxAttempts}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := os.Stat(config.FilePath); err != nil {
		t.Fatalf("Add must persist the file: %v", err)
	}

	reloaded, err := OpenRejects(config)
	if err != nil {
		t.Fatalf("OpenRejects failed: %v", err)
	}
	entries := reloaded.Entries()
	if len(entries) != 1 || entries[0].ID == "" || entries[0].LastError != "deadlock" {
		t.Errorf("Unexpected entries: %+v", entries)
	}

	// new ids continue after the loaded ones
	reloaded.Add(Reject{Timestamp: entries[0].Timestamp, FailureType: FailureNonRetryable})
	if got := reloaded.Entries(); got[0].ID == got[1].ID {
		t.Errorf("Duplicate reject ID %s", got[0].ID)
	}
}

func TestRejects_MaxSize(t *testing.T) {
	config := RejectsConfig{Enabled: true, FilePath: filepath.Join(t.TempDir(), "rejects.json"), MaxSize: 2}
	r, err := OpenRejects(config)
	if err != nil {
		t.Fatalf("OpenRejects failed: %v", err)
	}

	for _, msg := range []string{"first", "second", "third"} {
		r.Add(Reject{Timestamp: time.Now(), LastError: msg})
	}

	entries := r.Entries()
	if len(entries) != 2 || entries[0].LastError != "second" || entries[1].LastError != "third" {
		t.Errorf("Expected the two newest entries, got %+v", entries)
	}
}

func TestRejects_CleanupOld(t *testing.T) {
	config := RejectsConfig{Enabled: true, FilePath: filepath.Join(t.TempDir(), "rejects.json"), RetentionPeriod: time.Hour}
	r, err := OpenRejects(config)
	if err != nil {
		t.Fatalf("OpenRejects failed: %v", err)
	}

	r.Add(Reject{Timestamp: time.Now().Add(-2 * time.Hour), LastError: "old"})
	r.Add(Reject{Timestamp: time.Now(), LastError: "fresh"})

	if removed := r.CleanupOld(); removed != 1 {
		t.Errorf("Expected 1 removed, got %d", removed)
	}
	if entries := r.Entries(); len(entries) != 1 || entries[0].LastError != "fresh" {
		t.Errorf("Unexpected entries after cleanup: %+v", entries)
	}
}

func TestRejects_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rejects.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenRejects(RejectsConfig{Enabled: true, FilePath: path}); err == nil {
		t.Error("Expected error for corrupt rejects file")
	}
}

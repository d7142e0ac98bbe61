package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleRegistry = `{"mcpServers":{"svc1":{"command":"node"},"svc2":{"command":"npx"}}}`

func newTestManager(t *testing.T, retention int) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	registryPath := filepath.Join(dir, "registry.json")
	m := NewManager(registryPath, filepath.Join(dir, "backups"), retention)
	return m, registryPath
}

func TestCreateRequiresRegistry(t *testing.T) {
	m, _ := newTestManager(t, 10)
	if _, err := m.Create(); err == nil {
		t.Fatal("expected error when the registry file does not exist")
	}
}

func TestCreateRecordsSizeAndEntries(t *testing.T) {
	m, registryPath := newTestManager(t, 10)
	if err := os.WriteFile(registryPath, []byte(sampleRegistry), 0600); err != nil {
		t.Fatal(err)
	}

	start := time.Now().UTC()
	rec, err := m.Create()
	if err != nil {
		t.Fatal(err)
	}

	if rec.SizeBytes != int64(len(sampleRegistry)) {
		t.Errorf("size %d, want %d", rec.SizeBytes, len(sampleRegistry))
	}
	if rec.EntryCount != 2 {
		t.Errorf("entry count %d, want 2", rec.EntryCount)
	}
	if rec.Timestamp.Before(start.Add(-time.Second)) {
		t.Errorf("timestamp %v before call start %v", rec.Timestamp, start)
	}
}

func TestListNewestFirstAndCorruptTolerant(t *testing.T) {
	m, registryPath := newTestManager(t, 10)
	if err := os.WriteFile(registryPath, []byte(sampleRegistry), 0600); err != nil {
		t.Fatal(err)
	}

	first, err := m.Create()
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	second, err := m.Create()
	if err != nil {
		t.Fatal(err)
	}

	// A corrupt backup must list with zero entries, not fail the listing.
	corrupt := filepath.Join(filepath.Dir(registryPath), "backups", "registry-20200101-000000.000000000.json")
	if err := os.WriteFile(corrupt, []byte("not json"), 0600); err != nil {
		t.Fatal(err)
	}

	records, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 backups, got %d", len(records))
	}
	if records[0].Filename != second.Filename || records[1].Filename != first.Filename {
		t.Errorf("not newest-first: %v", records)
	}
	if records[2].EntryCount != 0 {
		t.Errorf("corrupt backup should report 0 entries, got %d", records[2].EntryCount)
	}
}

func TestRetentionEvictsOldestFirst(t *testing.T) {
	const keep = 3
	m, registryPath := newTestManager(t, keep)
	if err := os.WriteFile(registryPath, []byte(sampleRegistry), 0600); err != nil {
		t.Fatal(err)
	}

	var names []string
	for i := 0; i < keep+1; i++ {
		rec, err := m.Create()
		if err != nil {
			t.Fatal(err)
		}
		names = append(names, rec.Filename)
		time.Sleep(2 * time.Millisecond)
	}

	records, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != keep {
		t.Fatalf("expected %d backups after eviction, got %d", keep, len(records))
	}
	for _, rec := range records {
		if rec.Filename == names[0] {
			t.Error("oldest backup survived eviction")
		}
	}
}

func TestRestoreSnapshotsCurrentStateFirst(t *testing.T) {
	m, registryPath := newTestManager(t, 10)

	stateB := `{"mcpServers":{"old":{"command":"node"}}}`
	if err := os.WriteFile(registryPath, []byte(stateB), 0600); err != nil {
		t.Fatal(err)
	}
	rec, err := m.Create()
	if err != nil {
		t.Fatal(err)
	}

	stateC := `{"mcpServers":{"new":{"command":"npx"}}}`
	if err := os.WriteFile(registryPath, []byte(stateC), 0600); err != nil {
		t.Fatal(err)
	}

	time.Sleep(5 * time.Millisecond)
	if err := m.Restore(rec.Filename); err != nil {
		t.Fatal(err)
	}

	// Registry now equals B exactly.
	data, err := os.ReadFile(registryPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != stateB {
		t.Errorf("restored content mismatch:\n got %s\nwant %s", data, stateB)
	}

	// And a pre-restore snapshot of C exists.
	records, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	var foundC bool
	for _, r := range records {
		content, err := os.ReadFile(filepath.Join(filepath.Dir(registryPath), "backups", r.Filename))
		if err != nil {
			continue
		}
		if string(content) == stateC {
			foundC = true
		}
	}
	if !foundC {
		t.Error("restore did not snapshot the pre-restore state")
	}
}

func TestRestoreMissingBackup(t *testing.T) {
	m, registryPath := newTestManager(t, 10)
	if err := os.WriteFile(registryPath, []byte(sampleRegistry), 0600); err != nil {
		t.Fatal(err)
	}
	if err := m.Restore("registry-nope.json"); err == nil {
		t.Fatal("expected error for a missing backup")
	}
}

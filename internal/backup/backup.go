// Package backup creates and restores timestamped snapshots of the registry
// file. Backups are append-only: they are never overwritten, only evicted by
// the retention cap, oldest first.
package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	filePrefix  = "registry-"
	fileSuffix  = ".json"
	stampLayout = "20060102-150405.000000000"
)

// Record describes one snapshot.
type Record struct {
	Timestamp  time.Time `json:"timestamp"`
	Filename   string    `json:"filename"`
	SizeBytes  int64     `json:"size_bytes"`
	EntryCount int       `json:"entry_count"`
}

// Manager owns the backup directory for a registry file.
type Manager struct {
	registryPath string
	dir          string
	retention    int

	// Warnf receives eviction and cleanup problems, which are reported but
	// never fail the triggering operation.
	Warnf func(format string, args ...any)
}

// NewManager creates a manager. retention <= 0 disables eviction.
func NewManager(registryPath, dir string, retention int) *Manager {
	return &Manager{
		registryPath: registryPath,
		dir:          dir,
		retention:    retention,
		Warnf:        func(string, ...any) {},
	}
}

// Create snapshots the current registry file. The registry must exist.
func (m *Manager) Create() (*Record, error) {
	data, err := os.ReadFile(m.registryPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("cannot back up %s: registry file does not exist", m.registryPath)
		}
		return nil, err
	}

	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	name := filePrefix + now.Format(stampLayout) + fileSuffix
	path := filepath.Join(m.dir, name)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write backup %s: %w", path, err)
	}

	rec := &Record{
		Timestamp:  now,
		Filename:   name,
		SizeBytes:  int64(len(data)),
		EntryCount: countEntries(data),
	}

	m.evict()
	return rec, nil
}

// List enumerates backups newest-first. Unreadable or corrupt backup files
// report a zero entry count rather than failing the listing.
func (m *Manager) List() ([]Record, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var records []Record
	for _, entry := range entries {
		if entry.IsDir() || !isBackupName(entry.Name()) {
			continue
		}

		rec := Record{
			Filename:  entry.Name(),
			Timestamp: timestampFromName(entry.Name()),
		}
		if info, err := entry.Info(); err == nil {
			rec.SizeBytes = info.Size()
			if rec.Timestamp.IsZero() {
				rec.Timestamp = info.ModTime().UTC()
			}
		}
		if data, err := os.ReadFile(filepath.Join(m.dir, entry.Name())); err == nil {
			rec.EntryCount = countEntries(data)
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	return records, nil
}

// Restore overwrites the live registry with the named backup's contents,
// snapshotting the current state first so a restore is itself undoable.
func (m *Manager) Restore(name string) error {
	path := filepath.Join(m.dir, filepath.Base(name))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("backup %q does not exist", name)
		}
		return err
	}

	if _, err := os.Stat(m.registryPath); err == nil {
		if _, err := m.Create(); err != nil {
			return fmt.Errorf("refusing to restore without a backup of the current state: %w", err)
		}
	}

	if err := os.WriteFile(m.registryPath, data, 0600); err != nil {
		return fmt.Errorf("failed to restore %s: %w", m.registryPath, err)
	}
	return nil
}

// evict removes the oldest backups beyond the retention cap.
func (m *Manager) evict() {
	if m.retention <= 0 {
		return
	}
	records, err := m.List()
	if err != nil {
		m.Warnf("backup eviction: %v", err)
		return
	}
	for _, rec := range records[min(m.retention, len(records)):] {
		if err := os.Remove(filepath.Join(m.dir, rec.Filename)); err != nil {
			m.Warnf("backup eviction: %v", err)
		}
	}
}

func isBackupName(name string) bool {
	return strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileSuffix)
}

func timestampFromName(name string) time.Time {
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	t, err := time.Parse(stampLayout, stamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// countEntries parses a backup payload and counts its registry entries.
// Corrupt payloads count as zero.
func countEntries(data []byte) int {
	var doc struct {
		Servers map[string]json.RawMessage `json:"mcpServers"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0
	}
	return len(doc.Servers)
}

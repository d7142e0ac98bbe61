package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/davner/mcpguard/internal/registry"
)

func collectEvents(t *testing.T, store *registry.Store) (chan Event, chan struct{}) {
	t.Helper()
	events := make(chan Event, 16)
	stop := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- Run(store, nil, stop, func(e Event) { events <- e })
	}()
	t.Cleanup(func() {
		close(stop)
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("watch: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("watcher did not stop")
		}
	})

	// Give the watcher a moment to register before mutating.
	time.Sleep(50 * time.Millisecond)
	return events, stop
}

func waitEvent(t *testing.T, events chan Event) Event {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no watch event received")
		return Event{}
	}
}

func TestWatchReportsValidExternalWrite(t *testing.T) {
	dir := t.TempDir()
	store := registry.NewStore(filepath.Join(dir, "registry.json"))
	if _, err := store.Read(); err != nil {
		t.Fatal(err)
	}

	events, _ := collectEvents(t, store)

	payload := `{"mcpServers":{"svc":{"command":"node","args":["./server.js"]}}}`
	if err := os.WriteFile(store.Path(), []byte(payload), 0600); err != nil {
		t.Fatal(err)
	}

	e := waitEvent(t, events)
	if !e.Valid {
		t.Errorf("valid write reported invalid: %s", e.Detail)
	}
	if e.EntryCount != 1 {
		t.Errorf("entry count %d, want 1", e.EntryCount)
	}
}

func TestWatchReportsCorruptExternalWrite(t *testing.T) {
	dir := t.TempDir()
	store := registry.NewStore(filepath.Join(dir, "registry.json"))
	if _, err := store.Read(); err != nil {
		t.Fatal(err)
	}

	events, _ := collectEvents(t, store)

	if err := os.WriteFile(store.Path(), []byte("{broken"), 0600); err != nil {
		t.Fatal(err)
	}

	e := waitEvent(t, events)
	if e.Valid {
		t.Error("corrupt write reported valid")
	}
}

func TestWatchFlagsInvalidEntries(t *testing.T) {
	dir := t.TempDir()
	store := registry.NewStore(filepath.Join(dir, "registry.json"))
	if _, err := store.Read(); err != nil {
		t.Fatal(err)
	}

	events, _ := collectEvents(t, store)

	// Parses fine, but the command is a denied shell.
	payload := `{"mcpServers":{"svc":{"command":"bash","args":["-c","id"]}}}`
	if err := os.WriteFile(store.Path(), []byte(payload), 0600); err != nil {
		t.Fatal(err)
	}

	e := waitEvent(t, events)
	if e.Valid {
		t.Error("entry with a denied launcher reported valid")
	}
}

// Package watch observes the registry file for external modification and
// reports whether the document still parses and validates after each write.
package watch

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/davner/mcpguard/internal/logger"
	"github.com/davner/mcpguard/internal/registry"
)

// Event is one observed registry change.
type Event struct {
	Op         string
	Valid      bool
	EntryCount int
	Detail     string
}

// Run watches the registry file until stop is closed. Each write or create
// event re-reads the document; onEvent receives the verdict. Watching the
// parent directory instead of the file survives the atomic rename writes the
// store itself performs.
func Run(store *registry.Store, audit *logger.AuditLogger, stop <-chan struct{}, onEvent func(Event)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(store.Path())
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(store.Path())
	for {
		select {
		case <-stop:
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) {
				continue
			}
			e := inspect(store, ev)
			if audit != nil {
				status := "valid"
				if !e.Valid {
					status = "invalid"
				}
				_ = audit.Log(logger.Event{
					Operation: "watch",
					Name:      store.Path(),
					Status:    status,
					Reason:    e.Detail,
				})
			}
			if onEvent != nil {
				onEvent(e)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if onEvent != nil {
				onEvent(Event{Op: "error", Detail: err.Error()})
			}
		}
	}
}

func inspect(store *registry.Store, ev fsnotify.Event) Event {
	e := Event{Op: ev.Op.String()}

	if ev.Has(fsnotify.Remove) {
		e.Detail = "registry file was removed"
		return e
	}

	doc, err := store.Read()
	if err != nil {
		e.Detail = fmt.Sprintf("registry no longer parses: %v", err)
		return e
	}

	var violations []string
	for name, sd := range doc.Servers {
		violations = append(violations, registry.ValidateEntry(name, sd)...)
	}
	e.EntryCount = len(doc.Servers)
	if len(violations) > 0 {
		e.Detail = fmt.Sprintf("registry modified externally with %d validation violation(s): %s", len(violations), violations[0])
		return e
	}

	e.Valid = true
	e.Detail = fmt.Sprintf("registry modified externally, still valid (%d entries)", len(doc.Servers))
	return e
}

// Package logger appends one JSON line per guarded operation to the audit
// log. Secrets are redacted before anything touches disk.
package logger

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/davner/mcpguard/internal/redact"
)

// Event is one audit record.
type Event struct {
	Timestamp string   `json:"timestamp"`
	AttemptID string   `json:"attempt_id,omitempty"`
	Operation string   `json:"operation"` // deploy, remove, restore, backup, scan, watch
	Name      string   `json:"name,omitempty"`
	Status    string   `json:"status"`
	Score     int      `json:"score,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	Errors    []string `json:"errors,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// AuditLogger serializes writes to the audit log file.
type AuditLogger struct {
	file *os.File
	mu   sync.Mutex
}

func New(path string) (*AuditLogger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	return &AuditLogger{file: file}, nil
}

func (l *AuditLogger) Log(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	event.Reason = redact.Redact(event.Reason)
	event.Errors = redact.RedactList(event.Errors)
	event.Warnings = redact.RedactList(event.Warnings)

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	data = append(data, '\n')
	_, err = l.file.Write(data)
	return err
}

func (l *AuditLogger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Package registry owns the on-disk JSON registry document mapping server
// names to launch descriptors.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Key is the top-level JSON key holding the entry map.
const Key = "mcpServers"

// ServiceDescriptor is one registry entry: how to launch an MCP server.
type ServiceDescriptor struct {
	Command     string            `json:"command"`
	Args        []string          `json:"args,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	Disabled    bool              `json:"disabled,omitempty"`
	AutoApprove []string          `json:"autoApprove,omitempty"`
}

// Document is the full registry: { "mcpServers": { name: descriptor } }.
type Document struct {
	Servers map[string]ServiceDescriptor
}

func NewDocument() *Document {
	return &Document{Servers: map[string]ServiceDescriptor{}}
}

func (d *Document) MarshalJSON() ([]byte, error) {
	servers := d.Servers
	if servers == nil {
		servers = map[string]ServiceDescriptor{}
	}
	return json.Marshal(map[string]map[string]ServiceDescriptor{Key: servers})
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]map[string]ServiceDescriptor
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Servers = raw[Key]
	if d.Servers == nil {
		d.Servers = map[string]ServiceDescriptor{}
	}
	return nil
}

// Entry pairs a name with its descriptor for sorted listings.
type Entry struct {
	Name       string
	Descriptor ServiceDescriptor
}

// ValidationError reports every violation found in a document. A document
// with any violation is never written.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("registry validation failed: %s", strings.Join(e.Violations, "; "))
}

// Store owns the registry file. All reads and writes go through it.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Exists reports whether the backing file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Read loads the document. An absent file creates and persists an empty
// document rather than failing.
func (s *Store) Read() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			doc := NewDocument()
			if err := s.writeRaw(doc); err != nil {
				return nil, fmt.Errorf("failed to create registry: %w", err)
			}
			return doc, nil
		}
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse registry %s: %w", s.path, err)
	}
	return &doc, nil
}

// Write validates every entry and atomically replaces the registry file. On
// validation failure nothing is written and the error lists all violations.
func (s *Store) Write(doc *Document) error {
	var violations []string
	names := make([]string, 0, len(doc.Servers))
	for name := range doc.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		violations = append(violations, ValidateEntry(name, doc.Servers[name])...)
	}
	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}

	return s.writeRaw(doc)
}

// writeRaw persists the document atomically: write to a temp file in the same
// directory, then rename over the target. The registry is never left
// partially written.
func (s *Store) writeRaw(doc *Document) error {
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	out = append(out, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".registry-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// ListEntries returns all entries sorted by name. An absent file lists as
// empty.
func (s *Store) ListEntries() ([]Entry, error) {
	doc, err := s.Read()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(doc.Servers))
	for name, sd := range doc.Servers {
		entries = append(entries, Entry{Name: name, Descriptor: sd})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

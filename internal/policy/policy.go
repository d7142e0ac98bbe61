// Package policy holds the global deployment policy and the gate that
// evaluates scan results against it.
package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Policy is the persisted singleton controlling the security gate. It is
// loaded once per operation and passed down; nothing reads it globally.
type Policy struct {
	Enforced      bool      `json:"enforced"`
	MinimumScore  int       `json:"minimumScore"`
	StrictMode    bool      `json:"strictMode"`
	AllowedBypass bool      `json:"allowedBypass"`
	Version       string    `json:"version"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// Default returns the policy regenerated when no policy file exists.
func Default() Policy {
	return Policy{
		Enforced:      true,
		MinimumScore:  70,
		StrictMode:    false,
		AllowedBypass: true,
		Version:       "1.0.0",
	}
}

// Update is a partial policy change; nil fields are left untouched.
type Update struct {
	Enforced      *bool
	MinimumScore  *int
	StrictMode    *bool
	AllowedBypass *bool
}

// Store persists the policy file.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the policy. An absent file regenerates and persists the
// defaults.
func (s *Store) Load() (Policy, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			p := Default()
			if err := s.Save(p); err != nil {
				return Policy{}, err
			}
			return p, nil
		}
		return Policy{}, err
	}

	var p Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("failed to parse policy %s: %w", s.path, err)
	}
	return p, nil
}

// Save persists the policy, stamping LastUpdated.
func (s *Store) Save(p Policy) error {
	p.LastUpdated = time.Now().UTC()
	out, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	out = append(out, '\n')

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	return os.WriteFile(s.path, out, 0600)
}

// Apply loads the policy, applies the partial update, bumps the version
// patch, and saves. Returns the resulting policy.
func (s *Store) Apply(u Update) (Policy, error) {
	p, err := s.Load()
	if err != nil {
		return Policy{}, err
	}

	if u.Enforced != nil {
		p.Enforced = *u.Enforced
	}
	if u.MinimumScore != nil {
		if *u.MinimumScore < 0 || *u.MinimumScore > 100 {
			return Policy{}, fmt.Errorf("minimum score %d out of range [0,100]", *u.MinimumScore)
		}
		p.MinimumScore = *u.MinimumScore
	}
	if u.StrictMode != nil {
		p.StrictMode = *u.StrictMode
	}
	if u.AllowedBypass != nil {
		p.AllowedBypass = *u.AllowedBypass
	}

	p.Version = bumpPatch(p.Version)
	if err := s.Save(p); err != nil {
		return Policy{}, err
	}
	return p, nil
}

func bumpPatch(version string) string {
	var major, minor, patch int
	if _, err := fmt.Sscanf(version, "%d.%d.%d", &major, &minor, &patch); err != nil {
		return "1.0.1"
	}
	return fmt.Sprintf("%d.%d.%d", major, minor, patch+1)
}

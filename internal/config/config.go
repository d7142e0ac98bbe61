package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const (
	DefaultConfigDir    = ".mcpguard"
	DefaultRegistryFile = "registry.json"
	DefaultBackupDir    = "backups"
	DefaultPolicyFile   = "policy.json"
	DefaultScoringFile  = "scoring.json"
	DefaultPatternsDir  = "patterns"
	DefaultLogFile      = "audit.jsonl"

	// DefaultBackupRetention caps how many registry snapshots are kept.
	DefaultBackupRetention = 30
)

type Config struct {
	ConfigDir    string
	RegistryPath string
	BackupDir    string
	PolicyPath   string
	ScoringPath  string
	PatternsDir  string
	LogPath      string
	Retention    int
}

// Load resolves the config directory (creating it if needed) and the default
// file paths beneath it. Any non-empty argument overrides its default.
func Load(configDir, registryPath, logPath string) (*Config, error) {
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configDir = filepath.Join(homeDir, DefaultConfigDir)
	}

	if err := ensureDir(configDir); err != nil {
		return nil, err
	}

	cfg := &Config{
		ConfigDir:   configDir,
		BackupDir:   filepath.Join(configDir, DefaultBackupDir),
		PolicyPath:  filepath.Join(configDir, DefaultPolicyFile),
		ScoringPath: filepath.Join(configDir, DefaultScoringFile),
		PatternsDir: filepath.Join(configDir, DefaultPatternsDir),
		Retention:   DefaultBackupRetention,
	}

	if registryPath != "" {
		cfg.RegistryPath = registryPath
	} else {
		cfg.RegistryPath = filepath.Join(configDir, DefaultRegistryFile)
	}

	if logPath != "" {
		cfg.LogPath = logPath
	} else {
		cfg.LogPath = filepath.Join(configDir, DefaultLogFile)
	}

	return cfg, nil
}

func ensureDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0700)
	}
	return nil
}

// ScoringWeights are the per-finding score deductions. The exact constants
// are policy data, not invariants: they can be overridden from scoring.json.
type ScoringWeights struct {
	Dangerous       int `json:"dangerous"`
	Malicious       int `json:"malicious"`
	Suspicious      int `json:"suspicious"`
	Vulnerable      int `json:"vulnerable"`
	UnpinnedVersion int `json:"unpinnedVersion"`
	Secret          int `json:"secret"`
	InsecureFlag    int `json:"insecureFlag"`
	MissingFile     int `json:"missingFile"`
	Traversal       int `json:"traversal"`
	InsecurePath    int `json:"insecurePath"`
}

func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		Dangerous:       15,
		Malicious:       20,
		Suspicious:      5,
		Vulnerable:      20,
		UnpinnedVersion: 3,
		Secret:          15,
		InsecureFlag:    8,
		MissingFile:     50,
		Traversal:       25,
		InsecurePath:    5,
	}
}

// LoadScoringWeights reads weight overrides from path. An absent file yields
// the defaults; a present file overlays them field by field.
func LoadScoringWeights(path string) (ScoringWeights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultScoringWeights(), nil
		}
		return ScoringWeights{}, err
	}

	w := DefaultScoringWeights()
	if err := json.Unmarshal(data, &w); err != nil {
		return ScoringWeights{}, err
	}
	return w, nil
}

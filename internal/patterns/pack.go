package patterns

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pack is a set of extra scan rules loaded from a YAML file. Packs let
// operators extend the scanner without rebuilding.
type Pack struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
	Author      string `yaml:"author"`
	Rules       []Rule `yaml:"rules"`
}

// PackInfo describes a discovered pack for reporting.
type PackInfo struct {
	Name      string
	Version   string
	Enabled   bool
	Path      string
	RuleCount int
	Err       error
}

// LoadPacks reads all .yaml files from packsDir and appends their rules to
// base. Packs whose filename starts with an underscore are disabled. A pack
// that fails to parse or compile is reported in its PackInfo and skipped; it
// never fails the whole load.
func LoadPacks(packsDir string, base []Rule) ([]Rule, []PackInfo, error) {
	entries, err := os.ReadDir(packsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil, nil
		}
		return nil, nil, err
	}

	merged := append([]Rule(nil), base...)
	var infos []PackInfo

	for _, entry := range entries {
		if entry.IsDir() || !isYAMLExt(entry.Name()) {
			continue
		}

		path := filepath.Join(packsDir, entry.Name())
		baseName := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		enabled := !strings.HasPrefix(baseName, "_")

		pack, err := loadPack(path)
		info := PackInfo{Name: baseName, Enabled: enabled, Path: path, Err: err}
		if err == nil {
			if pack.Name != "" {
				info.Name = pack.Name
			}
			info.Version = pack.Version
			info.RuleCount = len(pack.Rules)
		}
		infos = append(infos, info)

		if err != nil || !enabled {
			continue
		}
		merged = append(merged, pack.Rules...)
	}

	return merged, infos, nil
}

func loadPack(path string) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var pack Pack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("failed to parse pattern pack %s: %w", path, err)
	}

	for i := range pack.Rules {
		if pack.Rules[i].Category == "" {
			pack.Rules[i].Category = CategoryCode
		}
		if pack.Rules[i].Severity == "" {
			pack.Rules[i].Severity = SeveritySuspicious
		}
		if err := pack.Rules[i].Compile(); err != nil {
			return nil, err
		}
	}

	return &pack, nil
}

func isYAMLExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

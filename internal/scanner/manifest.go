package scanner

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/davner/mcpguard/internal/patterns"
)

// readPackageJSON returns the union of dependencies and devDependencies from
// an npm manifest. ok is false if the file is absent or unparseable.
func readPackageJSON(path string) (map[string]string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var manifest struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, false
	}

	deps := make(map[string]string, len(manifest.Dependencies)+len(manifest.DevDependencies))
	for name, v := range manifest.Dependencies {
		deps[name] = v
	}
	for name, v := range manifest.DevDependencies {
		deps[name] = v
	}
	return deps, true
}

var requirementLineRe = regexp.MustCompile(`^([A-Za-z0-9._-]+)\s*(==|>=|<=|~=|>|<|$)`)

// requirementsFindings inspects a pip requirements file. Exact == pins pass;
// everything else is an unspecified-version finding. Known-bad names are
// vulnerable findings.
func requirementsFindings(path string) []Finding {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var findings []Finding
	lineNo := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}

		m := requirementLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name, op := strings.ToLower(m[1]), m[2]

		if reason, bad := patterns.KnownBadPackages[name]; bad {
			findings = append(findings, Finding{
				RuleID:   "dep-vulnerable",
				File:     path,
				Line:     lineNo,
				Severity: patterns.SeverityMalicious,
				Detail:   fmt.Sprintf("%s: %s", name, reason),
			})
			continue
		}

		if op != "==" {
			findings = append(findings, Finding{
				RuleID:   "dep-unpinned",
				File:     path,
				Line:     lineNo,
				Severity: patterns.SeveritySuspicious,
				Detail:   fmt.Sprintf("%s is not pinned to a single version", name),
			})
		}
	}
	return findings
}

// Package scanner performs the static risk assessment of a candidate
// executable before it is admitted to the registry. All assessment is
// pattern-based and static: the candidate is never executed.
package scanner

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/davner/mcpguard/internal/config"
	"github.com/davner/mcpguard/internal/patterns"
)

// maxWalkDepth bounds the project tree recursion.
const maxWalkDepth = 3

// skipDirs are dependency caches and build output that are never scanned.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	"dist":         true,
	"build":        true,
	"target":       true,
	".venv":        true,
	"venv":         true,
}

// Finding is a single categorized match.
type Finding struct {
	RuleID   string            `json:"ruleId"`
	File     string            `json:"file,omitempty"`
	Line     int               `json:"line,omitempty"`
	Severity patterns.Severity `json:"severity"`
	Detail   string            `json:"detail"`
}

// CategoryResult is the outcome of one scan pass.
type CategoryResult struct {
	Passed   bool      `json:"passed"`
	Findings []Finding `json:"findings,omitempty"`
}

// Result is the full scan outcome. Score and Passed are independent signals:
// Passed reflects category failures, Score reflects accumulated deductions.
type Result struct {
	Passed   bool     `json:"passed"`
	Score    int      `json:"score"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`

	CodeAnalysis       CategoryResult `json:"codeAnalysis"`
	DependencyCheck    CategoryResult `json:"dependencyCheck"`
	ConfigurationCheck CategoryResult `json:"configurationCheck"`
	PermissionCheck    CategoryResult `json:"permissionCheck"`
}

// Scanner applies the pattern library to a candidate executable and its
// project tree.
type Scanner struct {
	rules   []patterns.Rule
	weights config.ScoringWeights
	homeDir string
}

// New creates a scanner over the given rule set and scoring weights.
func New(rules []patterns.Rule, weights config.ScoringWeights) *Scanner {
	home, _ := os.UserHomeDir()
	return &Scanner{rules: rules, weights: weights, homeDir: home}
}

// Scan assesses the target file and, if projectRoot is non-empty, its project
// tree. The returned Result is fresh per call and never persisted.
func (s *Scanner) Scan(target, projectRoot string) (*Result, error) {
	res := &Result{}

	res.PermissionCheck = s.checkPermissions(target)
	res.CodeAnalysis = s.analyzeCode(target, projectRoot)
	res.DependencyCheck = s.checkDependencies(target, projectRoot)
	res.ConfigurationCheck = s.checkConfiguration(target, projectRoot)

	s.score(res)

	res.Passed = res.CodeAnalysis.Passed &&
		res.DependencyCheck.Passed &&
		res.ConfigurationCheck.Passed &&
		res.PermissionCheck.Passed

	return res, nil
}

// ── code analysis ───────────────────────────────────────────────────

func (s *Scanner) analyzeCode(target, projectRoot string) CategoryResult {
	files := s.collectSourceFiles(target, projectRoot)

	result := CategoryResult{Passed: true}
	for _, file := range files {
		findings := s.scanSourceFile(file)
		for _, f := range findings {
			if f.Severity == patterns.SeverityDangerous || f.Severity == patterns.SeverityMalicious {
				result.Passed = false
			}
		}
		result.Findings = append(result.Findings, findings...)
	}

	sortFindings(result.Findings)
	return result
}

// collectSourceFiles returns the target plus every source file under
// projectRoot up to maxWalkDepth, sorted for deterministic scoring. Hidden
// directories and dependency caches are skipped.
func (s *Scanner) collectSourceFiles(target, projectRoot string) []string {
	seen := map[string]bool{}
	var files []string

	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	if _, err := os.Stat(target); err == nil {
		add(target)
	}

	if projectRoot != "" {
		root := filepath.Clean(projectRoot)
		filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return nil
			}
			depth := strings.Count(rel, string(filepath.Separator))
			if d.IsDir() {
				name := d.Name()
				if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
					return filepath.SkipDir
				}
				if depth >= maxWalkDepth {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") {
				return nil
			}
			if patterns.SourceExts[strings.ToLower(filepath.Ext(path))] {
				add(path)
			}
			return nil
		})
	}

	sort.Strings(files)
	return files
}

// scanSourceFile applies the language family's rules plus the
// language-agnostic set to each line of the file.
func (s *Scanner) scanSourceFile(path string) []Finding {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	language := patterns.LanguageForExt(strings.ToLower(filepath.Ext(path)))

	var findings []Finding
	lineNo := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		for i := range s.rules {
			rule := &s.rules[i]
			if rule.Category != patterns.CategoryCode || !rule.AppliesTo(language) {
				continue
			}
			if rule.Match(line) {
				findings = append(findings, Finding{
					RuleID:   rule.ID,
					File:     path,
					Line:     lineNo,
					Severity: rule.Severity,
					Detail:   rule.Reason,
				})
			}
		}
	}
	return findings
}

// ── permission / path check ─────────────────────────────────────────

func (s *Scanner) checkPermissions(target string) CategoryResult {
	result := CategoryResult{Passed: true}

	info, err := os.Stat(target)
	if err != nil {
		result.Passed = false
		result.Findings = append(result.Findings, Finding{
			RuleID:   "perm-missing-file",
			File:     target,
			Severity: patterns.SeverityDangerous,
			Detail:   "target file does not exist",
		})
		return result
	}

	if strings.Contains(target, "..") {
		result.Passed = false
		result.Findings = append(result.Findings, Finding{
			RuleID:   "perm-path-traversal",
			File:     target,
			Severity: patterns.SeverityDangerous,
			Detail:   "path contains a traversal sequence",
		})
	}

	if !s.isExecutable(target, info) {
		result.Findings = append(result.Findings, Finding{
			RuleID:   "perm-not-executable",
			File:     target,
			Severity: patterns.SeveritySuspicious,
			Detail:   "file is neither executable nor a recognized script",
		})
	}

	abs, err := filepath.Abs(target)
	if err == nil && !s.inSecurePrefix(abs) {
		result.Findings = append(result.Findings, Finding{
			RuleID:   "perm-insecure-path",
			File:     abs,
			Severity: patterns.SeveritySuspicious,
			Detail:   "file is outside the secure path allow-list",
		})
	}

	sortFindings(result.Findings)
	return result
}

// isExecutable infers executability. On Unix any exec bit counts; a known
// interpreter extension counts everywhere, since registry commands routinely
// point interpreters at scripts.
func (s *Scanner) isExecutable(path string, info os.FileInfo) bool {
	if runtime.GOOS != "windows" && info.Mode().Perm()&0111 != 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	if patterns.SourceExts[ext] {
		return true
	}
	return ext == ".exe" || ext == ".bat" || ext == ".cmd"
}

func (s *Scanner) inSecurePrefix(abs string) bool {
	for _, prefix := range patterns.SecurePathPrefixes {
		p := prefix
		if strings.HasPrefix(p, "~/") && s.homeDir != "" {
			p = s.homeDir + p[1:]
		}
		if strings.HasPrefix(abs, p) {
			return true
		}
	}
	return false
}

// ── dependency check ────────────────────────────────────────────────

func (s *Scanner) checkDependencies(target, projectRoot string) CategoryResult {
	result := CategoryResult{Passed: true}

	root := projectRoot
	if root == "" {
		root = filepath.Dir(target)
	}

	if deps, ok := readPackageJSON(filepath.Join(root, "package.json")); ok {
		names := make([]string, 0, len(deps))
		for name := range deps {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			version := deps[name]
			if reason, bad := patterns.KnownBadPackages[name]; bad {
				result.Passed = false
				result.Findings = append(result.Findings, Finding{
					RuleID:   "dep-vulnerable",
					Severity: patterns.SeverityMalicious,
					Detail:   fmt.Sprintf("%s@%s: %s", name, version, reason),
				})
			} else if version == "" || patterns.UnpinnedVersionRe.MatchString(version) {
				result.Findings = append(result.Findings, Finding{
					RuleID:   "dep-unpinned",
					Severity: patterns.SeveritySuspicious,
					Detail:   fmt.Sprintf("%s@%s is not pinned to a single version", name, version),
				})
			}
		}
	}

	for _, f := range requirementsFindings(filepath.Join(root, "requirements.txt")) {
		if f.Severity == patterns.SeverityMalicious {
			result.Passed = false
		}
		result.Findings = append(result.Findings, f)
	}

	sortFindings(result.Findings)
	return result
}

// ── configuration check ─────────────────────────────────────────────

// configCandidates are the filenames inspected for hardcoded secrets and
// insecure flags, relative to the project root.
var configCandidates = []string{
	".env", ".env.local", ".env.production",
	"config.json", "config.yaml", "config.yml",
	"settings.json", "appsettings.json",
}

func (s *Scanner) checkConfiguration(target, projectRoot string) CategoryResult {
	result := CategoryResult{Passed: true}

	root := projectRoot
	if root == "" {
		root = filepath.Dir(target)
	}

	for _, name := range configCandidates {
		path := filepath.Join(root, name)
		findings := scanConfigFile(path)
		for _, f := range findings {
			if f.RuleID == "cfg-hardcoded-secret" {
				result.Passed = false
			}
		}
		result.Findings = append(result.Findings, findings...)
	}

	sortFindings(result.Findings)
	return result
}

func scanConfigFile(path string) []Finding {
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
		line := sc.Text()

		if key, value, ok := splitAssignment(line); ok {
			if patterns.IsSecretKey(key) && patterns.LooksLikeSecret(value) {
				findings = append(findings, Finding{
					RuleID:   "cfg-hardcoded-secret",
					File:     path,
					Line:     lineNo,
					Severity: patterns.SeverityDangerous,
					Detail:   fmt.Sprintf("key %q holds a secret-like value", key),
				})
			}
		}

		for i := range patterns.InsecureFlagRules {
			rule := &patterns.InsecureFlagRules[i]
			if rule.Match(line) {
				findings = append(findings, Finding{
					RuleID:   rule.ID,
					File:     path,
					Line:     lineNo,
					Severity: rule.Severity,
					Detail:   rule.Reason,
				})
			}
		}
	}
	return findings
}

// splitAssignment splits "KEY=value", "key: value" and `"key": "value"`
// shapes found in env and config files.
func splitAssignment(line string) (key, value string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
		return "", "", false
	}
	for _, sep := range []string{"=", ":"} {
		if idx := strings.Index(trimmed, sep); idx > 0 {
			key = strings.Trim(strings.TrimSpace(trimmed[:idx]), `"'`)
			value = strings.TrimSuffix(strings.TrimSpace(trimmed[idx+1:]), ",")
			return key, value, key != ""
		}
	}
	return "", "", false
}

// ── scoring ─────────────────────────────────────────────────────────

// score starts at 100 and subtracts a fixed per-finding penalty, clamped to
// [0,100]. It also fills Errors (category-failing findings) and Warnings.
func (s *Scanner) score(res *Result) {
	score := 100

	deduct := func(f Finding) int {
		switch f.RuleID {
		case "perm-missing-file":
			return s.weights.MissingFile
		case "perm-path-traversal":
			return s.weights.Traversal
		case "perm-insecure-path":
			return s.weights.InsecurePath
		case "dep-vulnerable":
			return s.weights.Vulnerable
		case "dep-unpinned":
			return s.weights.UnpinnedVersion
		case "cfg-hardcoded-secret":
			return s.weights.Secret
		}
		if f.RuleID != "" && strings.HasPrefix(f.RuleID, "cfg-") {
			return s.weights.InsecureFlag
		}
		switch f.Severity {
		case patterns.SeverityMalicious:
			return s.weights.Malicious
		case patterns.SeverityDangerous:
			return s.weights.Dangerous
		default:
			return s.weights.Suspicious
		}
	}

	categories := []struct {
		name string
		cat  *CategoryResult
	}{
		{"code analysis", &res.CodeAnalysis},
		{"dependency check", &res.DependencyCheck},
		{"configuration check", &res.ConfigurationCheck},
		{"permission check", &res.PermissionCheck},
	}

	for _, c := range categories {
		for _, f := range c.cat.Findings {
			score -= deduct(f)
			msg := fmt.Sprintf("[%s] %s: %s", c.name, f.RuleID, f.Detail)
			if f.File != "" {
				msg += fmt.Sprintf(" (%s:%d)", f.File, f.Line)
			}
			if f.Severity == patterns.SeverityDangerous || f.Severity == patterns.SeverityMalicious {
				res.Errors = append(res.Errors, msg)
			} else {
				res.Warnings = append(res.Warnings, msg)
			}
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	res.Score = score
}

// sortFindings orders findings so scores never depend on traversal order.
func sortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].File != findings[j].File {
			return findings[i].File < findings[j].File
		}
		if findings[i].Line != findings[j].Line {
			return findings[i].Line < findings[j].Line
		}
		return findings[i].RuleID < findings[j].RuleID
	})
}

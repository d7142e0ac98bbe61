package patterns

import (
	"regexp"
	"strings"
)

// AllowedLaunchers is the fixed set of non-absolute commands a registry entry
// may use. Anything else must be an absolute path.
var AllowedLaunchers = map[string]bool{
	"node": true, "npx": true,
	"python": true, "python3": true,
	"uv": true, "uvx": true,
	"deno": true, "bun": true,
	"docker": true, "podman": true,
	"java": true, "dotnet": true,
}

// DeniedLaunchers are shells and interpreters that are rejected as a registry
// command even when given as an absolute path.
var DeniedLaunchers = map[string]bool{
	"sh": true, "bash": true, "zsh": true, "fish": true,
	"dash": true, "ksh": true, "csh": true, "tcsh": true,
	"cmd": true, "cmd.exe": true,
	"powershell": true, "powershell.exe": true, "pwsh": true,
	"eval": true,
}

// DangerousCapabilities are autoApprove entries that must never be
// pre-approved.
var DangerousCapabilities = map[string]bool{
	"execute_command":      true,
	"run_shell":            true,
	"run_terminal_command": true,
	"shell_exec":           true,
	"write_file":           true,
	"delete_file":          true,
	"remove_file":          true,
	"modify_system":        true,
	"sudo":                 true,
	"eval":                 true,
}

// NonSecretEnvKeys are common development variables whose values are not
// checked for secret shape.
var NonSecretEnvKeys = map[string]bool{
	"PATH": true, "HOME": true, "USER": true, "SHELL": true,
	"LANG": true, "LC_ALL": true, "TERM": true, "TZ": true,
	"NODE_ENV": true, "PYTHONPATH": true, "VIRTUAL_ENV": true,
	"GOPATH": true, "GOROOT": true, "NVM_DIR": true,
	"PORT": true, "HOST": true, "DEBUG": true, "LOG_LEVEL": true,
	"EDITOR": true, "PAGER": true,
}

// KnownBadPackages is the fixed known-bad dependency list: packages that were
// compromised or are well-known typosquats.
var KnownBadPackages = map[string]string{
	// npm
	"event-stream":   "compromised release injected wallet-stealing code",
	"flatmap-stream": "malicious payload of the event-stream incident",
	"eslint-scope":   "compromised release harvested npm credentials",
	"getcookies":     "contained a hidden backdoor",
	"crossenv":       "typosquat of cross-env",
	"babelcli":       "typosquat of babel-cli",
	"mongose":        "typosquat of mongoose",
	// pypi
	"request":        "typosquat of requests",
	"colourama":      "typosquat of colorama, installed a clipboard hijacker",
	"python-sqlite":  "typosquat, exfiltrated environment data",
	"urlib3":         "typosquat of urllib3",
}

// UnpinnedVersionRe matches npm-style range specifiers that do not pin a
// single version.
var UnpinnedVersionRe = regexp.MustCompile(`^\s*(\^|~|>=?|<=?|\*|latest|x$)`)

var (
	safeFlagRe     = regexp.MustCompile(`^--?[A-Za-z0-9][\w.:/-]*(=\S*)?$`)
	safeKeyValRe   = regexp.MustCompile("^[A-Za-z_][A-Za-z0-9_]*=[^;&|<>`$]*$")
	safeImageRefRe = regexp.MustCompile(`^[a-z0-9]+(?:[._/-][a-zA-Z0-9]+)*(?::[A-Za-z0-9._-]+)?(?:@sha256:[a-f0-9]{64})?$`)

	// Single-level relative forms only; anything deeper from either anchor is
	// rejected as traversal.
	relPathRe = regexp.MustCompile(`^(\./|\.\./|~/)[\w@.-]+/?$`)

	dangerousArgRe = regexp.MustCompile("[;&|`$<>]|" +
		`\b(rm\s+-[a-zA-Z]*r|mkfs|dd\s+if=|shutdown|reboot|halt)\b|` +
		`\b(sudo|doas|pkexec|setuid)\b|` +
		`(^|/)\.\./`)
)

// IsSafeParameter reports whether an argument matches a recognized safe
// shape: a flag, a KEY=value token, or an image-reference-like token.
func IsSafeParameter(arg string) bool {
	return safeFlagRe.MatchString(arg) ||
		safeKeyValRe.MatchString(arg) ||
		safeImageRefRe.MatchString(arg)
}

// IsLegitimateRelativePath reports whether an argument is a single-level
// ./, ../ or ~/ path. Multi-level traversal from either anchor never matches.
func IsLegitimateRelativePath(arg string) bool {
	return relPathRe.MatchString(arg)
}

// HasDangerousContent reports whether an argument contains shell
// metacharacters, destructive command names, privilege-escalation keywords,
// or traversal sequences.
func HasDangerousContent(arg string) bool {
	return dangerousArgRe.MatchString(arg)
}

// secretKeyRe matches key names that commonly hold credentials.
var secretKeyRe = regexp.MustCompile(`(?i)(password|passwd|pwd|secret|token|api[_-]?key|access[_-]?key|private[_-]?key|credential|auth)`)

// knownTokenPrefixes are provider-specific credential shapes that are secrets
// regardless of entropy.
var knownTokenPrefixes = []string{
	"AKIA", "ghp_", "gho_", "ghu_", "ghs_", "ghr_",
	"xoxb-", "xoxp-", "xoxa-", "sk_live_", "rk_live_", "sk-",
	"-----BEGIN",
}

// IsSecretKey reports whether an env/config key name looks credential-shaped.
func IsSecretKey(key string) bool {
	return secretKeyRe.MatchString(key)
}

// LooksLikeSecret reports whether a value looks like a real credential:
// either a known provider token shape, or long enough and random-looking
// (mixed character classes, no spaces).
func LooksLikeSecret(value string) bool {
	v := strings.TrimSpace(strings.Trim(value, `"'`))
	for _, p := range knownTokenPrefixes {
		if strings.HasPrefix(v, p) {
			return true
		}
	}
	if len(v) < 16 || strings.ContainsAny(v, " \t") {
		return false
	}
	var hasUpper, hasLower, hasDigit bool
	for _, c := range v {
		switch {
		case c >= 'A' && c <= 'Z':
			hasUpper = true
		case c >= 'a' && c <= 'z':
			hasLower = true
		case c >= '0' && c <= '9':
			hasDigit = true
		}
	}
	classes := 0
	for _, b := range []bool{hasUpper, hasLower, hasDigit} {
		if b {
			classes++
		}
	}
	// Placeholder values ("changeme", "your-api-key-here") are single-class
	// or contain obvious filler words.
	lower := strings.ToLower(v)
	for _, filler := range []string{"example", "changeme", "placeholder", "your-", "xxxx", "dummy", "sample"} {
		if strings.Contains(lower, filler) {
			return false
		}
	}
	return classes >= 2
}

// InsecureFlagRules are configuration lines that disable transport security
// or leave debug surfaces on.
var InsecureFlagRules = []Rule{
	{ID: "cfg-tls-reject", Pattern: `NODE_TLS_REJECT_UNAUTHORIZED\s*=\s*['"]?0`, Severity: SeveritySuspicious, Category: CategoryConfiguration, Reason: "TLS certificate verification disabled"},
	{ID: "cfg-reject-unauthorized", Pattern: `rejectUnauthorized['"]?\s*[:=]\s*false`, Severity: SeveritySuspicious, Category: CategoryConfiguration, Reason: "TLS certificate verification disabled"},
	{ID: "cfg-verify-false", Pattern: `(?i)(ssl_)?verify\s*[:=]\s*(False|false|0)\b`, Severity: SeveritySuspicious, Category: CategoryConfiguration, Reason: "certificate verification disabled"},
	{ID: "cfg-insecure-skip-verify", Pattern: `(?i)insecure[_-]?skip[_-]?verify\s*[:=]\s*true`, Severity: SeveritySuspicious, Category: CategoryConfiguration, Reason: "certificate verification disabled"},
	{ID: "cfg-debug-enabled", Pattern: `(?i)\bdebug\s*[:=]\s*(true|1|on)\b`, Severity: SeveritySuspicious, Category: CategoryConfiguration, Reason: "debug mode enabled"},
	{ID: "cfg-plain-http", Pattern: `(?i)(endpoint|base_?url)\s*[:=]\s*['"]?http://`, Severity: SeveritySuspicious, Category: CategoryConfiguration, Reason: "plain HTTP endpoint"},
}

func init() {
	for i := range InsecureFlagRules {
		if err := InsecureFlagRules[i].Compile(); err != nil {
			panic(err)
		}
	}
}

// SecurePathPrefixes is the allow-list of path prefixes considered a
// well-managed install location. ~ is expanded by the scanner.
var SecurePathPrefixes = []string{
	"/usr/local/",
	"/usr/bin/",
	"/usr/lib/",
	"/opt/",
	"~/",
}

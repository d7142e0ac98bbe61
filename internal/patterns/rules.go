package patterns

import (
	"fmt"
	"regexp"
)

// Severity classifies how bad a single rule match is. Every finding lands in
// exactly one bucket.
type Severity string

const (
	// SeverityDangerous marks direct code-execution primitives.
	SeverityDangerous Severity = "dangerous"
	// SeveritySuspicious marks capability that is misusable but common.
	SeveritySuspicious Severity = "suspicious"
	// SeverityMalicious marks destructive or attack-tooling signatures.
	SeverityMalicious Severity = "malicious"
)

// Category names the scan pass a rule belongs to.
type Category string

const (
	CategoryCode          Category = "code"
	CategoryDependency    Category = "dependency"
	CategoryConfiguration Category = "configuration"
	CategoryPermission    Category = "permission"
)

// Rule is a single tagged scan rule. Rules are evaluated uniformly: the
// scanner walks the ordered rule list and applies every rule whose language
// list covers the file being scanned. An empty Languages list means the rule
// applies to every language family.
type Rule struct {
	ID        string   `yaml:"id"`
	Pattern   string   `yaml:"pattern"`
	Severity  Severity `yaml:"severity"`
	Category  Category `yaml:"category"`
	Languages []string `yaml:"languages,omitempty"`
	Reason    string   `yaml:"reason"`

	re *regexp.Regexp
}

// Compile prepares the rule's regex. Must be called before Match.
func (r *Rule) Compile() error {
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return fmt.Errorf("rule %s: invalid pattern: %w", r.ID, err)
	}
	r.re = re
	return nil
}

// Match reports whether the rule fires on the given line of source text.
func (r *Rule) Match(line string) bool {
	if r.re == nil {
		return false
	}
	return r.re.MatchString(line)
}

// AppliesTo reports whether the rule covers the given language family.
func (r *Rule) AppliesTo(language string) bool {
	if len(r.Languages) == 0 {
		return true
	}
	for _, l := range r.Languages {
		if l == language {
			return true
		}
	}
	return false
}

// LanguageForExt maps a file extension to a language family. Unknown
// extensions return "" and only language-agnostic rules apply.
func LanguageForExt(ext string) string {
	switch ext {
	case ".js", ".mjs", ".cjs", ".jsx", ".ts", ".tsx":
		return "javascript"
	case ".py", ".pyw":
		return "python"
	case ".sh", ".bash", ".zsh":
		return "shell"
	case ".go":
		return "go"
	case ".rb":
		return "ruby"
	default:
		return ""
	}
}

// SourceExts is the set of extensions the code-analysis pass reads.
var SourceExts = map[string]bool{
	".js": true, ".mjs": true, ".cjs": true, ".jsx": true,
	".ts": true, ".tsx": true,
	".py": true, ".pyw": true,
	".sh": true, ".bash": true, ".zsh": true,
	".go": true, ".rb": true,
}

// BuiltinRules returns the compiled built-in rule set. The returned slice is
// ordered and stable so scores are reproducible.
func BuiltinRules() []Rule {
	rules := []Rule{
		// ── javascript: direct execution primitives ──
		{ID: "js-eval", Pattern: `\beval\s*\(`, Severity: SeverityDangerous, Category: CategoryCode, Languages: []string{"javascript"}, Reason: "eval() executes arbitrary strings as code"},
		{ID: "js-new-function", Pattern: `new\s+Function\s*\(`, Severity: SeverityDangerous, Category: CategoryCode, Languages: []string{"javascript"}, Reason: "Function constructor executes arbitrary strings as code"},
		{ID: "js-child-process", Pattern: `child_process|\bexecSync\s*\(|\bspawnSync\s*\(`, Severity: SeverityDangerous, Category: CategoryCode, Languages: []string{"javascript"}, Reason: "spawns external processes"},
		{ID: "js-vm-run", Pattern: `vm\.run(InNewContext|InThisContext|Script)`, Severity: SeverityDangerous, Category: CategoryCode, Languages: []string{"javascript"}, Reason: "vm module code execution"},
		{ID: "js-dynamic-require", Pattern: `require\s*\(\s*[^'")\s]`, Severity: SeveritySuspicious, Category: CategoryCode, Languages: []string{"javascript"}, Reason: "dynamic require with computed module name"},
		{ID: "js-fs-unlink", Pattern: `\bfs\.(unlink|rm|rmdir)Sync?\s*\(`, Severity: SeveritySuspicious, Category: CategoryCode, Languages: []string{"javascript"}, Reason: "deletes files"},

		// ── python: direct execution primitives ──
		{ID: "py-eval", Pattern: `\beval\s*\(`, Severity: SeverityDangerous, Category: CategoryCode, Languages: []string{"python"}, Reason: "eval() executes arbitrary strings as code"},
		{ID: "py-exec", Pattern: `\bexec\s*\(`, Severity: SeverityDangerous, Category: CategoryCode, Languages: []string{"python"}, Reason: "exec() executes arbitrary strings as code"},
		{ID: "py-os-system", Pattern: `os\.(system|popen)\s*\(`, Severity: SeverityDangerous, Category: CategoryCode, Languages: []string{"python"}, Reason: "shells out via os.system/os.popen"},
		{ID: "py-subprocess-shell", Pattern: `subprocess\.[A-Za-z_]+\([^)]*shell\s*=\s*True`, Severity: SeverityDangerous, Category: CategoryCode, Languages: []string{"python"}, Reason: "subprocess with shell=True"},
		{ID: "py-pickle-loads", Pattern: `pickle\.loads?\s*\(`, Severity: SeverityDangerous, Category: CategoryCode, Languages: []string{"python"}, Reason: "unpickling untrusted data executes code"},
		{ID: "py-dunder-import", Pattern: `__import__\s*\(`, Severity: SeveritySuspicious, Category: CategoryCode, Languages: []string{"python"}, Reason: "dynamic import"},
		{ID: "py-os-remove", Pattern: `os\.(remove|unlink|rmdir)\s*\(|shutil\.rmtree\s*\(`, Severity: SeveritySuspicious, Category: CategoryCode, Languages: []string{"python"}, Reason: "deletes files"},

		// ── shell ──
		{ID: "sh-eval", Pattern: `\beval\b`, Severity: SeverityDangerous, Category: CategoryCode, Languages: []string{"shell"}, Reason: "eval executes arbitrary strings as code"},
		{ID: "sh-pipe-to-shell", Pattern: `(curl|wget)[^|]*\|\s*(ba|z|da)?sh\b`, Severity: SeverityMalicious, Category: CategoryCode, Languages: []string{"shell"}, Reason: "downloads and executes remote scripts"},

		// ── go ──
		{ID: "go-exec-command", Pattern: `exec\.Command(Context)?\s*\(`, Severity: SeverityDangerous, Category: CategoryCode, Languages: []string{"go"}, Reason: "spawns external processes"},
		{ID: "go-syscall-exec", Pattern: `syscall\.Exec\s*\(`, Severity: SeverityDangerous, Category: CategoryCode, Languages: []string{"go"}, Reason: "replaces the process image"},
		{ID: "go-unsafe", Pattern: `\bunsafe\.Pointer\b`, Severity: SeveritySuspicious, Category: CategoryCode, Languages: []string{"go"}, Reason: "bypasses type safety"},

		// ── language-agnostic: destructive / attack tooling ──
		{ID: "any-rm-rf-root", Pattern: `rm\s+-[a-zA-Z]*r[a-zA-Z]*f[a-zA-Z]*\s+/(\s|$|['"])`, Severity: SeverityMalicious, Category: CategoryCode, Reason: "recursive delete of the filesystem root"},
		{ID: "any-fork-bomb", Pattern: `:\(\)\s*\{\s*:\|\:&\s*\}`, Severity: SeverityMalicious, Category: CategoryCode, Reason: "fork bomb"},
		{ID: "any-dd-device", Pattern: `dd\s+[^#\n]*of=/dev/(sd|nvme|hd|disk)`, Severity: SeverityMalicious, Category: CategoryCode, Reason: "raw write to a block device"},
		{ID: "any-mkfs", Pattern: `\bmkfs(\.[a-z0-9]+)?\b`, Severity: SeverityMalicious, Category: CategoryCode, Reason: "reformats filesystems"},
		{ID: "any-scan-tool", Pattern: `\b(nmap|masscan|metasploit|msfvenom|mimikatz|sqlmap|hydra)\b`, Severity: SeverityMalicious, Category: CategoryCode, Reason: "invokes offensive scanning tooling"},
		{ID: "any-reverse-shell", Pattern: `(nc|ncat)\s+[^#\n]*-e\s|/dev/tcp/`, Severity: SeverityMalicious, Category: CategoryCode, Reason: "reverse shell pattern"},
		{ID: "any-cryptominer", Pattern: `\bxmrig\b|stratum\+tcp://`, Severity: SeverityMalicious, Category: CategoryCode, Reason: "cryptominer signature"},
		{ID: "any-keylogger", Pattern: `\b(keylogger|keystroke\s+log)`, Severity: SeverityMalicious, Category: CategoryCode, Reason: "keylogging signature"},

		// ── language-agnostic: sensitive system access ──
		{ID: "any-etc-shadow", Pattern: `/etc/(shadow|sudoers)\b`, Severity: SeverityDangerous, Category: CategoryCode, Reason: "reads privileged system files"},
		{ID: "any-ssh-keys", Pattern: `\.ssh/(id_rsa|id_ed25519|id_ecdsa)\b`, Severity: SeverityDangerous, Category: CategoryCode, Reason: "touches SSH private keys"},
		{ID: "any-cloud-creds", Pattern: `\.(aws|kube|docker)/(credentials|config)\b`, Severity: SeveritySuspicious, Category: CategoryCode, Reason: "touches cloud credential files"},
		{ID: "any-base64-exec", Pattern: `base64\s+(-d|--decode)[^#\n]*\|\s*(ba|z)?sh`, Severity: SeverityMalicious, Category: CategoryCode, Reason: "decodes and executes hidden payloads"},
		{ID: "any-env-harvest", Pattern: `process\.env\s*\)|os\.environ\s*\)|printenv\b`, Severity: SeveritySuspicious, Category: CategoryCode, Reason: "harvests the full environment"},
		{ID: "any-net-listen", Pattern: `\b(net\.createServer|socket\.bind|http\.createServer)\b`, Severity: SeveritySuspicious, Category: CategoryCode, Reason: "opens a listening socket"},
	}

	for i := range rules {
		// Built-in patterns are fixed strings; a compile failure here is a
		// programming error, not an input error.
		if err := rules[i].Compile(); err != nil {
			panic(err)
		}
	}
	return rules
}

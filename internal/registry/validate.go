package registry

import (
	"fmt"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/davner/mcpguard/internal/patterns"
)

// ValidateEntry checks one registry entry against the safety rules and
// returns every violation found.
func ValidateEntry(name string, sd ServiceDescriptor) []string {
	var violations []string

	if strings.TrimSpace(name) == "" {
		violations = append(violations, "entry name must not be empty")
	}

	violations = append(violations, validateCommand(name, sd.Command)...)

	for i, arg := range sd.Args {
		if reason := checkArg(arg); reason != "" {
			violations = append(violations,
				fmt.Sprintf("%s: args[%d] %q rejected: %s", name, i, arg, reason))
		}
	}

	for key, value := range sd.Env {
		if patterns.NonSecretEnvKeys[key] {
			continue
		}
		if patterns.LooksLikeSecret(value) {
			violations = append(violations,
				fmt.Sprintf("%s: env %s holds a secret-like value; use a secret manager reference instead", name, key))
		}
	}

	for _, capability := range sd.AutoApprove {
		if patterns.DangerousCapabilities[capability] {
			violations = append(violations,
				fmt.Sprintf("%s: autoApprove %q is a dangerous capability and cannot be pre-approved", name, capability))
		}
	}

	return violations
}

func validateCommand(name, command string) []string {
	if strings.TrimSpace(command) == "" {
		return []string{fmt.Sprintf("%s: command must not be empty", name)}
	}

	base := strings.ToLower(filepath.Base(command))
	if patterns.DeniedLaunchers[base] {
		return []string{fmt.Sprintf("%s: command %q is a shell interpreter and is always rejected", name, command)}
	}

	if filepath.IsAbs(command) {
		if strings.Contains(command, "..") {
			return []string{fmt.Sprintf("%s: command path %q contains a traversal sequence", name, command)}
		}
		return nil
	}

	if !patterns.AllowedLaunchers[base] || base != command {
		return []string{fmt.Sprintf("%s: command %q must be an absolute path or one of the allowed launchers", name, command)}
	}
	return nil
}

// checkArg decides whether a single argument is safe. Recognized safe shapes
// (flags, KEY=value, image references, single-level relative paths) pass;
// everything else must clear the dangerous-content pattern and a shell parse
// that proves the argument is one plain word.
func checkArg(arg string) string {
	if arg == "" {
		return ""
	}
	if patterns.IsSafeParameter(arg) || patterns.IsLegitimateRelativePath(arg) {
		return ""
	}
	if strings.Contains(arg, "../") || strings.Contains(arg, "..\\") {
		return "multi-level path traversal"
	}
	if patterns.HasDangerousContent(arg) {
		return "shell metacharacters or destructive content"
	}
	if hasShellConstruct(arg) {
		return "embedded shell construct"
	}
	return ""
}

// hasShellConstruct parses the argument as a shell word and reports whether
// it contains anything beyond a single literal: command substitution,
// expansions, pipes, redirects, or multiple statements. Catches constructs
// the metacharacter regex cannot see through quoting.
func hasShellConstruct(arg string) bool {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(arg), "")
	if err != nil {
		// Unparseable as shell means it cannot smuggle shell syntax.
		return false
	}

	if len(file.Stmts) > 1 {
		return true
	}

	unsafe := false
	syntax.Walk(file, func(node syntax.Node) bool {
		switch node.(type) {
		case *syntax.CmdSubst, *syntax.ProcSubst, *syntax.BinaryCmd, *syntax.Redirect, *syntax.ArithmExp:
			unsafe = true
			return false
		}
		return true
	})
	if unsafe {
		return true
	}

	// A single call of more than one word means the arg would split if it
	// ever reached a shell.
	for _, stmt := range file.Stmts {
		if call, ok := stmt.Cmd.(*syntax.CallExpr); ok && len(call.Args) > 1 {
			return true
		}
	}
	return false
}

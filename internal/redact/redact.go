// Package redact strips credential-shaped values from text before it is
// written to the audit log.
package redact

import (
	"regexp"
)

var sensitivePatterns = []*regexp.Regexp{
	// AWS
	regexp.MustCompile(`(?i)(aws_access_key_id|aws_secret_access_key|aws_session_token)\s*[=:]\s*['"]?[A-Za-z0-9/+=]{20,}['"]?`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),

	// GitHub
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36}`),

	// Generic API keys and tokens
	regexp.MustCompile(`(?i)(api_key|apikey|api-key|secret_key|secretkey|secret-key|access_token|auth_token)\s*[=:]\s*['"]?[A-Za-z0-9_-]{16,}['"]?`),

	// Private keys
	regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY-----`),

	// Bearer tokens
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_.-]{20,}`),

	// Basic auth in URLs
	regexp.MustCompile(`https?://[^:/\s]+:[^@\s]+@`),

	// Slack
	regexp.MustCompile(`xox[baprs]-[0-9]{10,13}-[0-9]{10,13}[a-zA-Z0-9-]*`),

	// Stripe
	regexp.MustCompile(`[sr]k_live_[0-9a-zA-Z]{24}`),

	// Generic password assignments
	regexp.MustCompile(`(?i)(password|passwd|pwd|secret)\s*[=:]\s*['"]?[^\s'"]{8,}['"]?`),
}

const placeholder = "[REDACTED]"

// Redact replaces credential-shaped substrings with a placeholder.
func Redact(input string) string {
	result := input
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, placeholder)
	}
	return result
}

// RedactList redacts every element of a string slice.
func RedactList(items []string) []string {
	if items == nil {
		return nil
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = Redact(item)
	}
	return out
}

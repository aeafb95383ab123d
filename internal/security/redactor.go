// Package security redacts credentials from chunk content before it is
// embedded or stored.
package security

import (
	"regexp"
	"strings"
)

type secretPattern struct {
	name   string
	regex  *regexp.Regexp
	redact func(match string) string
}

// Redactor scrubs secrets from chunk content. Placeholder-looking lines
// (examples, templates) are left untouched.
type Redactor struct {
	patterns     []secretPattern
	placeholders []string
}

// NewRedactor creates a redactor with the default pattern set.
func NewRedactor() *Redactor {
	quoted := regexp.MustCompile(`["'][^"']+["']`)
	return &Redactor{
		patterns: []secretPattern{
			{
				name:  "api_key",
				regex: regexp.MustCompile(`(?i)(api[_-]?key|apikey|api_secret)\s*[=:]\s*["']([a-zA-Z0-9_\-]{20,})["']`),
				redact: func(match string) string {
					return quoted.ReplaceAllString(match, `"[REDACTED]"`)
				},
			},
			{
				name:   "aws_access_key",
				regex:  regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
				redact: func(string) string { return "[REDACTED_AWS_KEY]" },
			},
			{
				name:  "password",
				regex: regexp.MustCompile(`(?i)(password|passwd|pwd|secret)\s*[=:]\s*["']([^\s"']{8,})["']`),
				redact: func(match string) string {
					return quoted.ReplaceAllString(match, `"[REDACTED]"`)
				},
			},
			{
				name:  "connection_string",
				regex: regexp.MustCompile(`(?i)(mongodb|postgres|mysql|redis|amqp)://[^\s"']+`),
				redact: func(match string) string {
					re := regexp.MustCompile(`(://[^:]+:)[^@]+(@)`)
					return re.ReplaceAllString(match, "${1}[REDACTED]${2}")
				},
			},
			{
				name:   "private_key",
				regex:  regexp.MustCompile(`-----BEGIN (RSA |EC |DSA )?PRIVATE KEY-----`),
				redact: func(string) string { return "[REDACTED_PRIVATE_KEY]" },
			},
			{
				name:   "jwt_token",
				regex:  regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`),
				redact: func(string) string { return "[REDACTED_JWT]" },
			},
		},
		placeholders: []string{
			"your-", "example", "placeholder", "xxx", "changeme",
			"TODO", "FIXME", "<", ">", "${", "{{",
		},
	}
}

// Redact scrubs secrets line by line and reports whether anything changed.
func (r *Redactor) Redact(content string) (string, bool) {
	lines := strings.Split(content, "\n")
	changed := false

	for i, line := range lines {
		if r.isPlaceholder(line) {
			continue
		}
		for _, pattern := range r.patterns {
			if pattern.regex.MatchString(line) {
				line = pattern.regex.ReplaceAllStringFunc(line, pattern.redact)
				changed = true
			}
		}
		lines[i] = line
	}

	if !changed {
		return content, false
	}
	return strings.Join(lines, "\n"), true
}

func (r *Redactor) isPlaceholder(line string) bool {
	lower := strings.ToLower(line)
	for _, p := range r.placeholders {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

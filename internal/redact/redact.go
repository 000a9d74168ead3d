// Package redact scrubs sensitive material from error messages before they
// reach logs or HTTP responses: credentials, tokens, SQL text, file paths,
// and addresses that would otherwise leak through wrapped store errors.
package redact

import "regexp"

// A rule pairs a pattern with the placeholder that replaces its matches.
// Rules apply in order; earlier rules may swallow text a later rule would
// otherwise match (a "token: xxx" credential is taken by the key rule before
// the JWT rule ever sees it).
type rule struct {
	pattern     *regexp.Regexp
	placeholder string
}

var rules = []rule{
	// Connection strings with embedded credentials.
	{regexp.MustCompile(`(?i)(postgres|mysql|mongodb|redis|db|database|connection)://[^@]+@`), "[REDACTED_CREDENTIAL]"},

	// Bare credentials and API material.
	{regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`), "[REDACTED_CREDENTIAL]"},
	{regexp.MustCompile(`(?i)(api[_-]?key|token|secret|key|access|auth)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`), "[REDACTED_KEY]"},
	{regexp.MustCompile(`(AKIA|AccessKey(Id)?)([^a-zA-Z0-9])?[A-Z0-9]{8,}`), "[REDACTED_KEY]"},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), "[REDACTED_JWT]"},

	// Filesystem locations.
	{regexp.MustCompile(`(/[\w.-]+){2,}`), "[REDACTED_PATH]"},
	{regexp.MustCompile(`[A-Za-z]:\\[^\\]+(\\[^\\]+)+`), "[REDACTED_PATH]"},

	// Panic output carries source paths and internal state.
	{regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`), "[STACK_TRACE_REDACTED]"},

	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`), "[REDACTED_EMAIL]"},

	// SQL text exposes schema and literal values from failed queries.
	{regexp.MustCompile(`(?i)(SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP|GRANT)[\s\w,*()]+(?:FROM|INTO|SET|TABLE|DATABASE|SCHEMA|VIEW)(?:[\s\w,*()='"]+)?`), "[REDACTED_SQL]"},
	{regexp.MustCompile(`(?:at )?line ?\d+`), "[REDACTED_LINE_NUMBER]"},
	{regexp.MustCompile(`(?i)syntax error|syntax problem|parse error`), "[REDACTED_SYNTAX_ERROR]"},

	{regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}(?::\d{1,5})?\b`), "[REDACTED_HOST]"},
	{regexp.MustCompile(`(?i)(?:no such file|file not found|can't open|cannot open|file error)`), "[REDACTED_FILE_ERROR]"},
}

// String applies every redaction rule to the input in order.
func String(input string) string {
	if input == "" {
		return input
	}
	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.placeholder)
	}
	return result
}

// Error redacts err's message. A nil error redacts to the empty string.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

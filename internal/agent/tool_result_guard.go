package agent

import "regexp"

// DefaultLogTruncateWidth is the fixed width tool args/results are truncated
// to for structured logging (spec §4.2 invariant (c)): long strings are
// truncated for the log line but never for what is fed back to the model.
const DefaultLogTruncateWidth = 512

// builtinSecretPatterns detects common secret shapes so they never land in a
// log line even if a tool's own output forgot to redact them.
var builtinSecretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*['"]?[\w-]{20,}['"]?`),
	regexp.MustCompile(`(?i)bearer\s+[\w-\.]+`),
	regexp.MustCompile(`(?i)(aws|amazon).*?(key|secret|token)\s*[:=]\s*['"]?[\w/+=]{20,}['"]?`),
	regexp.MustCompile(`(?i)(password|passwd|secret|token)\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`),
	regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`),
}

// RedactSecrets replaces any substring matching a builtin secret pattern
// with "[REDACTED]".
func RedactSecrets(s string) string {
	for _, re := range builtinSecretPatterns {
		s = re.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}

// TruncateForLog shortens s to width runes for a structured log line,
// appending a truncation marker. It never mutates what is returned to the
// model — callers must pass the original string there.
func TruncateForLog(s string, width int) string {
	if width <= 0 {
		width = DefaultLogTruncateWidth
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width]) + "...[truncated]"
}

// logSafe renders a (name, args, result) triple for the structured tool-call
// log line, secret-redacted and width-truncated per spec §4.2 invariants
// (b) and (c).
func logSafe(s string) string {
	return TruncateForLog(RedactSecrets(s), DefaultLogTruncateWidth)
}

// SanitizeToolResultForLog applies the same truncate+redact treatment the
// Runner uses on every tool_result log line, exposed for tools that want to
// pre-sanitize before handing a result to the registry.
func SanitizeToolResultForLog(content string) string {
	return logSafe(content)
}

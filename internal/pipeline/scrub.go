package pipeline

import "regexp"

// Credential patterns scrubbed from upstream error text before it reaches a
// client in a terminal record.
var credentialPatterns = []*regexp.Regexp{
	// OpenAI and DashScope style keys (sk-..., sk-proj-...)
	regexp.MustCompile(`sk-[A-Za-z0-9_-]{20,}`),
	// ElevenLabs
	regexp.MustCompile(`sk_[A-Za-z0-9]{32,}`),
	// Google API keys
	regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`),
	// AWS
	regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
	// key=value and key: value pairs
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password|bearer|authorization)\s*[:=]\s*["']?[^\s"'&]{8,}["']?`),
}

const redactedPlaceholder = "[REDACTED]"

// scrubCredentials replaces known credential patterns in text with [REDACTED].
func scrubCredentials(text string) string {
	for _, pat := range credentialPatterns {
		text = pat.ReplaceAllString(text, redactedPlaceholder)
	}
	return text
}

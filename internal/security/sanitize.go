// Package security holds the input hygiene rules shared by every entry point
// that accepts user-authored text or files.
package security

import (
	"regexp"
	"strings"
)

var (
	scriptBlock   = regexp.MustCompile(`(?is)<script\b.*?</script>`)
	iframeBlock   = regexp.MustCompile(`(?is)<iframe\b.*?</iframe>`)
	danglingTag   = regexp.MustCompile(`(?i)<\s*/?\s*(script|iframe)\b[^>]*>?`)
	jsScheme      = regexp.MustCompile(`(?i)javascript:`)
	inlineHandler = regexp.MustCompile(`(?i)on\w+\s*=`)

	apiKeyPattern = regexp.MustCompile(`^sk-or-v1-[a-f0-9]{64}$`)
)

// SanitizeInput strips script and iframe blocks along with any unpaired
// script or iframe tags, javascript: schemes and inline event handler
// attributes, then trims surrounding whitespace. Removal repeats until
// nothing matches, so fragments that join into a new pattern after one pass
// ("jajavascript:vascript:", "<scr<script></script>ipt>") are removed as well.
func SanitizeInput(input string) string {
	out := input
	for {
		next := scriptBlock.ReplaceAllString(out, "")
		next = iframeBlock.ReplaceAllString(next, "")
		next = danglingTag.ReplaceAllString(next, "")
		next = jsScheme.ReplaceAllString(next, "")
		next = inlineHandler.ReplaceAllString(next, "")
		if next == out {
			break
		}
		out = next
	}
	return strings.TrimSpace(out)
}

// ValidateAPIKey reports whether key has the shape of an OpenRouter API key.
func ValidateAPIKey(key string) bool {
	return apiKeyPattern.MatchString(key)
}

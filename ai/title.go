package ai

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultChatTitle is the title of a freshly created chat.
	DefaultChatTitle = "New Chat"
	// FileUploadTitleSource is summarized when the first message carries only attachments.
	FileUploadTitleSource = "File Upload"

	titleMaxChars  = 25
	titleCutChars  = 22
	titleMaxWords  = 4
	titleFallbackN = 3
)

var (
	leadingQuestionWord = regexp.MustCompile(`(?i)^(what|how|why|when|where|who|can|could|would|should|is|are|do|does|did|will|help|explain|tell|show)\s+`)
	trailingPunctuation = regexp.MustCompile(`[?!.]+$`)

	titleStopWords = map[string]struct{}{
		"the": {}, "and": {}, "for": {}, "with": {}, "you": {}, "me": {},
		"my": {}, "this": {}, "that": {}, "about": {}, "from": {},
	}
)

// SummarizeTitle derives a short chat title from the first message of a chat.
// The result is at most 25 characters with its first letter capitalized.
func SummarizeTitle(message string) string {
	cleaned := strings.ToLower(message)
	cleaned = leadingQuestionWord.ReplaceAllString(cleaned, "")
	cleaned = trailingPunctuation.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	var words []string
	for _, w := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(w) <= 2 {
			continue
		}
		if _, stop := titleStopWords[w]; stop {
			continue
		}
		words = append(words, w)
	}

	title := joinFirst(words, titleMaxWords)
	for n := titleMaxWords - 1; n >= 2 && runeLen(title) > titleMaxChars; n-- {
		title = joinFirst(words, n)
	}

	if runeLen(title) > titleMaxChars || runeLen(title) < 3 {
		title = joinFirst(strings.Fields(message), titleFallbackN)
		if runeLen(title) > titleMaxChars {
			title = string([]rune(title)[:titleCutChars]) + "..."
		}
	}

	return capitalize(title)
}

func joinFirst(words []string, n int) string {
	if len(words) < n {
		n = len(words)
	}
	return strings.Join(words[:n], " ")
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

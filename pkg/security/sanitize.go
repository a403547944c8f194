package security

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

// Ride bookings carry free-text fields typed by call takers and members
// (addresses, mobility notes, cancellation reasons). Everything here is
// defense in depth on top of parameterized queries and JSON encoding.
var (
	sqlInjectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(union\s+select|insert\s+into|delete\s+from|drop\s+table|update\s+.*set)`),
		regexp.MustCompile(`(?i)(exec\s*\(|execute\s*\(|script\s*>|javascript:)`),
	}

	xssPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<script[^>]*>.*?</script>`),
		regexp.MustCompile(`(?i)<iframe[^>]*>.*?</iframe>`),
		regexp.MustCompile(`(?i)on\w+\s*=`), // onclick, onload, etc.
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)<embed[^>]*>`),
		regexp.MustCompile(`(?i)<object[^>]*>`),
	}

	htmlTagsRegex   = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// SanitizeString trims whitespace and strips null bytes and control
// characters, keeping newlines and tabs.
func SanitizeString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")
	return removeControlCharacters(input)
}

// SanitizeInput is the general-purpose scrub applied to every string that
// enters through query parameters or JSON bodies. maxLength of 0 means
// unbounded.
func SanitizeInput(input string, maxLength int) string {
	input = SanitizeString(input)
	input = sanitizeForXSS(input)
	input = sanitizeForSQL(input)
	input = normalizeWhitespace(input)
	if maxLength > 0 && len(input) > maxLength {
		input = input[:maxLength]
	}
	return input
}

// StripHTMLTags removes all HTML tags. Used when logging request bodies.
func StripHTMLTags(input string) string {
	return htmlTagsRegex.ReplaceAllString(input, "")
}

func sanitizeForSQL(input string) string {
	for _, pattern := range sqlInjectionPatterns {
		if pattern.MatchString(input) {
			input = pattern.ReplaceAllString(input, "")
		}
	}
	return input
}

func sanitizeForXSS(input string) string {
	for _, pattern := range xssPatterns {
		input = pattern.ReplaceAllString(input, "")
	}
	return html.EscapeString(input)
}

func removeControlCharacters(input string) string {
	var result strings.Builder
	for _, r := range input {
		if unicode.IsPrint(r) || r == '\n' || r == '\t' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

func normalizeWhitespace(input string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(input, " "))
}

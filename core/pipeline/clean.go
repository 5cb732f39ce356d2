package pipeline

import (
	"regexp"
	"strings"
)

var (
	referenceMarker = regexp.MustCompile(`\[\d+(?:\s*[,\-–]\s*\d+)*\]`)
	figureReference = regexp.MustCompile(`(?i)\((?:fig(?:ure)?|table)\s*\.?\s*\d+[a-z]?\)`)
	urlPattern      = regexp.MustCompile(`https?://\S+`)
	whitespace      = regexp.MustCompile(`\s+`)
)

// CleanText removes numeric reference markers, figure and table references
// and URLs, and collapses whitespace.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = referenceMarker.ReplaceAllString(text, "")
	text = figureReference.ReplaceAllString(text, "")
	text = urlPattern.ReplaceAllString(text, "")
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

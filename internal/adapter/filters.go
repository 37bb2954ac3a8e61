package adapter

import "strings"

// irrelevantKeywords matches top-nav and utility text that leaks into
// naive text parsing of listing pages.
var irrelevantKeywords = []string{
	"ticket",
	"tickets",
	"donate",
	"membership",
	"member",
	"shop",
}

// IsIrrelevantTitle reports whether a candidate title is site chrome
// rather than an activity. The match is on the leading word only so real
// titles that merely mention tickets survive.
func IsIrrelevantTitle(title string) bool {
	normalized := strings.ToLower(strings.TrimSpace(title))
	if normalized == "" {
		return true
	}
	for _, keyword := range irrelevantKeywords {
		if normalized == keyword || strings.HasPrefix(normalized, keyword+" ") {
			return true
		}
	}
	return false
}

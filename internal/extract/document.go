package extract

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// htmlTagPattern matches common HTML tags to detect whether a fetched body
// is markup at all (some sources hand back JSON or plain text).
var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote|article|section|table)[\s>/]`)

var blankRunPattern = regexp.MustCompile(`\n{3,}`)

func containsHTML(s string) bool {
	return htmlTagPattern.MatchString(strings.ToLower(s))
}

// DocumentText renders a fetched page down to readable text for the
// model fallback: markdown keeps headings, links, and list structure the
// extraction prompt leans on. Output is capped at maxChars runes; 0 means
// no cap.
func DocumentText(body []byte, maxChars int) string {
	text := string(body)
	if containsHTML(text) {
		if markdown, err := htmltomarkdown.ConvertString(text); err == nil {
			text = markdown
		}
	}
	text = strings.TrimSpace(blankRunPattern.ReplaceAllString(text, "\n\n"))

	if maxChars > 0 {
		runes := []rune(text)
		if len(runes) > maxChars {
			text = string(runes[:maxChars])
		}
	}
	return text
}

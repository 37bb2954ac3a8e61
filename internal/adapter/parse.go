package adapter

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Shared parsing helpers for museum listing pages. Every museum publishes
// dates, times, and age wording in nearly the same handful of shapes, so
// the per-source adapters share one toolbox.

var (
	ageRangeRe = regexp.MustCompile(`(?i)\bages?\s*(\d{1,2})\s*(?:-|\x{2013}|to)\s*(\d{1,2})\b`)
	agePlusRe  = regexp.MustCompile(`(?i)\bages?\s*(\d{1,2})\+`)

	dateTimeRe = regexp.MustCompile(`(?i)([A-Za-z]{3,9}\s+\d{1,2},\s+\d{4})(?:[^\d]+(\d{1,2}(?::\d{2})?\s*(?:a\.?m\.?|p\.?m\.?)))?`)

	timeRangeRe  = regexp.MustCompile(`(?i)(\d{1,2})(?::(\d{2}))?\s*(a\.?m\.?|p\.?m\.?)?\s*(?:-|\x{2013}|\x{2014}|to)\s*(\d{1,2})(?::(\d{2}))?\s*(a\.?m\.?|p\.?m\.?)`)
	timeSingleRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(a\.?m\.?|p\.?m\.?)\b`)
)

// normalizeSpace collapses runs of whitespace (including NBSP) to single
// spaces and trims the ends.
func normalizeSpace(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.Join(strings.Fields(s), " ")
}

// parseAgeRange extracts an explicit age range or open-ended minimum from
// free text. Returns nils when the text says nothing about ages.
func parseAgeRange(blob string) (ageMin, ageMax *int) {
	if m := ageRangeRe.FindStringSubmatch(blob); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		return &lo, &hi
	}
	if m := agePlusRe.FindStringSubmatch(blob); m != nil {
		lo, _ := strconv.Atoi(m[1])
		return &lo, nil
	}
	return nil, nil
}

// parseClock extracts a wall-clock start time from free text. Range forms
// like "2:00–4:00 p.m." yield the start of the range; the meridiem may
// trail the range end only.
func parseClock(text string) (hour, minute int, ok bool) {
	normalized := normalizeSpace(text)

	if m := timeRangeRe.FindStringSubmatch(normalized); m != nil {
		h, _ := strconv.Atoi(m[1])
		min := 0
		if m[2] != "" {
			min, _ = strconv.Atoi(m[2])
		}
		meridiem := m[3]
		if meridiem == "" {
			meridiem = m[6]
		}
		if meridiem != "" {
			h, min = to24h(h, min, meridiem)
			return h, min, true
		}
	}

	if m := timeSingleRe.FindStringSubmatch(normalized); m != nil {
		h, _ := strconv.Atoi(m[1])
		min := 0
		if m[2] != "" {
			min, _ = strconv.Atoi(m[2])
		}
		h, min = to24h(h, min, m[3])
		return h, min, true
	}

	return 0, 0, false
}

func to24h(hour, minute int, meridiem string) (int, int) {
	suffix := strings.ToLower(strings.ReplaceAll(meridiem, ".", ""))
	if suffix == "pm" && hour != 12 {
		hour += 12
	}
	if suffix == "am" && hour == 12 {
		hour = 0
	}
	return hour, minute
}

// parseDateTime understands the timestamp shapes museum pages publish:
// ISO 8601 (with or without offset) and "January 2, 2026" optionally
// followed by a clock time. Times without an offset are taken as wall
// time; the normalizer attaches the venue timezone downstream.
func parseDateTime(value string) (time.Time, bool) {
	text := strings.TrimSpace(value)
	if text == "" {
		return time.Time{}, false
	}

	if strings.HasSuffix(text, "Z") {
		text = strings.TrimSuffix(text, "Z") + "+00:00"
	}
	for _, layout := range []string{
		"2006-01-02T15:04:05-07:00",
		"2006-01-02T15:04:05.999999-07:00",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}

	m := dateTimeRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}

	var day time.Time
	var err error
	for _, layout := range []string{"January 2, 2006", "Jan 2, 2006"} {
		day, err = time.Parse(layout, m[1])
		if err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, false
	}

	if hour, minute, ok := parseClock(text); ok {
		day = day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
	}
	return day, true
}

// resolveURL joins a possibly relative href against the listing URL.
func resolveURL(listURL, href string) string {
	base, err := url.Parse(listURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// eventObjectsFromScripts walks every <script> in the document looking for
// structured event data: ld+json blocks, Next.js __NEXT_DATA__ payloads,
// and as a last resort the first JSON object embedded in any script body.
func eventObjectsFromScripts(doc *goquery.Document) []map[string]any {
	var events []map[string]any

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}

		var candidates []string
		scriptType, _ := s.Attr("type")
		scriptID, _ := s.Attr("id")
		if scriptType == "application/ld+json" || scriptID == "__NEXT_DATA__" {
			candidates = append(candidates, text)
		} else if obj := firstJSONObject(text); obj != "" {
			candidates = append(candidates, obj)
		}

		for _, candidate := range candidates {
			var data any
			if err := json.Unmarshal([]byte(candidate), &data); err != nil {
				continue
			}
			walkEventObjects(data, func(obj map[string]any) {
				events = append(events, obj)
			})
		}
	})

	return events
}

// firstJSONObject cuts the outermost {...} span out of a script body.
func firstJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return ""
	}
	return text[start : end+1]
}

func walkEventObjects(node any, visit func(map[string]any)) {
	switch v := node.(type) {
	case map[string]any:
		if isEventType(v["@type"]) || looksLikeEvent(v) {
			visit(v)
		}
		for _, value := range v {
			walkEventObjects(value, visit)
		}
	case []any:
		for _, item := range v {
			walkEventObjects(item, visit)
		}
	}
}

func isEventType(value any) bool {
	switch v := value.(type) {
	case string:
		return strings.EqualFold(v, "event")
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.EqualFold(s, "event") {
				return true
			}
		}
	}
	return false
}

func looksLikeEvent(obj map[string]any) bool {
	hasTitle := stringField(obj, "name", "title", "headline") != ""
	hasTime := stringField(obj, "startDate", "start_date", "date") != ""
	return hasTitle && hasTime
}

// stringField returns the first non-empty key rendered as normalized text.
// Lists and nested objects are flattened the way listing JSON nests them.
func stringField(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if text := anyToText(obj[key]); text != "" {
			return text
		}
	}
	return ""
}

func anyToText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return normalizeSpace(v)
	case bool:
		return strconv.FormatBool(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	case []any:
		var parts []string
		for _, item := range v {
			if text := anyToText(item); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		var parts []string
		for _, item := range v {
			if text := anyToText(item); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return normalizeSpace(fmt.Sprint(v))
	}
}

// locationName pulls a human-readable location out of the polymorphic
// "location" shapes in event JSON (string, object with name/address, list).
func locationName(value any) string {
	switch v := value.(type) {
	case string:
		return normalizeSpace(v)
	case map[string]any:
		if name := anyToText(v["name"]); name != "" {
			return name
		}
		return anyToText(v["address"])
	case []any:
		var parts []string
		for _, item := range v {
			if name := locationName(item); name != "" {
				parts = append(parts, name)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

// textLines flattens the document into trimmed, non-empty text lines,
// one per text node, preserving document order. Script and style bodies
// are skipped.
func textLines(doc *goquery.Document) []string {
	var b strings.Builder
	for _, n := range doc.Nodes {
		collectText(n, &b)
	}
	raw := strings.Split(b.String(), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if cleaned := normalizeSpace(line); cleaned != "" {
			lines = append(lines, cleaned)
		}
	}
	return lines
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteByte('\n')
		return
	}
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

// stripHTMLFragment renders an escaped HTML fragment down to plain text.
func stripHTMLFragment(fragment string) string {
	if fragment == "" {
		return ""
	}
	unescaped := htmlUnescape(fragment)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(unescaped))
	if err != nil {
		return normalizeSpace(unescaped)
	}
	return normalizeSpace(doc.Text())
}

func htmlUnescape(s string) string {
	return html.UnescapeString(s)
}

// mentionsDropIn reports whether blob uses drop-in wording, tolerating
// both hyphenated and spaced forms.
func mentionsDropIn(blob string) bool {
	low := strings.ToLower(blob)
	return strings.Contains(low, "drop-in") || strings.Contains(low, "drop in")
}

// mentionsRegistration reports whether blob requires registration.
func mentionsRegistration(blob string) bool {
	low := strings.ToLower(blob)
	return strings.Contains(low, "registration") && !strings.Contains(low, "not required")
}

package adapter

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestNormalizeSpace(t *testing.T) {
	assert.Equal(t, "Teen Night at the Museum", normalizeSpace("  Teen \n Night\tat the Museum  "))
	assert.Equal(t, "", normalizeSpace("   \n\t  "))
}

func TestParseAgeRange(t *testing.T) {
	tests := []struct {
		name string
		blob string
		min  *int
		max  *int
	}{
		{"hyphen range", "Open studio for ages 13-18.", intPtr(13), intPtr(18)},
		{"en dash range", "Ages 11–14 welcome", intPtr(11), intPtr(14)},
		{"word range", "age 6 to 9", intPtr(6), intPtr(9)},
		{"plus", "Ages 15+ only", intPtr(15), nil},
		{"no mention", "Drop-in drawing for everyone", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			min, max := parseAgeRange(tt.blob)
			assert.Equal(t, tt.min, min)
			assert.Equal(t, tt.max, max)
		})
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		hour   int
		minute int
		ok     bool
	}{
		{"simple pm", "Starts at 2:30 PM", 14, 30, true},
		{"simple am", "10 a.m. sharp", 10, 0, true},
		{"noon", "12 PM", 12, 0, true},
		{"midnight", "12:00 AM", 0, 0, true},
		{"range takes start", "2:00–4:00 p.m.", 14, 0, true},
		{"range with both meridiems", "11:30 a.m. - 1:00 p.m.", 11, 30, true},
		{"no clock", "Saturday open studio", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hour, minute, ok := parseClock(tt.text)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.hour, hour)
				assert.Equal(t, tt.minute, minute)
			}
		})
	}
}

func TestParseDateTime(t *testing.T) {
	t.Run("iso with offset", func(t *testing.T) {
		got, ok := parseDateTime("2026-03-07T14:00:00-05:00")
		require.True(t, ok)
		assert.True(t, got.Equal(time.Date(2026, 3, 7, 14, 0, 0, 0, time.FixedZone("", -5*3600))))
	})

	t.Run("iso zulu", func(t *testing.T) {
		got, ok := parseDateTime("2026-03-07T19:00:00Z")
		require.True(t, ok)
		assert.True(t, got.Equal(time.Date(2026, 3, 7, 19, 0, 0, 0, time.UTC)))
	})

	t.Run("bare date", func(t *testing.T) {
		got, ok := parseDateTime("2026-03-07")
		require.True(t, ok)
		assert.Equal(t, time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("long form with clock", func(t *testing.T) {
		got, ok := parseDateTime("March 7, 2026 at 2:00 PM")
		require.True(t, ok)
		assert.Equal(t, time.Date(2026, 3, 7, 14, 0, 0, 0, time.UTC), got)
	})

	t.Run("long form date only", func(t *testing.T) {
		got, ok := parseDateTime("March 7, 2026")
		require.True(t, ok)
		assert.Equal(t, time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("no date", func(t *testing.T) {
		_, ok := parseDateTime("Drop-in drawing")
		assert.False(t, ok)
		_, ok = parseDateTime("")
		assert.False(t, ok)
	})
}

func TestResolveURL(t *testing.T) {
	assert.Equal(t,
		"https://whitney.org/events/teen-open-studio",
		resolveURL("https://whitney.org/events?tags[]=teen_events", "/events/teen-open-studio"))
	assert.Equal(t,
		"https://engage.metmuseum.org/events/teen-studio/",
		resolveURL("https://www.metmuseum.org/events", "https://engage.metmuseum.org/events/teen-studio/"))
}

func TestEventObjectsFromScripts(t *testing.T) {
	t.Run("ld+json", func(t *testing.T) {
		doc := mustDoc(t, `<html><head><script type="application/ld+json">
		{"@context":"https://schema.org","@type":"Event","name":"Teen Open Studio","startDate":"2026-03-07T15:00:00-05:00"}
		</script></head></html>`)
		events := eventObjectsFromScripts(doc)
		require.Len(t, events, 1)
		assert.Equal(t, "Teen Open Studio", stringField(events[0], "name"))
	})

	t.Run("next data", func(t *testing.T) {
		doc := mustDoc(t, `<html><body><script id="__NEXT_DATA__" type="application/json">
		{"props":{"pageProps":{"events":[{"title":"Art Lab for Kids","date":"2026-04-11","path":"/calendar/events/8821"}]}}}
		</script></body></html>`)
		events := eventObjectsFromScripts(doc)
		require.Len(t, events, 1)
		assert.Equal(t, "Art Lab for Kids", stringField(events[0], "name", "title"))
	})

	t.Run("plain script with embedded object", func(t *testing.T) {
		doc := mustDoc(t, `<html><body><script>window.__DATA = {"name":"Family Day","startDate":"2026-05-02T11:00:00-04:00"};</script></body></html>`)
		events := eventObjectsFromScripts(doc)
		require.Len(t, events, 1)
	})

	t.Run("non event objects skipped", func(t *testing.T) {
		doc := mustDoc(t, `<html><body><script type="application/ld+json">
		{"@type":"WebSite","name":"Museum"}
		</script></body></html>`)
		assert.Empty(t, eventObjectsFromScripts(doc))
	})
}

func TestStringFieldAndAnyToText(t *testing.T) {
	obj := map[string]any{
		"name":     "",
		"title":    "Teen Studio",
		"tags":     []any{"teens", "drawing"},
		"capacity": float64(24),
	}
	assert.Equal(t, "Teen Studio", stringField(obj, "name", "title"))
	assert.Equal(t, "teens, drawing", anyToText(obj["tags"]))
	assert.Equal(t, "24", anyToText(obj["capacity"]))
	assert.Equal(t, "", anyToText(nil))
}

func TestLocationName(t *testing.T) {
	assert.Equal(t, "Uris Center", locationName("Uris Center"))
	assert.Equal(t, "Education Center", locationName(map[string]any{"name": "Education Center"}))
	assert.Equal(t, "Floor 3", locationName(map[string]any{"address": "Floor 3"}))
	assert.Equal(t, "", locationName(nil))
}

func TestTextLines(t *testing.T) {
	doc := mustDoc(t, `<html><body>
	<h2>Saturday, March 7</h2>
	<div><a href="/x">Teen Studio</a><p>2:00 PM</p></div>
	<script>ignored();</script>
	</body></html>`)
	lines := textLines(doc)
	assert.Equal(t, []string{"Saturday, March 7", "Teen Studio", "2:00 PM"}, lines)
}

func TestStripHTMLFragment(t *testing.T) {
	assert.Equal(t,
		"Sketch from the collection with teaching artists.",
		stripHTMLFragment("<p>Sketch from the collection with <em>teaching artists</em>.</p>"))
	assert.Equal(t, "Drawing & Painting", stripHTMLFragment("Drawing &amp; Painting"))
	assert.Equal(t, "", stripHTMLFragment(""))
}

func TestMentionHelpers(t *testing.T) {
	assert.True(t, mentionsDropIn("Free Drop-In Drawing"))
	assert.True(t, mentionsDropIn("drop in anytime"))
	assert.False(t, mentionsDropIn("dropout prevention"))

	assert.True(t, mentionsRegistration("Registration required"))
	assert.False(t, mentionsRegistration("Registration not required"))
	assert.False(t, mentionsRegistration("Just show up"))
}

package adapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/domain"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/fetch"
)

const momaEventJSONFixture = `<html><head>
<script type="application/ld+json">
[
  {
    "@context": "https://schema.org",
    "@type": "Event",
    "name": "Art Making for Teens",
    "url": "/calendar/events/9921",
    "startDate": "2026-04-18T14:00:00-04:00",
    "endDate": "2026-04-18T16:00:00-04:00",
    "description": "Drop-in printmaking in the studio. Registration required.",
    "location": {"@type": "Place", "name": "Education Building"},
    "audience": {"@type": "Audience", "audienceType": "Teens"}
  },
  {
    "@type": "WebPage",
    "name": "Calendar"
  }
]
</script>
</head></html>`

func TestMoMAParseEventJSON(t *testing.T) {
	a := NewMoMAAdapter(AudienceTeens)
	rows, err := a.Parse(&fetch.Document{URL: a.url, Body: []byte(momaEventJSONFixture)})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	c := rows[0]
	assert.Equal(t, "https://www.moma.org/calendar/events/9921", c.SourceURL)
	assert.Equal(t, "Art Making for Teens", c.Title)
	assert.Contains(t, c.Description, "Drop-in printmaking")
	assert.Contains(t, c.Description, "Location: Education Building")
	assert.Equal(t, "MoMA", c.VenueName)
	assert.Equal(t, "New York", c.City)
	assert.True(t, c.StartAt.Equal(time.Date(2026, 4, 18, 14, 0, 0, 0, time.FixedZone("", -4*3600))))
	require.NotNil(t, c.EndAt)
	assert.Equal(t, intPtr(13), c.AgeMin, "teens default applies without explicit ages")
	assert.Equal(t, intPtr(17), c.AgeMax)
	require.NotNil(t, c.DropIn)
	assert.True(t, *c.DropIn)
	require.NotNil(t, c.RegistrationRequired)
	assert.True(t, *c.RegistrationRequired)
	assert.Equal(t, domain.FreeInferred, c.FreeStatus)
	assert.Equal(t, "America/New_York", c.Timezone)
}

const momaAnchorFixture = `<html><body>
<h2>Sat, Apr 18</h2>
<a href="/calendar/events/9921">
  <p>Art Making for Teens</p>
  <p>2:00 p.m.</p>
  <p>Education Building</p>
</a>
<h2>Sun, Apr 19</h2>
<a href="/calendar/events/9950">
  <p>Family Art Lab</p>
  <p>Ages 5-10</p>
</a>
<a href="/about">About us</a>
</body></html>`

func TestMoMAParseAnchors(t *testing.T) {
	a := NewMoMAAdapter(AudienceKids)
	a.now = func() time.Time { return time.Date(2026, 4, 15, 9, 0, 0, 0, time.UTC) }

	rows, err := a.Parse(&fetch.Document{URL: a.url, Body: []byte(momaAnchorFixture)})
	require.NoError(t, err)
	require.Len(t, rows, 2, "non-event anchors must be skipped")

	first := rows[0]
	assert.Equal(t, "https://www.moma.org/calendar/events/9921", first.SourceURL)
	assert.Equal(t, "Art Making for Teens", first.Title)
	assert.Equal(t, time.Date(2026, 4, 18, 14, 0, 0, 0, time.UTC), first.StartAt)
	assert.Equal(t, "2:00 p.m. | Education Building", first.Description)

	second := rows[1]
	assert.Equal(t, "Family Art Lab", second.Title)
	assert.Equal(t, time.Date(2026, 4, 19, 0, 0, 0, 0, time.UTC), second.StartAt)
	assert.Equal(t, intPtr(5), second.AgeMin, "explicit ages beat the audience default")
	assert.Equal(t, intPtr(10), second.AgeMax)
}

func TestMoMAAgeDefaults(t *testing.T) {
	teens := NewMoMAAdapter(AudienceTeens)
	min, max := teens.ageRange("open studio")
	assert.Equal(t, intPtr(13), min)
	assert.Equal(t, intPtr(17), max)

	kids := NewMoMAAdapter(AudienceKids)
	min, max = kids.ageRange("open studio")
	assert.Nil(t, min)
	assert.Equal(t, intPtr(12), max)

	min, max = kids.ageRange("studio for ages 6-9")
	assert.Equal(t, intPtr(6), min)
	assert.Equal(t, intPtr(9), max)
}

func TestMoMAParseHeadingDayYearShift(t *testing.T) {
	a := NewMoMAAdapter(AudienceTeens)
	base := time.Date(2026, 12, 28, 0, 0, 0, 0, time.UTC)

	day, ok := a.parseHeadingDay("Fri, Jan 2", base)
	require.True(t, ok)
	assert.Equal(t, time.Date(2027, 1, 2, 0, 0, 0, 0, time.UTC), day)

	day, ok = a.parseHeadingDay("Wednesday, December 30", base)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 12, 30, 0, 0, 0, 0, time.UTC), day)

	_, ok = a.parseHeadingDay("Upcoming events", base)
	assert.False(t, ok)
}

func TestMoMABaseDayFromQuery(t *testing.T) {
	a := &MoMAAdapter{
		audience: AudienceTeens,
		url:      momaBaseURL + "/calendar/?happening_filter=For+teens&date=2026-05-02",
		now:      time.Now,
	}
	assert.Equal(t, time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC), a.baseDay())
}

func TestMoMANames(t *testing.T) {
	assert.Equal(t, "moma_teens", NewMoMAAdapter(AudienceTeens).Name())
	assert.Equal(t, "moma_kids", NewMoMAAdapter(AudienceKids).Name())
}

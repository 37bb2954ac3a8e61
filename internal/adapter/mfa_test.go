package adapter

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/domain"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/fetch"
)

func TestMFARequestsPaginate(t *testing.T) {
	reqs := NewMFAAdapter().Requests()
	require.Len(t, reqs, 5)
	for i, req := range reqs {
		assert.Equal(t, fmt.Sprintf("https://www.mfa.org/programs?page=%d", i), req.URL)
	}
}

const mfaEventJSONFixture = `<html><head>
<script type="application/ld+json">
[
  {
    "@type": "Event",
    "name": "Teen Art Lab",
    "url": "https://www.mfa.org/event/teen-art-lab",
    "startDate": "2026-03-14T14:00:00-04:00",
    "endDate": "2026-03-14T16:00:00-04:00",
    "description": "Free drop-in studio for ages 13-18."
  },
  {
    "@type": "Event",
    "name": "Dutch Masters Guided Tour",
    "url": "https://www.mfa.org/event/dutch-masters-tour",
    "startDate": "2026-03-15T11:00:00-04:00",
    "description": "Hour-long guided tour of the galleries."
  },
  {
    "@type": "Event",
    "name": "Printmaking Course",
    "url": "https://www.mfa.org/event/printmaking-course",
    "startDate": "2026-03-16T18:00:00-04:00",
    "description": "Tickets no longer available."
  },
  {
    "@type": "Event",
    "name": "Offsite Concert",
    "url": "https://www.mfa.org/visit/concert",
    "startDate": "2026-03-17T19:00:00-04:00"
  }
]
</script>
</head></html>`

func TestMFAParseEventJSON(t *testing.T) {
	a := NewMFAAdapter()
	rows, err := a.Parse(&fetch.Document{URL: "https://www.mfa.org/programs?page=0", Body: []byte(mfaEventJSONFixture)})
	require.NoError(t, err)
	require.Len(t, rows, 1, "tours, unavailable tickets, and non-event paths must be dropped")

	c := rows[0]
	assert.Equal(t, "https://www.mfa.org/event/teen-art-lab", c.SourceURL)
	assert.Equal(t, "Teen Art Lab", c.Title)
	assert.Equal(t, "Museum of Fine Arts, Boston", c.VenueName)
	assert.Equal(t, "Boston", c.City)
	assert.Equal(t, "MA", c.State)
	assert.Equal(t, intPtr(13), c.AgeMin)
	assert.Equal(t, intPtr(18), c.AgeMax)
	require.NotNil(t, c.DropIn)
	assert.True(t, *c.DropIn)
	assert.True(t, c.StartAt.Equal(time.Date(2026, 3, 14, 14, 0, 0, 0, time.FixedZone("", -4*3600))))
	assert.Equal(t, "free", c.PriceText)
	assert.Equal(t, domain.FreeConfirmed, c.FreeStatus, "explicit free wording confirms")
}

func TestMFAFreeInferredWithoutWording(t *testing.T) {
	fixture := `<html><head><script type="application/ld+json">
	{"@type":"Event","name":"Open Studio","url":"https://www.mfa.org/programs/open-studio","startDate":"2026-03-20T15:00:00-04:00","description":"Paint in the courtyard."}
	</script></head></html>`

	rows, err := NewMFAAdapter().Parse(&fetch.Document{URL: "https://www.mfa.org/programs?page=0", Body: []byte(fixture)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.FreeInferred, rows[0].FreeStatus)
	assert.Empty(t, rows[0].PriceText)
}

const mfaCalendarFixture = `<html><body>
<div>Course</div>
<a href="/programs/teen-drawing-studio">Teen Drawing Studio</a>
<div>March 14, 2026</div>
<div>2:00 PM</div>
<div>Free drop-in drawing for teens.</div>
<div>Lecture</div>
<a href="/programs/collecting-stories">Collecting Stories: Guided Tour</a>
<div>March 15, 2026</div>
<div>11:00 AM</div>
</body></html>`

func TestMFAParseTextLines(t *testing.T) {
	a := NewMFAAdapter()
	rows, err := a.Parse(&fetch.Document{URL: "https://www.mfa.org/programs?page=0", Body: []byte(mfaCalendarFixture)})
	require.NoError(t, err)
	require.Len(t, rows, 1, "guided tours must be excluded")

	c := rows[0]
	assert.Equal(t, "https://www.mfa.org/programs/teen-drawing-studio", c.SourceURL)
	assert.Equal(t, "Teen Drawing Studio", c.Title)
	assert.Equal(t, time.Date(2026, 3, 14, 14, 0, 0, 0, time.UTC), c.StartAt)
	assert.Equal(t, "Free drop-in drawing for teens.", c.Description)
	assert.Equal(t, domain.FreeConfirmed, c.FreeStatus)
	require.NotNil(t, c.DropIn)
	assert.True(t, *c.DropIn)
}

func TestMFAParseAnchorContainers(t *testing.T) {
	fixture := `<html><body>
	<article>
	  <a href="/event/family-art-day"><span></span></a>
	  <h3><a href="/event/family-art-day">Family Art Day</a></h3>
	  <p>April 4, 2026 at 10:00 AM. Free art making for all ages.</p>
	</article>
	</body></html>`

	a := NewMFAAdapter()
	gq := mustDoc(t, fixture)
	rows := a.parseAnchorContainers(gq, "https://www.mfa.org/programs?page=0")
	require.Len(t, rows, 1)
	assert.Equal(t, "https://www.mfa.org/event/family-art-day", rows[0].SourceURL)
	assert.Equal(t, "Family Art Day", rows[0].Title)
	assert.Equal(t, time.Date(2026, 4, 4, 10, 0, 0, 0, time.UTC), rows[0].StartAt)
	assert.Equal(t, domain.FreeConfirmed, rows[0].FreeStatus)
}

func TestMFAExclusionRules(t *testing.T) {
	a := NewMFAAdapter()
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"guided tour", "Guided Tour of the Americas Wing", true},
		{"guided tours plural", "Daily guided tours at noon", true},
		{"tickets gone", "Tickets no longer available", true},
		{"self guided ok", "Self-paced gallery hunt", false},
		{"plain workshop", "Teen printmaking workshop", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.excluded(tt.text, "", ""))
		})
	}
}

func TestFreeStatusFromBlob(t *testing.T) {
	assert.Equal(t, domain.FreeConfirmed, freeStatusFromBlob("free with registration"))
	assert.Equal(t, domain.FreeInferred, freeStatusFromBlob("community open studio"))
	assert.True(t, strings.EqualFold("free", priceTextFrom("FREE admission")))
	assert.Empty(t, priceTextFrom("open studio"))
}

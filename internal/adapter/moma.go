package adapter

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/domain"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/fetch"
)

// Audience selects which MoMA calendar filter an adapter crawls.
type Audience string

const (
	AudienceTeens Audience = "teens"
	AudienceKids  Audience = "kids"
)

const (
	momaBaseURL   = "https://www.moma.org"
	momaVenueName = "MoMA"
	momaCity      = "New York"
	momaState     = "NY"
	momaLocation  = "New York, NY"

	// Audience defaults applied when the page text states no age range.
	teensDefaultAgeMin = 13
	teensDefaultAgeMax = 17
	kidsDefaultAgeMax  = 12
)

var (
	momaEventPathRe   = regexp.MustCompile(`(?i)/calendar/events/\d+`)
	momaDateHeadingRe = regexp.MustCompile(`(?i)^(?:Mon(?:day)?|Tue(?:sday)?|Wed(?:nesday)?|Thu(?:rsday)?|Fri(?:day)?|Sat(?:urday)?|Sun(?:day)?),\s+([A-Za-z]{3,9})\s+(\d{1,2})$`)
)

// MoMAAdapter crawls a MoMA calendar audience filter. Teens and kids are
// separate sources with separate default age windows.
type MoMAAdapter struct {
	audience Audience
	url      string
	now      func() time.Time
}

// NewMoMAAdapter creates a MoMA adapter for the given audience.
func NewMoMAAdapter(audience Audience) *MoMAAdapter {
	filter := "For+teens"
	if audience == AudienceKids {
		filter = "For+kids"
	}
	return &MoMAAdapter{
		audience: audience,
		url:      momaBaseURL + "/calendar/?happening_filter=" + filter,
		now:      time.Now,
	}
}

// Name implements Adapter.
func (a *MoMAAdapter) Name() string { return "moma_" + string(a.audience) }

// BaseURL implements Adapter.
func (a *MoMAAdapter) BaseURL() string { return momaBaseURL }

// Venue implements Adapter.
func (a *MoMAAdapter) Venue() domain.Venue {
	return domain.Venue{Name: momaVenueName, City: momaCity, State: momaState}
}

// ConfidenceThreshold implements Adapter.
func (a *MoMAAdapter) ConfidenceThreshold() float64 { return DefaultConfidenceThreshold }

// Requests implements Adapter.
func (a *MoMAAdapter) Requests() []fetch.Request {
	return []fetch.Request{{URL: a.url, WaitSelector: "a[href*='/calendar/events/']"}}
}

// Parse prefers the structured JSON payloads the calendar embeds
// (ld+json and __NEXT_DATA__); the anchor walk is the fallback for
// rendered snapshots without them.
func (a *MoMAAdapter) Parse(doc *fetch.Document) ([]domain.Candidate, error) {
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(string(doc.Body)))
	if err != nil {
		return nil, err
	}

	if rows := a.parseEventJSON(gq); len(rows) > 0 {
		return rows, nil
	}
	return a.parseAnchors(gq), nil
}

func (a *MoMAAdapter) parseEventJSON(gq *goquery.Document) []domain.Candidate {
	var rows []domain.Candidate
	seen := make(map[domain.DedupKey]bool)

	for _, obj := range eventObjectsFromScripts(gq) {
		title := stringField(obj, "name", "title")
		if title == "" || IsIrrelevantTitle(title) {
			continue
		}

		sourceURL := stringField(obj, "url", "@id")
		if sourceURL == "" {
			sourceURL = a.url
		}
		sourceURL = resolveURL(a.url, sourceURL)

		startAt, ok := parseDateTime(stringField(obj, "startDate", "start_date"))
		if !ok {
			continue
		}
		var endAt *time.Time
		if end, ok := parseDateTime(stringField(obj, "endDate", "end_date")); ok {
			endAt = &end
		}

		var descParts []string
		if description := stringField(obj, "description"); description != "" {
			descParts = append(descParts, description)
		}
		if loc := locationName(obj["location"]); loc != "" {
			descParts = append(descParts, "Location: "+loc)
		}
		if audienceBlob := anyToText(obj["audience"]); audienceBlob != "" {
			descParts = append(descParts, "Audience: "+audienceBlob)
		}
		description := strings.Join(descParts, " | ")

		blob := strings.Join([]string{
			title,
			description,
			anyToText(obj["eventAttendanceMode"]),
			anyToText(obj["offers"]),
		}, " ")
		ageMin, ageMax := a.ageRange(blob)
		dropIn := mentionsDropIn(blob)
		regRequired := mentionsRegistration(blob)

		c := domain.Candidate{
			SourceURL:            sourceURL,
			Title:                title,
			Description:          description,
			VenueName:            momaVenueName,
			LocationText:         momaLocation,
			City:                 momaCity,
			State:                momaState,
			ActivityType:         "workshop",
			AgeMin:               ageMin,
			AgeMax:               ageMax,
			DropIn:               &dropIn,
			RegistrationRequired: &regRequired,
			StartAt:              startAt,
			EndAt:                endAt,
			Timezone:             newYorkTZ,
			FreeStatus:           domain.FreeInferred,
			ExtractionMethod:     domain.ExtractionHardcoded,
		}

		key := c.Key(a.Name())
		if seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, c)
	}

	return rows
}

// parseAnchors walks h2 date headings and event links in document order,
// carrying the heading day onto each event under it.
func (a *MoMAAdapter) parseAnchors(gq *goquery.Document) []domain.Candidate {
	var rows []domain.Candidate
	seen := make(map[domain.DedupKey]bool)

	defaultDay := a.baseDay()
	currentDay := defaultDay

	gq.Find("h2, a").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "h2" {
			if day, ok := a.parseHeadingDay(normalizeSpace(s.Text()), defaultDay); ok {
				currentDay = day
			}
			return
		}

		href, _ := s.Attr("href")
		if !momaEventPathRe.MatchString(href) {
			return
		}
		sourceURL := resolveURL(a.url, href)

		title, details := anchorTextParts(s)
		if title == "" || IsIrrelevantTitle(title) {
			return
		}
		description := strings.Join(details, " | ")

		startAt := currentDay
		for _, text := range append([]string{title}, details...) {
			if hour, minute, ok := parseClock(text); ok {
				startAt = currentDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
				break
			}
		}

		blob := title + " " + description
		ageMin, ageMax := a.ageRange(blob)
		dropIn := mentionsDropIn(blob)
		regRequired := mentionsRegistration(blob)

		c := domain.Candidate{
			SourceURL:            sourceURL,
			Title:                title,
			Description:          description,
			VenueName:            momaVenueName,
			LocationText:         momaLocation,
			City:                 momaCity,
			State:                momaState,
			ActivityType:         "workshop",
			AgeMin:               ageMin,
			AgeMax:               ageMax,
			DropIn:               &dropIn,
			RegistrationRequired: &regRequired,
			StartAt:              startAt,
			Timezone:             newYorkTZ,
			FreeStatus:           domain.FreeInferred,
			ExtractionMethod:     domain.ExtractionHardcoded,
		}

		key := c.Key(a.Name())
		if seen[key] {
			return
		}
		seen[key] = true
		rows = append(rows, c)
	})

	return rows
}

// ageRange parses explicit age wording, falling back to the audience
// default window.
func (a *MoMAAdapter) ageRange(blob string) (*int, *int) {
	if ageMin, ageMax := parseAgeRange(blob); ageMin != nil || ageMax != nil {
		return ageMin, ageMax
	}
	switch a.audience {
	case AudienceTeens:
		lo, hi := teensDefaultAgeMin, teensDefaultAgeMax
		return &lo, &hi
	case AudienceKids:
		hi := kidsDefaultAgeMax
		return nil, &hi
	}
	return nil, nil
}

// baseDay is the day the calendar page is anchored to: an explicit
// ?date=YYYY-MM-DD query wins, otherwise today.
func (a *MoMAAdapter) baseDay() time.Time {
	if u, err := url.Parse(a.url); err == nil {
		if values := u.Query()["date"]; len(values) > 0 {
			if day, err := time.Parse("2006-01-02", values[0]); err == nil {
				return day
			}
		}
	}
	now := a.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// parseHeadingDay resolves a "Wed, Mar 4" heading against the base day's
// year, shifting across year boundaries for Dec/Jan windows.
func (a *MoMAAdapter) parseHeadingDay(text string, baseDay time.Time) (time.Time, bool) {
	m := momaDateHeadingRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	dayNum, _ := strconv.Atoi(m[2])

	var parsed time.Time
	var err error
	for _, layout := range []string{"Jan 2 2006", "January 2 2006"} {
		parsed, err = time.Parse(layout, m[1]+" "+strconv.Itoa(dayNum)+" "+strconv.Itoa(baseDay.Year()))
		if err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, false
	}

	if parsed.Sub(baseDay) < -180*24*time.Hour {
		parsed = parsed.AddDate(1, 0, 0)
	} else if parsed.Sub(baseDay) > 180*24*time.Hour {
		parsed = parsed.AddDate(-1, 0, 0)
	}
	return parsed, true
}

// anchorTextParts splits an event anchor into its title line and detail
// lines, preferring <p> structure when present.
func anchorTextParts(s *goquery.Selection) (string, []string) {
	var lines []string
	s.Find("p").Each(func(_ int, p *goquery.Selection) {
		if line := normalizeSpace(p.Text()); line != "" {
			lines = append(lines, line)
		}
	})

	if len(lines) == 0 {
		for _, raw := range strings.Split(s.Text(), "\n") {
			if line := normalizeSpace(raw); line != "" {
				lines = append(lines, line)
			}
		}
	}

	if len(lines) == 0 {
		return "", nil
	}

	title := lines[0]
	var details []string
	for _, line := range lines[1:] {
		if line != title {
			details = append(details, line)
		}
	}
	return title, details
}

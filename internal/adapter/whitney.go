package adapter

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/domain"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/fetch"
)

const (
	whitneySourceName = "whitney_teen_workshops"
	whitneyBaseURL    = "https://whitney.org"
	whitneyListURL    = whitneyBaseURL + "/events?tags[]=courses_and_workshops&tags[]=teen_events"
	whitneyVenueName  = "Whitney Museum of American Art"
	whitneyCity       = "New York"
	whitneyState      = "NY"
	whitneyLocation   = "New York, NY"
)

var whitneyEventPathRe = regexp.MustCompile(`/events/[^\s?#]+`)

// WhitneyAdapter crawls the Whitney's filtered events listing for teen
// courses and workshops.
type WhitneyAdapter struct{}

// NewWhitneyAdapter creates the Whitney adapter.
func NewWhitneyAdapter() *WhitneyAdapter { return &WhitneyAdapter{} }

// Name implements Adapter.
func (a *WhitneyAdapter) Name() string { return whitneySourceName }

// BaseURL implements Adapter.
func (a *WhitneyAdapter) BaseURL() string { return whitneyBaseURL }

// Venue implements Adapter.
func (a *WhitneyAdapter) Venue() domain.Venue {
	return domain.Venue{Name: whitneyVenueName, City: whitneyCity, State: whitneyState}
}

// ConfidenceThreshold implements Adapter.
func (a *WhitneyAdapter) ConfidenceThreshold() float64 { return DefaultConfidenceThreshold }

// Requests implements Adapter.
func (a *WhitneyAdapter) Requests() []fetch.Request {
	return []fetch.Request{{
		URL:          whitneyListURL,
		WaitSelector: "a[href*='/events/']",
	}}
}

// Parse prefers embedded event JSON and falls back to an anchor-container
// scan of the rendered listing.
func (a *WhitneyAdapter) Parse(doc *fetch.Document) ([]domain.Candidate, error) {
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(string(doc.Body)))
	if err != nil {
		return nil, err
	}

	if rows := a.parseEventJSON(gq, doc.URL); len(rows) > 0 {
		return rows, nil
	}
	return a.parseAnchors(gq, doc.URL), nil
}

func (a *WhitneyAdapter) parseEventJSON(gq *goquery.Document, listURL string) []domain.Candidate {
	var rows []domain.Candidate
	seen := make(map[domain.DedupKey]bool)

	for _, obj := range eventObjectsFromScripts(gq) {
		title := stringField(obj, "name", "title")
		if title == "" || IsIrrelevantTitle(title) {
			continue
		}

		sourceURL := resolveURL(listURL, stringField(obj, "url", "@id", "path"))
		if !strings.Contains(sourceURL, "/events/") {
			continue
		}

		startAt, ok := parseDateTime(stringField(obj, "startDate", "start_date", "date", "start"))
		if !ok {
			continue
		}
		var endAt *time.Time
		if end, ok := parseDateTime(stringField(obj, "endDate", "end_date", "end")); ok {
			endAt = &end
		}

		var descParts []string
		if description := stringField(obj, "description", "summary"); description != "" {
			descParts = append(descParts, description)
		}
		if loc := locationName(obj["location"]); loc != "" {
			descParts = append(descParts, "Location: "+loc)
		}
		if audience := anyToText(obj["audience"]); audience != "" {
			descParts = append(descParts, "Audience: "+audience)
		}
		description := strings.Join(descParts, " | ")

		blob := strings.ToLower(title + " " + description + " " + anyToText(obj["offers"]))
		ageMin, ageMax := whitneyAges(blob)
		dropIn := mentionsDropIn(blob)
		regRequired := mentionsRegistration(blob)

		c := domain.Candidate{
			SourceURL:            sourceURL,
			Title:                title,
			Description:          description,
			VenueName:            whitneyVenueName,
			LocationText:         whitneyLocation,
			City:                 whitneyCity,
			State:                whitneyState,
			ActivityType:         "workshop",
			AgeMin:               ageMin,
			AgeMax:               ageMax,
			DropIn:               &dropIn,
			RegistrationRequired: &regRequired,
			StartAt:              startAt,
			EndAt:                endAt,
			Timezone:             newYorkTZ,
			PriceText:            priceTextFrom(blob),
			FreeStatus:           freeStatusFromBlob(blob),
			ExtractionMethod:     domain.ExtractionHardcoded,
		}

		key := c.Key(whitneySourceName)
		if seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, c)
	}

	return rows
}

func (a *WhitneyAdapter) parseAnchors(gq *goquery.Document, listURL string) []domain.Candidate {
	var rows []domain.Candidate
	seen := make(map[domain.DedupKey]bool)

	gq.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if !whitneyEventPathRe.MatchString(href) {
			return
		}

		sourceURL := resolveURL(listURL, href)
		if !strings.Contains(sourceURL, "/events/") {
			return
		}

		title := normalizeSpace(s.Text())
		container := s.Closest("article, li, section, div")
		blob := normalizeSpace(container.Text())

		// Image-only cards leave the anchor text empty; the container's
		// first line usually carries the title instead.
		if title == "" {
			for _, line := range strings.Split(container.Text(), "\n") {
				if line = normalizeSpace(line); line != "" {
					title = line
					break
				}
			}
		}
		if title == "" || IsIrrelevantTitle(title) {
			return
		}

		startAt, ok := parseDateTime(blob)
		if !ok {
			return
		}

		description := ""
		if blob != title {
			description = blob
		}
		low := strings.ToLower(title + " " + blob)
		ageMin, ageMax := whitneyAges(low)
		dropIn := mentionsDropIn(low)
		regRequired := mentionsRegistration(low)

		c := domain.Candidate{
			SourceURL:            sourceURL,
			Title:                title,
			Description:          description,
			VenueName:            whitneyVenueName,
			LocationText:         whitneyLocation,
			City:                 whitneyCity,
			State:                whitneyState,
			ActivityType:         "workshop",
			AgeMin:               ageMin,
			AgeMax:               ageMax,
			DropIn:               &dropIn,
			RegistrationRequired: &regRequired,
			StartAt:              startAt,
			Timezone:             newYorkTZ,
			PriceText:            priceTextFrom(low),
			FreeStatus:           freeStatusFromBlob(low),
			ExtractionMethod:     domain.ExtractionHardcoded,
		}

		key := c.Key(whitneySourceName)
		if seen[key] {
			return
		}
		seen[key] = true
		rows = append(rows, c)
	})

	return rows
}

// whitneyAges applies the teen default when no explicit range appears.
// The listing is pre-filtered to the teen_events tag, so every card is a
// teen program even when the copy never spells out ages.
func whitneyAges(blob string) (*int, *int) {
	if lo, hi := parseAgeRange(blob); lo != nil || hi != nil {
		return lo, hi
	}
	lo, hi := 13, 17
	return &lo, &hi
}

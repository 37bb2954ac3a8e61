package adapter

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/domain"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/fetch"
)

const (
	mfaSourceName = "mfa_programs"
	mfaBaseURL    = "https://www.mfa.org"
	mfaVenueName  = "Museum of Fine Arts, Boston"
	mfaCity       = "Boston"
	mfaState      = "MA"
	mfaLocation   = "Boston, MA"

	// The programs listing paginates; the first few pages cover the
	// upcoming weeks we care about.
	mfaPageStart = 0
	mfaPageEnd   = 4
)

var (
	mfaEventPathRe            = regexp.MustCompile(`(?i)/(?:event|programs)/[^\s?#]+`)
	mfaGuidedTourRe           = regexp.MustCompile(`(?i)\bguided\s+tou?rs?\b`)
	mfaUnavailableTicketsRe   = regexp.MustCompile(`(?i)\btickets?\s+no\s+longer\s+available\b`)
	mfaGenericCalendarMarkers = map[string]bool{
		"In Person":     true,
		"Tickets":       true,
		"Sold Out":      true,
		"Course":        true,
		"Film":          true,
		"Music":         true,
		"Special Event": true,
		"Lecture":       true,
	}
)

// MFAAdapter crawls the MFA Boston programs listing.
type MFAAdapter struct{}

// NewMFAAdapter creates the MFA adapter.
func NewMFAAdapter() *MFAAdapter { return &MFAAdapter{} }

// Name implements Adapter.
func (a *MFAAdapter) Name() string { return mfaSourceName }

// BaseURL implements Adapter.
func (a *MFAAdapter) BaseURL() string { return mfaBaseURL }

// Venue implements Adapter.
func (a *MFAAdapter) Venue() domain.Venue {
	return domain.Venue{Name: mfaVenueName, City: mfaCity, State: mfaState}
}

// ConfidenceThreshold implements Adapter. The MFA calendar markup shifts
// often, so the fallback kicks in earlier than for the other sources.
func (a *MFAAdapter) ConfidenceThreshold() float64 { return 0.6 }

// Requests implements Adapter.
func (a *MFAAdapter) Requests() []fetch.Request {
	reqs := make([]fetch.Request, 0, mfaPageEnd-mfaPageStart+1)
	for page := mfaPageStart; page <= mfaPageEnd; page++ {
		reqs = append(reqs, fetch.Request{
			URL:          fmt.Sprintf("%s/programs?page=%d", mfaBaseURL, page),
			WaitSelector: "a[href*='/programs/']",
		})
	}
	return reqs
}

// Parse prefers embedded event JSON, then a text-line calendar walk, then
// a generic anchor-container scan.
func (a *MFAAdapter) Parse(doc *fetch.Document) ([]domain.Candidate, error) {
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(string(doc.Body)))
	if err != nil {
		return nil, err
	}

	if rows := a.parseEventJSON(gq, doc.URL); len(rows) > 0 {
		return rows, nil
	}
	return a.parseDOM(gq, doc.URL), nil
}

func (a *MFAAdapter) parseEventJSON(gq *goquery.Document, listURL string) []domain.Candidate {
	var rows []domain.Candidate
	seen := make(map[domain.DedupKey]bool)

	for _, obj := range eventObjectsFromScripts(gq) {
		title := stringField(obj, "name", "title", "headline")
		if title == "" || IsIrrelevantTitle(title) {
			continue
		}

		sourceURL := stringField(obj, "url", "@id", "path")
		if sourceURL == "" {
			sourceURL = listURL
		}
		sourceURL = resolveURL(listURL, sourceURL)
		if !strings.Contains(sourceURL, "/event/") && !strings.Contains(sourceURL, "/programs/") {
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
		if description := stringField(obj, "description", "summary", "excerpt", "dek"); description != "" {
			descParts = append(descParts, description)
		}
		if loc := locationName(obj["location"]); loc != "" {
			descParts = append(descParts, "Location: "+loc)
		}
		category := stringField(obj, "category", "keywords")
		if category != "" {
			descParts = append(descParts, "Category: "+category)
		}
		description := strings.Join(descParts, " | ")

		if a.excluded(title, description, category) {
			continue
		}

		blob := strings.ToLower(title + " " + description + " " + category)
		ageMin, ageMax := parseAgeRange(blob)
		dropIn := mentionsDropIn(blob)
		regRequired := mentionsRegistration(blob)

		c := domain.Candidate{
			SourceURL:            sourceURL,
			Title:                title,
			Description:          description,
			VenueName:            mfaVenueName,
			LocationText:         mfaLocation,
			City:                 mfaCity,
			State:                mfaState,
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

		key := c.Key(mfaSourceName)
		if seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, c)
	}

	return rows
}

// parseDOM handles rendered snapshots. Calendar rows put the category on
// the line above the title and date/time on the lines below, so the
// text-line walk is tried first; the anchor-container scan is the coarse
// fallback.
func (a *MFAAdapter) parseDOM(gq *goquery.Document, listURL string) []domain.Candidate {
	titleToLinks := make(map[string][]string)
	gq.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if !mfaEventPathRe.MatchString(href) {
			return
		}
		title := normalizeSpace(s.Text())
		if title == "" {
			return
		}
		titleToLinks[title] = append(titleToLinks[title], resolveURL(listURL, href))
	})

	if len(titleToLinks) > 0 {
		if rows := a.parseTextLines(gq, titleToLinks); len(rows) > 0 {
			return rows
		}
	}
	return a.parseAnchorContainers(gq, listURL)
}

func (a *MFAAdapter) parseTextLines(gq *goquery.Document, titleToLinks map[string][]string) []domain.Candidate {
	lines := textLines(gq)
	var rows []domain.Candidate
	seen := make(map[domain.DedupKey]bool)

	for i := 0; i < len(lines); i++ {
		title := lines[i]
		links, isTitle := titleToLinks[title]
		if !isTitle || len(links) == 0 {
			continue
		}

		var dateLine, timeLine string
		if i+1 < len(lines) {
			dateLine = lines[i+1]
		}
		if i+2 < len(lines) {
			timeLine = lines[i+2]
		}
		startAt, ok := parseDateTime(normalizeSpace(dateLine + " " + timeLine))
		if !ok {
			continue
		}

		var category string
		if i > 0 {
			category = lines[i-1]
		}

		var description string
		if i+3 < len(lines) {
			candidate := lines[i+3]
			_, isOtherTitle := titleToLinks[candidate]
			if candidate != "" && !mfaGenericCalendarMarkers[candidate] && !isOtherTitle {
				if _, parses := parseDateTime(candidate); !parses {
					description = candidate
				}
			}
		}

		if a.excluded(title, description, category) {
			continue
		}

		sourceURL := links[0]
		titleToLinks[title] = links[1:]

		blob := strings.ToLower(category + " " + title + " " + description)
		ageMin, ageMax := parseAgeRange(blob)
		dropIn := mentionsDropIn(blob)
		regRequired := mentionsRegistration(blob)

		c := domain.Candidate{
			SourceURL:            sourceURL,
			Title:                title,
			Description:          description,
			VenueName:            mfaVenueName,
			LocationText:         mfaLocation,
			City:                 mfaCity,
			State:                mfaState,
			ActivityType:         "workshop",
			AgeMin:               ageMin,
			AgeMax:               ageMax,
			DropIn:               &dropIn,
			RegistrationRequired: &regRequired,
			StartAt:              startAt,
			Timezone:             newYorkTZ,
			PriceText:            priceTextFrom(blob),
			FreeStatus:           freeStatusFromBlob(blob),
			ExtractionMethod:     domain.ExtractionHardcoded,
		}

		key := c.Key(mfaSourceName)
		if seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, c)
	}

	return rows
}

func (a *MFAAdapter) parseAnchorContainers(gq *goquery.Document, listURL string) []domain.Candidate {
	var rows []domain.Candidate
	seen := make(map[domain.DedupKey]bool)

	gq.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if !mfaEventPathRe.MatchString(href) {
			return
		}

		sourceURL := resolveURL(listURL, href)
		title := normalizeSpace(s.Text())
		if title == "" || IsIrrelevantTitle(title) {
			return
		}

		container := s.Closest("article, li, section, div")
		blob := normalizeSpace(container.Text())
		if blob == "" {
			return
		}
		if a.excluded(title, blob, "") {
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
		ageMin, ageMax := parseAgeRange(low)
		dropIn := mentionsDropIn(low)
		regRequired := mentionsRegistration(low)

		c := domain.Candidate{
			SourceURL:            sourceURL,
			Title:                title,
			Description:          description,
			VenueName:            mfaVenueName,
			LocationText:         mfaLocation,
			City:                 mfaCity,
			State:                mfaState,
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

		key := c.Key(mfaSourceName)
		if seen[key] {
			return
		}
		seen[key] = true
		rows = append(rows, c)
	})

	return rows
}

// excluded drops guided tours and events whose tickets are gone.
func (a *MFAAdapter) excluded(title, description, category string) bool {
	blob := strings.Join([]string{title, description, category}, " ")
	return mfaGuidedTourRe.MatchString(blob) || mfaUnavailableTicketsRe.MatchString(blob)
}

func freeStatusFromBlob(blob string) domain.FreeVerificationStatus {
	if strings.Contains(strings.ToLower(blob), "free") {
		return domain.FreeConfirmed
	}
	return domain.FreeInferred
}

func priceTextFrom(blob string) string {
	if strings.Contains(strings.ToLower(blob), "free") {
		return "free"
	}
	return ""
}

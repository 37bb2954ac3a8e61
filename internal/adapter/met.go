package adapter

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/domain"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/fetch"
)

const (
	metSourceName  = "met_teens_free_workshops"
	metBaseURL     = "https://www.metmuseum.org"
	metListingURL  = metBaseURL + "/events?audience=teens&price=free&type=workshopsClasses"
	metVenueName   = "The Metropolitan Museum of Art"
	metCity        = "New York"
	metState       = "NY"
	metLocation    = "New York, NY"
	newYorkTZ      = "America/New_York"
	metDetailHost  = "engage.metmuseum.org"
	metWaitForCard = ".event-card, [data-testid='event-card'], main"
)

// The listing embeds its search results as escaped JSON inside script
// payloads; each record sits between an escaped "_source" key and the
// following "highlight" key.
var metEmbeddedSourceRe = regexp.MustCompile(`(?s)\\"_source\\":(\{.*?\})\\,\\"highlight\\"`)

var metDateHeadingRe = regexp.MustCompile(`^(Monday|Tuesday|Wednesday|Thursday|Friday|Saturday|Sunday),\s+([A-Za-z]+\s+\d{1,2})$`)

// MetAdapter crawls the Met's free teen workshop listing.
type MetAdapter struct {
	url string
	now func() time.Time
}

// NewMetAdapter creates the Met adapter.
func NewMetAdapter() *MetAdapter {
	return &MetAdapter{url: metListingURL, now: time.Now}
}

// Name implements Adapter.
func (a *MetAdapter) Name() string { return metSourceName }

// BaseURL implements Adapter.
func (a *MetAdapter) BaseURL() string { return metBaseURL }

// Venue implements Adapter.
func (a *MetAdapter) Venue() domain.Venue {
	return domain.Venue{Name: metVenueName, City: metCity, State: metState}
}

// ConfidenceThreshold implements Adapter.
func (a *MetAdapter) ConfidenceThreshold() float64 { return DefaultConfidenceThreshold }

// Requests implements Adapter.
func (a *MetAdapter) Requests() []fetch.Request {
	return []fetch.Request{{URL: a.url, WaitSelector: metWaitForCard}}
}

// Parse extracts candidates from the listing. The embedded search-result
// JSON is the primary path; a text-line walk over the rendered DOM covers
// legacy snapshots without the script payload.
func (a *MetAdapter) Parse(doc *fetch.Document) ([]domain.Candidate, error) {
	if rows := a.parseEmbeddedSources(string(doc.Body)); len(rows) > 0 {
		return rows, nil
	}

	gq, err := goquery.NewDocumentFromReader(strings.NewReader(string(doc.Body)))
	if err != nil {
		return nil, err
	}
	return a.parseListingDOM(gq), nil
}

// metEmbeddedSource mirrors the relevant fields of one embedded search
// record.
type metEmbeddedSource struct {
	URL              string   `json:"url"`
	Title            string   `json:"title"`
	StartDate        string   `json:"startDate"`
	EndDate          string   `json:"endDate"`
	TeaserText       string   `json:"teaserText"`
	Location         string   `json:"location"`
	Paid             string   `json:"paid"`
	IsPaid           bool     `json:"isPaid"`
	TicketRequired   bool     `json:"ticketRequired"`
	Audiences        []string `json:"audiences"`
	Programs         []string `json:"programs"`
	SearchCategories []string `json:"searchCategories"`
}

func (a *MetAdapter) parseEmbeddedSources(body string) []domain.Candidate {
	var rows []domain.Candidate
	seen := make(map[domain.DedupKey]bool)

	for _, match := range metEmbeddedSourceRe.FindAllStringSubmatch(body, -1) {
		raw := strings.ReplaceAll(match[1], `\"`, `"`)
		raw = strings.ReplaceAll(raw, `\/`, `/`)

		var src metEmbeddedSource
		if err := json.Unmarshal([]byte(raw), &src); err != nil {
			continue
		}

		// Free-only rule: drop paid records, and require the teen audience
		// since the listing can leak adjacent programming.
		paid := strings.ToLower(src.Paid)
		if src.IsPaid || (paid != "" && paid != "free") {
			continue
		}
		if !hasTeenAudience(src.Audiences) {
			continue
		}
		if src.URL == "" || src.Title == "" || src.StartDate == "" {
			continue
		}
		if IsIrrelevantTitle(src.Title) {
			continue
		}

		startAt, ok := parseDateTime(src.StartDate)
		if !ok {
			continue
		}
		var endAt *time.Time
		if end, ok := parseDateTime(src.EndDate); ok {
			endAt = &end
		}

		var descParts []string
		if teaser := stripHTMLFragment(src.TeaserText); teaser != "" {
			descParts = append(descParts, teaser)
		}
		if loc := stripHTMLFragment(src.Location); loc != "" {
			descParts = append(descParts, "Location: "+loc)
		}
		if len(src.Programs) > 0 {
			descParts = append(descParts, "Programs: "+strings.Join(src.Programs, ", "))
		}
		description := strings.Join(descParts, " | ")

		blob := src.Title + " " + description + " " + strings.Join(src.SearchCategories, " ")
		ageMin, ageMax := parseAgeRange(blob)
		dropIn := mentionsDropIn(blob)
		regRequired := src.TicketRequired

		c := domain.Candidate{
			SourceURL:            src.URL,
			Title:                src.Title,
			Description:          description,
			VenueName:            metVenueName,
			LocationText:         metLocation,
			City:                 metCity,
			State:                metState,
			ActivityType:         "workshop",
			AgeMin:               ageMin,
			AgeMax:               ageMax,
			DropIn:               &dropIn,
			RegistrationRequired: &regRequired,
			StartAt:              startAt,
			EndAt:                endAt,
			Timezone:             newYorkTZ,
			PriceText:            "free",
			FreeStatus:           domain.FreeConfirmed,
			ExtractionMethod:     domain.ExtractionHardcoded,
		}

		key := c.Key(metSourceName)
		if seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, c)
	}

	return rows
}

// parseListingDOM walks the rendered listing text: date headings set the
// cursor day, and any line matching a known detail link starts one event
// block that runs until the next heading or title.
func (a *MetAdapter) parseListingDOM(gq *goquery.Document) []domain.Candidate {
	titleToLinks := make(map[string][]string)
	gq.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		text := normalizeSpace(s.Text())
		if text == "" || !strings.Contains(href, metDetailHost) {
			return
		}
		titleToLinks[text] = append(titleToLinks[text], href)
	})

	lines := textLines(gq)
	var rows []domain.Candidate
	var cursorDate time.Time
	haveDate := false

	i := 0
	for i < len(lines) {
		line := lines[i]

		if m := metDateHeadingRe.FindStringSubmatch(line); m != nil {
			cursorDate = a.parseDateHeading(m[2])
			haveDate = true
			i++
			continue
		}

		links, isTitle := titleToLinks[line]
		if !isTitle {
			i++
			continue
		}
		title := line
		if IsIrrelevantTitle(title) {
			i++
			continue
		}
		sourceURL := links[0]

		var description, timeLine, priceLine string
		j := i + 1
		for j < len(lines) {
			next := lines[j]
			if metDateHeadingRe.MatchString(next) {
				break
			}
			if _, nextIsTitle := titleToLinks[next]; nextIsTitle {
				break
			}
			_, _, hasClock := parseClock(next)
			switch {
			case description == "" && !hasClock && !looksLikePrice(next):
				description = next
			case timeLine == "" && hasClock:
				timeLine = next
			case priceLine == "" && looksLikePrice(next):
				priceLine = next
			}
			j++
		}

		// Free-only rule: when the block carries price wording, keep only
		// explicitly free rows.
		if priceLine != "" && !strings.Contains(strings.ToLower(priceLine), "free") {
			i = j
			continue
		}

		startAt := a.startFor(cursorDate, haveDate, timeLine)
		blob := title + " " + description
		ageMin, ageMax := parseAgeRange(blob)
		dropIn := mentionsDropIn(blob)
		regRequired := strings.Contains(strings.ToLower(blob), "registration required")

		fullDescription := description
		for _, extra := range []string{timeLine, priceLine} {
			if extra == "" {
				continue
			}
			if fullDescription == "" {
				fullDescription = extra
			} else {
				fullDescription += " | " + extra
			}
		}

		status := domain.FreeInferred
		if priceLine != "" {
			status = domain.FreeConfirmed
		}

		rows = append(rows, domain.Candidate{
			SourceURL:            sourceURL,
			Title:                title,
			Description:          fullDescription,
			VenueName:            metVenueName,
			LocationText:         metLocation,
			City:                 metCity,
			State:                metState,
			ActivityType:         "workshop",
			AgeMin:               ageMin,
			AgeMax:               ageMax,
			DropIn:               &dropIn,
			RegistrationRequired: &regRequired,
			StartAt:              startAt,
			Timezone:             newYorkTZ,
			PriceText:            priceLine,
			FreeStatus:           status,
			ExtractionMethod:     domain.ExtractionHardcoded,
		})

		i = j
	}

	return rows
}

// parseDateHeading resolves "March 3" against the current year, rolling
// to the next year for Dec/Jan listing windows.
func (a *MetAdapter) parseDateHeading(label string) time.Time {
	now := a.now()
	base, err := time.Parse("January 2 2006", label+" "+now.Format("2006"))
	if err != nil {
		return now.Truncate(24 * time.Hour)
	}
	if base.Sub(now) < -300*24*time.Hour {
		base = base.AddDate(1, 0, 0)
	}
	return base
}

func (a *MetAdapter) startFor(day time.Time, haveDate bool, timeLine string) time.Time {
	if !haveDate {
		day = a.now().Truncate(24 * time.Hour)
	}
	if hour, minute, ok := parseClock(timeLine); ok {
		return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
	}
	return day
}

func looksLikePrice(text string) bool {
	low := strings.ToLower(text)
	return strings.Contains(low, "free") ||
		strings.Contains(text, "$") ||
		strings.Contains(low, "member") ||
		strings.Contains(low, "ticket")
}

func hasTeenAudience(audiences []string) bool {
	for _, audience := range audiences {
		if strings.Contains(strings.ToLower(audience), "teen") {
			return true
		}
	}
	return false
}

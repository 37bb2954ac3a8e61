// Package normalize turns raw extracted candidates into catalog-ready
// form: age descriptors to numeric ranges, wall-clock times to absolute
// instants in the venue zone, free wording to a verification status, and
// venue fields to a stable identity key. Everything here is pure.
package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/domain"
)

// DefaultFreeAdmissionVenues lists venues whose kids/teen programming is
// free of charge, letting silence about price count as an inferred free
// signal instead of an uncertain one.
var DefaultFreeAdmissionVenues = []string{
	"The Metropolitan Museum of Art",
	"MoMA",
	"Museum of Fine Arts, Boston",
	"Whitney Museum of American Art",
}

// Config tunes the normalizer.
type Config struct {
	// FreeAdmissionVenues overrides DefaultFreeAdmissionVenues when set.
	FreeAdmissionVenues []string
	// DefaultTimezone applies when a candidate carries no zone.
	DefaultTimezone string
	// VenueKeyTolerance is the edit distance within which two venue names
	// count as the same venue. Zero means exact match only.
	VenueKeyTolerance int
}

// Normalizer applies the normalization rules.
type Normalizer struct {
	freeVenues map[string]bool
	defaultTZ  string
	tolerance  int
}

// New builds a normalizer from config, applying defaults for zero values.
func New(cfg Config) *Normalizer {
	venues := cfg.FreeAdmissionVenues
	if len(venues) == 0 {
		venues = DefaultFreeAdmissionVenues
	}
	freeVenues := make(map[string]bool, len(venues))
	for _, v := range venues {
		freeVenues[foldText(v)] = true
	}

	tz := cfg.DefaultTimezone
	if tz == "" {
		tz = "America/New_York"
	}

	return &Normalizer{
		freeVenues: freeVenues,
		defaultTZ:  tz,
		tolerance:  cfg.VenueKeyTolerance,
	}
}

// Timezone returns the zone applied to candidates without one.
func (n *Normalizer) Timezone() string { return n.defaultTZ }

// Candidate normalizes one candidate. The error is reserved for inputs
// that cannot be represented at all (unknown zone names); everything else
// degrades to reduced confidence, not failure.
func (n *Normalizer) Candidate(c domain.Candidate) (domain.Candidate, error) {
	c.Title = strings.Join(strings.Fields(c.Title), " ")
	c.Description = strings.TrimSpace(c.Description)

	if c.AgeMin == nil && c.AgeMax == nil {
		blob := strings.Join([]string{c.AgeText, c.Title, c.Description}, " ")
		if min, max, ok := DescriptorAges(blob); ok {
			c.AgeMin, c.AgeMax = min, max
		}
	}
	if c.AgeMin != nil && c.AgeMax != nil && *c.AgeMin > *c.AgeMax {
		c.AgeMin, c.AgeMax = c.AgeMax, c.AgeMin
	}

	if c.Timezone == "" {
		c.Timezone = n.defaultTZ
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return c, fmt.Errorf("unknown timezone %q: %w", c.Timezone, err)
	}
	c.StartAt = localizeWallTime(c.StartAt, loc)
	if c.EndAt != nil {
		end := localizeWallTime(*c.EndAt, loc)
		c.EndAt = &end
	}

	c.FreeStatus = n.ClassifyFree(c.PriceText, c.VenueName, c.FreeStatus, c.ExtractionMethod)
	return c, nil
}

// ClassifyFree grades the free signal. Explicit free wording confirms,
// but only for the deterministic extractor; model output stays capped at
// inferred. Price silence at a known free-admission venue infers.
func (n *Normalizer) ClassifyFree(priceText, venueName string, current domain.FreeVerificationStatus, method domain.ExtractionMethod) domain.FreeVerificationStatus {
	explicitFree := strings.Contains(strings.ToLower(priceText), "free")

	if method != domain.ExtractionLLM {
		if explicitFree || current == domain.FreeConfirmed {
			return domain.FreeConfirmed
		}
	}

	if priceText == "" || explicitFree {
		if n.freeVenues[foldText(venueName)] && current != domain.FreeUncertain {
			return domain.FreeInferred
		}
		if explicitFree && method == domain.ExtractionLLM {
			return domain.FreeInferred
		}
	}
	return domain.FreeUncertain
}

// VenueKey builds the venue identity key: NFKC-folded, case-insensitive
// (name, city, state).
func (n *Normalizer) VenueKey(name, city, state string) string {
	if name == "" {
		name = "Unknown Venue"
	}
	return foldText(name) + "|" + foldText(city) + "|" + foldText(state)
}

// SameVenue reports whether two keys identify the same venue, tolerating
// small spelling variants in the name part.
func (n *Normalizer) SameVenue(keyA, keyB string) bool {
	if keyA == keyB {
		return true
	}
	partsA := strings.SplitN(keyA, "|", 2)
	partsB := strings.SplitN(keyB, "|", 2)
	if len(partsA) != 2 || len(partsB) != 2 || partsA[1] != partsB[1] {
		return false
	}
	return editDistance(partsA[0], partsB[0]) <= n.tolerance
}

var (
	agesRangeRe = regexp.MustCompile(`(?i)\bages?\s*(\d{1,2})\s*(?:-|\x{2013}|to)\s*(\d{1,2})\b`)
	agesPlusRe  = regexp.MustCompile(`(?i)\bages?\s*(\d{1,2})\+`)
	underRe     = regexp.MustCompile(`(?i)\bunder\s+(\d{1,2})\b`)
)

// ageDescriptors maps audience words to ranges. Nil bounds mean open.
var ageDescriptors = []struct {
	word string
	min  *int
	max  *int
}{
	{"all ages", nil, nil},
	{"teens", intp(13), intp(18)},
	{"teen", intp(13), intp(18)},
	{"kids", intp(0), intp(12)},
	{"children", intp(0), intp(12)},
}

// DescriptorAges resolves age wording to a numeric range. Explicit
// numbers beat audience words.
func DescriptorAges(text string) (*int, *int, bool) {
	if m := agesRangeRe.FindStringSubmatch(text); m != nil {
		return intFromMatch(m[1]), intFromMatch(m[2]), true
	}
	if m := agesPlusRe.FindStringSubmatch(text); m != nil {
		return intFromMatch(m[1]), nil, true
	}
	if m := underRe.FindStringSubmatch(text); m != nil {
		upper := *intFromMatch(m[1]) - 1
		return nil, &upper, true
	}

	low := strings.ToLower(text)
	for _, d := range ageDescriptors {
		if strings.Contains(low, d.word) {
			return d.min, d.max, true
		}
	}
	return nil, nil, false
}

// localizeWallTime reinterprets a wall-clock reading in the venue zone.
// Times that arrived with a real UTC offset are kept as-is; only
// zone-less readings (parsed into UTC by convention) move.
func localizeWallTime(t time.Time, loc *time.Location) time.Time {
	if _, offset := t.Zone(); offset != 0 {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

func foldText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(norm.NFKC.String(s))), " ")
}

// editDistance is plain Levenshtein over runes; venue names are short so
// the quadratic cost is irrelevant.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func intp(v int) *int { return &v }

func intFromMatch(s string) *int {
	v := 0
	for _, r := range s {
		v = v*10 + int(r-'0')
	}
	return &v
}

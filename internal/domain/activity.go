// Package domain defines the core entities of the activity catalog:
// crawl sources, venues, activities, tags, and ingestion runs.
package domain

import (
	"strings"
	"time"
)

// FreeVerificationStatus expresses how confident the pipeline is that an
// activity is actually free of charge.
type FreeVerificationStatus string

const (
	// FreeConfirmed means the page states the activity is free unambiguously.
	FreeConfirmed FreeVerificationStatus = "confirmed"
	// FreeInferred means no price is mentioned and the venue is known
	// free-admission.
	FreeInferred FreeVerificationStatus = "inferred"
	// FreeUncertain means free-ness could not be established. Uncertain
	// candidates are rejected or routed to needs_review, never active.
	FreeUncertain FreeVerificationStatus = "uncertain"
)

// ExtractionMethod records which extraction path produced an activity.
type ExtractionMethod string

const (
	ExtractionHardcoded ExtractionMethod = "hardcoded"
	ExtractionLLM       ExtractionMethod = "llm"
)

// ActivityStatus is the lifecycle state of a catalog activity.
type ActivityStatus string

const (
	StatusActive      ActivityStatus = "active"
	StatusCancelled   ActivityStatus = "cancelled"
	StatusExpired     ActivityStatus = "expired"
	StatusNeedsReview ActivityStatus = "needs_review"
)

// Activity is one scheduled occurrence of a free kids/teen art program.
//
// IsFree is true for every persisted row by construction: extraction that
// cannot establish free-ness above the uncertainty floor is rejected before
// it reaches the store.
type Activity struct {
	ID         string `json:"id"`
	SourceID   string `json:"source_id"`
	SourceURL  string `json:"source_url"`
	ExternalID string `json:"external_id,omitempty"`

	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	ActivityType string `json:"activity_type,omitempty"`
	AgeMin       *int   `json:"age_min,omitempty"`
	AgeMax       *int   `json:"age_max,omitempty"`

	IsFree     bool                   `json:"is_free"`
	FreeStatus FreeVerificationStatus `json:"free_verification_status"`

	DropIn               *bool `json:"drop_in,omitempty"`
	RegistrationRequired *bool `json:"registration_required,omitempty"`

	StartAt        time.Time  `json:"start_at"`
	EndAt          *time.Time `json:"end_at,omitempty"`
	Timezone       string     `json:"timezone"`
	RecurrenceText string     `json:"recurrence_text,omitempty"`
	LocationText   string     `json:"location_text,omitempty"`

	VenueID string `json:"venue_id,omitempty"`

	ExtractionMethod ExtractionMethod `json:"extraction_method"`
	ExtractorVersion string           `json:"extractor_version,omitempty"`
	LLMProvider      string           `json:"llm_provider,omitempty"`
	LLMModel         string           `json:"llm_model,omitempty"`
	LLMConfidence    *float64         `json:"llm_confidence,omitempty"`

	Status          ActivityStatus `json:"status"`
	ConfidenceScore float64        `json:"confidence_score"`

	// FieldConfidence maps field names to the confidence of their current
	// stored value. The reconciler consults it so a re-sighting never
	// lowers a field's confidence.
	FieldConfidence map[string]float64 `json:"field_confidence,omitempty"`

	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DedupKey identifies "the same activity occurrence" within one source.
// No natural key spans sources.
type DedupKey struct {
	SourceID  string
	SourceURL string
	Title     string
	StartAt   time.Time
}

// Key computes the activity's dedup key with URL and title normalized the
// same way the store's unique index compares them.
func (a *Activity) Key() DedupKey {
	return NewDedupKey(a.SourceID, a.SourceURL, a.Title, a.StartAt)
}

// NewDedupKey builds a dedup key from raw field values.
func NewDedupKey(sourceID, sourceURL, title string, startAt time.Time) DedupKey {
	return DedupKey{
		SourceID:  sourceID,
		SourceURL: NormalizeURL(sourceURL),
		Title:     NormalizeTitle(title),
		StartAt:   startAt.UTC().Truncate(time.Minute),
	}
}

// NormalizeURL strips fragments and trailing slashes so cosmetic URL
// variants map to the same dedup key.
func NormalizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimRight(s, "/")
}

// NormalizeTitle folds case and collapses interior whitespace.
func NormalizeTitle(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

package domain

import "time"

// Candidate is an extracted-but-unreconciled activity record: the shape of
// an Activity minus catalog identity, plus extraction provenance. One page
// may yield many candidates.
type Candidate struct {
	SourceURL  string `json:"source_url"`
	ExternalID string `json:"external_id,omitempty"`

	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	ActivityType string `json:"activity_type,omitempty"`

	VenueName    string `json:"venue_name,omitempty"`
	LocationText string `json:"location_text,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`

	AgeText string `json:"age_text,omitempty"`
	AgeMin  *int   `json:"age_min,omitempty"`
	AgeMax  *int   `json:"age_max,omitempty"`

	DropIn               *bool `json:"drop_in,omitempty"`
	RegistrationRequired *bool `json:"registration_required,omitempty"`

	StartAt        time.Time  `json:"start_at"`
	EndAt          *time.Time `json:"end_at,omitempty"`
	Timezone       string     `json:"timezone,omitempty"`
	RecurrenceText string     `json:"recurrence_text,omitempty"`

	// PriceText is the raw price/free wording found on the page, kept so
	// the normalizer can classify free-verification status and so fallback
	// output can be corroborated against explicit page text.
	PriceText  string                 `json:"price_text,omitempty"`
	FreeStatus FreeVerificationStatus `json:"free_verification_status,omitempty"`

	Tags []string `json:"tags,omitempty"`

	ExtractionMethod ExtractionMethod `json:"extraction_method"`
	ExtractorVersion string           `json:"extractor_version,omitempty"`
	LLMProvider      string           `json:"llm_provider,omitempty"`
	LLMModel         string           `json:"llm_model,omitempty"`
	LLMConfidence    *float64         `json:"llm_confidence,omitempty"`

	// Confidence is the candidate-level aggregate in [0,1].
	Confidence float64 `json:"confidence"`
	// FieldConfidence carries per-field confidence for the reconciler's
	// field-level merge.
	FieldConfidence map[string]float64 `json:"field_confidence,omitempty"`
}

// Key computes the candidate's dedup key under the given source.
func (c *Candidate) Key(sourceID string) DedupKey {
	return NewDedupKey(sourceID, c.SourceURL, c.Title, c.StartAt)
}

// Package extract scores extracted candidates and prepares page text for
// the model-assisted fallback. Scoring is pure: the pipeline compares the
// aggregate against the source's threshold to decide whether the fallback
// is worth a model call.
package extract

import (
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/domain"
)

// Required fields carry double weight in the aggregate and zero any
// candidate that lacks them. A free-activity catalog without a title, a
// start time, or a free signal has nothing to show users.
var requiredFields = map[string]bool{
	"title":                    true,
	"start_at":                 true,
	"free_verification_status": true,
}

const (
	requiredWeight = 2.0
	optionalWeight = 1.0
)

// Score fills the candidate's per-field confidence map and aggregate
// confidence in place.
func Score(c *domain.Candidate) {
	fc := FieldConfidences(c)
	c.FieldConfidence = fc
	c.Confidence = AggregateConfidence(fc)
}

// FieldConfidences assigns a confidence to every field the candidate
// carries. Required fields always enter the map so a missing one zeroes
// the aggregate; optional fields enter only when located, so a sparse but
// correct candidate is not dragged down by fields the page never offered.
func FieldConfidences(c *domain.Candidate) map[string]float64 {
	fc := make(map[string]float64)

	fc["title"] = presence(c.Title != "", 0.95)
	fc["start_at"] = presence(!c.StartAt.IsZero(), 0.9)

	switch c.FreeStatus {
	case domain.FreeConfirmed:
		fc["free_verification_status"] = 1.0
	case domain.FreeInferred:
		fc["free_verification_status"] = 0.6
	case domain.FreeUncertain:
		fc["free_verification_status"] = 0.2
	default:
		fc["free_verification_status"] = 0
	}

	located := func(field string, ok bool, conf float64) {
		if ok {
			fc[field] = conf
		}
	}
	located("source_url", c.SourceURL != "", 0.9)
	located("description", c.Description != "", 0.8)
	located("venue_name", c.VenueName != "", 0.85)
	located("city", c.City != "", 0.85)
	located("state", c.State != "", 0.85)
	located("age_min", c.AgeMin != nil, 0.8)
	located("age_max", c.AgeMax != nil, 0.8)
	located("drop_in", c.DropIn != nil, 0.75)
	located("registration_required", c.RegistrationRequired != nil, 0.75)
	located("end_at", c.EndAt != nil, 0.8)
	located("timezone", c.Timezone != "", 0.9)

	// Model-extracted candidates are bounded by the model's own
	// self-assessment.
	if c.ExtractionMethod == domain.ExtractionLLM && c.LLMConfidence != nil {
		for field, conf := range fc {
			if conf > *c.LLMConfidence {
				fc[field] = *c.LLMConfidence
			}
		}
	}

	return fc
}

// AggregateConfidence collapses a field-confidence map to one score: a
// weighted mean over the fields present in the map, where required fields
// count double. Any required field at zero (or absent) zeroes the whole
// candidate.
func AggregateConfidence(fields map[string]float64) float64 {
	for field := range requiredFields {
		if fields[field] == 0 {
			return 0
		}
	}

	var sum, weight float64
	for field, conf := range fields {
		w := optionalWeight
		if requiredFields[field] {
			w = requiredWeight
		}
		sum += conf * w
		weight += w
	}
	if weight == 0 {
		return 0
	}
	return sum / weight
}

func presence(ok bool, conf float64) float64 {
	if ok {
		return conf
	}
	return 0
}

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/domain"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/extract"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/fetch"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/logger"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/validation"
)

const systemPrompt = `You extract structured activity listings for a catalog of free art
programs for kids and teens. Given page text, return JSON only, no prose,
in this shape:

{"activities": [{
  "title": "...",                      // required
  "source_url": "https://...",         // event detail link if present
  "description": "...",
  "venue_name": "...",
  "city": "...", "state": "...",
  "age_min": 13, "age_max": 18,        // null when the page is silent
  "drop_in": true,                     // null when unclear
  "registration_required": false,      // null when unclear
  "start_at": "2026-03-07T14:00:00",   // required, ISO 8601 wall time
  "end_at": null,
  "timezone": "America/New_York",
  "price_text": "Free",                // verbatim price/free wording
  "is_free": true,
  "confidence": 0.8                    // your own 0..1 estimate
}]}

Only include activities aimed at kids or teens. Omit tours, member-only
events, and anything with an admission charge. Return {"activities": []}
when the page has none.`

// Hints carries what the pipeline already knows about the source, so the
// fallback can fill gaps the page text leaves.
type Hints struct {
	SourceName string
	VenueName  string
	City       string
	State      string
	Timezone   string
}

// activityPayload is the model's output schema. Validation runs before
// any field is trusted.
type activityPayload struct {
	Title                string  `json:"title" validate:"required"`
	SourceURL            string  `json:"source_url" validate:"omitempty,url"`
	Description          string  `json:"description"`
	VenueName            string  `json:"venue_name"`
	City                 string  `json:"city"`
	State                string  `json:"state" validate:"omitempty,len=2"`
	AgeMin               *int    `json:"age_min" validate:"omitempty,gte=0,lte=25"`
	AgeMax               *int    `json:"age_max" validate:"omitempty,gte=0,lte=25"`
	DropIn               *bool   `json:"drop_in"`
	RegistrationRequired *bool   `json:"registration_required"`
	StartAt              string  `json:"start_at" validate:"required"`
	EndAt                string  `json:"end_at"`
	Timezone             string  `json:"timezone"`
	PriceText            string  `json:"price_text"`
	IsFree               *bool   `json:"is_free"`
	Confidence           float64 `json:"confidence" validate:"gte=0,lte=1"`
}

type responsePayload struct {
	Activities []activityPayload `json:"activities"`
}

// Extractor turns page text into validated candidates via the model.
type Extractor struct {
	client   Client
	validate *validation.Validator
	maxChars int
	log      *logger.Logger
}

// NewExtractor creates a fallback extractor. maxChars caps how much page
// text goes into the prompt.
func NewExtractor(client Client, maxChars int, log *logger.Logger) *Extractor {
	return &Extractor{
		client:   client,
		validate: validation.New(),
		maxChars: maxChars,
		log:      log,
	}
}

// Extract asks the model to read one fetched document. Invalid items in
// the response are dropped, not fatal; an unparseable response is an
// error so the run can record the fallback failure.
func (e *Extractor) Extract(ctx context.Context, doc *fetch.Document, hints Hints) ([]domain.Candidate, error) {
	text := extract.DocumentText(doc.Body, e.maxChars)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	user := fmt.Sprintf("Source: %s\nPage URL: %s\n\nPage text:\n%s", hints.SourceName, doc.URL, text)
	raw, err := e.client.Complete(ctx, systemPrompt, user)
	if err != nil {
		return nil, err
	}

	var payload responsePayload
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &payload); err != nil {
		return nil, fmt.Errorf("model response is not valid JSON: %w", err)
	}

	pageHasFreeWording := strings.Contains(strings.ToLower(text), "free")
	candidates := make([]domain.Candidate, 0, len(payload.Activities))
	for _, item := range payload.Activities {
		if err := e.validate.Validate(&item); err != nil {
			e.log.Warn("dropping invalid model-extracted activity",
				"source", hints.SourceName, "title", item.Title, "error", err)
			continue
		}
		c, ok := e.toCandidate(item, doc.URL, hints, pageHasFreeWording)
		if !ok {
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func (e *Extractor) toCandidate(item activityPayload, pageURL string, hints Hints, pageHasFreeWording bool) (domain.Candidate, bool) {
	startAt, ok := parseTimestamp(item.StartAt)
	if !ok {
		e.log.Warn("dropping model-extracted activity with unparseable start",
			"title", item.Title, "start_at", item.StartAt)
		return domain.Candidate{}, false
	}
	var endAt *time.Time
	if end, ok := parseTimestamp(item.EndAt); ok {
		endAt = &end
	}

	sourceURL := item.SourceURL
	if sourceURL == "" {
		sourceURL = pageURL
	} else if base, err := url.Parse(pageURL); err == nil {
		if ref, err := url.Parse(sourceURL); err == nil {
			sourceURL = base.ResolveReference(ref).String()
		}
	}

	tz := item.Timezone
	if tz == "" {
		tz = hints.Timezone
	}

	confidence := item.Confidence
	c := domain.Candidate{
		SourceURL:            sourceURL,
		Title:                item.Title,
		Description:          item.Description,
		VenueName:            firstNonEmpty(item.VenueName, hints.VenueName),
		City:                 firstNonEmpty(item.City, hints.City),
		State:                firstNonEmpty(item.State, hints.State),
		ActivityType:         "workshop",
		AgeMin:               item.AgeMin,
		AgeMax:               item.AgeMax,
		DropIn:               item.DropIn,
		RegistrationRequired: item.RegistrationRequired,
		StartAt:              startAt,
		EndAt:                endAt,
		Timezone:             tz,
		PriceText:            item.PriceText,
		FreeStatus:           freeStatus(item, pageHasFreeWording),
		ExtractionMethod:     domain.ExtractionLLM,
		LLMProvider:          e.client.Provider(),
		LLMModel:             e.client.Model(),
		LLMConfidence:        &confidence,
	}
	extract.Score(&c)
	return c, true
}

// freeStatus caps model output at inferred: the model never confirms
// free-ness on its own, and without corroborating page wording the claim
// drops to uncertain.
func freeStatus(item activityPayload, pageHasFreeWording bool) domain.FreeVerificationStatus {
	if item.IsFree == nil || !*item.IsFree {
		return domain.FreeUncertain
	}
	if pageHasFreeWording || strings.Contains(strings.ToLower(item.PriceText), "free") {
		return domain.FreeInferred
	}
	return domain.FreeUncertain
}

func parseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// stripCodeFence unwraps a ```json fenced response, which models emit
// even when told not to.
func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

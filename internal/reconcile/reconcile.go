// Package reconcile merges normalized candidates into the catalog. It owns
// the dedup upsert, the field-level confidence merge, and the expiry policy.
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/domain"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/extract"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/logger"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/store"
)

// Result summarizes one reconciliation pass. Rejections are counted and
// explained but never persisted as activities.
type Result struct {
	Inserted int
	Updated  int
	Rejected int
	Errors   []string
}

// ErrorSummary flattens the error bundle for the run record.
func (r *Result) ErrorSummary() string {
	return strings.Join(r.Errors, "; ")
}

// VenueMatcher decides whether two venue identities name the same place,
// tolerating small spelling variants. *normalize.Normalizer satisfies it.
type VenueMatcher interface {
	VenueKey(name, city, state string) string
	SameVenue(keyA, keyB string) bool
}

// Reconciler applies normalized candidates to the store.
type Reconciler struct {
	store           store.Store
	log             *logger.Logger
	now             func() time.Time
	reviewThreshold float64
	venues          VenueMatcher
}

// New creates a reconciler backed by the given store.
func New(st store.Store, log *logger.Logger) *Reconciler {
	return &Reconciler{
		store: st,
		log:   log,
		now:   time.Now,
	}
}

// SetReviewThreshold routes candidates whose overall confidence falls
// below v to needs_review instead of active. Zero disables the check;
// uncertain free status always routes to needs_review regardless.
func (r *Reconciler) SetReviewThreshold(v float64) {
	r.reviewThreshold = v
}

// SetVenueMatcher enables tolerant venue resolution: a candidate whose
// venue name is a near-miss of an existing row links to that row instead
// of minting a duplicate. Nil keeps exact matching only.
func (r *Reconciler) SetVenueMatcher(m VenueMatcher) {
	r.venues = m
}

// Reconcile upserts candidates in input order. Each candidate gets its own
// transaction via the store's upsert, so a duplicate concurrent run cannot
// race a second row in between match and write. Store failures abort the
// pass; validation rejections are recovered locally.
func (r *Reconciler) Reconcile(ctx context.Context, sourceID, runID string, candidates []domain.Candidate) (*Result, error) {
	result := &Result{}

	for i := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		c := &candidates[i]
		if c.FieldConfidence == nil {
			extract.Score(c)
		}

		if reason := rejectReason(c); reason != "" {
			result.Rejected++
			result.Errors = append(result.Errors, fmt.Sprintf("rejected %q: %s", c.Title, reason))
			r.log.Debug("candidate rejected",
				"source_id", sourceID, "run_id", runID, "title", c.Title, "reason", reason)
			continue
		}

		venueID, err := r.resolveVenue(ctx, c)
		if err != nil {
			return result, fmt.Errorf("resolve venue for %q: %w", c.Title, err)
		}

		incoming := r.activityFromCandidate(c, sourceID, venueID)
		persisted, created, err := r.store.UpsertActivity(ctx, incoming, r.merge)
		if err != nil {
			return result, fmt.Errorf("upsert %q: %w", c.Title, err)
		}

		if len(c.Tags) > 0 {
			if err := r.store.ReplaceActivityTags(ctx, persisted.ID, c.Tags); err != nil {
				return result, fmt.Errorf("tag %q: %w", c.Title, err)
			}
		}

		if created {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	r.log.Info("reconciliation finished",
		"source_id", sourceID, "run_id", runID,
		"inserted", result.Inserted, "updated", result.Updated, "rejected", result.Rejected)

	return result, nil
}

// ExpireStale flips this source's active activities to expired when they
// have not been observed within the retention window. Safe to run
// repeatedly; expired rows revive on the next sighting.
func (r *Reconciler) ExpireStale(ctx context.Context, sourceID string, retention time.Duration) (int, error) {
	cutoff := r.now().Add(-retention)
	n, err := r.store.ExpireStale(ctx, sourceID, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.log.Info("expired stale activities", "source_id", sourceID, "count", n)
	}
	return n, nil
}

// rejectReason returns a non-empty reason when the candidate must not be
// persisted. Uncertain free-ness from the model fallback is rejected unless
// the page text itself mentions free; uncertain deterministic extractions
// are kept for human review instead.
func rejectReason(c *domain.Candidate) string {
	if c.Title == "" {
		return "missing required field title"
	}
	if c.StartAt.IsZero() {
		return "missing required field start_at"
	}

	switch c.FreeStatus {
	case domain.FreeConfirmed, domain.FreeInferred:
		return ""
	case domain.FreeUncertain:
		if c.ExtractionMethod == domain.ExtractionLLM && !mentionsFree(c) {
			return "free status uncertain without corroborating page text"
		}
		return ""
	default:
		return "missing free verification status"
	}
}

func mentionsFree(c *domain.Candidate) bool {
	blob := strings.ToLower(c.PriceText + " " + c.Description)
	return strings.Contains(blob, "free")
}

// resolveVenue matches or creates the candidate's venue. Candidates without
// a venue name stay unlinked. With a matcher set, a spelling variant of an
// existing venue links to that row rather than creating a second one.
func (r *Reconciler) resolveVenue(ctx context.Context, c *domain.Candidate) (string, error) {
	if c.VenueName == "" {
		return "", nil
	}

	if r.venues != nil {
		id, err := r.matchVenue(ctx, c)
		if err != nil {
			return "", err
		}
		if id != "" {
			return id, nil
		}
	}

	venue, _, err := r.store.FindOrCreateVenue(ctx, &domain.Venue{
		Name:  c.VenueName,
		City:  c.City,
		State: c.State,
	})
	if err != nil {
		return "", err
	}
	return venue.ID, nil
}

// matchVenue scans existing venues for a tolerant identity match.
func (r *Reconciler) matchVenue(ctx context.Context, c *domain.Candidate) (string, error) {
	existing, err := r.store.ListVenues(ctx)
	if err != nil {
		return "", err
	}
	key := r.venues.VenueKey(c.VenueName, c.City, c.State)
	for _, v := range existing {
		if r.venues.SameVenue(key, r.venues.VenueKey(v.Name, v.City, v.State)) {
			return v.ID, nil
		}
	}
	return "", nil
}

// activityFromCandidate shapes a candidate into the row the upsert writes
// on first sighting.
func (r *Reconciler) activityFromCandidate(c *domain.Candidate, sourceID, venueID string) *domain.Activity {
	now := r.now().UTC()

	return &domain.Activity{
		SourceID:             sourceID,
		SourceURL:            c.SourceURL,
		ExternalID:           c.ExternalID,
		Title:                c.Title,
		Description:          c.Description,
		ActivityType:         c.ActivityType,
		AgeMin:               c.AgeMin,
		AgeMax:               c.AgeMax,
		IsFree:               true,
		FreeStatus:           c.FreeStatus,
		DropIn:               c.DropIn,
		RegistrationRequired: c.RegistrationRequired,
		StartAt:              c.StartAt,
		EndAt:                c.EndAt,
		Timezone:             c.Timezone,
		RecurrenceText:       c.RecurrenceText,
		LocationText:         c.LocationText,
		VenueID:              venueID,
		ExtractionMethod:     c.ExtractionMethod,
		ExtractorVersion:     c.ExtractorVersion,
		LLMProvider:          c.LLMProvider,
		LLMModel:             c.LLMModel,
		LLMConfidence:        c.LLMConfidence,
		Status:               r.statusFor(c.FreeStatus, c.Confidence),
		ConfidenceScore:      c.Confidence,
		FieldConfidence:      c.FieldConfidence,
		FirstSeenAt:          now,
		LastSeenAt:           now,
		UpdatedAt:            now,
	}
}

func (r *Reconciler) statusFor(status domain.FreeVerificationStatus, confidence float64) domain.ActivityStatus {
	if status == domain.FreeUncertain {
		return domain.StatusNeedsReview
	}
	if r.reviewThreshold > 0 && confidence < r.reviewThreshold {
		return domain.StatusNeedsReview
	}
	return domain.StatusActive
}

// merge resolves a re-sighting against the stored row. Runs inside the
// upsert transaction. Per field, the incoming value wins only at equal or
// higher confidence, so re-observation never lowers a stored field's
// confidence.
func (r *Reconciler) merge(existing, incoming *domain.Activity) *domain.Activity {
	now := r.now().UTC()

	merged := *incoming
	merged.ID = existing.ID
	merged.FirstSeenAt = existing.FirstSeenAt
	merged.LastSeenAt = now
	merged.UpdatedAt = now
	merged.IsFree = true

	fc := make(map[string]float64, len(existing.FieldConfidence))
	for field, conf := range existing.FieldConfidence {
		fc[field] = conf
	}

	// keepExisting reports whether the stored value outranks the incoming
	// one for this field, and records the winning confidence. A field
	// neither sighting located stays out of the merged map so it cannot
	// drag the aggregate.
	keepExisting := func(field string) bool {
		ic, iok := incoming.FieldConfidence[field]
		ec, eok := existing.FieldConfidence[field]
		if !iok && !eok {
			return false
		}
		if ic >= ec {
			fc[field] = ic
			return false
		}
		fc[field] = ec
		return true
	}

	if keepExisting("title") {
		merged.Title = existing.Title
	}
	if keepExisting("description") {
		merged.Description = existing.Description
	}
	if keepExisting("source_url") {
		merged.SourceURL = existing.SourceURL
	}
	if keepExisting("start_at") {
		merged.StartAt = existing.StartAt
	}
	if keepExisting("end_at") {
		merged.EndAt = existing.EndAt
	}
	if keepExisting("timezone") {
		merged.Timezone = existing.Timezone
	}
	if keepExisting("age_min") {
		merged.AgeMin = existing.AgeMin
	}
	if keepExisting("age_max") {
		merged.AgeMax = existing.AgeMax
	}
	if keepExisting("drop_in") {
		merged.DropIn = existing.DropIn
	}
	if keepExisting("registration_required") {
		merged.RegistrationRequired = existing.RegistrationRequired
	}
	if keepExisting("free_verification_status") {
		merged.FreeStatus = existing.FreeStatus
	}
	if keepExisting("venue_name") {
		merged.VenueID = existing.VenueID
	}
	// City and state live on the venue row; track their confidences so the
	// aggregate sees them.
	keepExisting("city")
	keepExisting("state")

	// Fields without a confidence entry fall back to the sighting that has
	// a value at all.
	if merged.ActivityType == "" {
		merged.ActivityType = existing.ActivityType
	}
	if merged.ExternalID == "" {
		merged.ExternalID = existing.ExternalID
	}
	if merged.RecurrenceText == "" {
		merged.RecurrenceText = existing.RecurrenceText
	}
	if merged.LocationText == "" {
		merged.LocationText = existing.LocationText
	}
	if merged.VenueID == "" {
		merged.VenueID = existing.VenueID
	}

	merged.FieldConfidence = fc
	merged.ConfidenceScore = extract.AggregateConfidence(fc)

	// A cancelled activity stays cancelled; everything else follows the
	// merged free status, which also revives expired rows on re-sighting.
	if existing.Status == domain.StatusCancelled {
		merged.Status = domain.StatusCancelled
	} else {
		merged.Status = r.statusFor(merged.FreeStatus, merged.ConfidenceScore)
	}

	return &merged
}

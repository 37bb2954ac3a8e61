package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/domain"
)

func fullCandidate() domain.Candidate {
	ageMin, ageMax := 13, 18
	dropIn, reg := true, false
	end := time.Date(2026, 3, 7, 16, 0, 0, 0, time.UTC)
	return domain.Candidate{
		SourceURL:            "https://engage.metmuseum.org/events/teen-studio/",
		Title:                "Teen Studio: Comics",
		Description:          "Drop-in comics workshop.",
		VenueName:            "The Metropolitan Museum of Art",
		City:                 "New York",
		State:                "NY",
		AgeMin:               &ageMin,
		AgeMax:               &ageMax,
		DropIn:               &dropIn,
		RegistrationRequired: &reg,
		StartAt:              time.Date(2026, 3, 7, 14, 0, 0, 0, time.UTC),
		EndAt:                &end,
		Timezone:             "America/New_York",
		FreeStatus:           domain.FreeConfirmed,
		ExtractionMethod:     domain.ExtractionHardcoded,
	}
}

func TestScoreFullCandidate(t *testing.T) {
	c := fullCandidate()
	Score(&c)

	require.NotEmpty(t, c.FieldConfidence)
	assert.Equal(t, 1.0, c.FieldConfidence["free_verification_status"])
	assert.Greater(t, c.Confidence, 0.8)
	assert.LessOrEqual(t, c.Confidence, 1.0)
}

func TestScoreConfirmedCandidateWithRequiredFieldsOnly(t *testing.T) {
	// A listing page often gives nothing beyond the essentials. Three
	// strong required fields alone must clear the threshold for a
	// deterministic extraction; absent optional fields stay out of the
	// aggregate entirely.
	c := domain.Candidate{
		Title:            "Teen Open Studio",
		StartAt:          time.Date(2026, 4, 10, 18, 0, 0, 0, time.UTC),
		PriceText:        "Free admission",
		FreeStatus:       domain.FreeConfirmed,
		ExtractionMethod: domain.ExtractionHardcoded,
	}
	Score(&c)

	assert.GreaterOrEqual(t, c.Confidence, 0.8)
	assert.NotContains(t, c.FieldConfidence, "description")
	assert.NotContains(t, c.FieldConfidence, "age_min")
	assert.NotContains(t, c.FieldConfidence, "end_at")
}

func TestScoreMissingRequiredFieldZeroes(t *testing.T) {
	c := fullCandidate()
	c.Title = ""
	Score(&c)
	assert.Zero(t, c.Confidence)

	c = fullCandidate()
	c.StartAt = time.Time{}
	Score(&c)
	assert.Zero(t, c.Confidence)

	c = fullCandidate()
	c.FreeStatus = ""
	Score(&c)
	assert.Zero(t, c.Confidence)
}

func TestScoreFreeStatusGrading(t *testing.T) {
	confirmed := fullCandidate()
	Score(&confirmed)

	inferred := fullCandidate()
	inferred.FreeStatus = domain.FreeInferred
	Score(&inferred)

	uncertain := fullCandidate()
	uncertain.FreeStatus = domain.FreeUncertain
	Score(&uncertain)

	assert.Greater(t, confirmed.Confidence, inferred.Confidence)
	assert.Greater(t, inferred.Confidence, uncertain.Confidence)
}

func TestScoreSparseCandidateScoresLower(t *testing.T) {
	full := fullCandidate()
	Score(&full)

	sparse := domain.Candidate{
		Title:      "Open Studio",
		StartAt:    time.Date(2026, 3, 7, 14, 0, 0, 0, time.UTC),
		FreeStatus: domain.FreeInferred,
	}
	Score(&sparse)

	assert.Greater(t, full.Confidence, sparse.Confidence)
	assert.Greater(t, sparse.Confidence, 0.0)
}

func TestScoreModelConfidenceCapsFields(t *testing.T) {
	modelConf := 0.4
	c := fullCandidate()
	c.ExtractionMethod = domain.ExtractionLLM
	c.LLMConfidence = &modelConf
	Score(&c)

	for field, conf := range c.FieldConfidence {
		assert.LessOrEqual(t, conf, modelConf, field)
	}
	assert.LessOrEqual(t, c.Confidence, modelConf)
}

func TestAggregateConfidenceWeighting(t *testing.T) {
	// Required fields at 1.0, one optional at 0: the optional drag is
	// limited by its single weight.
	fields := map[string]float64{
		"title":                    1.0,
		"start_at":                 1.0,
		"free_verification_status": 1.0,
		"description":              0,
	}
	got := AggregateConfidence(fields)
	assert.InDelta(t, 6.0/7.0, got, 1e-9)

	assert.Zero(t, AggregateConfidence(map[string]float64{}))
	assert.Zero(t, AggregateConfidence(map[string]float64{
		"title": 1.0, "start_at": 1.0,
	}), "missing free signal zeroes the aggregate")
}

func TestDocumentText(t *testing.T) {
	t.Run("html to markdown", func(t *testing.T) {
		got := DocumentText([]byte("<h1>Teen Night</h1><p>Free drop-in drawing.</p>"), 0)
		assert.Contains(t, got, "Teen Night")
		assert.Contains(t, got, "Free drop-in drawing.")
		assert.NotContains(t, got, "<p>")
	})

	t.Run("plain text passes through", func(t *testing.T) {
		got := DocumentText([]byte("just a line of text"), 0)
		assert.Equal(t, "just a line of text", got)
	})

	t.Run("cap applies", func(t *testing.T) {
		got := DocumentText([]byte(strings.Repeat("a", 100)), 10)
		assert.Len(t, got, 10)
	})
}

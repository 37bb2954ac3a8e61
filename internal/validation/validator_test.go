package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/errors"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/validation"
)

type extractedActivity struct {
	Title      string `json:"title" validate:"required"`
	SourceURL  string `json:"source_url" validate:"required,url"`
	FreeStatus string `json:"free_status" validate:"required,oneof=confirmed inferred uncertain"`
	AgeMin     *int   `json:"age_min" validate:"omitempty,gte=0,lte=25"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	ageMin := 13
	req := extractedActivity{
		Title:      "Teen Open Studio",
		SourceURL:  "https://www.moma.org/calendar/programs/123",
		FreeStatus: "confirmed",
		AgeMin:     &ageMin,
	}

	err := v.Validate(req)
	assert.NoError(t, err)
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	badAge := 99
	tests := []struct {
		name       string
		req        extractedActivity
		wantErrMsg string
	}{
		{
			name: "missing required field",
			req: extractedActivity{
				SourceURL:  "https://www.moma.org/calendar/programs/123",
				FreeStatus: "confirmed",
			},
			wantErrMsg: "title",
		},
		{
			name: "invalid url",
			req: extractedActivity{
				Title:      "Teen Open Studio",
				SourceURL:  "not-a-url",
				FreeStatus: "confirmed",
			},
			wantErrMsg: "source_url",
		},
		{
			name: "free status outside enum",
			req: extractedActivity{
				Title:      "Teen Open Studio",
				SourceURL:  "https://www.moma.org/calendar/programs/123",
				FreeStatus: "maybe",
			},
			wantErrMsg: "free_status",
		},
		{
			name: "age out of range",
			req: extractedActivity{
				Title:      "Teen Open Studio",
				SourceURL:  "https://www.moma.org/calendar/programs/123",
				FreeStatus: "confirmed",
				AgeMin:     &badAge,
			},
			wantErrMsg: "age_min",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)

			var domainErr *errors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, errors.CodeValidation, domainErr.Code)

			fields, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Contains(t, fields, tt.wantErrMsg)
		})
	}
}

func TestValidator_JSONFieldNames(t *testing.T) {
	v := validation.New()

	req := extractedActivity{
		SourceURL:  "https://www.moma.org/calendar/programs/123",
		FreeStatus: "confirmed",
	}

	err := v.Validate(req)
	require.Error(t, err)

	var domainErr *errors.Error
	require.ErrorAs(t, err, &domainErr)
	fields, ok := domainErr.Details.(map[string]string)
	require.True(t, ok)

	// Should use JSON tag name "title", not struct field name "Title".
	assert.Contains(t, fields, "title")
	assert.NotContains(t, fields, "Title")
}

package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/domain"
	domainerrors "github.com/thomasruntaochen-ops/art-activity-collection/internal/errors"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/store"
)

func (s *Server) registerActivityRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listActivities",
		Method:      http.MethodGet,
		Path:        "/api/v1/activities",
		Summary:     "List activities",
		Description: "Returns free kids/teen art activities matching the given filters",
		Tags:        []string{"Activities"},
	}, s.handleListActivities)

	huma.Register(s.api, huma.Operation{
		OperationID: "getActivitySuggestions",
		Method:      http.MethodGet,
		Path:        "/api/v1/activities/suggestions",
		Summary:     "Typeahead suggestions",
		Description: "Returns completions for a partial query across titles, venues, and cities",
		Tags:        []string{"Activities"},
	}, s.handleSuggestions)

	huma.Register(s.api, huma.Operation{
		OperationID: "getActivityFilterOptions",
		Method:      http.MethodGet,
		Path:        "/api/v1/activities/filter-options",
		Summary:     "Filter options",
		Description: "Returns the distinct venues, cities, states, and activity types currently served",
		Tags:        []string{"Activities"},
	}, s.handleFilterOptions)

	huma.Register(s.api, huma.Operation{
		OperationID: "getActivity",
		Method:      http.MethodGet,
		Path:        "/api/v1/activities/{id}",
		Summary:     "Get activity",
		Tags:        []string{"Activities"},
	}, s.handleGetActivity)
}

// === DTOs ===

// ActivitiesInput contains the list filters. Zero values mean no filter.
type ActivitiesInput struct {
	Age    int    `query:"age" validate:"omitempty,gte=0,lte=25" doc:"Only activities whose age range includes this age"`
	DropIn string `query:"drop_in" enum:",true,false" doc:"Filter by drop-in (true) or registration-only (false)"`
	Venue  string `query:"venue" doc:"Venue name, case-insensitive exact match"`
	City   string `query:"city" doc:"City, case-insensitive exact match"`
	State  string `query:"state" doc:"Two-letter state code"`
	From   string `query:"from" doc:"Only activities starting at or after this RFC 3339 timestamp or YYYY-MM-DD date"`
	Until  string `query:"until" doc:"Only activities starting before this RFC 3339 timestamp or YYYY-MM-DD date"`
	Status string `query:"status" doc:"Comma-separated statuses (active, needs_review). Default both."`
	Source string `query:"source" doc:"Source name, e.g. moma_teens"`
	Limit  int    `query:"limit" validate:"omitempty,gte=1,lte=200" doc:"Max results (default 50)"`
	Offset int    `query:"offset" validate:"omitempty,gte=0" doc:"Pagination offset"`
}

// VenueResponse is the embedded venue on an activity.
type VenueResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Website string `json:"website,omitempty"`
}

// ActivityResponse is one activity in API responses.
type ActivityResponse struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	ActivityType string `json:"activity_type,omitempty"`
	SourceURL    string `json:"source_url"`

	AgeMin *int `json:"age_min,omitempty"`
	AgeMax *int `json:"age_max,omitempty"`

	IsFree     bool   `json:"is_free"`
	FreeStatus string `json:"free_verification_status"`

	DropIn               *bool `json:"drop_in,omitempty"`
	RegistrationRequired *bool `json:"registration_required,omitempty"`

	StartAt        time.Time  `json:"start_at"`
	EndAt          *time.Time `json:"end_at,omitempty"`
	Timezone       string     `json:"timezone"`
	RecurrenceText string     `json:"recurrence_text,omitempty"`
	LocationText   string     `json:"location_text,omitempty"`

	Venue *VenueResponse `json:"venue,omitempty"`
	Tags  []string       `json:"tags,omitempty"`

	Status          string  `json:"status"`
	ConfidenceScore float64 `json:"confidence_score"`

	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// ActivitiesResponse is the list payload.
type ActivitiesResponse struct {
	Activities []ActivityResponse `json:"activities"`
	Count      int                `json:"count"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
}

// ActivitiesOutput wraps the list response for huma.
type ActivitiesOutput struct {
	Body ActivitiesResponse
}

// ActivityOutput wraps a single activity.
type ActivityOutput struct {
	Body ActivityResponse
}

// SuggestionsInput contains the typeahead query.
type SuggestionsInput struct {
	Query string `query:"q" validate:"required,min=1,max=100" doc:"Partial query text"`
	Limit int    `query:"limit" validate:"omitempty,gte=1,lte=25" doc:"Max suggestions (default 10)"`
}

// SuggestionResponse is one completion.
type SuggestionResponse struct {
	Value      string `json:"value"`
	Field      string `json:"field"`
	ActivityID string `json:"activity_id,omitempty"`
}

// SuggestionsOutput wraps the suggestions response for huma.
type SuggestionsOutput struct {
	Body struct {
		Suggestions []SuggestionResponse `json:"suggestions"`
	}
}

// FilterOptionsOutput wraps the filter options response for huma.
type FilterOptionsOutput struct {
	Body store.FilterOptions
}

// === Handlers ===

const defaultListLimit = 50

func (s *Server) handleListActivities(ctx context.Context, input *ActivitiesInput) (*ActivitiesOutput, error) {
	if err := s.validate.Validate(input); err != nil {
		return nil, err
	}

	filters, err := s.buildFilters(ctx, input)
	if err != nil {
		return nil, err
	}

	activities, err := s.store.ListActivities(ctx, filters)
	if err != nil {
		s.logger.Error("list activities failed", "error", err.Error())
		return nil, err
	}

	venues := make(map[string]*domain.Venue)
	resp := ActivitiesResponse{
		Activities: make([]ActivityResponse, 0, len(activities)),
		Limit:      filters.Limit,
		Offset:     filters.Offset,
	}
	for _, a := range activities {
		resp.Activities = append(resp.Activities, s.activityResponse(ctx, a, venues))
	}
	resp.Count = len(resp.Activities)

	return &ActivitiesOutput{Body: resp}, nil
}

func (s *Server) handleGetActivity(ctx context.Context, input *struct {
	ID string `path:"id" doc:"Activity ID"`
}) (*ActivityOutput, error) {
	activity, err := s.store.GetActivity(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	venues := make(map[string]*domain.Venue)
	return &ActivityOutput{Body: s.activityResponse(ctx, activity, venues)}, nil
}

func (s *Server) handleSuggestions(ctx context.Context, input *SuggestionsInput) (*SuggestionsOutput, error) {
	if err := s.validate.Validate(input); err != nil {
		return nil, err
	}
	if s.suggest == nil {
		return nil, huma.Error503ServiceUnavailable("suggestions are not available")
	}

	suggestions, err := s.suggest.Suggest(ctx, input.Query, input.Limit)
	if err != nil {
		s.logger.Error("suggest failed", "query", input.Query, "error", err.Error())
		return nil, err
	}

	out := &SuggestionsOutput{}
	out.Body.Suggestions = make([]SuggestionResponse, 0, len(suggestions))
	for _, sg := range suggestions {
		out.Body.Suggestions = append(out.Body.Suggestions, SuggestionResponse{
			Value:      sg.Value,
			Field:      sg.Field,
			ActivityID: sg.ActivityID,
		})
	}
	return out, nil
}

func (s *Server) handleFilterOptions(ctx context.Context, _ *struct{}) (*FilterOptionsOutput, error) {
	options, err := s.store.FilterOptions(ctx)
	if err != nil {
		s.logger.Error("filter options failed", "error", err.Error())
		return nil, err
	}
	return &FilterOptionsOutput{Body: *options}, nil
}

// buildFilters converts query inputs to store filters.
func (s *Server) buildFilters(ctx context.Context, input *ActivitiesInput) (store.ActivityFilters, error) {
	filters := store.ActivityFilters{
		Venue:  input.Venue,
		City:   input.City,
		State:  input.State,
		Limit:  input.Limit,
		Offset: input.Offset,
	}
	if filters.Limit <= 0 {
		filters.Limit = defaultListLimit
	}

	if input.Age > 0 {
		age := input.Age
		filters.Age = &age
	}

	switch input.DropIn {
	case "true":
		v := true
		filters.DropIn = &v
	case "false":
		v := false
		filters.DropIn = &v
	}

	if input.From != "" {
		from, err := parseTimeInput(input.From)
		if err != nil {
			return filters, domainerrors.Validation("invalid 'from' timestamp")
		}
		filters.From = &from
	}
	if input.Until != "" {
		until, err := parseTimeInput(input.Until)
		if err != nil {
			return filters, domainerrors.Validation("invalid 'until' timestamp")
		}
		filters.Until = &until
	}

	if input.Status != "" {
		for _, raw := range strings.Split(input.Status, ",") {
			switch status := domain.ActivityStatus(strings.TrimSpace(raw)); status {
			case domain.StatusActive, domain.StatusNeedsReview:
				filters.Statuses = append(filters.Statuses, status)
			case "":
			default:
				return filters, domainerrors.Validationf("invalid status %q", status)
			}
		}
	}

	if input.Source != "" {
		src, err := s.store.GetSourceByName(ctx, input.Source)
		if err != nil {
			return filters, err
		}
		filters.SourceID = src.ID
	}

	return filters, nil
}

// activityResponse converts a domain activity, resolving its venue through
// the per-request cache.
func (s *Server) activityResponse(ctx context.Context, a *domain.Activity, venues map[string]*domain.Venue) ActivityResponse {
	resp := ActivityResponse{
		ID:                   a.ID,
		Title:                a.Title,
		Description:          a.Description,
		ActivityType:         a.ActivityType,
		SourceURL:            a.SourceURL,
		AgeMin:               a.AgeMin,
		AgeMax:               a.AgeMax,
		IsFree:               a.IsFree,
		FreeStatus:           string(a.FreeStatus),
		DropIn:               a.DropIn,
		RegistrationRequired: a.RegistrationRequired,
		StartAt:              a.StartAt,
		EndAt:                a.EndAt,
		Timezone:             a.Timezone,
		RecurrenceText:       a.RecurrenceText,
		LocationText:         a.LocationText,
		Status:               string(a.Status),
		ConfidenceScore:      a.ConfidenceScore,
		FirstSeenAt:          a.FirstSeenAt,
		LastSeenAt:           a.LastSeenAt,
	}

	if a.VenueID != "" {
		venue, ok := venues[a.VenueID]
		if !ok {
			var err error
			venue, err = s.store.GetVenue(ctx, a.VenueID)
			if err != nil {
				s.logger.Warn("resolve venue failed", "venue_id", a.VenueID, "error", err.Error())
				venue = nil
			}
			venues[a.VenueID] = venue
		}
		if venue != nil {
			resp.Venue = &VenueResponse{
				ID:      venue.ID,
				Name:    venue.Name,
				Address: venue.Address,
				City:    venue.City,
				State:   venue.State,
				Website: venue.Website,
			}
		}
	}

	if tags, err := s.store.GetActivityTags(ctx, a.ID); err == nil && len(tags) > 0 {
		resp.Tags = tags
	}

	return resp
}

// parseTimeInput accepts RFC 3339 timestamps and bare dates.
func parseTimeInput(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

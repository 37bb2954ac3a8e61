package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/domain"
)

func (s *Server) registerRunRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listIngestionRuns",
		Method:      http.MethodGet,
		Path:        "/api/v1/runs",
		Summary:     "List ingestion runs",
		Description: "Returns recent ingestion runs, newest first",
		Tags:        []string{"Runs"},
	}, s.handleListRuns)

	huma.Register(s.api, huma.Operation{
		OperationID: "getIngestionRun",
		Method:      http.MethodGet,
		Path:        "/api/v1/runs/{id}",
		Summary:     "Get ingestion run",
		Tags:        []string{"Runs"},
	}, s.handleGetRun)
}

// RunsInput contains the run list filters.
type RunsInput struct {
	Source string `query:"source" doc:"Restrict to one source by name"`
	Limit  int    `query:"limit" validate:"omitempty,gte=1,lte=200" doc:"Max results (default 20)"`
}

// RunResponse is one ingestion run in API responses.
type RunResponse struct {
	ID         string     `json:"id"`
	SourceID   string     `json:"source_id"`
	SourceName string     `json:"source_name,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status"`
	ItemsFound int        `json:"items_found"`
	ItemsSaved int        `json:"items_saved"`
	Errors     string     `json:"errors,omitempty"`
}

// RunsOutput wraps the run list for huma.
type RunsOutput struct {
	Body struct {
		Runs []RunResponse `json:"runs"`
	}
}

// RunOutput wraps a single run.
type RunOutput struct {
	Body RunResponse
}

const defaultRunsLimit = 20

func (s *Server) handleListRuns(ctx context.Context, input *RunsInput) (*RunsOutput, error) {
	if err := s.validate.Validate(input); err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultRunsLimit
	}

	sourceID := ""
	if input.Source != "" {
		src, err := s.store.GetSourceByName(ctx, input.Source)
		if err != nil {
			return nil, err
		}
		sourceID = src.ID
	}

	runs, err := s.store.ListRuns(ctx, sourceID, limit)
	if err != nil {
		s.logger.Error("list runs failed", "error", err.Error())
		return nil, err
	}

	names := make(map[string]string)
	out := &RunsOutput{}
	out.Body.Runs = make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		out.Body.Runs = append(out.Body.Runs, s.runResponse(ctx, run, names))
	}
	return out, nil
}

func (s *Server) handleGetRun(ctx context.Context, input *struct {
	ID string `path:"id" doc:"Run ID"`
}) (*RunOutput, error) {
	run, err := s.store.GetRun(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &RunOutput{Body: s.runResponse(ctx, run, make(map[string]string))}, nil
}

func (s *Server) runResponse(ctx context.Context, run *domain.IngestionRun, names map[string]string) RunResponse {
	name, ok := names[run.SourceID]
	if !ok {
		if src, err := s.store.GetSource(ctx, run.SourceID); err == nil {
			name = src.Name
		}
		names[run.SourceID] = name
	}
	return RunResponse{
		ID:         run.ID,
		SourceID:   run.SourceID,
		SourceName: name,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Status:     string(run.Status),
		ItemsFound: run.ItemsFound,
		ItemsSaved: run.ItemsSaved,
		Errors:     run.Errors,
	}
}

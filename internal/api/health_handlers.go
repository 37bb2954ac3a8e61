package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// ComponentHealth reports the status of one dependency.
type ComponentHealth struct {
	Status  string `json:"status" enum:"up,degraded,down"`
	Latency string `json:"latency,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status     string                     `json:"status" enum:"up,degraded,down"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}

// HealthOutput wraps the health response for huma.
type HealthOutput struct {
	Status int
	Body   HealthResponse
}

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Reports whether the catalog database and suggest index are serving",
		Tags:        []string{"System"},
	}, s.handleHealthCheck)
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	resp := HealthResponse{
		Status:    "up",
		Timestamp: time.Now().UTC(),
		Components: map[string]ComponentHealth{
			"database": s.checkDatabase(ctx),
			"search":   s.checkSearchIndex(),
		},
	}

	status := http.StatusOK
	for _, c := range resp.Components {
		switch c.Status {
		case "down":
			resp.Status = "down"
			status = http.StatusServiceUnavailable
		case "degraded":
			if resp.Status == "up" {
				resp.Status = "degraded"
			}
		}
	}

	return &HealthOutput{Status: status, Body: resp}, nil
}

func (s *Server) checkDatabase(ctx context.Context) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := s.store.Ping(ctx); err != nil {
		return ComponentHealth{Status: "down", Detail: err.Error()}
	}
	return ComponentHealth{Status: "up", Latency: time.Since(start).String()}
}

func (s *Server) checkSearchIndex() ComponentHealth {
	if s.suggest == nil {
		return ComponentHealth{Status: "degraded", Detail: "suggest index not configured"}
	}
	count, err := s.suggest.DocCount()
	if err != nil {
		return ComponentHealth{Status: "down", Detail: err.Error()}
	}
	if count == 0 {
		return ComponentHealth{Status: "degraded", Detail: "suggest index is empty"}
	}
	return ComponentHealth{Status: "up"}
}

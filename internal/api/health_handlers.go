package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// Component statuses, in increasing severity.
const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	components := map[string]ComponentHealth{
		"docstore": s.checkDocstore(ctx),
		"tags":     s.checkTagStore(),
		"search":   s.checkSearchIndex(),
		"sse":      s.checkSSEManager(),
	}

	overall := statusHealthy
	for _, c := range components {
		overall = worse(overall, c.Status)
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:     overall,
			Components: components,
		},
	}, nil
}

func worse(a, b string) string {
	rank := map[string]int{statusHealthy: 0, statusDegraded: 1, statusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// checkDocstore verifies the backing document store answers.
func (s *Server) checkDocstore(ctx context.Context) ComponentHealth {
	if s.docs == nil {
		return ComponentHealth{
			Status:  statusDegraded,
			Message: "document store not configured",
		}
	}

	start := time.Now()
	err := s.docs.Ping(ctx)
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  statusUnhealthy,
			Latency: latency.String(),
			Message: "document store unreachable",
		}
	}

	return ComponentHealth{
		Status:  statusHealthy,
		Latency: latency.String(),
	}
}

// checkTagStore reports whether the initial fetch has completed.
func (s *Server) checkTagStore() ComponentHealth {
	state := s.store.State()

	switch {
	case state.FetchingError != nil:
		return ComponentHealth{
			Status:  statusDegraded,
			Message: "last fetch failed: " + state.FetchingError.Message,
		}
	case state.FetchCount < 0:
		return ComponentHealth{
			Status:  statusDegraded,
			Message: "tags not fetched yet",
		}
	default:
		return ComponentHealth{
			Status:  statusHealthy,
			Message: fmt.Sprintf("%d tags", len(state.AllIDs)),
		}
	}
}

// checkSearchIndex verifies the Bleve index is accessible.
func (s *Server) checkSearchIndex() ComponentHealth {
	if s.index == nil {
		return ComponentHealth{
			Status:  statusDegraded,
			Message: "search index not configured",
		}
	}

	start := time.Now()
	docCount, err := s.index.DocumentCount()
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  statusUnhealthy,
			Latency: latency.String(),
			Message: "search index unreachable",
		}
	}

	// An empty index lagging a non-empty store is still catching up.
	if docCount == 0 && len(s.store.State().AllIDs) > 0 {
		return ComponentHealth{
			Status:  statusDegraded,
			Latency: latency.String(),
			Message: "search index empty",
		}
	}

	return ComponentHealth{
		Status:  statusHealthy,
		Latency: latency.String(),
	}
}

// checkSSEManager reports the event stream's client count.
func (s *Server) checkSSEManager() ComponentHealth {
	if s.sseManager == nil {
		return ComponentHealth{
			Status:  statusDegraded,
			Message: "SSE manager not configured",
		}
	}

	return ComponentHealth{
		Status:  statusHealthy,
		Message: formatSSEStatus(s.sseManager.ClientCount()),
	}
}

func formatSSEStatus(count int) string {
	switch count {
	case 0:
		return "no connected clients"
	case 1:
		return "1 connected client"
	default:
		return fmt.Sprintf("%d connected clients", count)
	}
}

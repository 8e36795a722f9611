package api

import (
	"context"
	"net/http"
	"os"
	"sort"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Reports whether ffmpeg, ffprobe and the download directory are usable",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy or unhealthy"`
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

func (s *Server) handleHealthCheck(_ context.Context, _ *struct{}) (*HealthOutput, error) {
	components := make(map[string]ComponentHealth)
	overall := "healthy"

	names := make([]string, 0, len(s.opts.Tools))
	for name := range s.opts.Tools {
		names = append(names, name)
	}
	sort.Strings(names)

	// Without the tools no check can complete.
	for _, name := range names {
		if err := s.opts.Tools[name].Available(); err != nil {
			components[name] = ComponentHealth{Status: "unhealthy", Message: err.Error()}
			overall = "unhealthy"
			continue
		}
		components[name] = ComponentHealth{Status: "healthy"}
	}

	dirHealth := checkDownloadDir(s.opts.DownloadDir)
	components["download_dir"] = dirHealth
	if dirHealth.Status != "healthy" && overall == "healthy" {
		overall = "degraded"
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:     overall,
			Components: components,
		},
	}, nil
}

// checkDownloadDir verifies that files can be created in dir.
func checkDownloadDir(dir string) ComponentHealth {
	if dir == "" {
		return ComponentHealth{Status: "unhealthy", Message: "download directory not configured"}
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ComponentHealth{Status: "unhealthy", Message: err.Error()}
	}

	f, err := os.CreateTemp(dir, ".health-*")
	if err != nil {
		return ComponentHealth{Status: "unhealthy", Message: err.Error()}
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)

	return ComponentHealth{Status: "healthy"}
}

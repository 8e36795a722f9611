package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ripqoc/qoc-server/internal/domain"
	"github.com/ripqoc/qoc-server/internal/service"
)

const checksPath = "/api/v1/checks"

func (s *Server) registerCheckRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "runCheck",
		Method:      http.MethodPost,
		Path:        checksPath,
		Summary:     "Run a QoC check",
		Description: "Downloads the rip behind the URL and checks its bitrate and waveform. Slow: expect seconds to minutes.",
		Tags:        []string{"Checks"},
	}, s.handleRunCheck)

	huma.Register(s.api, huma.Operation{
		OperationID: "resolveURL",
		Method:      http.MethodPost,
		Path:        "/api/v1/resolve",
		Summary:     "Resolve a share link",
		Description: "Returns the directly downloadable URL a check would fetch, without fetching it",
		Tags:        []string{"Checks"},
	}, s.handleResolve)
}

// URLRequest is the body of check and resolve requests.
type URLRequest struct {
	URL string `json:"url" maxLength:"2048" doc:"Link to the rip" example:"https://siiva-gunner.com/?id=abc123"`
}

// CheckInput wraps the check request for Huma.
type CheckInput struct {
	Body URLRequest
}

// CheckResponse is the verdict of a check.
type CheckResponse struct {
	CheckID       string            `json:"check_id" doc:"Identifier for log correlation"`
	Code          int               `json:"code" doc:"-1 could not be evaluated, 0 passed, 1 issues found"`
	Message       string            `json:"message" doc:"Human-readable verdict, one line per check"`
	BitrateOK     bool              `json:"bitrate_ok"`
	ClippingOK    bool              `json:"clipping_ok"`
	DLSClippingOK bool              `json:"dls_clipping_ok"`
	VolumeReduced bool              `json:"volume_reduced" doc:"Clipping happened before a post-render volume reduction"`
	Markers       []string          `json:"markers" doc:"Rendering hints: link, check or fix, then bitrate and clipping"`
	Bitrate       *domain.SubResult `json:"bitrate,omitempty"`
	Clipping      *domain.SubResult `json:"clipping,omitempty"`
	DLSClipping   *domain.SubResult `json:"dls_clipping,omitempty"`
	Errors        []string          `json:"errors,omitempty"`
	ElapsedMS     int64             `json:"elapsed_ms"`
}

// CheckOutput wraps the check response for Huma.
type CheckOutput struct {
	Body CheckResponse
}

func (s *Server) handleRunCheck(ctx context.Context, input *CheckInput) (*CheckOutput, error) {
	if s.opts.CheckTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.CheckTimeout)
		defer cancel()
	}

	v, err := s.checker.Check(ctx, service.CheckRequest{URL: input.Body.URL})
	if err != nil {
		return nil, err
	}

	return &CheckOutput{Body: newCheckResponse(v)}, nil
}

func newCheckResponse(v *domain.Verdict) CheckResponse {
	return CheckResponse{
		CheckID:       v.CheckID,
		Code:          int(v.Code),
		Message:       v.Message,
		BitrateOK:     v.BitrateOK(),
		ClippingOK:    v.ClippingOK(),
		DLSClippingOK: v.DLSClippingOK(),
		VolumeReduced: v.VolumeReduced(),
		Markers:       v.Markers(),
		Bitrate:       v.Bitrate,
		Clipping:      v.Clipping,
		DLSClipping:   v.DLSClipping,
		Errors:        v.Errors,
		ElapsedMS:     v.Elapsed.Milliseconds(),
	}
}

// ResolveInput wraps the resolve request for Huma.
type ResolveInput struct {
	Body URLRequest
}

// ResolveResponse pairs the submitted URL with its fetchable form.
type ResolveResponse struct {
	URL         string `json:"url"`
	ResolvedURL string `json:"resolved_url"`
}

// ResolveOutput wraps the resolve response for Huma.
type ResolveOutput struct {
	Body ResolveResponse
}

func (s *Server) handleResolve(_ context.Context, input *ResolveInput) (*ResolveOutput, error) {
	resolved, err := s.checker.Resolve(service.CheckRequest{URL: input.Body.URL})
	if err != nil {
		return nil, err
	}
	return &ResolveOutput{Body: ResolveResponse{URL: input.Body.URL, ResolvedURL: resolved}}, nil
}

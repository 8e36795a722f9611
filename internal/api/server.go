// Package api provides the HTTP API for running QoC checks.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ripqoc/qoc-server/internal/domain"
	"github.com/ripqoc/qoc-server/internal/http/response"
	"github.com/ripqoc/qoc-server/internal/service"
)

// Checker runs checks. *service.QoCService implements it.
type Checker interface {
	Check(ctx context.Context, req service.CheckRequest) (*domain.Verdict, error)
	Resolve(req service.CheckRequest) (string, error)
}

// Tool is an external binary whose presence the health check reports.
type Tool interface {
	Available() error
}

// Options configures the server.
type Options struct {
	// CheckTimeout bounds a single check. Zero means only the client's
	// connection bounds it.
	CheckTimeout time.Duration
	// RateLimitPerMinute and RateLimitBurst limit check requests per client IP.
	RateLimitPerMinute int
	RateLimitBurst     int
	CORSOrigins        []string
	// Tools maps a tool name ("ffmpeg", "ffprobe") to its availability probe.
	Tools map[string]Tool
	// DownloadDir is checked for writability by the health check.
	DownloadDir string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	checker      Checker
	opts         Options
	router       *chi.Mux
	api          huma.API
	checkLimiter *RateLimiter
	logger       *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(checker Checker, opts Options, logger *slog.Logger) *Server {
	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = 10
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 3
	}

	s := &Server{
		checker:      checker,
		opts:         opts,
		router:       chi.NewRouter(),
		checkLimiter: NewRateLimiter(opts.RateLimitPerMinute, time.Minute, opts.RateLimitBurst),
		logger:       logger,
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("QoC API", "1.0.0")
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerCheckRoutes()

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "no route for "+r.URL.Path, s.logger)
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.checkLimiter.Stop()
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         300,
	}))
	s.router.Use(pathPrefix(checksPath, RateLimitMiddleware(s.checkLimiter, s.logger)))
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

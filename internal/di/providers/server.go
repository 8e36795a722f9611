package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/ripqoc/qoc-server/internal/api"
	"github.com/ripqoc/qoc-server/internal/config"
	"github.com/ripqoc/qoc-server/internal/decode"
	"github.com/ripqoc/qoc-server/internal/logger"
	"github.com/ripqoc/qoc-server/internal/probe"
	"github.com/ripqoc/qoc-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	api *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	defer h.api.Close()
	return h.Server.Shutdown(ctx)
}

// ProvideAPIServer provides the HTTP handler.
func ProvideAPIServer(i do.Injector) (*api.Server, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	svc := do.MustInvoke[*service.QoCService](i)
	prober := do.MustInvoke[*probe.Prober](i)
	transcoder := do.MustInvoke[*decode.Transcoder](i)

	return api.NewServer(svc, api.Options{
		CheckTimeout:       cfg.Server.CheckTimeout,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		RateLimitBurst:     cfg.Server.RateLimitBurst,
		CORSOrigins:        cfg.Server.CORSOrigins,
		Tools: map[string]api.Tool{
			"ffmpeg":  transcoder,
			"ffprobe": prober,
		},
		DownloadDir: cfg.QoC.DownloadDir,
	}, log.Logger), nil
}

// ProvideHTTPServer provides the HTTP server and starts it in the background.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	handler := do.MustInvoke[*api.Server](i)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr, "mode", cfg.QoC.Mode)

	return &HTTPServerHandle{Server: srv, api: handler}, nil
}

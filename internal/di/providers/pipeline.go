package providers

import (
	"github.com/samber/do/v2"

	"github.com/ripqoc/qoc-server/internal/analysis"
	"github.com/ripqoc/qoc-server/internal/config"
	"github.com/ripqoc/qoc-server/internal/decode"
	"github.com/ripqoc/qoc-server/internal/fetch"
	"github.com/ripqoc/qoc-server/internal/logger"
	"github.com/ripqoc/qoc-server/internal/probe"
	"github.com/ripqoc/qoc-server/internal/service"
	"github.com/ripqoc/qoc-server/internal/toolexec"
)

// FetchClientHandle wraps fetch.Client with Shutdownable.
type FetchClientHandle struct {
	*fetch.Client
}

// Shutdown implements do.Shutdownable.
func (h *FetchClientHandle) Shutdown() error {
	h.Client.Close()
	return nil
}

// ProvideFetchClient provides the outbound HTTP client.
func ProvideFetchClient(i do.Injector) (*FetchClientHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client := fetch.New(fetch.Options{
		RequestTimeout: cfg.Fetch.RequestTimeout,
		MaxRedirects:   cfg.Fetch.MaxRedirects,
		HostRPS:        cfg.Fetch.HostRPS,
		HostBurst:      cfg.Fetch.HostBurst,
		UserAgent:      cfg.Fetch.UserAgent,
	}, log.Logger)

	return &FetchClientHandle{Client: client}, nil
}

// ProvideProber provides the ffprobe wrapper.
func ProvideProber(i do.Injector) (*probe.Prober, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	p := probe.New(cfg.Tools.FFprobePath, toolexec.ExecRunner{}, log.Logger)
	if err := p.Available(); err != nil {
		// Non-fatal: the health check reports it and checks fail with a clear message.
		log.Warn("ffprobe not found", "error", err)
	}
	return p, nil
}

// ProvideTranscoder provides the ffmpeg wrapper.
func ProvideTranscoder(i do.Injector) (*decode.Transcoder, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	t := decode.NewTranscoder(cfg.Tools.FFmpegPath, toolexec.ExecRunner{}, log.Logger)
	if err := t.Available(); err != nil {
		log.Warn("ffmpeg not found", "error", err)
	}
	return t, nil
}

// ProvideQoCService provides the check pipeline.
func ProvideQoCService(i do.Injector) (*service.QoCService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	fetchHandle := do.MustInvoke[*FetchClientHandle](i)
	prober := do.MustInvoke[*probe.Prober](i)
	transcoder := do.MustInvoke[*decode.Transcoder](i)

	svc := service.NewQoCService(service.Config{
		Mode:          cfg.QoC.Mode,
		DownloadDir:   cfg.QoC.DownloadDir,
		MaxConcurrent: cfg.QoC.MaxConcurrent,
		EnableDLS:     cfg.QoC.EnableDLS,
		Analysis: analysis.Options{
			ClippingThreshold: cfg.QoC.ClippingThreshold,
			DLSThreshold:      cfg.QoC.DLSThreshold,
			MinBitrate:        int64(cfg.QoC.MinBitrate),
		},
	}, fetchHandle.Client, prober, transcoder, log)

	return svc, nil
}

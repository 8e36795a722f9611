// Package service runs QoC checks: resolve the URL, acquire the rip, run the
// bitrate and waveform stages concurrently and fold them into a verdict.
package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ripqoc/qoc-server/internal/analysis"
	"github.com/ripqoc/qoc-server/internal/decode"
	"github.com/ripqoc/qoc-server/internal/domain"
	domainerrors "github.com/ripqoc/qoc-server/internal/errors"
	"github.com/ripqoc/qoc-server/internal/fetch"
	"github.com/ripqoc/qoc-server/internal/id"
	"github.com/ripqoc/qoc-server/internal/logger"
	"github.com/ripqoc/qoc-server/internal/resolver"
	"github.com/ripqoc/qoc-server/internal/scratch"
	"github.com/ripqoc/qoc-server/internal/validation"
)

// Acquisition modes.
const (
	ModeDownload = "download"
	ModeStream   = "stream"
)

// Fetcher retrieves rips over HTTP.
type Fetcher interface {
	Head(ctx context.Context, url string) (string, error)
	Download(ctx context.Context, url, dir string) (*fetch.Download, error)
}

// Prober reads container and stream metadata from a path or URL.
type Prober interface {
	Probe(ctx context.Context, target string) (*domain.ProbeMetadata, error)
}

// Transcoder converts a path or URL to a float WAV.
type Transcoder interface {
	ToWAV(ctx context.Context, input, output string) (bool, error)
}

// Config holds the pipeline settings.
type Config struct {
	Mode          string
	DownloadDir   string
	MaxConcurrent int
	EnableDLS     bool
	Analysis      analysis.Options
}

// CheckRequest is the input of a check.
type CheckRequest struct {
	URL string `json:"url" validate:"required,max=2048,ripurl"`
}

// QoCService performs checks. It is safe for concurrent use; at most
// Config.MaxConcurrent checks run at a time and the rest wait their turn.
type QoCService struct {
	cfg        Config
	fetcher    Fetcher
	prober     Prober
	transcoder Transcoder
	analyzer   *analysis.Analyzer
	validator  *validation.Validator
	sem        *semaphore.Weighted
	logger     *logger.Logger
}

// NewQoCService creates a QoC service.
func NewQoCService(cfg Config, fetcher Fetcher, prober Prober, transcoder Transcoder, log *logger.Logger) *QoCService {
	if cfg.Mode == "" {
		cfg.Mode = ModeDownload
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	return &QoCService{
		cfg:        cfg,
		fetcher:    fetcher,
		prober:     prober,
		transcoder: transcoder,
		analyzer:   analysis.New(cfg.Analysis, log.Logger),
		validator:  validation.New(),
		sem:        semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger:     log,
	}
}

// Resolve validates a request and returns the directly fetchable URL.
func (s *QoCService) Resolve(req CheckRequest) (string, error) {
	if err := s.validator.Validate(req); err != nil {
		return "", err
	}
	return resolver.Resolve(req.URL)
}

// Check runs one QoC check. Failures to acquire or analyse the rip are part
// of the verdict (code -1); the returned error is reserved for invalid
// requests and checks cancelled before they started.
func (s *QoCService) Check(ctx context.Context, req CheckRequest) (*domain.Verdict, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	checkID, err := id.NewCheckID()
	if err != nil {
		return nil, domainerrors.Internalf("cannot create check id").WithCause(err)
	}
	log := s.logger.ForCheck(checkID, req.URL)

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "check cancelled while waiting for a free slot")
	}
	defer s.sem.Release(1)

	start := time.Now()
	v := s.run(ctx, checkID, req.URL, log)
	v.Elapsed = time.Since(start)

	log.Info("check finished",
		slog.Int("code", int(v.Code)),
		slog.Duration("elapsed", v.Elapsed),
	)
	return v, nil
}

func (s *QoCService) run(ctx context.Context, checkID, rawURL string, log *slog.Logger) *domain.Verdict {
	v := &domain.Verdict{CheckID: checkID}

	resolved, err := resolver.Resolve(rawURL)
	if err != nil {
		return unevaluated(v, err)
	}
	log.Debug("resolved", slog.String("resolved_url", resolved))

	ws := scratch.New(s.cfg.DownloadDir, log)
	defer func() { _ = ws.Close() }()

	src := &domain.AudioSource{OriginalURL: rawURL, ResolvedURL: resolved}
	p := &pipeline{
		svc:      s,
		ws:       ws,
		src:      src,
		log:      log,
		analyzer: s.analyzer.WithLogger(log),
	}

	var stages *stageResults
	if s.cfg.Mode == ModeStream {
		stages, err = p.runStream(ctx)
	} else {
		stages, err = p.runDownload(ctx)
	}
	if err != nil {
		return unevaluated(v, err)
	}

	return aggregate(v, stages, s.cfg.EnableDLS)
}

// pipeline carries the state of one check.
type pipeline struct {
	svc      *QoCService
	ws       *scratch.Workspace
	src      *domain.AudioSource
	log      *slog.Logger
	analyzer *analysis.Analyzer
}

// waveformSource says where the analysable WAV comes from.
type waveformSource struct {
	// input is transcoded to wav unless wav is already a WAV file.
	input     string
	wav       string
	transcode bool
	gradient  bool
}

func (p *pipeline) runDownload(ctx context.Context) (*stageResults, error) {
	dl, err := p.svc.fetcher.Download(ctx, p.src.ResolvedURL, p.ws.Dir())
	if err != nil {
		return nil, err
	}
	p.ws.Own(dl.Path)
	p.src.LocalPath = dl.Path
	p.src.ContentType = dl.ContentType
	p.log.Debug("downloaded audio", slog.String("file", dl.Filename), slog.Int64("bytes", dl.Size))

	container, err := decode.Sniff(dl.Path)
	if err != nil {
		return nil, err
	}

	meta, probeErr := p.svc.prober.Probe(ctx, dl.Path)
	if probeErr != nil {
		p.log.Debug("probe failed", slog.Any("error", probeErr))
	} else {
		p.log.Debug("file metadata", slog.String("probe", meta.Summary()))
	}

	if container == domain.ContainerUnknown && meta != nil {
		container = decode.ContainerFromFormatName(meta.FormatName)
	}
	if container == domain.ContainerUnknown {
		if probeErr != nil && domainerrors.Is(probeErr, domainerrors.ErrToolMissing) {
			return nil, probeErr
		}
		return nil, domainerrors.UnrecognizedMediaf("ERROR: %s is not a recognized audio file.", dl.Filename)
	}
	p.src.Container = container

	bitrate := func(context.Context) (*domain.SubResult, error) {
		if !container.Lossless() && probeErr != nil {
			return nil, probeErr
		}
		return p.analyzer.BitrateFromFile(container, meta)
	}

	wf := waveformSource{input: dl.Path, wav: dl.Path}
	if container != domain.ContainerWAV {
		wf.wav = decode.TempWAVPath(dl.Path)
		wf.transcode = true
	}
	wf.gradient = meta.Is24BitFLAC() || (container == domain.ContainerFLAC && meta != nil && meta.BitsPerSample == 24)

	return p.runStages(ctx, bitrate, func(context.Context) (waveformSource, error) { return wf, nil }), nil
}

func (p *pipeline) runStream(ctx context.Context) (*stageResults, error) {
	contentType, err := p.svc.fetcher.Head(ctx, p.src.ResolvedURL)
	if err != nil {
		return nil, err
	}
	p.src.ContentType = contentType
	p.log.Debug("content type", slog.String("content_type", contentType))

	probeURL := sync.OnceValues(func() (*domain.ProbeMetadata, error) {
		return p.svc.prober.Probe(ctx, p.src.ResolvedURL)
	})

	bitrate := func(context.Context) (*domain.SubResult, error) {
		if isLosslessType(contentType) {
			return p.analyzer.BitrateFromProbe(contentType, nil)
		}
		meta, err := probeURL()
		if err != nil {
			return nil, err
		}
		return p.analyzer.BitrateFromProbe(contentType, meta)
	}

	source := func(ctx context.Context) (waveformSource, error) {
		if strings.Contains(contentType, "wav") {
			dl, err := p.svc.fetcher.Download(ctx, p.src.ResolvedURL, p.ws.Dir())
			if err != nil {
				return waveformSource{}, err
			}
			p.ws.Own(dl.Path)
			p.src.LocalPath = dl.Path
			return waveformSource{input: dl.Path, wav: dl.Path}, nil
		}

		if err := p.ws.Ensure(); err != nil {
			return waveformSource{}, domainerrors.Internalf("cannot create check workspace").WithCause(err)
		}
		wf := waveformSource{input: p.src.ResolvedURL, wav: p.ws.Path("temp.wav"), transcode: true}
		if meta, err := probeURL(); err == nil {
			wf.gradient = meta.Is24BitFLAC()
		}
		return wf, nil
	}

	return p.runStages(ctx, bitrate, source), nil
}

func isLosslessType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "wav") || strings.Contains(ct, "flac")
}

// runStages runs the bitrate stage and the waveform stages side by side. A
// failing stage never stops the other one.
func (p *pipeline) runStages(
	ctx context.Context,
	bitrate func(context.Context) (*domain.SubResult, error),
	source func(context.Context) (waveformSource, error),
) *stageResults {
	res := &stageResults{}

	var g errgroup.Group
	g.Go(func() error {
		res.bitrate, res.bitrateErr = bitrate(ctx)
		return nil
	})
	g.Go(func() error {
		wf, err := source(ctx)
		if err != nil {
			res.waveformErr = err
			return nil
		}
		w, err := p.loadWaveform(ctx, wf)
		if err != nil {
			res.waveformErr = err
			return nil
		}

		if wf.gradient {
			p.log.Debug("24-bit FLAC source, using gradient analysis")
			res.clipping, res.clippingErr = p.analyzer.DetectGradient(w)
		} else {
			res.clipping, res.clippingErr = p.analyzer.DetectClipping(w)
		}
		if p.svc.cfg.EnableDLS {
			res.dls, res.dlsErr = p.analyzer.DetectDLSClipping(w)
		}
		return nil
	})
	_ = g.Wait()

	return res
}

func (p *pipeline) loadWaveform(ctx context.Context, wf waveformSource) (*domain.Waveform, error) {
	if wf.transcode {
		created, err := p.svc.transcoder.ToWAV(ctx, wf.input, wf.wav)
		if created {
			p.ws.Own(wf.wav)
		}
		if err != nil {
			return nil, err
		}
	}

	w, err := decode.ReadWaveform(wf.wav)
	if err != nil {
		return nil, err
	}
	p.log.Debug("waveform",
		slog.Int("sample_rate", w.SampleRate),
		slog.Int("channels", w.NumChannels()),
		slog.Int("bit_depth", w.BitDepth),
		slog.Bool("float", w.IsFloat),
		slog.Int("frames", w.Len()),
	)
	return w, nil
}

// Package probe reads stream and container metadata with ffprobe, for local
// files and remote URLs alike. Local files are also parsed with audiometa,
// which stands in when ffprobe cannot read them.
package probe

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ripqoc/qoc-server/internal/domain"
	domainerrors "github.com/ripqoc/qoc-server/internal/errors"
	"github.com/ripqoc/qoc-server/internal/toolexec"
)

const toolName = "ffprobe"

// Prober runs ffprobe against a path or URL.
type Prober struct {
	path   string
	runner toolexec.Runner
	logger *slog.Logger
}

// New creates a prober. An empty path means ffprobe on PATH.
func New(path string, runner toolexec.Runner, logger *slog.Logger) *Prober {
	if path == "" {
		path = toolName
	}
	if runner == nil {
		runner = toolexec.ExecRunner{}
	}
	return &Prober{path: path, runner: runner, logger: logger}
}

// Available reports whether the ffprobe binary can be found.
func (p *Prober) Available() error {
	_, err := toolexec.Lookup(p.path)
	return err
}

// Probe returns metadata for the first audio stream of target.
func (p *Prober) Probe(ctx context.Context, target string) (*domain.ProbeMetadata, error) {
	var native *domain.ProbeMetadata
	if !isRemote(target) {
		native = p.readNative(ctx, target)
	}

	meta, err := p.ffprobe(ctx, target)
	if err != nil {
		if native != nil && ctx.Err() == nil {
			p.logger.Debug("using audiometa metadata", "target", target, "error", err)
			return native, nil
		}
		return nil, err
	}
	if native != nil {
		fillMissing(meta, native)
	}
	return meta, nil
}

func (p *Prober) ffprobe(ctx context.Context, target string) (*domain.ProbeMetadata, error) {
	stdout, stderr, err := p.runner.Run(ctx, p.path,
		"-v", "quiet",
		"-select_streams", "a:0",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-i", target,
	)
	if err != nil {
		if toolexec.IsNotFound(err) {
			return nil, domainerrors.ToolMissing(toolName).WithCause(err)
		}
		if ctx.Err() != nil {
			return nil, domainerrors.Network("Request timed out.").WithCause(ctx.Err())
		}
		p.logger.Debug("ffprobe failed", "target", target, "stderr", strings.TrimSpace(string(stderr)))
		return nil, domainerrors.Decodef("ERROR: ffprobe could not read the file (%v).", err).WithCause(err)
	}

	meta, err := Parse(stdout)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("ffprobe",
		"target", target,
		"format", meta.FormatName,
		"codec", meta.CodecName,
		"bit_rate", meta.BitRateRaw,
		"bits_per_sample", meta.BitsPerSample,
	)
	return meta, nil
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	CodecName        string `json:"codec_name"`
	CodecType        string `json:"codec_type"`
	SampleRate       string `json:"sample_rate"`
	Channels         int    `json:"channels"`
	BitRate          string `json:"bit_rate"`
	BitsPerSample    int    `json:"bits_per_sample"`
	BitsPerRawSample string `json:"bits_per_raw_sample"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	BitRate    string `json:"bit_rate"`
}

// Parse converts ffprobe JSON into ProbeMetadata. A missing or malformed
// stream bit_rate leaves BitRate nil; BitRateRaw keeps what ffprobe printed.
func Parse(raw []byte) (*domain.ProbeMetadata, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, domainerrors.Decodef("ERROR: ffprobe output cannot be parsed:\n%s", raw).WithCause(err)
	}

	meta := &domain.ProbeMetadata{
		FormatName:    out.Format.FormatName,
		FormatBitRate: parseInt(out.Format.BitRate),
		Raw:           raw,
	}

	if len(out.Streams) > 0 {
		s := out.Streams[0]
		meta.CodecName = s.CodecName
		meta.Channels = s.Channels
		meta.BitRateRaw = s.BitRate
		meta.BitRate = parseInt(s.BitRate)
		if sr := parseInt(s.SampleRate); sr != nil {
			meta.SampleRate = int(*sr)
		}
		meta.BitsPerSample = s.BitsPerSample
		if raw := parseInt(s.BitsPerRawSample); raw != nil {
			meta.BitsPerSample = int(*raw)
		}
	}

	return meta, nil
}

func parseInt(s string) *int64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

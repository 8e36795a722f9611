// Package analysis holds the QoC checks: bitrate from probe metadata, and
// clipping, gradient and DLS clipping from decoded waveforms.
//
// Every check returns a *domain.SubResult for a verdict it could reach and a
// coded error when the input cannot be judged. None of them modify their input.
package analysis

import (
	"log/slog"

	"github.com/ripqoc/qoc-server/internal/logger"
)

// Empirically tuned thresholds. Override through Options, don't re-derive.
const (
	DefaultClippingThreshold = 3
	DefaultDLSThreshold      = 5
	DefaultCollapseAfter     = 10
	DefaultGradientBound     = 0.8
	DefaultNoiseFloor        = 1e-3
	DefaultMinBitrate        = 300000
)

// Options tunes the checks. Zero fields take the defaults above.
type Options struct {
	// ClippingThreshold is the minimum run length at a channel extreme.
	ClippingThreshold int
	// DLSThreshold is the minimum run length of any constant value.
	DLSThreshold int
	// CollapseAfter is the event count above which messages stop listing events.
	CollapseAfter int
	// GradientBound is the absolute derivative above which a 24-bit FLAC fails.
	GradientBound float64
	// NoiseFloor is the relative magnitude below which flat runs are ignored.
	NoiseFloor float64
	// MinBitrate is the lowest passing lossy bitrate in bits per second.
	MinBitrate int64
}

func (o Options) withDefaults() Options {
	if o.ClippingThreshold <= 0 {
		o.ClippingThreshold = DefaultClippingThreshold
	}
	if o.DLSThreshold <= 0 {
		o.DLSThreshold = DefaultDLSThreshold
	}
	if o.CollapseAfter <= 0 {
		o.CollapseAfter = DefaultCollapseAfter
	}
	if o.GradientBound <= 0 {
		o.GradientBound = DefaultGradientBound
	}
	if o.NoiseFloor <= 0 {
		o.NoiseFloor = DefaultNoiseFloor
	}
	if o.MinBitrate <= 0 {
		o.MinBitrate = DefaultMinBitrate
	}
	return o
}

// Analyzer runs the checks with one set of options.
type Analyzer struct {
	opts   Options
	logger *slog.Logger
}

// New creates an analyzer. A nil logger discards debug output.
func New(opts Options, log *slog.Logger) *Analyzer {
	if log == nil {
		log = logger.Discard()
	}
	return &Analyzer{opts: opts.withDefaults(), logger: log}
}

// WithLogger returns a copy of the analyzer that logs to log.
func (a *Analyzer) WithLogger(log *slog.Logger) *Analyzer {
	cp := *a
	cp.logger = log
	return &cp
}

// Options returns the effective options.
func (a *Analyzer) Options() Options {
	return a.opts
}

package analysis

import (
	"math"

	"github.com/ripqoc/qoc-server/internal/domain"
)

const msgLargeGradient = "Detected large gradient. Please verify clipping in Audacity."

// DetectGradient replaces run detection for 24-bit FLAC sources, whose
// decoded samples can wrap around instead of flattening at the rail. A wrap
// shows up as a jump between neighbouring samples, so the check fails when
// the steepest slope on any channel exceeds GradientBound.
func (a *Analyzer) DetectGradient(w *domain.Waveform) (*domain.SubResult, error) {
	hi, lo := math.Inf(-1), math.Inf(1)
	for _, ch := range w.Channels {
		gHi, gLo := gradientExtremes(ch)
		hi = max(hi, gHi)
		lo = min(lo, gLo)
	}
	a.logger.Debug("gradient", "max", hi, "min", lo, "bound", a.opts.GradientBound)

	if hi > a.opts.GradientBound || lo < -a.opts.GradientBound {
		return fail(domain.CheckClipping, msgLargeGradient), nil
	}
	return pass(domain.CheckClipping, msgNotClipping), nil
}

// gradientExtremes returns the largest and smallest central difference of ch,
// using one-sided differences at both ends. Channels shorter than two samples
// have a flat gradient.
func gradientExtremes(ch []float64) (hi, lo float64) {
	n := len(ch)
	if n < 2 {
		return 0, 0
	}

	hi = ch[1] - ch[0]
	lo = hi
	observe := func(g float64) {
		hi = max(hi, g)
		lo = min(lo, g)
	}
	for i := 1; i < n-1; i++ {
		observe((ch[i+1] - ch[i-1]) / 2)
	}
	observe(ch[n-1] - ch[n-2])
	return hi, lo
}

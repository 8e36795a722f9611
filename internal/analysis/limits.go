package analysis

import (
	"math"

	"github.com/ripqoc/qoc-server/internal/domain"
	domainerrors "github.com/ripqoc/qoc-server/internal/errors"
)

// Limits is the usable sample range of a format. The integer minimum is one
// above the two's complement floor so both rails are symmetric, which is what
// Audacity's "Find Clipping" reports against.
type Limits struct {
	Min float64
	Max float64
}

// floatLimits applies to IEEE float WAVs, which may legally exceed ±1.
var floatLimits = Limits{Min: -1, Max: 1}

// intLimits is keyed by bit depth. 8-bit samples are re-centred to signed by
// the decoder, so they share the symmetric layout.
var intLimits = map[int]Limits{
	8:  {Min: -(1 << 7) + 1, Max: 1<<7 - 1},
	16: {Min: -(1 << 15) + 1, Max: 1<<15 - 1},
	24: {Min: -(1 << 23) + 1, Max: 1<<23 - 1},
	32: {Min: -(1 << 31) + 1, Max: 1<<31 - 1},
}

// LimitsFor returns the sample range for a waveform.
func LimitsFor(w *domain.Waveform) (Limits, error) {
	if w.IsFloat {
		return floatLimits, nil
	}
	l, ok := intLimits[w.BitDepth]
	if !ok {
		return Limits{}, domainerrors.Analysisf("ERROR: Unsupported bit depth: %d.", w.BitDepth)
	}
	return l, nil
}

// clamp returns ch limited to l. The input is returned as is when nothing is
// out of range, otherwise a clamped copy is made; the waveform is never modified.
// NaN samples in float WAVs become silence.
func (l Limits) clamp(ch []float64) []float64 {
	first := -1
	for i, v := range ch {
		if v < l.Min || v > l.Max || math.IsNaN(v) {
			first = i
			break
		}
	}
	if first < 0 {
		return ch
	}

	out := make([]float64, len(ch))
	copy(out, ch[:first])
	for i := first; i < len(ch); i++ {
		if math.IsNaN(ch[i]) {
			continue
		}
		out[i] = min(max(ch[i], l.Min), l.Max)
	}
	return out
}

// prepared is a waveform clamped to its format range with per-channel extremes.
type prepared struct {
	limits   Limits
	channels [][]float64
	maxVals  []float64
	minVals  []float64
}

func prepare(w *domain.Waveform) (*prepared, error) {
	limits, err := LimitsFor(w)
	if err != nil {
		return nil, err
	}

	p := &prepared{
		limits:   limits,
		channels: make([][]float64, len(w.Channels)),
		maxVals:  make([]float64, len(w.Channels)),
		minVals:  make([]float64, len(w.Channels)),
	}
	for c, ch := range w.Channels {
		ch = limits.clamp(ch)
		p.channels[c] = ch
		p.maxVals[c], p.minVals[c] = extremes(ch)
	}
	return p, nil
}

// isChannelExtreme reports whether v is the max or min of any channel.
func (p *prepared) isChannelExtreme(v float64) bool {
	for c := range p.channels {
		if v == p.maxVals[c] || v == p.minVals[c] {
			return true
		}
	}
	return false
}

// extremes returns the max and min of ch, ignoring NaN.
func extremes(ch []float64) (hi, lo float64) {
	seeded := false
	for _, v := range ch {
		if math.IsNaN(v) {
			continue
		}
		if !seeded {
			hi, lo, seeded = v, v, true
			continue
		}
		if v > hi {
			hi = v
		}
		if v < lo {
			lo = v
		}
	}
	return hi, lo
}

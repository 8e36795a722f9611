package analysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ripqoc/qoc-server/internal/domain"
)

const (
	msgNoDLS        = "The rip has no DLS clipping."
	msgDLSMany      = "DLS clipping detected at many samples."
	msgDLSReduced   = "No DLS clipping detected, but post-render volume reduction clipping detected"
	minDLSRunLength = 2
)

// DetectDLSClipping looks for flat stretches away from the peaks: runs of at
// least DLSThreshold identical samples at any value. Runs at a channel's own
// extremes only count as post-render volume reduction when that extreme is
// inside the format range, and runs near silence are ignored.
func (a *Analyzer) DetectDLSClipping(w *domain.Waveform) (*domain.SubResult, error) {
	p, err := prepare(w)
	if err != nil {
		return nil, err
	}

	threshold := max(a.opts.DLSThreshold, minDLSRunLength)
	var events []domain.ClipEvent
	reduced := false
	for c, ch := range p.channels {
		hi, lo := p.maxVals[c], p.minVals[c]
		if hi == lo {
			continue
		}
		for _, r := range constantRuns(ch, threshold) {
			audible := math.Abs(r.value)/p.limits.Max > a.opts.NoiseFloor
			switch {
			case r.value == hi:
				if hi < p.limits.Max && audible {
					reduced = true
				}
			case r.value == lo:
				if lo > p.limits.Min && audible {
					reduced = true
				}
			case p.isChannelExtreme(r.value):
				// Another channel's peak; that channel reports it.
			case audible:
				events = appendEvents(events, c, domain.ClassOther, []run{r}, w.SampleRate)
			}
		}
	}

	switch {
	case len(events) > 0:
		sortEvents(events)
		res := &domain.SubResult{
			Check:         domain.CheckDLSClipping,
			Passed:        false,
			VolumeReduced: reduced,
			Events:        events,
		}
		if len(events) > a.opts.CollapseAfter {
			res.Message = msgDLSMany
		} else {
			parts := make([]string, len(events))
			for i, e := range events {
				parts[i] = fmt.Sprintf("%.2f sec (%d samples, value: %s)", e.TimeSec(), e.Length, formatSample(e.Value, w.IsFloat))
			}
			res.Message = "DLS clipping detected at: " + strings.Join(parts, ", ") + "."
		}
		a.logger.Debug("dls clipping", "events", len(events), "volume_reduced", reduced)
		return res, nil

	case reduced:
		return &domain.SubResult{
			Check:         domain.CheckDLSClipping,
			Passed:        false,
			Message:       msgDLSReduced,
			VolumeReduced: true,
		}, nil
	}

	return pass(domain.CheckDLSClipping, msgNoDLS), nil
}

// formatSample prints a sample the way it is stored: the shortest float32
// representation for float WAVs, an integer otherwise.
func formatSample(v float64, isFloat bool) string {
	if isFloat {
		return strconv.FormatFloat(v, 'g', -1, 32)
	}
	return strconv.FormatInt(int64(v), 10)
}

package analysis

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/ripqoc/qoc-server/internal/domain"
)

const (
	msgNotClipping     = "The rip is not clipping."
	msgHeavilyClipping = "The rip is heavily clipping."
	msgVolumeReduced   = " Post-render volume reduction detected, please lower the volume before rendering."
)

// DetectClipping looks for flat peaks: runs of at least ClippingThreshold
// samples sitting at a channel's own maximum or minimum. Measuring against
// the observed extremes catches rips whose volume was lowered after a clipped
// render, which is reported as post-render volume reduction.
func (a *Analyzer) DetectClipping(w *domain.Waveform) (*domain.SubResult, error) {
	p, err := prepare(w)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("clipping input",
		"bit_depth", w.BitDepth, "float", w.IsFloat, "max", p.maxVals, "min", p.minVals)

	var events []domain.ClipEvent
	reduced := false
	for c, ch := range p.channels {
		hi, lo := p.maxVals[c], p.minVals[c]
		if hi == lo {
			continue
		}

		upper := valueRuns(ch, hi, a.opts.ClippingThreshold)
		lower := valueRuns(ch, lo, a.opts.ClippingThreshold)
		if (len(upper) > 0 && hi < p.limits.Max) || (len(lower) > 0 && lo > p.limits.Min) {
			reduced = true
		}

		events = appendEvents(events, c, domain.ClassMax, upper, w.SampleRate)
		events = appendEvents(events, c, domain.ClassMin, lower, w.SampleRate)
	}

	if len(events) == 0 {
		return pass(domain.CheckClipping, msgNotClipping), nil
	}

	sortEvents(events)
	for _, e := range events {
		a.logger.Debug("clip", "channel", e.Channel, "class", e.Class, "sec", e.TimeSec(), "samples", e.Length)
	}

	var msg string
	if len(events) > a.opts.CollapseAfter {
		msg = msgHeavilyClipping
	} else {
		parts := make([]string, len(events))
		for i, e := range events {
			parts[i] = fmt.Sprintf("%.2f sec (%d samples)", e.TimeSec(), e.Length)
		}
		msg = "The rip is clipping at: " + strings.Join(parts, ", ") + "."
	}
	if reduced {
		msg += msgVolumeReduced
	}

	return &domain.SubResult{
		Check:         domain.CheckClipping,
		Passed:        false,
		Message:       msg,
		VolumeReduced: reduced,
		Events:        events,
	}, nil
}

func appendEvents(events []domain.ClipEvent, channel int, class domain.ValueClass, runs []run, sampleRate int) []domain.ClipEvent {
	for _, r := range runs {
		events = append(events, domain.ClipEvent{
			Channel:     channel,
			Class:       class,
			StartSample: r.start,
			Length:      r.length,
			Value:       r.value,
			SampleRate:  sampleRate,
		})
	}
	return events
}

// sortEvents orders events by start then end, keeping channel order for ties.
func sortEvents(events []domain.ClipEvent) {
	slices.SortStableFunc(events, func(x, y domain.ClipEvent) int {
		if c := cmp.Compare(x.StartSample, y.StartSample); c != 0 {
			return c
		}
		return cmp.Compare(x.End(), y.End())
	})
}

package domain

// Waveform is decoded PCM in the decoder's native numeric scale: integers for
// PCM WAVs, [-1, 1] floats for IEEE float WAVs. Mono is a single channel.
type Waveform struct {
	SampleRate int
	Channels   [][]float64
	BitDepth   int
	IsFloat    bool
}

// NumChannels returns the channel count.
func (w *Waveform) NumChannels() int {
	return len(w.Channels)
}

// Len returns the number of frames.
func (w *Waveform) Len() int {
	if len(w.Channels) == 0 {
		return 0
	}
	return len(w.Channels[0])
}

// ValueClass says which constant a clip event is pinned to.
type ValueClass string

const (
	ClassMax   ValueClass = "max"
	ClassMin   ValueClass = "min"
	ClassOther ValueClass = "other"
)

// ClipEvent is one qualifying run of identical samples.
type ClipEvent struct {
	Channel     int        `json:"channel"`
	Class       ValueClass `json:"class"`
	StartSample int        `json:"start_sample"`
	Length      int        `json:"length"`
	Value       float64    `json:"value"`
	SampleRate  int        `json:"-"`
}

// TimeSec is the event's offset from the start of the rip.
func (e ClipEvent) TimeSec() float64 {
	if e.SampleRate == 0 {
		return 0
	}
	return float64(e.StartSample) / float64(e.SampleRate)
}

// End is the exclusive end sample.
func (e ClipEvent) End() int {
	return e.StartSample + e.Length
}

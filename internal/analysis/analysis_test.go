package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripqoc/qoc-server/internal/domain"
	domainerrors "github.com/ripqoc/qoc-server/internal/errors"
)

func pcm16(rate int, chans ...[]float64) *domain.Waveform {
	return &domain.Waveform{SampleRate: rate, Channels: chans, BitDepth: 16}
}

func float32Wave(rate int, chans ...[]float64) *domain.Waveform {
	return &domain.Waveform{SampleRate: rate, Channels: chans, BitDepth: 32, IsFloat: true}
}

// withRuns builds a channel of n alternating quiet samples and writes each
// run's value over it.
func withRuns(n int, runs ...run) []float64 {
	ch := make([]float64, n)
	for i := range ch {
		if i%2 == 0 {
			ch[i] = 100
		} else {
			ch[i] = -100
		}
	}
	for _, r := range runs {
		for i := r.start; i < r.end(); i++ {
			ch[i] = r.value
		}
	}
	return ch
}

func newTestAnalyzer() *Analyzer {
	return New(Options{}, nil)
}

func TestOptions_Defaults(t *testing.T) {
	opts := newTestAnalyzer().Options()

	assert.Equal(t, DefaultClippingThreshold, opts.ClippingThreshold)
	assert.Equal(t, DefaultDLSThreshold, opts.DLSThreshold)
	assert.Equal(t, DefaultCollapseAfter, opts.CollapseAfter)
	assert.InDelta(t, DefaultGradientBound, opts.GradientBound, 1e-12)
	assert.InDelta(t, DefaultNoiseFloor, opts.NoiseFloor, 1e-12)
	assert.Equal(t, int64(DefaultMinBitrate), opts.MinBitrate)
}

func TestLimitsFor(t *testing.T) {
	l, err := LimitsFor(&domain.Waveform{BitDepth: 16})
	require.NoError(t, err)
	assert.Equal(t, Limits{Min: -32767, Max: 32767}, l)

	l, err = LimitsFor(&domain.Waveform{BitDepth: 24})
	require.NoError(t, err)
	assert.Equal(t, Limits{Min: -8388607, Max: 8388607}, l)

	l, err = LimitsFor(&domain.Waveform{BitDepth: 8})
	require.NoError(t, err)
	assert.Equal(t, Limits{Min: -127, Max: 127}, l)

	l, err = LimitsFor(&domain.Waveform{BitDepth: 32, IsFloat: true})
	require.NoError(t, err)
	assert.Equal(t, Limits{Min: -1, Max: 1}, l)

	_, err = LimitsFor(&domain.Waveform{BitDepth: 12})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrAnalysis))
	assert.Equal(t, "ERROR: Unsupported bit depth: 12.", domainerrors.UserMessage(err))
}

func TestClamp_DoesNotModifyInput(t *testing.T) {
	in := []float64{-32768, 0, 40000}

	out := Limits{Min: -32767, Max: 32767}.clamp(in)

	assert.Equal(t, []float64{-32767, 0, 32767}, out)
	assert.Equal(t, []float64{-32768, 0, 40000}, in)
}

func TestValueRuns(t *testing.T) {
	ch := []float64{5, 5, 5, 1, 5, 5, 2, 5, 5, 5, 5}

	runs := valueRuns(ch, 5, 3)

	assert.Equal(t, []run{{start: 0, length: 3, value: 5}, {start: 7, length: 4, value: 5}}, runs)
}

func TestConstantRuns(t *testing.T) {
	ch := []float64{1, 2, 2, 2, 3, 4, 4, 4, 4, 4}

	assert.Equal(t, []run{{start: 1, length: 3, value: 2}, {start: 5, length: 5, value: 4}}, constantRuns(ch, 3))
	assert.Equal(t, []run{{start: 5, length: 5, value: 4}}, constantRuns(ch, 5))
	assert.Empty(t, constantRuns(nil, 3))
}

// --- bitrate ---

func bitrate(v int64) *int64 { return &v }

func TestBitrateFromFile(t *testing.T) {
	a := newTestAnalyzer()

	tests := []struct {
		name      string
		container domain.Container
		meta      *domain.ProbeMetadata
		passed    bool
		message   string
	}{
		{"wav is lossless", domain.ContainerWAV, nil, true, "Lossless file is OK."},
		{"flac is lossless", domain.ContainerFLAC, &domain.ProbeMetadata{BitRate: bitrate(900000)}, true, "Lossless file is OK."},
		{"320k mp3", domain.ContainerMP3, &domain.ProbeMetadata{BitRate: bitrate(320000)}, true, "Bitrate is OK."},
		{"exact threshold", domain.ContainerMP3, &domain.ProbeMetadata{BitRate: bitrate(300000)}, true, "Bitrate is OK."},
		{"just below", domain.ContainerMP3, &domain.ProbeMetadata{BitRate: bitrate(299999)}, false,
			"The MP3 file's bitrate is 299kbps. Please re-render at 320kbps."},
		{"container bitrate fallback", domain.ContainerM4A, &domain.ProbeMetadata{FormatBitRate: bitrate(128000)}, false,
			"The M4A file's bitrate is 128kbps. Please re-render at 320kbps."},
		{"unknown container uses format name", domain.ContainerUnknown,
			&domain.ProbeMetadata{BitRate: bitrate(192000), FormatName: "ogg"}, false,
			"The OGG file's bitrate is 192kbps. Please re-render at 320kbps."},
		{"nothing known", domain.ContainerUnknown, &domain.ProbeMetadata{BitRate: bitrate(96000)}, false,
			"The [TYPE UNKNOWN] file's bitrate is 96kbps. Please re-render at 320kbps."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := a.BitrateFromFile(tt.container, tt.meta)
			require.NoError(t, err)
			assert.Equal(t, domain.CheckBitrate, res.Check)
			assert.Equal(t, tt.passed, res.Passed)
			assert.Equal(t, tt.message, res.Message)
		})
	}
}

func TestBitrateFromFile_UnknownBitrate(t *testing.T) {
	_, err := newTestAnalyzer().BitrateFromFile(domain.ContainerMP3, &domain.ProbeMetadata{FormatName: "mp3", CodecName: "mp3"})

	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrDecode))
	assert.Contains(t, domainerrors.UserMessage(err), "ERROR: Unknown bitrate. File metadata: format=mp3")
}

func TestBitrateFromFile_CustomMinimum(t *testing.T) {
	a := New(Options{MinBitrate: 128000}, nil)

	res, err := a.BitrateFromFile(domain.ContainerMP3, &domain.ProbeMetadata{BitRate: bitrate(192000)})

	require.NoError(t, err)
	assert.True(t, res.Passed)
}

func TestBitrateFromProbe(t *testing.T) {
	a := newTestAnalyzer()

	res, err := a.BitrateFromProbe("audio/x-FLAC", nil)
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, "Lossless file is OK.", res.Message)

	res, err = a.BitrateFromProbe("audio/wav", nil)
	require.NoError(t, err)
	assert.True(t, res.Passed)

	res, err = a.BitrateFromProbe("audio/mpeg", &domain.ProbeMetadata{BitRate: bitrate(128000), FormatName: "mp3"})
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Equal(t, "The MP3 file's bitrate is 128kbps. Please re-render at 320kbps.", res.Message)
}

func TestBitrateFromProbe_MissingOrBadBitrate(t *testing.T) {
	a := newTestAnalyzer()
	raw := []byte(`{"streams":[{}]}`)

	_, err := a.BitrateFromProbe("audio/mpeg", &domain.ProbeMetadata{Raw: raw})
	require.Error(t, err)
	assert.Equal(t, "ERROR: Bitrate cannot be detected from ffprobe output:\n"+string(raw), domainerrors.UserMessage(err))

	_, err = a.BitrateFromProbe("audio/mpeg", &domain.ProbeMetadata{BitRateRaw: "N/A", Raw: raw})
	require.Error(t, err)
	assert.Equal(t, "ERROR: Bitrate cannot be parsed from ffprobe output:\n"+string(raw), domainerrors.UserMessage(err))
}

// --- clipping ---

func TestDetectClipping_RunAtFormatCeiling(t *testing.T) {
	ch := withRuns(20, run{start: 4, length: 3, value: 32767})
	ch[10] = -20000

	res, err := newTestAnalyzer().DetectClipping(pcm16(100, ch))

	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.False(t, res.VolumeReduced)
	assert.Equal(t, "The rip is clipping at: 0.04 sec (3 samples).", res.Message)
	require.Len(t, res.Events, 1)
	assert.Equal(t, domain.ClassMax, res.Events[0].Class)
	assert.Equal(t, 4, res.Events[0].StartSample)
	assert.Equal(t, 3, res.Events[0].Length)
}

func TestDetectClipping_ThresholdBoundary(t *testing.T) {
	a := newTestAnalyzer()

	res, err := a.DetectClipping(pcm16(100, withRuns(20, run{start: 4, length: 2, value: 32767})))
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, "The rip is not clipping.", res.Message)
	assert.Empty(t, res.Events)

	res, err = a.DetectClipping(pcm16(100, withRuns(20, run{start: 4, length: 3, value: 32767})))
	require.NoError(t, err)
	assert.Len(t, res.Events, 1)
}

func TestDetectClipping_PostRenderVolumeReduction(t *testing.T) {
	ch := withRuns(20, run{start: 2, length: 4, value: 20000})

	res, err := newTestAnalyzer().DetectClipping(pcm16(1000, ch))

	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.True(t, res.VolumeReduced)
	assert.Equal(t, "The rip is clipping at: 0.00 sec (4 samples). Post-render volume reduction detected, please lower the volume before rendering.", res.Message)
}

func TestDetectClipping_MinRailReductionUsesStrictInequality(t *testing.T) {
	// The floor run sits exactly at the format minimum, so it is plain clipping.
	ch := withRuns(20, run{start: 2, length: 3, value: -32767})

	res, err := newTestAnalyzer().DetectClipping(pcm16(1000, ch))

	require.NoError(t, err)
	assert.False(t, res.VolumeReduced)
	assert.NotContains(t, res.Message, "Post-render")
}

func TestDetectClipping_CollapsesAboveTen(t *testing.T) {
	build := func(n int) []float64 {
		var runs []run
		for i := 0; i < n; i++ {
			runs = append(runs, run{start: i * 10, length: 3, value: 32767})
		}
		return withRuns(n*10+5, runs...)
	}
	a := newTestAnalyzer()

	res, err := a.DetectClipping(pcm16(44100, build(10)))
	require.NoError(t, err)
	assert.Len(t, res.Events, 10)
	assert.Contains(t, res.Message, "The rip is clipping at: ")

	res, err = a.DetectClipping(pcm16(44100, build(11)))
	require.NoError(t, err)
	assert.Len(t, res.Events, 11)
	assert.Equal(t, "The rip is heavily clipping.", res.Message)
}

func TestDetectClipping_HeavyClippingBelowRail(t *testing.T) {
	var runs []run
	for i := 0; i < 12; i++ {
		runs = append(runs, run{start: i * 10, length: 3, value: 20000})
	}
	ch := withRuns(125, runs...)
	ch[124] = -20000

	res, err := newTestAnalyzer().DetectClipping(pcm16(44100, ch))

	require.NoError(t, err)
	assert.Len(t, res.Events, 12)
	assert.True(t, res.VolumeReduced)
	assert.Equal(t, "The rip is heavily clipping. Post-render volume reduction detected, please lower the volume before rendering.", res.Message)
}

func TestDetectClipping_SortsAcrossChannels(t *testing.T) {
	left := withRuns(40, run{start: 20, length: 3, value: 32767})
	right := withRuns(40, run{start: 5, length: 4, value: -32767})

	res, err := newTestAnalyzer().DetectClipping(pcm16(10, left, right))

	require.NoError(t, err)
	require.Len(t, res.Events, 2)
	assert.Equal(t, 1, res.Events[0].Channel)
	assert.Equal(t, domain.ClassMin, res.Events[0].Class)
	assert.Equal(t, "The rip is clipping at: 0.50 sec (4 samples), 2.00 sec (3 samples).", res.Message)
}

func TestDetectClipping_FloatIsClampedToUnitRange(t *testing.T) {
	ch := []float64{0, 0.2, 1.5, 1.2, 1.0, 0.3, -0.4, 0}
	w := float32Wave(4, ch)

	res, err := newTestAnalyzer().DetectClipping(w)

	require.NoError(t, err)
	assert.False(t, res.VolumeReduced)
	assert.Equal(t, "The rip is clipping at: 0.50 sec (3 samples).", res.Message)
	assert.Equal(t, 1.5, w.Channels[0][2], "input waveform must not be modified")
}

func TestDetectClipping_LeadingNaNIsSilence(t *testing.T) {
	nan := math.NaN()
	ch := []float64{nan, 0.2, 1.0, 1.0, 1.0, 0.3, -0.4, nan}
	w := float32Wave(4, ch)

	res, err := newTestAnalyzer().DetectClipping(w)

	require.NoError(t, err)
	assert.False(t, res.VolumeReduced)
	assert.Equal(t, "The rip is clipping at: 0.50 sec (3 samples).", res.Message)
	assert.True(t, math.IsNaN(w.Channels[0][0]), "input waveform must not be modified")
}

func TestExtremes_SkipsNaN(t *testing.T) {
	hi, lo := extremes([]float64{math.NaN(), 0.5, -0.25, math.NaN()})
	assert.Equal(t, 0.5, hi)
	assert.Equal(t, -0.25, lo)

	hi, lo = extremes(nil)
	assert.Zero(t, hi)
	assert.Zero(t, lo)
}

func TestDetectClipping_ConstantChannelIsSkipped(t *testing.T) {
	res, err := newTestAnalyzer().DetectClipping(pcm16(44100, make([]float64, 1000)))

	require.NoError(t, err)
	assert.True(t, res.Passed)
}

func TestDetectClipping_UnsupportedBitDepth(t *testing.T) {
	_, err := newTestAnalyzer().DetectClipping(&domain.Waveform{SampleRate: 1, BitDepth: 20, Channels: [][]float64{{1, 2}}})

	assert.True(t, domainerrors.Is(err, domainerrors.ErrAnalysis))
}

func TestDetectClipping_Deterministic(t *testing.T) {
	w := pcm16(100,
		withRuns(60, run{start: 3, length: 3, value: 32767}, run{start: 30, length: 5, value: -32767}),
		withRuns(60, run{start: 3, length: 4, value: 30000}),
	)
	a := newTestAnalyzer()

	first, err := a.DetectClipping(w)
	require.NoError(t, err)
	second, err := a.DetectClipping(w)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

// --- gradient ---

func TestDetectGradient_WrapAroundFails(t *testing.T) {
	ch := []float64{0.85, 0.9, 0.95, -0.95, -0.9, -0.85}

	res, err := newTestAnalyzer().DetectGradient(float32Wave(44100, ch))

	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Equal(t, "Detected large gradient. Please verify clipping in Audacity.", res.Message)
	assert.Empty(t, res.Events)
}

func TestDetectGradient_BypassesRunDetection(t *testing.T) {
	// Flat at full scale, which run detection would flag.
	w := float32Wave(100, []float64{0.5, 1, 1, 1, 1, 0.5})
	a := newTestAnalyzer()

	clip, err := a.DetectClipping(w)
	require.NoError(t, err)
	require.False(t, clip.Passed)

	res, err := a.DetectGradient(w)
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, "The rip is not clipping.", res.Message)
}

func TestGradientExtremes(t *testing.T) {
	hi, lo := gradientExtremes([]float64{0, 1, 4, 2})
	// one-sided: 1, central: 2, 0.5, one-sided: -2
	assert.InDelta(t, 2.0, hi, 1e-12)
	assert.InDelta(t, -2.0, lo, 1e-12)

	hi, lo = gradientExtremes([]float64{3})
	assert.Zero(t, hi)
	assert.Zero(t, lo)
}

func TestDetectGradient_CustomBound(t *testing.T) {
	w := float32Wave(100, []float64{0, 0.5, 1})

	res, err := New(Options{GradientBound: 0.4}, nil).DetectGradient(w)

	require.NoError(t, err)
	assert.False(t, res.Passed)
}

// --- DLS clipping ---

func TestDetectDLSClipping_FlatRunAwayFromPeaks(t *testing.T) {
	ch := withRuns(40, run{start: 10, length: 5, value: 1000})
	ch[30], ch[31] = 20000, -20000

	res, err := newTestAnalyzer().DetectDLSClipping(pcm16(1000, ch))

	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Equal(t, domain.CheckDLSClipping, res.Check)
	assert.Equal(t, "DLS clipping detected at: 0.01 sec (5 samples, value: 1000).", res.Message)
	require.Len(t, res.Events, 1)
	assert.Equal(t, domain.ClassOther, res.Events[0].Class)
}

func TestDetectDLSClipping_BelowThreshold(t *testing.T) {
	ch := withRuns(40, run{start: 10, length: 4, value: 1000})
	ch[30], ch[31] = 20000, -20000

	res, err := newTestAnalyzer().DetectDLSClipping(pcm16(1000, ch))

	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, "The rip has no DLS clipping.", res.Message)
}

func TestDetectDLSClipping_IgnoresNoiseFloor(t *testing.T) {
	// 10 / 32767 is below the relative noise floor.
	ch := withRuns(40, run{start: 10, length: 8, value: 10})
	ch[30], ch[31] = 20000, -20000

	res, err := newTestAnalyzer().DetectDLSClipping(pcm16(1000, ch))

	require.NoError(t, err)
	assert.True(t, res.Passed)
}

func TestDetectDLSClipping_OnlyReducedExtremes(t *testing.T) {
	ch := withRuns(40, run{start: 10, length: 6, value: 20000})

	res, err := newTestAnalyzer().DetectDLSClipping(pcm16(1000, ch))

	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.True(t, res.VolumeReduced)
	assert.Empty(t, res.Events)
	assert.Equal(t, "No DLS clipping detected, but post-render volume reduction clipping detected", res.Message)
}

func TestDetectDLSClipping_ExtremeAtFormatRailIsNotReduction(t *testing.T) {
	ch := withRuns(40, run{start: 10, length: 6, value: 32767})

	res, err := newTestAnalyzer().DetectDLSClipping(pcm16(1000, ch))

	require.NoError(t, err)
	assert.True(t, res.Passed)
}

func TestDetectDLSClipping_OtherChannelPeakIsNotAnEvent(t *testing.T) {
	left := withRuns(40, run{start: 10, length: 6, value: 5000})
	left[30] = 32767
	right := withRuns(40)
	right[5] = 5000

	res, err := newTestAnalyzer().DetectDLSClipping(pcm16(1000, left, right))

	require.NoError(t, err)
	assert.True(t, res.Passed)
}

func TestDetectDLSClipping_CollapsesAboveTen(t *testing.T) {
	var runs []run
	for i := 0; i < 11; i++ {
		runs = append(runs, run{start: i * 10, length: 5, value: float64(1000 + i)})
	}
	ch := withRuns(120, runs...)
	ch[115], ch[116] = 20000, -20000

	res, err := newTestAnalyzer().DetectDLSClipping(pcm16(1000, ch))

	require.NoError(t, err)
	assert.Len(t, res.Events, 11)
	assert.Equal(t, "DLS clipping detected at many samples.", res.Message)
}

func TestDetectDLSClipping_FloatValueFormatting(t *testing.T) {
	ch := []float64{0.1, -0.1, 0.25, 0.25, 0.25, 0.25, 0.25, -0.6, 0.7, 0.1}

	res, err := newTestAnalyzer().DetectDLSClipping(float32Wave(10, ch))

	require.NoError(t, err)
	assert.Equal(t, "DLS clipping detected at: 0.20 sec (5 samples, value: 0.25).", res.Message)
}

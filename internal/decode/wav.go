package decode

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/riff"
	"github.com/go-audio/wav"

	"github.com/ripqoc/qoc-server/internal/domain"
	domainerrors "github.com/ripqoc/qoc-server/internal/errors"
)

const (
	formatPCM        = 1
	formatIEEEFloat  = 3
	formatExtensible = 0xFFFE

	framesPerRead = 4096

	// In a WAVE_FORMAT_EXTENSIBLE fmt chunk the SubFormat GUID starts at
	// byte 24 and its first two bytes repeat the plain format tag.
	subFormatOffset = 24
)

// ReadWaveform decodes a WAV file into per-channel samples in the file's
// native scale. WAVE_FORMAT_EXTENSIBLE files are classified by their
// SubFormat GUID, so float payloads are recognised however the file was made.
func ReadWaveform(path string) (*domain.Waveform, error) {
	f, err := os.Open(path) //#nosec G304 -- path belongs to the check workspace
	if err != nil {
		return nil, domainerrors.Decode("ERROR: The WAV file cannot be opened.").WithCause(err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, domainerrors.Decode("ERROR: The WAV file cannot be read.").WithCause(d.Err())
	}

	format := d.WavAudioFormat
	if format == formatExtensible {
		format, err = subFormat(f)
		if err != nil {
			return nil, domainerrors.Decode("ERROR: The WAV file's format chunk cannot be read.").WithCause(err)
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, domainerrors.Decode("ERROR: The WAV file cannot be read.").WithCause(err)
		}
		d = wav.NewDecoder(f)
		if !d.IsValidFile() {
			return nil, domainerrors.Decode("ERROR: The WAV file cannot be read.").WithCause(d.Err())
		}
	}

	bitDepth := int(d.BitDepth)
	numChans := int(d.NumChans)
	isFloat := format == formatIEEEFloat

	switch {
	case isFloat && bitDepth != 32:
		return nil, domainerrors.Analysisf("ERROR: Unsupported float bit depth: %d.", bitDepth)
	case !isFloat && format != formatPCM:
		return nil, domainerrors.Analysisf("ERROR: Unsupported WAV encoding (format tag %d).", format)
	case bitDepth != 8 && bitDepth != 16 && bitDepth != 24 && bitDepth != 32:
		return nil, domainerrors.Analysisf("ERROR: Unsupported bit depth: %d.", bitDepth)
	}

	convert := sampleConverter(bitDepth, isFloat)

	frames := 0
	if bytesPerFrame := numChans * bitDepth / 8; bytesPerFrame > 0 {
		frames = int(d.PCMLen()) / bytesPerFrame
	}
	channels := make([][]float64, numChans)
	for c := range channels {
		channels[c] = make([]float64, 0, frames)
	}

	buf := &audio.IntBuffer{
		Data:   make([]int, framesPerRead*numChans),
		Format: d.Format(),
	}
	idx := 0
	for {
		n, err := d.PCMBuffer(buf)
		if err != nil {
			return nil, domainerrors.Decode("ERROR: The WAV file's audio data cannot be read.").WithCause(err)
		}
		if n == 0 {
			break
		}
		for _, v := range buf.Data[:n] {
			c := idx % numChans
			channels[c] = append(channels[c], convert(v))
			idx++
		}
	}

	// Drop a trailing partial frame so every channel has the same length.
	frames = idx / numChans
	for c := range channels {
		channels[c] = channels[c][:frames]
	}

	return &domain.Waveform{
		SampleRate: int(d.SampleRate),
		Channels:   channels,
		BitDepth:   bitDepth,
		IsFloat:    isFloat,
	}, nil
}

var errNoSubFormat = errors.New("extensible fmt chunk without SubFormat")

// subFormat returns the format tag carried by the SubFormat GUID of an
// extensible fmt chunk.
func subFormat(f *os.File) (uint16, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}

	p := riff.New(f)
	if err := p.ParseHeaders(); err != nil {
		return 0, err
	}
	for {
		chunk, err := p.NextChunk()
		if err != nil {
			return 0, err
		}
		if chunk.ID != riff.FmtID {
			chunk.Drain()
			continue
		}

		body := make([]byte, chunk.Size)
		if _, err := io.ReadFull(chunk.R, body); err != nil {
			return 0, err
		}
		if len(body) < subFormatOffset+2 {
			return 0, errNoSubFormat
		}
		return binary.LittleEndian.Uint16(body[subFormatOffset:]), nil
	}
}

func sampleConverter(bitDepth int, isFloat bool) func(int) float64 {
	switch {
	case isFloat:
		return func(v int) float64 {
			return float64(math.Float32frombits(uint32(int32(v))))
		}
	case bitDepth == 8:
		// 8-bit PCM is unsigned around 128.
		return func(v int) float64 { return float64(v - 128) }
	default:
		return func(v int) float64 { return float64(v) }
	}
}

// Package domain holds the types shared by every stage of a QoC check.
package domain

import (
	"fmt"
	"strings"
)

// AudioSource is the rip under inspection. LocalPath is set only when this
// check downloaded or transcoded something, and the check owns that file.
type AudioSource struct {
	OriginalURL string
	ResolvedURL string
	ContentType string
	LocalPath   string
	Container   Container
}

// Container is the sniffed container family of a downloaded file.
type Container string

const (
	ContainerWAV     Container = "wav"
	ContainerFLAC    Container = "flac"
	ContainerAIFF    Container = "aiff"
	ContainerMP3     Container = "mp3"
	ContainerOGG     Container = "ogg"
	ContainerM4A     Container = "m4a"
	ContainerAAC     Container = "aac"
	ContainerVideo   Container = "video"
	ContainerUnknown Container = "unknown"
)

// Lossless reports whether the container stores uncompressed or losslessly
// compressed PCM.
func (c Container) Lossless() bool {
	switch c {
	case ContainerWAV, ContainerFLAC, ContainerAIFF:
		return true
	default:
		return false
	}
}

// Label is the upper-case name used in user-facing messages.
func (c Container) Label() string {
	if c == "" || c == ContainerUnknown {
		return UnknownType
	}
	return strings.ToUpper(string(c))
}

// UnknownType is shown when neither the container nor ffprobe names the format.
const UnknownType = "[TYPE UNKNOWN]"

// ProbeMetadata is the subset of ffprobe output the analyzers read.
// BitRate is the first audio stream's bit_rate; nil when absent or unparseable,
// in which case BitRateRaw tells the two apart.
type ProbeMetadata struct {
	BitRate       *int64
	BitRateRaw    string
	FormatBitRate *int64
	FormatName    string
	BitsPerSample int
	CodecName     string
	SampleRate    int
	Channels      int
	Raw           []byte
}

// TypeLabel returns the upper-cased container format name.
func (m *ProbeMetadata) TypeLabel() string {
	if m == nil || m.FormatName == "" {
		return UnknownType
	}
	return strings.ToUpper(m.FormatName)
}

// Is24BitFLAC reports whether the source is a 24-bit FLAC, whose decoded
// samples may have wrapped around and need gradient analysis instead of run
// detection.
func (m *ProbeMetadata) Is24BitFLAC() bool {
	if m == nil {
		return false
	}
	return strings.Contains(m.FormatName, "flac") && m.BitsPerSample == 24
}

// Summary formats the metadata on one line for logs and error messages.
func (m *ProbeMetadata) Summary() string {
	if m == nil {
		return "<none>"
	}
	return fmt.Sprintf("format=%s codec=%s bit_rate=%s bits_per_sample=%d sample_rate=%d channels=%d",
		m.FormatName, m.CodecName, m.BitRateRaw, m.BitsPerSample, m.SampleRate, m.Channels)
}

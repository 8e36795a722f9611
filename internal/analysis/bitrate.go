package analysis

import (
	"fmt"
	"strings"

	"github.com/ripqoc/qoc-server/internal/domain"
	domainerrors "github.com/ripqoc/qoc-server/internal/errors"
)

const msgLossless = "Lossless file is OK."

// BitrateFromFile judges a downloaded file. Lossless containers always pass;
// anything else needs a bitrate, from the audio stream or else the container.
func (a *Analyzer) BitrateFromFile(container domain.Container, meta *domain.ProbeMetadata) (*domain.SubResult, error) {
	if container.Lossless() {
		return pass(domain.CheckBitrate, msgLossless), nil
	}

	var bitrate *int64
	if meta != nil {
		bitrate = meta.BitRate
		if bitrate == nil {
			bitrate = meta.FormatBitRate
		}
	}
	if bitrate == nil {
		return nil, domainerrors.Decodef("ERROR: Unknown bitrate. File metadata: %s", meta.Summary())
	}

	label := container.Label()
	if label == domain.UnknownType {
		label = meta.TypeLabel()
	}
	return a.judgeBitrate(*bitrate, label), nil
}

// BitrateFromProbe judges a rip from its Content-Type and an ffprobe of the
// URL, without downloading it. Only the audio stream's bit_rate counts.
func (a *Analyzer) BitrateFromProbe(contentType string, meta *domain.ProbeMetadata) (*domain.SubResult, error) {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "wav") || strings.Contains(ct, "flac") {
		return pass(domain.CheckBitrate, msgLossless), nil
	}

	if meta == nil || meta.BitRate == nil {
		var raw string
		if meta != nil {
			raw = string(meta.Raw)
		}
		if meta != nil && meta.BitRateRaw != "" {
			return nil, domainerrors.Decodef("ERROR: Bitrate cannot be parsed from ffprobe output:\n%s", raw)
		}
		return nil, domainerrors.Decodef("ERROR: Bitrate cannot be detected from ffprobe output:\n%s", raw)
	}

	return a.judgeBitrate(*meta.BitRate, meta.TypeLabel()), nil
}

func (a *Analyzer) judgeBitrate(bitrate int64, label string) *domain.SubResult {
	a.logger.Debug("bitrate", "bit_rate", bitrate, "type", label, "min", a.opts.MinBitrate)

	if bitrate < a.opts.MinBitrate {
		return fail(domain.CheckBitrate,
			fmt.Sprintf("The %s file's bitrate is %dkbps. Please re-render at 320kbps.", label, bitrate/1000))
	}
	return pass(domain.CheckBitrate, "Bitrate is OK.")
}

func pass(kind domain.CheckKind, msg string) *domain.SubResult {
	return &domain.SubResult{Check: kind, Passed: true, Message: msg}
}

func fail(kind domain.CheckKind, msg string) *domain.SubResult {
	return &domain.SubResult{Check: kind, Passed: false, Message: msg}
}

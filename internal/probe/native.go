package probe

import (
	"context"
	"math"
	"os"
	"strings"
	"time"

	"github.com/simonhull/audiometa"

	"github.com/ripqoc/qoc-server/internal/domain"
)

// readNative parses a local file's container with audiometa. It reports the
// format and the average bitrate over the whole file, or nil when the file is
// not one audiometa understands.
func (p *Prober) readNative(ctx context.Context, path string) *domain.ProbeMetadata {
	file, err := audiometa.OpenContext(ctx, path)
	if err != nil {
		p.logger.Debug("audiometa could not read file", "path", path, "error", err)
		return nil
	}
	defer file.Close() //nolint:errcheck // read-only handle

	meta := &domain.ProbeMetadata{FormatName: nativeFormatName(file.Format.String())}
	if meta.FormatName == "" {
		return nil
	}

	if info, err := os.Stat(path); err == nil {
		meta.FormatBitRate = averageBitRate(info.Size(), file.Audio.Duration)
	}

	p.logger.Debug("audiometa",
		"path", path,
		"format", meta.FormatName,
		"duration", file.Audio.Duration,
	)
	return meta
}

// nativeFormatName maps an audiometa format to the ffprobe format_name the
// rest of the pipeline understands.
func nativeFormatName(format string) string {
	switch f := strings.ToLower(format); {
	case strings.Contains(f, "flac"):
		return "flac"
	case strings.Contains(f, "mp3"):
		return "mp3"
	case strings.Contains(f, "m4a"), strings.Contains(f, "m4b"):
		return "m4a"
	case strings.Contains(f, "ogg"):
		return "ogg"
	}
	return ""
}

func averageBitRate(size int64, duration time.Duration) *int64 {
	if size <= 0 || duration <= 0 {
		return nil
	}
	v := int64(math.Round(float64(size*8) / duration.Seconds()))
	return &v
}

// fillMissing copies what ffprobe left empty from the audiometa reading.
func fillMissing(meta, native *domain.ProbeMetadata) {
	if meta.FormatName == "" {
		meta.FormatName = native.FormatName
	}
	if meta.FormatBitRate == nil {
		meta.FormatBitRate = native.FormatBitRate
	}
}

func isRemote(target string) bool {
	t := strings.ToLower(target)
	return strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://")
}

package decode

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/h2non/filetype"

	"github.com/ripqoc/qoc-server/internal/domain"
	domainerrors "github.com/ripqoc/qoc-server/internal/errors"
)

// filetype needs at most the first 8 KiB to match any of its signatures.
const sniffBytes = 8192

// Sniff identifies the container of a downloaded file from its magic bytes.
func Sniff(path string) (domain.Container, error) {
	f, err := os.Open(path) //#nosec G304 -- path belongs to the check workspace
	if err != nil {
		return domain.ContainerUnknown, domainerrors.Decode("ERROR: The downloaded file cannot be opened.").WithCause(err)
	}
	defer f.Close()

	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return domain.ContainerUnknown, domainerrors.Decode("ERROR: The downloaded file cannot be read.").WithCause(err)
	}
	head = head[:n]

	return sniffBytesContainer(head), nil
}

func sniffBytesContainer(head []byte) domain.Container {
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return domain.ContainerUnknown
	}

	switch kind.Extension {
	case "wav":
		return domain.ContainerWAV
	case "flac":
		return domain.ContainerFLAC
	case "aiff":
		return domain.ContainerAIFF
	case "mp3":
		return domain.ContainerMP3
	case "ogg", "opus":
		return domain.ContainerOGG
	case "m4a":
		return domain.ContainerM4A
	case "aac":
		return domain.ContainerAAC
	}

	if filetype.IsVideo(head) {
		return domain.ContainerVideo
	}
	return domain.ContainerUnknown
}

// ContainerFromFormatName maps an ffprobe format_name (e.g. "mov,mp4,m4a,3gp")
// to a container, for files whose magic bytes were not recognised.
func ContainerFromFormatName(formatName string) domain.Container {
	names := strings.Split(strings.ToLower(formatName), ",")
	for _, name := range names {
		switch name {
		case "wav":
			return domain.ContainerWAV
		case "flac":
			return domain.ContainerFLAC
		case "aiff":
			return domain.ContainerAIFF
		case "mp3":
			return domain.ContainerMP3
		case "ogg":
			return domain.ContainerOGG
		case "m4a":
			return domain.ContainerM4A
		case "aac":
			return domain.ContainerAAC
		}
	}
	for _, name := range names {
		switch name {
		case "mp4", "mov", "matroska", "webm", "avi", "flv":
			return domain.ContainerVideo
		}
	}
	return domain.ContainerUnknown
}

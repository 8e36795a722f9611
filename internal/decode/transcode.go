// Package decode turns a rip into analysable PCM: container sniffing,
// ffmpeg transcoding to 32-bit float WAV, and WAV reading.
package decode

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	domainerrors "github.com/ripqoc/qoc-server/internal/errors"
	"github.com/ripqoc/qoc-server/internal/toolexec"
)

const ffmpegName = "ffmpeg"

// Transcoder converts any ffmpeg-readable input, local or remote, to WAV.
type Transcoder struct {
	path   string
	runner toolexec.Runner
	logger *slog.Logger
}

// NewTranscoder creates a transcoder. An empty path means ffmpeg on PATH.
func NewTranscoder(path string, runner toolexec.Runner, logger *slog.Logger) *Transcoder {
	if path == "" {
		path = ffmpegName
	}
	if runner == nil {
		runner = toolexec.ExecRunner{}
	}
	return &Transcoder{path: path, runner: runner, logger: logger}
}

// Available reports whether the ffmpeg binary can be found.
func (t *Transcoder) Available() error {
	_, err := toolexec.Lookup(t.path)
	return err
}

// ToWAV writes input as 32-bit float PCM to output. When output already
// exists it is reused and created is false; the caller only owns (and must
// delete) outputs reported as created.
func (t *Transcoder) ToWAV(ctx context.Context, input, output string) (created bool, err error) {
	if _, err := os.Stat(output); err == nil {
		t.logger.Debug("reusing transcoded wav", "output", output)
		return false, nil
	}

	_, stderr, runErr := t.runner.Run(ctx, t.path,
		"-hide_banner",
		"-loglevel", "error",
		"-i", input,
		"-c:a", "pcm_f32le",
		output,
	)
	if runErr != nil && toolexec.IsNotFound(runErr) {
		return false, domainerrors.ToolMissing(ffmpegName).WithCause(runErr)
	}

	if _, statErr := os.Stat(output); statErr != nil {
		if errors.Is(statErr, fs.ErrNotExist) {
			t.logger.Debug("ffmpeg produced no output", "input", input, "stderr", strings.TrimSpace(string(stderr)))
			return false, domainerrors.Decode("ERROR: ffmpeg failed to generate .wav file.").WithCause(runErr)
		}
		return false, domainerrors.Decode("ERROR: ffmpeg failed to generate .wav file.").WithCause(statErr)
	}

	if runErr != nil {
		// A truncated file would be analysed as if it were the whole rip.
		_ = os.Remove(output)
		t.logger.Debug("ffmpeg failed", "input", input, "stderr", strings.TrimSpace(string(stderr)))
		return false, domainerrors.Decode("ERROR: ffmpeg failed to generate .wav file.").WithCause(runErr)
	}

	return true, nil
}

// TempWAVPath returns the intermediate path for a source: "<dir>/<stem>_temp.wav".
func TempWAVPath(source string) string {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(filepath.Dir(source), stem+"_temp.wav")
}

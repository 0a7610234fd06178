// Package ffmpeg re-encodes audio files with the ffmpeg binary.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"recwhisper/internal/audio"
)

// ErrUnavailable is returned when no ffmpeg binary can be found.
var ErrUnavailable = errors.New("ffmpeg: binary not found")

// Resampler converts audio files to a target PCM format through ffmpeg.
type Resampler struct {
	bin string
	log *slog.Logger
}

// New returns a resampler using bin, or "ffmpeg" from PATH when bin is empty.
func New(bin string, log *slog.Logger) *Resampler {
	if bin == "" {
		bin = "ffmpeg"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Resampler{bin: bin, log: log.With("component", "ffmpeg")}
}

// Available reports whether the binary can be executed.
func (r *Resampler) Available() bool {
	_, err := exec.LookPath(r.bin)
	return err == nil
}

// Resample decodes inPath and returns it re-encoded as a WAV file in format f.
func (r *Resampler) Resample(ctx context.Context, inPath string, f audio.Format) ([]byte, error) {
	bin, err := exec.LookPath(r.bin)
	if err != nil {
		return nil, ErrUnavailable
	}

	tmp, err := os.MkdirTemp("", "recwhisper-ffmpeg-")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)
	outPath := filepath.Join(tmp, "out.wav")

	codec, ok := pcmCodecFor(f.BitDepth)
	if !ok {
		return nil, fmt.Errorf("ffmpeg: unsupported bit depth %d", f.BitDepth)
	}
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", inPath,
		"-ac", strconv.Itoa(f.Channels),
		"-ar", strconv.Itoa(f.SampleRate),
		"-c:a", codec,
		outPath,
	}
	r.log.Debug("executing", "cmd", bin+" "+strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: read output: %w", err)
	}
	return data, nil
}

func pcmCodecFor(bitDepth int) (string, bool) {
	switch bitDepth {
	case 8:
		return "pcm_u8", true
	case 16:
		return "pcm_s16le", true
	case 24:
		return "pcm_s24le", true
	case 32:
		return "pcm_s32le", true
	default:
		return "", false
	}
}

package media

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Sample format the recognizer expects.
const (
	SampleRate = 16000
	Channels   = 1
)

// ProbeError reports that the duration of a file could not be determined.
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string { return fmt.Sprintf("probe %s: %v", e.Path, e.Err) }
func (e *ProbeError) Unwrap() error { return e.Err }

// DecodeError reports that the upload could not be transcoded to the
// normalized waveform. Almost always caused by non-audio or corrupt input.
type DecodeError struct {
	ExitCode int
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode failed (exit %d): %v", e.ExitCode, e.Err)
}
func (e *DecodeError) Unwrap() error { return e.Err }

// Tools invokes ffprobe and ffmpeg.
type Tools struct {
	FFmpeg  string
	FFprobe string
	Runner  Runner
}

// NewTools creates a Tools using the given binaries and an exec runner.
func NewTools(ffmpeg, ffprobe string) *Tools {
	return &Tools{FFmpeg: ffmpeg, FFprobe: ffprobe, Runner: ExecRunner{}}
}

// Probe returns the container duration of path in seconds.
func (t *Tools) Probe(ctx context.Context, path string) (float64, error) {
	out, err := t.Runner.Run(ctx, t.FFprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, &ProbeError{Path: path, Err: err}
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, &ProbeError{Path: path, Err: fmt.Errorf("parse duration: %w", err)}
	}
	if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, &ProbeError{Path: path, Err: fmt.Errorf("invalid duration %v", d)}
	}
	return d, nil
}

// Decode transcodes src into a mono 16 kHz WAV at dst, overwriting dst.
// Only a non-zero exit is a *DecodeError; a binary that cannot be run or a
// killed process is returned as a plain error.
func (t *Tools) Decode(ctx context.Context, src, dst string) error {
	_, err := t.Runner.Run(ctx, t.FFmpeg,
		"-y",
		"-i", src,
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(SampleRate),
		dst,
	)
	if err != nil {
		if code := ExitCode(err); code >= 0 {
			return &DecodeError{ExitCode: code, Err: err}
		}
		return fmt.Errorf("run ffmpeg: %w", err)
	}
	return nil
}

// Available reports which media tools can be found in PATH.
func (t *Tools) Available() map[string]bool {
	avail := make(map[string]bool, 2)
	for name, bin := range map[string]string{"ffmpeg": t.FFmpeg, "ffprobe": t.FFprobe} {
		_, err := exec.LookPath(bin)
		avail[name] = err == nil
	}
	return avail
}

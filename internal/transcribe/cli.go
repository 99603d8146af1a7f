package transcribe

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// CLIConfig configures the local CLI backend.
type CLIConfig struct {
	Binary      string // whisper-ctranslate2 or a compatible faster-whisper CLI
	Model       string
	ComputeType string
	Threads     int
	TempDir     string        // scratch root for the CLI's own output files
	Timeout     time.Duration // upper bound for one run; 0 means none
}

// CLIModel runs a faster-whisper command line tool per transcription and
// parses segments from its verbose stdout as they are printed.
type CLIModel struct {
	cfg CLIConfig
}

// segmentLine matches "[00:01.000 --> 00:04.500]  text" and the
// hour-prefixed form "[01:02:03.000 --> 01:02:05.000] text".
var segmentLine = regexp.MustCompile(`^\[((?:\d+:)?\d+:\d+\.\d+)\s*-->\s*((?:\d+:)?\d+:\d+\.\d+)\]\s?(.*)$`)

// NewCLIModel checks that the binary can be found and binds the model.
func NewCLIModel(cfg CLIConfig) (*CLIModel, error) {
	path, err := exec.LookPath(cfg.Binary)
	if err != nil {
		return nil, fmt.Errorf("whisper cli %q: %w", cfg.Binary, err)
	}
	cfg.Binary = path
	return &CLIModel{cfg: cfg}, nil
}

// Name returns the model identifier.
func (m *CLIModel) Name() string { return m.cfg.Model }

// Transcribe returns a sequence that starts the CLI when ranged over. If the
// consumer stops early the process is killed.
func (m *CLIModel) Transcribe(ctx context.Context, audioPath string, opts Options) Segments {
	return func(yield func(Segment, error) bool) {
		runCtx := ctx
		if m.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
			defer cancel()
		}

		outDir, err := os.MkdirTemp(m.cfg.TempDir, "a2t_cli_*")
		if err != nil {
			yield(Segment{}, fmt.Errorf("create cli output dir: %w", err))
			return
		}
		defer os.RemoveAll(outDir)

		cmd := exec.CommandContext(runCtx, m.cfg.Binary, m.args(audioPath, outDir, opts)...)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			yield(Segment{}, fmt.Errorf("stdout pipe: %w", err))
			return
		}
		if err := cmd.Start(); err != nil {
			yield(Segment{}, fmt.Errorf("start whisper cli: %w", err))
			return
		}

		sc := bufio.NewScanner(stdout)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			seg, ok := parseSegmentLine(sc.Text())
			if !ok {
				continue
			}
			if !yield(seg, nil) {
				cmd.Process.Kill()
				cmd.Wait()
				return
			}
		}
		scanErr := sc.Err()
		if scanErr != nil {
			// Keep the pipe flowing so the process can exit.
			io.Copy(io.Discard, stdout)
		}

		if err := cmd.Wait(); err != nil {
			if m.cfg.Timeout > 0 && runCtx.Err() == context.DeadlineExceeded {
				yield(Segment{}, fmt.Errorf("whisper cli timed out after %s", m.cfg.Timeout))
				return
			}
			msg := strings.TrimSpace(stderr.String())
			if len(msg) > 512 {
				msg = "..." + msg[len(msg)-512:]
			}
			yield(Segment{}, fmt.Errorf("whisper cli failed: %w: %s", err, msg))
			return
		}
		if scanErr != nil {
			yield(Segment{}, fmt.Errorf("read whisper cli output: %w", scanErr))
		}
	}
}

func (m *CLIModel) args(audioPath, outDir string, opts Options) []string {
	args := []string{
		audioPath,
		"--model", m.cfg.Model,
		"--verbose", "True",
		"--output_format", "txt",
		"--output_dir", outDir,
	}
	if m.cfg.ComputeType != "" {
		args = append(args, "--compute_type", m.cfg.ComputeType)
	}
	if m.cfg.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(m.cfg.Threads))
	}
	if opts.BeamSize > 0 {
		args = append(args, "--beam_size", strconv.Itoa(opts.BeamSize))
	}
	if opts.VADFilter {
		args = append(args, "--vad_filter", "True")
	}
	if opts.Language != "" {
		args = append(args, "--language", opts.Language)
	}
	return args
}

func parseSegmentLine(line string) (Segment, bool) {
	m := segmentLine.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return Segment{}, false
	}
	start, err := parseTimestamp(m[1])
	if err != nil {
		return Segment{}, false
	}
	end, err := parseTimestamp(m[2])
	if err != nil {
		return Segment{}, false
	}
	return Segment{Start: start, End: end, Text: m[3]}, true
}

// parseTimestamp parses "mm:ss.mmm" or "hh:mm:ss.mmm".
func parseTimestamp(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	secs, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil {
		return 0, err
	}
	total := secs
	mult := 60.0
	for i := len(parts) - 2; i >= 0; i-- {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return 0, err
		}
		total += float64(n) * mult
		mult *= 60
	}
	return seconds(total), nil
}

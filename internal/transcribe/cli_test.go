package transcribe

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func writeFakeCLI(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "whisper-ctranslate2")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write fake cli: %v", err)
	}
	return path
}

func TestParseSegmentLine(t *testing.T) {
	tests := []struct {
		line  string
		ok    bool
		start time.Duration
		end   time.Duration
		text  string
	}{
		{"[00:00.000 --> 00:04.500]  Hello world.", true, 0, 4500 * time.Millisecond, " Hello world."},
		{"[01:02.250 --> 01:05.000] Next", true, 62250 * time.Millisecond, 65 * time.Second, "Next"},
		{"[01:00:00.000 --> 01:00:02.000] Late", true, time.Hour, time.Hour + 2*time.Second, "Late"},
		{"Detected language 'English' with probability 0.98", false, 0, 0, ""},
		{"", false, 0, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			seg, ok := parseSegmentLine(tt.line)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if seg.Start != tt.start || seg.End != tt.end {
				t.Errorf("times = %v..%v, want %v..%v", seg.Start, seg.End, tt.start, tt.end)
			}
			if strings.TrimSpace(seg.Text) != strings.TrimSpace(tt.text) {
				t.Errorf("text = %q, want %q", seg.Text, tt.text)
			}
		})
	}
}

func TestCLIModel_Transcribe(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	bin := writeFakeCLI(t, "#!/bin/sh\n"+
		"echo \"$@\" > "+argsFile+"\n"+
		"echo \"Detected language 'English'\"\n"+
		"echo '[00:00.000 --> 00:02.000]  First part.'\n"+
		"echo '[00:02.000 --> 00:03.000]  Second part.'\n")

	m, err := NewCLIModel(CLIConfig{Binary: bin, Model: "tiny", ComputeType: "int8", Threads: 2, TempDir: dir})
	if err != nil {
		t.Fatalf("NewCLIModel: %v", err)
	}

	text, n, err := Collect(m.Transcribe(context.Background(), "/tmp/input.wav", DefaultOptions()))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if text != "First part. Second part.\n" || n != 2 {
		t.Errorf("Collect = %q (%d)", text, n)
	}

	args, _ := os.ReadFile(argsFile)
	for _, want := range []string{"--model tiny", "--compute_type int8", "--threads 2", "--beam_size 5", "--vad_filter True"} {
		if !strings.Contains(string(args), want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}

	// The scratch output dir is removed after the run.
	leftovers, _ := filepath.Glob(filepath.Join(dir, "a2t_cli_*"))
	if len(leftovers) != 0 {
		t.Errorf("cli output dirs not removed: %v", leftovers)
	}
}

func TestCLIModel_Failure(t *testing.T) {
	bin := writeFakeCLI(t, "#!/bin/sh\necho '[00:00.000 --> 00:01.000] partial'\necho 'CUDA out of memory' >&2\nexit 2\n")
	m, err := NewCLIModel(CLIConfig{Binary: bin, Model: "base", TempDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}

	_, n, err := Collect(m.Transcribe(context.Background(), "in.wav", DefaultOptions()))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "CUDA out of memory") {
		t.Errorf("error %q should include stderr", err)
	}
	if n != 1 {
		t.Errorf("consumed %d segments before failure, want 1", n)
	}
}

func TestCLIModel_EarlyStop(t *testing.T) {
	bin := writeFakeCLI(t, "#!/bin/sh\nwhile true; do echo '[00:00.000 --> 00:01.000] again'; sleep 0.01; done\n")
	m, err := NewCLIModel(CLIConfig{Binary: bin, Model: "base", TempDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range m.Transcribe(context.Background(), "in.wav", DefaultOptions()) {
			break
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("breaking out of the sequence did not stop the cli")
	}
}

func TestCLIModel_Timeout(t *testing.T) {
	bin := writeFakeCLI(t, "#!/bin/sh\necho '[00:00.000 --> 00:01.000] first'\nexec sleep 30\n")
	m, err := NewCLIModel(CLIConfig{Binary: bin, Model: "base", TempDir: t.TempDir(), Timeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		_, n, err := Collect(m.Transcribe(context.Background(), "in.wav", DefaultOptions()))
		done <- result{n, err}
	}()
	select {
	case r := <-done:
		if r.err == nil || !strings.Contains(r.err.Error(), "timed out") {
			t.Errorf("err = %v, want a timeout", r.err)
		}
		if r.n != 1 {
			t.Errorf("consumed %d segments before the timeout, want 1", r.n)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("cli run was not bounded by the timeout")
	}
}

func TestNewCLIModel_MissingBinary(t *testing.T) {
	_, err := NewCLIModel(CLIConfig{Binary: filepath.Join(t.TempDir(), "missing")})
	if err == nil {
		t.Error("expected error for missing binary")
	}
}

package transcribe

import (
	"errors"
	"testing"
)

// sliceSegments yields texts in order and counts how many times it was ranged.
func sliceSegments(runs *int, texts ...string) Segments {
	return func(yield func(Segment, error) bool) {
		*runs++
		for _, t := range texts {
			if !yield(Segment{Text: t}, nil) {
				return
			}
		}
	}
}

func TestCollect(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		want  string
		count int
	}{
		{"joins trimmed segments", []string{" Hello there.", "  General Kenobi. "}, "Hello there. General Kenobi.\n", 2},
		{"single segment", []string{"one"}, "one\n", 1},
		{"no segments", nil, "\n", 0},
		{"whitespace only segments", []string{"  ", "\t"}, "\n", 2},
		{"inner newlines kept", []string{"a\nb", "c"}, "a\nb c\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var runs int
			got, n, err := Collect(sliceSegments(&runs, tt.texts...))
			if err != nil {
				t.Fatalf("Collect: %v", err)
			}
			if got != tt.want {
				t.Errorf("Collect = %q, want %q", got, tt.want)
			}
			if n != tt.count {
				t.Errorf("count = %d, want %d", n, tt.count)
			}
			if runs != 1 {
				t.Errorf("sequence ranged %d times, want 1", runs)
			}
		})
	}
}

func TestCollect_StopsAtError(t *testing.T) {
	boom := errors.New("model crashed")
	segs := Segments(func(yield func(Segment, error) bool) {
		if !yield(Segment{Text: "partial"}, nil) {
			return
		}
		yield(Segment{}, boom)
	})

	got, n, err := Collect(segs)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if got != "" {
		t.Errorf("transcript = %q, want empty on error", got)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.BeamSize != 5 {
		t.Errorf("BeamSize = %d, want 5", opts.BeamSize)
	}
	if !opts.VADFilter {
		t.Error("VADFilter = false, want true")
	}
}

func TestResolveModelAndSpeedFactor(t *testing.T) {
	tests := []struct {
		requested, def string
		wantModel      string
		wantFactor     float64
	}{
		{"tiny", "base", "tiny", 0.4},
		{"base", "base", "base", 0.8},
		{"small", "base", "small", 1.2},
		{"medium", "base", "medium", 2.0},
		{"large-v3", "base", "large-v3", 3.0},
		{"huge", "base", "base", 0.8},
		{"", "small", "small", 1.2},
		{"bogus", "distil-custom", "distil-custom", 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.requested+"/"+tt.def, func(t *testing.T) {
			got := ResolveModel(tt.requested, tt.def)
			if got != tt.wantModel {
				t.Errorf("ResolveModel = %q, want %q", got, tt.wantModel)
			}
			if f := SpeedFactor(got); f != tt.wantFactor {
				t.Errorf("SpeedFactor(%q) = %v, want %v", got, f, tt.wantFactor)
			}
		})
	}
}

package transcribe

import (
	"context"
	"strings"
	"time"
)

// Segment is one unit of recognized text, in stream order.
type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Segments is a lazy, forward-only sequence of recognized segments.
//
// Recognition runs while the sequence is ranged over. Ranging a second time
// reruns the model from scratch, so callers must consume it exactly once.
// A non-nil error is always the last element yielded.
type Segments func(yield func(Segment, error) bool)

// Options are the decoding settings passed to a model.
type Options struct {
	BeamSize  int
	VADFilter bool
	Language  string // "" = auto-detect
}

// DefaultOptions returns the fixed decoding policy: beam search of width 5
// with voice-activity filtering.
func DefaultOptions() Options {
	return Options{BeamSize: 5, VADFilter: true}
}

// Model is a speech-to-text backend bound to one model identifier.
type Model interface {
	Name() string
	Transcribe(ctx context.Context, audioPath string, opts Options) Segments
}

// Loader constructs a model instance for an identifier.
type Loader func(ctx context.Context, modelID string) (Model, error)

// Collect consumes segs and assembles the transcript: each segment's trimmed
// text followed by a single space, the whole result trimmed, then exactly one
// trailing newline. Returns the number of segments consumed.
func Collect(segs Segments) (string, int, error) {
	var b strings.Builder
	n := 0
	for seg, err := range segs {
		if err != nil {
			return "", n, err
		}
		b.WriteString(strings.TrimSpace(seg.Text))
		b.WriteByte(' ')
		n++
	}
	return strings.TrimSpace(b.String()) + "\n", n, nil
}

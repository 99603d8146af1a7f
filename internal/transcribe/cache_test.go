package transcribe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type stubModel struct{ name string }

func (m *stubModel) Name() string { return m.name }
func (m *stubModel) Transcribe(ctx context.Context, audioPath string, opts Options) Segments {
	return func(yield func(Segment, error) bool) {}
}

// countingLoader returns a loader that records constructions and fails the
// first failN calls.
func countingLoader(calls *atomic.Int32, failN int32) Loader {
	return func(ctx context.Context, id string) (Model, error) {
		n := calls.Add(1)
		time.Sleep(5 * time.Millisecond)
		if n <= failN {
			return nil, errors.New("weights not ready")
		}
		return &stubModel{name: id}, nil
	}
}

func TestModelCache_DefaultInitializedOnce(t *testing.T) {
	var calls atomic.Int32
	cache := NewModelCache(countingLoader(&calls, 0), "base", zerolog.Nop())

	const n = 20
	models := make([]Model, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := cache.Get(context.Background(), "base")
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			models[i] = m
		}(i)
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("loader called %d times, want 1", got)
	}
	for i := 1; i < n; i++ {
		if models[i] != models[0] {
			t.Fatalf("request %d got a different default instance", i)
		}
	}
	if !cache.Loaded() {
		t.Error("Loaded = false after successful init")
	}
}

func TestModelCache_FailedInitRetried(t *testing.T) {
	var calls atomic.Int32
	cache := NewModelCache(countingLoader(&calls, 1), "base", zerolog.Nop())

	if _, err := cache.Get(context.Background(), "base"); err == nil {
		t.Fatal("expected first Get to fail")
	}
	if cache.Loaded() {
		t.Error("Loaded = true after failed init")
	}

	m, err := cache.Get(context.Background(), "base")
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if m.Name() != "base" {
		t.Errorf("Name = %q, want base", m.Name())
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("loader called %d times, want 2", got)
	}
}

func TestModelCache_NonDefaultIsFresh(t *testing.T) {
	var calls atomic.Int32
	cache := NewModelCache(countingLoader(&calls, 0), "base", zerolog.Nop())

	a, err := cache.Get(context.Background(), "small")
	if err != nil {
		t.Fatal(err)
	}
	b, err := cache.Get(context.Background(), "small")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("non-default models should not be shared")
	}
	if cache.Loaded() {
		t.Error("non-default loads must not populate the default slot")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("loader called %d times, want 2", got)
	}
}

func TestModelCache_LoadedDoesNotWaitForConstruction(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	load := func(ctx context.Context, id string) (Model, error) {
		close(started)
		<-release
		return &stubModel{name: id}, nil
	}
	cache := NewModelCache(load, "base", zerolog.Nop())

	got := make(chan error, 1)
	go func() {
		_, err := cache.Get(context.Background(), "base")
		got <- err
	}()
	<-started

	answered := make(chan bool, 1)
	go func() { answered <- cache.Loaded() }()
	select {
	case loaded := <-answered:
		if loaded {
			t.Error("Loaded() = true while construction is in progress")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Loaded() blocked behind the model construction")
	}

	close(release)
	if err := <-got; err != nil {
		t.Fatal(err)
	}
	if !cache.Loaded() {
		t.Error("Loaded() = false after construction")
	}
}

package transcribe

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ModelCache hands out model instances. The default model is constructed on
// first use and shared by all requests afterwards; any other identifier gets
// a fresh instance owned by the caller.
//
// Concurrent first use of the default model blocks on a single construction.
// A failed construction is not remembered, so the next caller retries.
type ModelCache struct {
	load      Loader
	defaultID string
	log       zerolog.Logger

	mu     sync.Mutex
	def    Model
	loaded atomic.Bool // readable while a construction holds mu
}

// NewModelCache creates a cache whose shared instance is defaultID.
func NewModelCache(load Loader, defaultID string, log zerolog.Logger) *ModelCache {
	return &ModelCache{
		load:      load,
		defaultID: defaultID,
		log:       log.With().Str("component", "model-cache").Logger(),
	}
}

// DefaultID returns the identifier of the shared model.
func (c *ModelCache) DefaultID() string { return c.defaultID }

// Get returns a model for id.
func (c *ModelCache) Get(ctx context.Context, id string) (Model, error) {
	if id != c.defaultID {
		m, err := c.load(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load model %q: %w", id, err)
		}
		c.log.Debug().Str("model", id).Msg("constructed request-scoped model")
		return m, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.def != nil {
		return c.def, nil
	}

	start := time.Now()
	m, err := c.load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load default model %q: %w", id, err)
	}
	c.def = m
	c.loaded.Store(true)
	c.log.Info().Str("model", id).Dur("took", time.Since(start)).Msg("default model initialized")
	return m, nil
}

// Loaded reports whether the default model has been constructed.
func (c *ModelCache) Loaded() bool { return c.loaded.Load() }

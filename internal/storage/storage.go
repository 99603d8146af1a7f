package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/snarg/audio2text/internal/config"
)

// ArtifactStore abstracts archive backends for produced artifacts.
type ArtifactStore interface {
	// Save stores the artifact read from r under key.
	// key format: {YYYY-MM-DD}/{uuid}/{filename}
	Save(ctx context.Context, key string, r io.Reader, contentType string) error

	// Type returns "local" or "s3".
	Type() string
}

// New creates an ArtifactStore based on config. Returns nil when archiving
// is disabled. Returns an error if S3 is configured but unreachable.
func New(cfg config.ArchiveConfig, log zerolog.Logger) (ArtifactStore, error) {
	if !cfg.S3Enabled() {
		if cfg.Dir == "" {
			return nil, nil
		}
		log.Info().Str("dir", cfg.Dir).Msg("archiving artifacts to local directory")
		return NewLocalStore(cfg.Dir), nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials and bucket access
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.S3Bucket, cfg.S3Endpoint, err)
	}
	log.Info().Str("bucket", cfg.S3Bucket).Str("endpoint", cfg.S3Endpoint).Msg("S3 connection verified")
	return s3store, nil
}

// ArtifactKey returns a collision-free archive key for an artifact named
// name produced at t.
func ArtifactKey(t time.Time, name string) string {
	return path.Join(t.UTC().Format("2006-01-02"), uuid.NewString(), name)
}

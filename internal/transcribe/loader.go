package transcribe

import (
	"context"
	"fmt"

	"github.com/snarg/audio2text/internal/config"
)

// NewLoader returns a Loader for the configured backend.
func NewLoader(cfg config.WhisperConfig, tempDir string) (Loader, error) {
	switch cfg.Backend {
	case "server":
		return func(ctx context.Context, modelID string) (Model, error) {
			return NewServerModel(cfg.URL, modelID, cfg.Timeout)
		}, nil
	case "cli":
		return func(ctx context.Context, modelID string) (Model, error) {
			return NewCLIModel(CLIConfig{
				Binary:      cfg.CLI,
				Model:       modelID,
				ComputeType: cfg.ComputeType,
				Threads:     cfg.Threads,
				TempDir:     tempDir,
				Timeout:     cfg.Timeout,
			})
		}, nil
	default:
		return nil, fmt.Errorf("unknown whisper backend %q", cfg.Backend)
	}
}

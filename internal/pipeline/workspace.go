package pipeline

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/snarg/audio2text/internal/metrics"
	"github.com/snarg/audio2text/internal/storage"
)

// Workspace is a request-scoped scratch directory. Everything a request
// writes lives under it, and Close removes all of it.
type Workspace struct {
	dir     string
	log     zerolog.Logger
	once    sync.Once
	onClose func()
}

// NewWorkspace creates a uniquely named directory under root.
func NewWorkspace(root string, log zerolog.Logger) (*Workspace, error) {
	dir, err := os.MkdirTemp(root, storage.WorkspacePrefix+"*")
	if err != nil {
		return nil, err
	}
	return &Workspace{dir: dir, log: log}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string { return w.dir }

// Path joins elem onto the workspace directory.
func (w *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.dir}, elem...)...)
}

// Close removes the workspace recursively. Only the first call does work.
// A removal failure is logged and counted, never returned to the request.
func (w *Workspace) Close() {
	w.once.Do(func() {
		if err := os.RemoveAll(w.dir); err != nil {
			metrics.WorkspaceCleanupFailures.Inc()
			w.log.Warn().Err(err).Str("dir", w.dir).Msg("workspace cleanup failed")
		}
		if w.onClose != nil {
			w.onClose()
		}
	})
}

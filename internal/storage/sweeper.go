package storage

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// WorkspacePrefix is the name prefix of every scratch directory and file
// the service creates under its temp root. The sweeper touches nothing else.
const WorkspacePrefix = "a2t_"

// WorkspaceSweeper removes scratch workspaces left behind by a crash or a
// kill during a request. Live requests close their own workspaces; maxAge
// must exceed the longest request.
type WorkspaceSweeper struct {
	root     string
	maxAge   time.Duration
	interval time.Duration
	log      zerolog.Logger
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewWorkspaceSweeper creates a sweeper for root. maxAge 0 disables it.
func NewWorkspaceSweeper(root string, maxAge time.Duration, log zerolog.Logger) *WorkspaceSweeper {
	interval := time.Hour
	if maxAge > 0 && maxAge/4 < interval {
		interval = maxAge / 4
	}
	return &WorkspaceSweeper{
		root:     root,
		maxAge:   maxAge,
		interval: interval,
		log:      log.With().Str("component", "workspace-sweeper").Logger(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *WorkspaceSweeper) Start() {
	if s.maxAge <= 0 {
		close(s.done)
		return
	}
	go s.loop()
}

// Stop ends the loop and waits for an in-progress sweep to finish.
func (s *WorkspaceSweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *WorkspaceSweeper) loop() {
	defer close(s.done)

	// Run once on startup to clear leftovers from before a restart
	s.Sweep(time.Now())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep(time.Now())
		case <-s.stop:
			return
		}
	}
}

// Sweep removes workspaces last modified before now-maxAge and returns how
// many were removed.
func (s *WorkspaceSweeper) Sweep(now time.Time) int {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		s.log.Warn().Err(err).Str("root", s.root).Msg("read temp root")
		return 0
	}

	cutoff := now.Add(-s.maxAge)
	removed := 0
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), WorkspacePrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(s.root, e.Name())
		if err := os.RemoveAll(path); err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("remove stale workspace")
			continue
		}
		removed++
	}

	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("stale workspaces swept")
	}
	return removed
}

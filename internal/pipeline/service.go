// Package pipeline sequences one request through intake, probe or decode,
// transcription, optional summarization and packaging, and owns the
// request's scratch workspace from creation to removal.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/audio2text/internal/metrics"
	"github.com/snarg/audio2text/internal/storage"
	"github.com/snarg/audio2text/internal/summarize"
	"github.com/snarg/audio2text/internal/transcribe"
)

var (
	// ErrMissingFile is returned when the request carries no file part.
	ErrMissingFile = errors.New("missing file")
	// ErrInvalidForm is returned for malformed form fields.
	ErrInvalidForm = errors.New("invalid form")
)

// Media probes and decodes audio files.
type Media interface {
	Probe(ctx context.Context, path string) (float64, error)
	Decode(ctx context.Context, src, dst string) error
}

// ModelSource hands out recognizer models.
type ModelSource interface {
	Get(ctx context.Context, id string) (transcribe.Model, error)
	DefaultID() string
	Loaded() bool
}

// Upload is an uploaded file as received by the API.
type Upload struct {
	Filename string
	Body     io.Reader
}

// Estimate is the result of a duration estimate.
type Estimate struct {
	DurationSeconds  float64 `json:"duration_seconds"`
	EstimatedSeconds float64 `json:"estimated_time_seconds"`
	Model            string  `json:"model"`
	RTF              float64 `json:"rtf_used"`
}

// Request is a transcription request.
type Request struct {
	Upload
	Model      string
	Summarize  bool
	Credential string
}

// Artifact kinds.
const (
	KindText = "text"
	KindZip  = "zip"
)

// Artifact is the single output of a transcription request. It lives in
// the request workspace; Close removes both.
type Artifact struct {
	Path        string
	Name        string
	ContentType string
	Kind        string

	ws *Workspace
}

// Close releases the artifact's workspace. Safe to call more than once.
func (a *Artifact) Close() {
	if a.ws != nil {
		a.ws.Close()
	}
}

// DefaultArchiveTimeout bounds one archive upload.
const DefaultArchiveTimeout = 2 * time.Minute

// Deps are the collaborators of a Service.
type Deps struct {
	Media          Media
	Models         ModelSource
	Summarizer     summarize.Summarizer
	Archive        storage.ArtifactStore // nil disables archiving
	ArchiveTimeout time.Duration         // 0 means DefaultArchiveTimeout
	TempDir        string
	Language       string
	Log            zerolog.Logger
}

// Service runs estimate and transcription requests. It is safe for
// concurrent use; each request gets its own workspace.
type Service struct {
	media      Media
	models     ModelSource
	summarizer summarize.Summarizer
	archive    storage.ArtifactStore
	archiveTTL time.Duration
	tempDir    string
	opts       transcribe.Options
	log        zerolog.Logger

	active atomic.Int64
}

// NewService creates a Service.
func NewService(d Deps) *Service {
	opts := transcribe.DefaultOptions()
	opts.Language = d.Language
	archiveTTL := d.ArchiveTimeout
	if archiveTTL <= 0 {
		archiveTTL = DefaultArchiveTimeout
	}
	return &Service{
		media:      d.Media,
		models:     d.Models,
		summarizer: d.Summarizer,
		archive:    d.Archive,
		archiveTTL: archiveTTL,
		tempDir:    d.TempDir,
		opts:       opts,
		log:        d.Log.With().Str("component", "pipeline").Logger(),
	}
}

// ActiveWorkspaces reports the number of workspaces currently on disk.
func (s *Service) ActiveWorkspaces() int { return int(s.active.Load()) }

// DefaultModelLoaded reports whether the shared model is initialized.
func (s *Service) DefaultModelLoaded() bool { return s.models.Loaded() }

// DefaultModel returns the configured default model identifier.
func (s *Service) DefaultModel() string { return s.models.DefaultID() }

// Estimate probes the upload's duration and scales it by the model's
// real-time factor. A probe failure degrades the duration to zero.
func (s *Service) Estimate(ctx context.Context, up Upload, model string) (Estimate, error) {
	log := s.logger(ctx)
	model = transcribe.ResolveModel(model, s.models.DefaultID())
	rtf := transcribe.SpeedFactor(model)

	start := time.Now()
	path, err := s.spool(up)
	if err != nil {
		return Estimate{}, err
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			log.Debug().Err(err).Str("path", path).Msg("estimate temp file not removed")
		}
	}()
	metrics.ObserveStage(metrics.StageIntake, start)

	start = time.Now()
	duration, err := s.media.Probe(context.WithoutCancel(ctx), path)
	metrics.ObserveStage(metrics.StageProbe, start)
	if err != nil {
		metrics.ProbeFailures.Inc()
		log.Warn().Err(err).Msg("probe failed, reporting zero duration")
		duration = 0
	}

	est := Estimate{
		DurationSeconds:  duration,
		EstimatedSeconds: duration * rtf,
		Model:            model,
		RTF:              rtf,
	}
	log.Info().
		Str("model", model).
		Float64("duration_s", duration).
		Float64("estimate_s", est.EstimatedSeconds).
		Msg("estimate")
	return est, nil
}

// spool writes the upload to a temp file under the temp root.
func (s *Service) spool(up Upload) (string, error) {
	f, err := os.CreateTemp(s.tempDir, storage.WorkspacePrefix+"est_*"+extension(SanitizeFilename(up.Filename)))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(f, up.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("save upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("save upload: %w", err)
	}
	return f.Name(), nil
}

// Transcribe runs the full pipeline and returns the artifact to stream. The
// caller must Close the artifact once it has been sent. On error no
// workspace is left behind.
//
// External work runs on a context detached from ctx, so a client
// disconnect does not kill a decode or a transcription mid-way.
func (s *Service) Transcribe(ctx context.Context, req Request) (*Artifact, error) {
	log := s.logger(ctx)
	work := context.WithoutCancel(ctx)

	ws, err := s.newWorkspace()
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	art, err := s.run(ctx, work, log, ws, req)
	if err != nil {
		ws.Close()
		return nil, err
	}
	return art, nil
}

func (s *Service) run(ctx, work context.Context, log zerolog.Logger, ws *Workspace, req Request) (*Artifact, error) {
	safe := SanitizeFilename(req.Filename)
	base := OutputBase(req.Filename)
	modelID := transcribe.ResolveModel(req.Model, s.models.DefaultID())
	summarizeOn := req.Summarize && strings.TrimSpace(req.Credential) != ""

	log.Debug().
		Str("file", safe).
		Str("model", modelID).
		Bool("summarize_requested", req.Summarize).
		Msg("transcription started")

	// Inputs and outputs live in separate directories so no upload name can
	// collide with a produced file.
	outDir := ws.Path("out")
	if err := os.Mkdir(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	start := time.Now()
	src := ws.Path("source" + extension(safe))
	if err := writeFile(src, req.Body); err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}
	metrics.ObserveStage(metrics.StageIntake, start)

	start = time.Now()
	wav := ws.Path("normalized.wav")
	if err := s.media.Decode(work, src, wav); err != nil {
		metrics.DecodeFailures.Inc()
		log.Warn().Err(err).Str("file", safe).Msg("decode failed")
		return nil, err
	}
	metrics.ObserveStage(metrics.StageDecode, start)

	start = time.Now()
	model, err := s.models.Get(work, modelID)
	if err != nil {
		return nil, err
	}
	text, n, err := transcribe.Collect(model.Transcribe(work, wav, s.opts))
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	metrics.ObserveStage(metrics.StageTranscribe, start)
	log.Debug().Int("segments", n).Dur("took", time.Since(start)).Msg("transcription done")

	transcriptName := base + ".txt"
	transcriptPath := filepath.Join(outDir, transcriptName)
	if err := os.WriteFile(transcriptPath, []byte(text), 0o644); err != nil {
		return nil, fmt.Errorf("write transcript: %w", err)
	}

	art := &Artifact{
		Path:        transcriptPath,
		Name:        transcriptName,
		ContentType: "text/plain; charset=utf-8",
		Kind:        KindText,
		ws:          ws,
	}

	if summarizeOn {
		summaryName := base + "_summary.txt"
		summaryPath := filepath.Join(outDir, summaryName)
		if err := os.WriteFile(summaryPath, []byte(s.summary(ctx, log, text, req.Credential)), 0o644); err != nil {
			return nil, fmt.Errorf("write summary: %w", err)
		}

		start = time.Now()
		zipName := base + "_transcript_and_summary.zip"
		zipPath := filepath.Join(outDir, zipName)
		if err := writeBundle(zipPath,
			bundleEntry{Name: transcriptName, Path: transcriptPath},
			bundleEntry{Name: summaryName, Path: summaryPath},
		); err != nil {
			return nil, fmt.Errorf("package: %w", err)
		}
		metrics.ObserveStage(metrics.StagePackage, start)

		art.Path = zipPath
		art.Name = zipName
		art.ContentType = "application/zip"
		art.Kind = KindZip
	}

	metrics.Artifacts.WithLabelValues(art.Kind).Inc()
	s.archiveArtifact(work, log, art)

	log.Info().
		Str("model", modelID).
		Str("artifact", art.Name).
		Int("segments", n).
		Msg("transcription complete")
	return art, nil
}

// summary returns the summary file contents: the bullets, or the failure
// marker if summarization failed. Never returns an error.
func (s *Service) summary(ctx context.Context, log zerolog.Logger, text, credential string) string {
	start := time.Now()
	defer metrics.ObserveStage(metrics.StageSummarize, start)

	bullets, err := s.summarizer.Summarize(ctx, text, credential)
	if err != nil {
		metrics.Summaries.WithLabelValues("failed").Inc()
		log.Warn().Err(err).Msg("summarization failed")
		return summarize.FailureMarker(err) + "\n"
	}
	metrics.Summaries.WithLabelValues("ok").Inc()
	return bullets + "\n"
}

// archiveArtifact copies the artifact to the archive store, if one is
// configured. Failures are logged and do not affect the response.
func (s *Service) archiveArtifact(ctx context.Context, log zerolog.Logger, art *Artifact) {
	if s.archive == nil {
		return
	}
	f, err := os.Open(art.Path)
	if err != nil {
		log.Warn().Err(err).Msg("archive: open artifact")
		return
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, s.archiveTTL)
	defer cancel()

	key := storage.ArtifactKey(time.Now(), art.Name)
	if err := s.archive.Save(ctx, key, f, art.ContentType); err != nil {
		log.Warn().Err(err).Str("key", key).Str("store", s.archive.Type()).Msg("archive failed")
		return
	}
	log.Debug().Str("key", key).Str("store", s.archive.Type()).Msg("artifact archived")
}

func (s *Service) newWorkspace() (*Workspace, error) {
	ws, err := NewWorkspace(s.tempDir, s.log)
	if err != nil {
		return nil, err
	}
	s.active.Add(1)
	ws.onClose = func() { s.active.Add(-1) }
	return ws, nil
}

// logger prefers the request-scoped logger attached by the HTTP layer.
func (s *Service) logger(ctx context.Context) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l.With().Str("component", "pipeline").Logger()
	}
	return s.log
}

func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// extension returns the extension of a sanitized name, or "" if it has none.
func extension(safe string) string {
	return safe[len(BaseName(safe)):]
}

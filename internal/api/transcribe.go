package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/snarg/audio2text/internal/media"
	"github.com/snarg/audio2text/internal/pipeline"
)

// DecodeFailedMessage is the client-facing error for uploads the decoder
// rejects.
const DecodeFailedMessage = "ffmpeg failed to decode this file."

// formMemory is the part of a multipart form kept in memory; larger file
// parts are spooled to disk by the multipart reader.
const formMemory = 32 << 20

// DefaultFormModel is the model used when a request omits the model field.
const DefaultFormModel = "base"

// Pipeline runs estimate and transcription requests.
type Pipeline interface {
	Estimate(ctx context.Context, up pipeline.Upload, model string) (pipeline.Estimate, error)
	Transcribe(ctx context.Context, req pipeline.Request) (*pipeline.Artifact, error)
}

// TranscribeHandler serves the estimate and transcription endpoints.
type TranscribeHandler struct {
	pipeline  Pipeline
	maxUpload int64
	log       zerolog.Logger
}

// NewTranscribeHandler creates a handler. maxUpload bounds the request body
// in bytes.
func NewTranscribeHandler(p Pipeline, maxUpload int64, log zerolog.Logger) *TranscribeHandler {
	return &TranscribeHandler{
		pipeline:  p,
		maxUpload: maxUpload,
		log:       log.With().Str("handler", "transcribe").Logger(),
	}
}

// Routes registers the endpoints.
func (h *TranscribeHandler) Routes(r chi.Router) {
	r.Post("/estimate", h.Estimate)
	r.Post("/transcribe", h.Transcribe)
}

// Estimate handles POST /estimate.
func (h *TranscribeHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	form, ok := h.parseForm(w, r)
	if !ok {
		return
	}
	defer form.close()

	est, err := h.pipeline.Estimate(r.Context(), form.upload, form.model)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, est)
}

// Transcribe handles POST /transcribe. The response is the transcript as
// text/plain, or a zip of transcript and summary.
func (h *TranscribeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	form, ok := h.parseForm(w, r)
	if !ok {
		return
	}
	defer form.close()

	art, err := h.pipeline.Transcribe(r.Context(), pipeline.Request{
		Upload:     form.upload,
		Model:      form.model,
		Summarize:  form.summarize,
		Credential: form.credential,
	})
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	defer art.Close()

	if err := serveArtifact(w, art); err != nil {
		// Headers are already out; the client sees a truncated body.
		h.logger(r).Warn().Err(err).Str("artifact", art.Name).Msg("artifact stream interrupted")
	}
}

// transcribeForm is a parsed multipart request. close releases the file
// part and any spooled form files.
type transcribeForm struct {
	upload     pipeline.Upload
	model      string
	summarize  bool
	credential string

	file multipart.File
	mf   *multipart.Form
}

func (f *transcribeForm) close() {
	if f.file != nil {
		f.file.Close()
	}
	if f.mf != nil {
		f.mf.RemoveAll()
	}
}

// parseForm reads the multipart fields. On failure it writes the error
// response and returns false.
func (h *TranscribeHandler) parseForm(w http.ResponseWriter, r *http.Request) (*transcribeForm, bool) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	if err := r.ParseMultipartForm(formMemory); err != nil {
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll()
		}
		if isTooLarge(err) {
			WriteError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d MB", h.maxUpload>>20))
			return nil, false
		}
		WriteErrorDetail(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return nil, false
	}

	form := &transcribeForm{
		model:      DefaultFormModel,
		credential: r.FormValue("openai_api_key"),
		mf:         r.MultipartForm,
	}

	if v := strings.TrimSpace(r.FormValue("model")); v != "" {
		form.model = v
	}

	if v := r.FormValue("summarize"); v != "" {
		b, err := parseFormBool(v)
		if err != nil {
			form.close()
			WriteErrorDetail(w, http.StatusBadRequest, pipeline.ErrInvalidForm.Error(), err.Error())
			return nil, false
		}
		form.summarize = b
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		form.close()
		if errors.Is(err, http.ErrMissingFile) {
			WriteError(w, http.StatusBadRequest, pipeline.ErrMissingFile.Error())
			return nil, false
		}
		WriteErrorDetail(w, http.StatusBadRequest, pipeline.ErrInvalidForm.Error(), err.Error())
		return nil, false
	}
	form.file = file
	form.upload = pipeline.Upload{Filename: header.Filename, Body: file}
	return form, true
}

// writeFailure maps pipeline errors to responses. Only decode failures are
// client errors.
func (h *TranscribeHandler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var de *media.DecodeError
	switch {
	case errors.As(err, &de):
		WriteError(w, http.StatusBadRequest, DecodeFailedMessage)
	case isTooLarge(err):
		WriteError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d MB", h.maxUpload>>20))
	default:
		h.logger(r).Error().Err(err).Msg("request failed")
		WriteErrorDetail(w, http.StatusInternalServerError, "internal server error", err.Error())
	}
}

// logger prefers the request-scoped logger set up by the Logger middleware.
func (h *TranscribeHandler) logger(r *http.Request) *zerolog.Logger {
	if l := hlog.FromRequest(r); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &h.log
}

func serveArtifact(w http.ResponseWriter, art *pipeline.Artifact) error {
	f, err := os.Open(art.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.Header().Set("Content-Disposition", contentDisposition(art.Name))
	w.WriteHeader(http.StatusOK)
	_, err = io.Copy(w, f)
	return err
}

// contentDisposition builds an attachment header; non-ASCII names are
// encoded per RFC 2231.
func contentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

// parseFormBool accepts the boolean spellings HTML forms and API clients
// commonly send.
func parseFormBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("summarize: invalid boolean %q", v)
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

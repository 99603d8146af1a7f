package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ServerModel calls an OpenAI-compatible /v1/audio/transcriptions endpoint
// backed by faster-whisper (speaches, faster-whisper-server, ...). The model
// weights live in the server process; this value only binds an identifier.
type ServerModel struct {
	url    string
	model  string
	client *http.Client
}

// whisperResponse is the verbose_json response body.
type whisperResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
	Segments []whisperSegment `json:"segments"`
}

type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// NewServerModel creates a model bound to modelID on the server at endpoint.
func NewServerModel(endpoint, modelID string, timeout time.Duration) (*ServerModel, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse whisper url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("whisper url %q: scheme must be http or https", endpoint)
	}
	return &ServerModel{
		url:    endpoint,
		model:  modelID,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Name returns the model identifier.
func (m *ServerModel) Name() string { return m.model }

// Transcribe returns a sequence that posts audioPath to the server when
// ranged over and yields the segments of the response in order.
func (m *ServerModel) Transcribe(ctx context.Context, audioPath string, opts Options) Segments {
	return func(yield func(Segment, error) bool) {
		resp, err := m.do(ctx, audioPath, opts)
		if err != nil {
			yield(Segment{}, err)
			return
		}

		if len(resp.Segments) == 0 {
			// Servers without segment output still return the full text.
			if strings.TrimSpace(resp.Text) != "" {
				yield(Segment{Text: resp.Text, End: seconds(resp.Duration)}, nil)
			}
			return
		}
		for _, s := range resp.Segments {
			if !yield(Segment{Start: seconds(s.Start), End: seconds(s.End), Text: s.Text}, nil) {
				return
			}
		}
	}
}

func (m *ServerModel) do(ctx context.Context, audioPath string, opts Options) (*whisperResponse, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	// Stream the multipart body; normalized WAVs of long recordings are
	// hundreds of megabytes.
	pr, pw := io.Pipe()
	w := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(w, f, filepath.Base(audioPath), m.model, opts))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result whisperResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

// writeForm writes the audio file and decoding parameters, then closes w.
func writeForm(w *multipart.Writer, audio io.Reader, filename, model string, opts Options) error {
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return fmt.Errorf("copy audio data: %w", err)
	}

	fields := [][2]string{
		{"model", model},
		{"response_format", "verbose_json"},
		{"timestamp_granularities[]", "segment"},
	}
	if opts.BeamSize > 0 {
		fields = append(fields, [2]string{"beam_size", strconv.Itoa(opts.BeamSize)})
	}
	if opts.VADFilter {
		fields = append(fields, [2]string{"vad_filter", "true"})
	}
	if opts.Language != "" {
		fields = append(fields, [2]string{"language", opts.Language})
	}
	for _, kv := range fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return fmt.Errorf("write field %s: %w", kv[0], err)
		}
	}
	return w.Close()
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

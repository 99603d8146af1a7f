// Package summarize turns transcripts into bullet-point notes through an
// OpenAI-compatible chat completions API, authenticated with a credential
// supplied by the caller for that one request.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// ErrNoCredential is returned before any network call when the caller did
// not supply an API key.
var ErrNoCredential = errors.New("no credential provided")

// Temperature favors faithful summaries over varied wording.
const Temperature = 0.2

// SystemPrompt is the fixed instruction sent with every summary request.
const SystemPrompt = "You are a meticulous note-taker. Summarize transcripts into clear, " +
	"hierarchical bullet points without omitting important facts. Keep bullets short, " +
	"group logically, follow chronology when helpful, and do not invent details."

// UserPrompt embeds the transcript between fixed delimiter lines.
func UserPrompt(transcript string) string {
	return "Summarize the following transcript into thorough bullet points. " +
		"Capture all key ideas, decisions, numbers, and action items. " +
		"Use nested bullets when needed.\n\n" +
		"--- TRANSCRIPT START ---\n" + transcript + "\n--- TRANSCRIPT END ---"
}

// FailureMarker is written in place of the summary when summarization fails.
func FailureMarker(err error) string {
	return fmt.Sprintf("[Summary failed: %v]", err)
}

// Summarizer produces a summary of text using the caller's credential.
type Summarizer interface {
	Summarize(ctx context.Context, text, credential string) (string, error)
}

// OpenAI summarizes with the chat completions API.
type OpenAI struct {
	Model   string
	BaseURL string // "" = api.openai.com
	// Extra client options, applied after the credential. Used by tests to
	// disable retries.
	Options []option.RequestOption
}

// NewOpenAI creates an OpenAI summarizer for model.
func NewOpenAI(model, baseURL string) *OpenAI {
	return &OpenAI{Model: model, BaseURL: baseURL}
}

// Summarize returns the trimmed bullet-point summary of text. A new client
// is built per call so the credential never outlives the request.
func (s *OpenAI) Summarize(ctx context.Context, text, credential string) (string, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return "", ErrNoCredential
	}

	opts := []option.RequestOption{option.WithAPIKey(credential)}
	if s.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(s.BaseURL))
	}
	opts = append(opts, s.Options...)
	client := openai.NewClient(opts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt),
			openai.UserMessage(UserPrompt(text)),
		},
		Temperature: openai.Float(Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

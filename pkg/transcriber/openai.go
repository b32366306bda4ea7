package transcriber

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// ErrMissingAPIKey is returned when constructing an OpenAI transcriber
// without credentials.
var ErrMissingAPIKey = errors.New("openai api key is required")

// OpenAITranscriber calls the OpenAI Whisper API.
type OpenAITranscriber struct {
	client *openai.Client
	model  string
	logger *logrus.Entry
}

// NewOpenAITranscriber creates a Whisper-backed transcriber.
func NewOpenAITranscriber(apiKey string) (*OpenAITranscriber, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &OpenAITranscriber{
		client: openai.NewClient(apiKey),
		model:  openai.Whisper1,
		logger: logrus.WithField("component", "openai_transcriber"),
	}, nil
}

// Transcribe sends the audio file to the Whisper API and returns the plain
// text response.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: path,
		Format:   openai.AudioResponseFormatText,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			t.logger.WithFields(logrus.Fields{
				"status": apiErr.HTTPStatusCode,
				"path":   path,
			}).Warn("Whisper API rejected transcription request")
		}
		return "", fmt.Errorf("whisper transcription: %w", err)
	}
	return resp.Text, nil
}

// Close is a no-op; the OpenAI client holds no persistent connections.
func (t *OpenAITranscriber) Close() error { return nil }

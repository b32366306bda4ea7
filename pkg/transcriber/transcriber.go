package transcriber

import (
	"context"
	"fmt"
	"sync"
)

// Transcriber converts one audio file into plain text.
type Transcriber interface {
	// Transcribe returns the transcript of the audio file at path.
	Transcribe(ctx context.Context, path string) (string, error)

	// Close releases resources.
	Close() error
}

// MockTranscriber is a test double that records its calls and returns a
// canned response per path, or a fixed error.
type MockTranscriber struct {
	mu        sync.Mutex
	calls     []string
	Responses map[string]string // per-path transcript; missing paths get a synthetic one
	Err       error             // returned for every call when set
	ErrPaths  map[string]error  // per-path error, takes precedence over Responses
}

// Transcribe records the call and returns the configured response.
func (m *MockTranscriber) Transcribe(_ context.Context, path string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, path)
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	if err, ok := m.ErrPaths[path]; ok {
		return "", err
	}
	if text, ok := m.Responses[path]; ok {
		return text, nil
	}
	return fmt.Sprintf("[Mock transcript for %s]", path), nil
}

// Close is a no-op.
func (m *MockTranscriber) Close() error { return nil }

// Calls returns the paths transcribed so far.
func (m *MockTranscriber) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

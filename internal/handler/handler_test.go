package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"testing"

	"github.com/lecturenotes/transcriber/internal/config"
	"github.com/lecturenotes/transcriber/internal/pipeline"
	"github.com/lecturenotes/transcriber/internal/storage"
	"github.com/lecturenotes/transcriber/internal/store"
	"github.com/lecturenotes/transcriber/pkg/transcriber"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjects struct {
	size    int64
	content []byte
	headErr error
}

func (f *fakeObjects) Head(context.Context, string, string) (int64, error) {
	if f.headErr != nil {
		return 0, f.headErr
	}
	return f.size, nil
}

func (f *fakeObjects) Download(_ context.Context, _, _, destPath string) error {
	return os.WriteFile(destPath, f.content, 0o600)
}

type fakeJobs struct {
	status     store.Status
	lastStatus store.Status
	lastError  string
	transcript string
}

func (f *fakeJobs) GetStatus(context.Context, string) (store.Status, error) {
	return f.status, nil
}

func (f *fakeJobs) SetStatus(_ context.Context, _ string, status store.Status, errorMessage string) error {
	f.lastStatus = status
	f.lastError = errorMessage
	return nil
}

func (f *fakeJobs) UpsertTranscript(_ context.Context, _ string, content string) error {
	f.transcript = content
	return nil
}

func newTestHandler(t *testing.T, objects *fakeObjects, jobs *fakeJobs) *Handler {
	t.Helper()
	cfg := config.Default()
	cfg.TempDir = t.TempDir()
	orch := pipeline.NewOrchestrator(cfg, pipeline.Deps{
		Objects:     objects,
		Jobs:        jobs,
		Transcriber: &transcriber.MockTranscriber{},
	})
	return New(orch, jobs)
}

func validPayload() json.RawMessage {
	return json.RawMessage(`{
		"bucketName": "lectures",
		"s3Key": "uploads/lecture.mp3",
		"videoId": "video-123",
		"userId": "user-456"
	}`)
}

func TestHandleSuccess(t *testing.T) {
	objects := &fakeObjects{size: 2048, content: []byte("fake audio bytes")}
	jobs := &fakeJobs{}
	h := newTestHandler(t, objects, jobs)

	resp, err := h.Handle(context.Background(), validPayload())

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body resultBody
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	assert.Equal(t, "video-123", body.VideoID)
	assert.Positive(t, body.TranscriptionLength)
	assert.Equal(t, 1, body.ProcessingStats.TotalChunks)
	assert.Equal(t, 1, body.ProcessingStats.SuccessfulChunks)
	assert.NotEmpty(t, body.ProcessingTime.Total)
	assert.Equal(t, store.StatusCompleted, jobs.lastStatus)
}

func TestHandleEnvelopedPayload(t *testing.T) {
	objects := &fakeObjects{size: 2048, content: []byte("fake audio bytes")}
	jobs := &fakeJobs{}
	h := newTestHandler(t, objects, jobs)

	inner, err := json.Marshal(map[string]string{
		"bucketName": "lectures",
		"s3Key":      "uploads/lecture.mp3",
		"videoId":    "video-123",
		"userId":     "user-456",
	})
	require.NoError(t, err)
	envelope, err := json.Marshal(map[string]string{"body": string(inner)})
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), envelope)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleMissingFields(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"no bucket", `{"s3Key": "k", "videoId": "v", "userId": "u"}`},
		{"no key", `{"bucketName": "b", "videoId": "v", "userId": "u"}`},
		{"no video id", `{"bucketName": "b", "s3Key": "k", "userId": "u"}`},
		{"no user id", `{"bucketName": "b", "s3Key": "k", "videoId": "v"}`},
		{"empty", `{}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			jobs := &fakeJobs{}
			h := newTestHandler(t, &fakeObjects{}, jobs)

			resp, err := h.Handle(context.Background(), json.RawMessage(tc.payload))

			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestHandleValidationFailureMarksJobWhenIdentifiable(t *testing.T) {
	jobs := &fakeJobs{}
	h := newTestHandler(t, &fakeObjects{}, jobs)

	resp, err := h.Handle(context.Background(),
		json.RawMessage(`{"videoId": "video-123", "userId": "user-456"}`))

	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, store.StatusFailed, jobs.lastStatus)
	assert.NotEmpty(t, jobs.lastError)
}

func TestHandleMalformedJSON(t *testing.T) {
	h := newTestHandler(t, &fakeObjects{}, &fakeJobs{})

	resp, err := h.Handle(context.Background(), json.RawMessage(`not json`))

	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleDuplicateTrigger(t *testing.T) {
	jobs := &fakeJobs{status: store.StatusCompleted}
	h := newTestHandler(t, &fakeObjects{}, jobs)

	resp, err := h.Handle(context.Background(), validPayload())

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Body, "completed")
	assert.Contains(t, resp.Body, "Skipping duplicate")
}

func TestHandleMissingAssetReturns404(t *testing.T) {
	objects := &fakeObjects{headErr: fmt.Errorf("head: %w", storage.ErrNotFound)}
	jobs := &fakeJobs{}
	h := newTestHandler(t, objects, jobs)

	resp, err := h.Handle(context.Background(), validPayload())

	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, store.StatusFailed, jobs.lastStatus)
}

func TestParseRequestDefaultsNoteFormat(t *testing.T) {
	req, err := parseRequest(validPayload())
	require.NoError(t, err)
	assert.Equal(t, "Markdown", req.NoteFormat)

	req, err = parseRequest(json.RawMessage(`{"noteFormat": "Outline"}`))
	require.NoError(t, err)
	assert.Equal(t, "Outline", req.NoteFormat)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("wrap: %w", storage.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("wrap: %w", pipeline.ErrAssetTooLarge), http.StatusRequestEntityTooLarge},
		{fmt.Errorf("wrap: %w", pipeline.ErrTranscriptionFailed), http.StatusBadGateway},
		{errors.New("anything else"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.code, classify(tc.err))
	}
}

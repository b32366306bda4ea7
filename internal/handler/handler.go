package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lecturenotes/transcriber/internal/pipeline"
	"github.com/lecturenotes/transcriber/internal/storage"
	"github.com/lecturenotes/transcriber/internal/store"
	"github.com/sirupsen/logrus"
)

const defaultNoteFormat = "Markdown"

// Request is the inbound trigger payload. It arrives either as this object
// directly or wrapped in an API-gateway style envelope with the object
// serialized into a body string.
type Request struct {
	BucketName string `json:"bucketName"`
	S3Key      string `json:"s3Key"`
	VideoID    string `json:"videoId"`
	UserID     string `json:"userId"`
	NoteFormat string `json:"noteFormat"`
}

// Response is the outbound result to the original caller.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type envelope struct {
	Body string `json:"body"`
}

// Handler parses trigger payloads, runs the pipeline, and shapes responses.
type Handler struct {
	orch   *pipeline.Orchestrator
	jobs   store.JobStore
	logger *logrus.Entry
}

// New creates a handler.
func New(orch *pipeline.Orchestrator, jobs store.JobStore) *Handler {
	return &Handler{
		orch:   orch,
		jobs:   jobs,
		logger: logrus.WithField("component", "handler"),
	}
}

// Handle is the Lambda entrypoint. It never returns a Go error: every
// failure class is encoded as an HTTP-style status code in the response so
// the platform does not retry terminally failed jobs.
func (h *Handler) Handle(ctx context.Context, raw json.RawMessage) (Response, error) {
	req, err := parseRequest(raw)
	if err != nil {
		h.logger.WithError(err).Error("Could not parse trigger payload")
		return respond(http.StatusBadRequest, fmt.Sprintf("Error parsing event: %v", err)), nil
	}

	if req.BucketName == "" || req.S3Key == "" || req.VideoID == "" || req.UserID == "" {
		msg := "missing S3 bucket, key, video ID, or user ID in event payload"
		h.logger.Error(msg)
		// Without a video ID there is no job record to transition.
		if req.VideoID != "" {
			if err := h.jobs.SetStatus(ctx, req.VideoID, store.StatusFailed, msg); err != nil {
				h.logger.WithError(err).Warn("Could not record validation failure")
			}
		}
		return respond(http.StatusBadRequest, "Error: "+msg), nil
	}

	result, err := h.orch.Process(ctx, pipeline.Request{
		Bucket:     req.BucketName,
		Key:        req.S3Key,
		VideoID:    req.VideoID,
		UserID:     req.UserID,
		NoteFormat: req.NoteFormat,
	})
	if err != nil {
		return respond(classify(err), err.Error()), nil
	}

	if result.Skipped {
		return respond(http.StatusOK,
			fmt.Sprintf("Video already %s. Skipping duplicate processing.", result.ExistingStatus)), nil
	}

	body, err := json.Marshal(successBody(req, result))
	if err != nil {
		return respond(http.StatusInternalServerError, fmt.Sprintf("Error encoding response: %v", err)), nil
	}
	return Response{StatusCode: http.StatusOK, Body: string(body)}, nil
}

// parseRequest accepts both the raw payload and the enveloped form.
func parseRequest(raw json.RawMessage) (Request, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Body != "" {
		var req Request
		if err := json.Unmarshal([]byte(env.Body), &req); err != nil {
			return Request{}, fmt.Errorf("decoding body envelope: %w", err)
		}
		return withDefaults(req), nil
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Request{}, fmt.Errorf("decoding payload: %w", err)
	}
	return withDefaults(req), nil
}

func withDefaults(req Request) Request {
	if req.NoteFormat == "" {
		req.NoteFormat = defaultNoteFormat
	}
	return req
}

// classify maps pipeline failures to HTTP-style status codes.
func classify(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrAssetTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, pipeline.ErrTranscriptionFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respond(code int, message string) Response {
	body, _ := json.Marshal(message)
	return Response{StatusCode: code, Body: string(body)}
}

type statsBody struct {
	TotalChunks      int  `json:"totalChunks"`
	SuccessfulChunks int  `json:"successfulChunks"`
	ParallelWorkers  int  `json:"parallelWorkers"`
	Compressed       bool `json:"compressed"`
	Chunked          bool `json:"chunked"`
}

type timingBody struct {
	Download      string `json:"download"`
	Compression   string `json:"compression"`
	Chunking      string `json:"chunking"`
	Transcription string `json:"transcription"`
	Merging       string `json:"merging"`
	Total         string `json:"total"`
}

type resultBody struct {
	Message             string     `json:"message"`
	VideoID             string     `json:"videoId"`
	TranscriptionLength int        `json:"transcriptionLength"`
	ProcessingStats     statsBody  `json:"processingStats"`
	ProcessingTime      timingBody `json:"processingTime"`
}

func successBody(req Request, result *pipeline.Result) resultBody {
	return resultBody{
		Message:             "Parallel transcription processed and note generation triggered successfully.",
		VideoID:             req.VideoID,
		TranscriptionLength: result.TranscriptLength,
		ProcessingStats: statsBody{
			TotalChunks:      result.Stats.TotalChunks,
			SuccessfulChunks: result.Stats.SuccessfulChunks,
			ParallelWorkers:  result.Stats.Workers,
			Compressed:       result.Stats.Compressed,
			Chunked:          result.Stats.Chunked,
		},
		ProcessingTime: timingBody{
			Download:      seconds(result.Timings.Download),
			Compression:   seconds(result.Timings.Compression),
			Chunking:      seconds(result.Timings.Chunking),
			Transcription: seconds(result.Timings.Transcription),
			Merging:       seconds(result.Timings.Merging),
			Total:         seconds(result.Timings.Total()),
		},
	}
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

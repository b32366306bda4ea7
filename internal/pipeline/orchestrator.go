package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/lecturenotes/transcriber/internal/audio"
	"github.com/lecturenotes/transcriber/internal/config"
	"github.com/lecturenotes/transcriber/internal/notify"
	"github.com/lecturenotes/transcriber/internal/storage"
	"github.com/lecturenotes/transcriber/internal/store"
	"github.com/lecturenotes/transcriber/pkg/transcriber"
	"github.com/sirupsen/logrus"
)

var (
	// ErrAssetTooLarge marks assets that cannot be processed even after
	// compression, or exceed the download ceiling outright.
	ErrAssetTooLarge = errors.New("asset too large to process")

	// ErrTranscriptionFailed marks runs where no chunk produced any text,
	// which indicates the transcription API itself is unavailable rather
	// than a partial failure.
	ErrTranscriptionFailed = errors.New("transcription failed for all chunks")

	// ErrNoteDispatchFailed marks runs where the transcript was produced
	// and persisted but the downstream hand-off could not be dispatched.
	ErrNoteDispatchFailed = errors.New("note generation dispatch failed")
)

// Request identifies one transcription job.
type Request struct {
	Bucket     string
	Key        string
	VideoID    string
	UserID     string
	NoteFormat string
}

// Timings records per-stage wall-clock durations for the result body.
type Timings struct {
	Download      time.Duration
	Compression   time.Duration
	Chunking      time.Duration
	Transcription time.Duration
	Merging       time.Duration
}

// Total is the end-to-end processing time across stages.
func (t Timings) Total() time.Duration {
	return t.Download + t.Compression + t.Chunking + t.Transcription + t.Merging
}

// Stats summarizes the chunked run for the result body.
type Stats struct {
	TotalChunks      int
	SuccessfulChunks int
	Workers          int
	Compressed       bool
	Chunked          bool
}

// Result is the outcome of a pipeline run.
type Result struct {
	Skipped          bool         // true when the duplicate guard short-circuited
	ExistingStatus   store.Status // status that caused the skip
	TranscriptLength int
	Stats            Stats
	Timings          Timings
}

// Deps are the injected collaborators of the orchestrator.
type Deps struct {
	Objects     storage.ObjectStore
	Jobs        store.JobStore
	Transcriber transcriber.Transcriber
	Notifier    notify.Notifier
}

// Orchestrator sequences compression, chunking, parallel transcription and
// merging for one job, managing the job's status transitions throughout.
type Orchestrator struct {
	cfg        config.Config
	objects    storage.ObjectStore
	jobs       store.JobStore
	notifier   notify.Notifier
	compressor *audio.Compressor
	chunker    *audio.Chunker
	dispatcher *Dispatcher
	merger     *Merger
	logger     *logrus.Entry
}

// NewOrchestrator wires the pipeline stages from configuration and injected
// collaborators.
func NewOrchestrator(cfg config.Config, deps Deps) *Orchestrator {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	return &Orchestrator{
		cfg:        cfg,
		objects:    deps.Objects,
		jobs:       deps.Jobs,
		notifier:   notifier,
		compressor: audio.NewCompressor(),
		chunker:    audio.NewChunker(cfg.ChunkDuration, cfg.ChunkOverlap, cfg.MinChunkDuration, cfg.MaxChunks),
		dispatcher: NewDispatcher(deps.Transcriber, cfg.MaxWorkers, cfg.WhisperSizeLimit),
		merger:     NewMerger(),
		logger:     logrus.WithField("component", "orchestrator"),
	}
}

// Process runs the pipeline end to end for one request. Any error returned
// has already been recorded on the job record; temp files are removed on
// every exit path.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*Result, error) {
	log := o.logger.WithFields(logrus.Fields{
		"video_id": req.VideoID,
		"bucket":   req.Bucket,
		"key":      req.Key,
	})

	// Duplicate-trigger guard. A read failure here is logged and ignored:
	// reprocessing is preferable to dropping the job.
	status, err := o.jobs.GetStatus(ctx, req.VideoID)
	if err != nil {
		log.WithError(err).Warn("Could not check existing job status")
	} else if status == store.StatusInProgress || status == store.StatusCompleted {
		log.WithField("status", status).Info("Job already processed, skipping duplicate trigger")
		return &Result{Skipped: true, ExistingStatus: status}, nil
	}

	o.setStatus(ctx, req.VideoID, store.StatusInProgress, "")

	size, err := o.objects.Head(ctx, req.Bucket, req.Key)
	if err != nil {
		return o.fail(ctx, req, log, fmt.Errorf("fetching asset metadata: %w", err))
	}
	if size > o.cfg.MaxDownloadBytes {
		return o.fail(ctx, req, log, fmt.Errorf("asset is %d bytes, ceiling is %d: %w",
			size, o.cfg.MaxDownloadBytes, ErrAssetTooLarge))
	}

	runDir := filepath.Join(o.cfg.TempDir, "transcribe-"+uuid.NewString())
	if err := os.MkdirAll(runDir, 0o750); err != nil {
		return o.fail(ctx, req, log, fmt.Errorf("creating temp dir: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(runDir); err != nil {
			log.WithError(err).Warn("Could not remove temp dir")
		}
	}()

	var timings Timings
	var stats Stats

	localPath := filepath.Join(runDir, filepath.Base(req.Key))
	downloadStart := time.Now()
	if err := o.objects.Download(ctx, req.Bucket, req.Key, localPath); err != nil {
		return o.fail(ctx, req, log, fmt.Errorf("downloading asset: %w", err))
	}
	timings.Download = time.Since(downloadStart)

	processing := localPath
	if size > o.cfg.WhisperSizeLimit {
		compressStart := time.Now()
		res := o.compressor.Compress(ctx, localPath, o.cfg.CompressionTarget)
		timings.Compression = time.Since(compressStart)

		switch res.Outcome {
		case audio.Compressed:
			processing = res.Path
			stats.Compressed = true
		case audio.CompressionFailed:
			log.WithField("reason", res.Reason).Warn("Compression degraded, continuing with original asset")
		}
	}

	chunkStart := time.Now()
	split := o.chunker.Split(ctx, processing, runDir)
	timings.Chunking = time.Since(chunkStart)
	stats.TotalChunks = len(split.Chunks)
	stats.Chunked = split.Mode == audio.ModeChunked
	stats.Workers = o.cfg.MaxWorkers

	// In single-chunk mode the whole asset goes to the API as one file; if
	// it still exceeds the ceiling there is nothing left to degrade to.
	if split.Mode != audio.ModeChunked && len(split.Chunks) == 1 &&
		split.Chunks[0].SizeBytes > o.cfg.WhisperSizeLimit {
		return o.fail(ctx, req, log, fmt.Errorf("unchunkable asset is %d bytes, API limit is %d: %w",
			split.Chunks[0].SizeBytes, o.cfg.WhisperSizeLimit, ErrAssetTooLarge))
	}

	transcribeStart := time.Now()
	results := o.dispatcher.Transcribe(ctx, split.Chunks)
	timings.Transcription = time.Since(transcribeStart)

	for _, r := range results {
		if r.OK {
			stats.SuccessfulChunks++
		}
	}
	if stats.SuccessfulChunks == 0 {
		return o.fail(ctx, req, log, fmt.Errorf("%w: %d chunks attempted", ErrTranscriptionFailed, len(results)))
	}

	mergeStart := time.Now()
	transcript := o.merger.Merge(results)
	timings.Merging = time.Since(mergeStart)

	if err := o.jobs.UpsertTranscript(ctx, req.VideoID, transcript); err != nil {
		return o.fail(ctx, req, log, fmt.Errorf("saving transcript: %w", err))
	}

	if o.notifier.Configured() {
		payload := notify.NotePayload{
			VideoID:       req.VideoID,
			UserID:        req.UserID,
			RawTranscript: transcript,
			NoteFormat:    req.NoteFormat,
		}
		if err := o.notifier.NotifyNoteGeneration(ctx, payload); err != nil {
			return o.fail(ctx, req, log, fmt.Errorf("%w: %v", ErrNoteDispatchFailed, err))
		}
	} else {
		log.Info("Note generation not configured, skipping hand-off")
	}

	o.setStatus(ctx, req.VideoID, store.StatusCompleted, "")

	log.WithFields(logrus.Fields{
		"transcript_length": len(transcript),
		"chunks":            stats.TotalChunks,
		"successful":        stats.SuccessfulChunks,
		"total_time":        timings.Total(),
	}).Info("Transcription pipeline complete")

	return &Result{
		TranscriptLength: len(transcript),
		Stats:            stats,
		Timings:          timings,
	}, nil
}

// fail records the failure on the job record and returns the original error.
func (o *Orchestrator) fail(ctx context.Context, req Request, log *logrus.Entry, err error) (*Result, error) {
	log.WithError(err).Error("Transcription pipeline failed")
	o.setStatus(ctx, req.VideoID, store.StatusFailed, err.Error())
	return nil, err
}

// setStatus is best-effort: a status-update failure is logged and discarded
// so it can never mask the error that actually failed the run.
func (o *Orchestrator) setStatus(ctx context.Context, videoID string, status store.Status, errorMessage string) {
	if err := o.jobs.SetStatus(ctx, videoID, status, errorMessage); err != nil {
		o.logger.WithError(err).WithFields(logrus.Fields{
			"video_id": videoID,
			"status":   status,
		}).Warn("Could not update job status")
	}
}

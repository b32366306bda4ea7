package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lecturenotes/transcriber/internal/audio"
	"github.com/lecturenotes/transcriber/pkg/transcriber"
	"github.com/sirupsen/logrus"
)

// ChunkResult is the outcome of transcribing one chunk. Failures are values,
// not errors: a failed chunk carries placeholder text so the merger can mark
// the gap in the final transcript instead of aborting the run.
type ChunkResult struct {
	Index        int
	OK           bool
	Text         string
	StartSeconds float64
	EndSeconds   float64
	ErrorDetail  string
	Elapsed      time.Duration
}

// Dispatcher fans transcription out over a bounded worker pool and fans the
// results back in, one result per chunk, in chunk-index order.
type Dispatcher struct {
	workers   int
	sizeLimit int64
	trans     transcriber.Transcriber
	logger    *logrus.Entry
}

// NewDispatcher creates a dispatcher. workers bounds concurrent API calls;
// sizeLimit is the per-file ceiling the transcription API enforces.
func NewDispatcher(trans transcriber.Transcriber, workers int, sizeLimit int64) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		workers:   workers,
		sizeLimit: sizeLimit,
		trans:     trans,
		logger:    logrus.WithField("component", "dispatcher"),
	}
}

// Transcribe runs every chunk through the transcriber with at most the
// configured number of calls in flight. The returned slice always has one
// entry per chunk: individual failures, including panics escaping the
// transcriber, become failed results and never cancel sibling chunks.
func (d *Dispatcher) Transcribe(ctx context.Context, chunks []audio.Chunk) []ChunkResult {
	if len(chunks) == 0 {
		return nil
	}

	workers := d.workers
	if workers > len(chunks) {
		workers = len(chunks)
	}

	d.logger.WithFields(logrus.Fields{
		"chunks":  len(chunks),
		"workers": workers,
	}).Info("Starting parallel transcription")

	results := make([]ChunkResult, len(chunks))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = d.transcribeChunk(ctx, chunks[i], i+1, len(chunks))
			}
		}()
	}

	for i := range chunks {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	// Results land at their submission index already, but chunk indices are
	// the contract downstream relies on.
	sort.SliceStable(results, func(a, b int) bool { return results[a].Index < results[b].Index })

	successful := 0
	for _, r := range results {
		if r.OK {
			successful++
		}
	}
	d.logger.WithFields(logrus.Fields{
		"successful": successful,
		"total":      len(chunks),
	}).Info("Parallel transcription complete")

	return results
}

// transcribeChunk never lets a failure escape: oversize chunks, API errors,
// and panics all come back as a failed ChunkResult.
func (d *Dispatcher) transcribeChunk(ctx context.Context, chunk audio.Chunk, n, total int) (res ChunkResult) {
	res = ChunkResult{
		Index:        chunk.Index,
		StartSeconds: chunk.StartSeconds,
		EndSeconds:   chunk.EndSeconds,
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.WithField("chunk", n).Errorf("Transcription panicked: %v", r)
			res.OK = false
			res.Text = fmt.Sprintf("[Transcription failed for chunk %d]", n)
			res.ErrorDetail = fmt.Sprintf("panic: %v", r)
		}
	}()

	if chunk.SizeBytes > d.sizeLimit {
		d.logger.WithFields(logrus.Fields{
			"chunk":      n,
			"size_bytes": chunk.SizeBytes,
			"limit":      d.sizeLimit,
		}).Warn("Chunk exceeds transcription API size limit")
		res.Text = fmt.Sprintf("[Chunk %d too large to transcribe]", n)
		res.ErrorDetail = fmt.Sprintf("file size %d exceeds %d byte limit", chunk.SizeBytes, d.sizeLimit)
		return res
	}

	d.logger.WithFields(logrus.Fields{
		"chunk": n,
		"total": total,
		"start": chunk.StartSeconds,
		"end":   chunk.EndSeconds,
	}).Debug("Transcribing chunk")

	start := time.Now()
	text, err := d.trans.Transcribe(ctx, chunk.Path)
	res.Elapsed = time.Since(start)

	if err != nil {
		d.logger.WithError(err).WithField("chunk", n).Warn("Chunk transcription failed")
		res.Text = fmt.Sprintf("[Error transcribing chunk %d: %v]", n, err)
		res.ErrorDetail = err.Error()
		return res
	}

	d.logger.WithFields(logrus.Fields{
		"chunk":      n,
		"elapsed":    res.Elapsed,
		"characters": len(text),
	}).Info("Chunk transcribed")

	res.OK = true
	res.Text = text
	return res
}

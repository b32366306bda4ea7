package audio

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Chunk is a time-bounded slice of an audio asset. Consecutive chunks
// overlap by the configured overlap duration so the merger can stitch the
// transcripts back together without losing words cut at a boundary.
type Chunk struct {
	Index           int
	Path            string
	StartSeconds    float64
	EndSeconds      float64
	DurationSeconds float64
	SizeBytes       int64
}

// SplitMode records how the chunker handled an asset.
type SplitMode int

const (
	// ModeChunked is the normal sliding-window split.
	ModeChunked SplitMode = iota
	// ModeSingle means the asset was short enough to transcribe whole.
	ModeSingle
	// ModeFallback means the toolchain could not introspect or slice the
	// asset and the whole file is passed through as one chunk.
	ModeFallback
)

// SplitResult carries the chunks plus how they were produced.
type SplitResult struct {
	Chunks        []Chunk
	Mode          SplitMode
	TotalDuration float64
}

// Chunker splits audio into fixed-duration overlapping segments.
type Chunker struct {
	chunkDuration time.Duration
	overlap       time.Duration
	minDuration   time.Duration
	maxChunks     int
	logger        *logrus.Entry
}

// NewChunker creates a chunker. An overlap that is not strictly smaller than
// the chunk duration would stall the sliding window, so it is disabled with
// a warning.
func NewChunker(chunkDuration, overlap, minDuration time.Duration, maxChunks int) *Chunker {
	logger := logrus.WithField("component", "chunker")
	if overlap >= chunkDuration {
		logger.WithFields(logrus.Fields{
			"chunk_duration": chunkDuration,
			"overlap":        overlap,
		}).Warn("Overlap must be smaller than chunk duration, disabling overlap")
		overlap = 0
	}
	return &Chunker{
		chunkDuration: chunkDuration,
		overlap:       overlap,
		minDuration:   minDuration,
		maxChunks:     maxChunks,
		logger:        logger,
	}
}

// Split divides the asset at path into overlapping chunks written under
// destDir. It never fails outright: when the audio toolchain is unavailable
// or the asset cannot be parsed, the whole file is returned as a single
// fallback chunk and the caller decides whether it is still processable.
func (c *Chunker) Split(ctx context.Context, path, destDir string) SplitResult {
	total, err := probeDuration(ctx, path)
	if err != nil {
		c.logger.WithError(err).Warn("Could not determine audio duration, falling back to single chunk")
		return SplitResult{Chunks: []Chunk{c.wholeFileChunk(path, 0)}, Mode: ModeFallback}
	}

	// Short inputs are not worth the fan-out overhead.
	if total < 1.5*c.chunkDuration.Seconds() {
		c.logger.WithField("duration_seconds", total).Debug("Audio below chunking threshold, transcribing whole")
		return SplitResult{
			Chunks:        []Chunk{c.wholeFileChunk(path, total)},
			Mode:          ModeSingle,
			TotalDuration: total,
		}
	}

	windows := planWindows(total, c.chunkDuration.Seconds(), c.overlap.Seconds(), c.minDuration.Seconds(), c.maxChunks)
	if len(windows) == c.maxChunks {
		c.logger.WithField("max_chunks", c.maxChunks).Warn("Maximum chunk limit reached, trailing audio not chunked")
	}

	chunks := make([]Chunk, 0, len(windows))
	for i, w := range windows {
		chunkPath := filepath.Join(destDir, fmt.Sprintf("chunk_%03d.mp3", i))
		if err := c.slice(ctx, path, chunkPath, w); err != nil {
			c.logger.WithError(err).WithField("chunk", i).Warn("Chunk extraction failed, falling back to single chunk")
			removeChunkFiles(chunks)
			return SplitResult{
				Chunks:        []Chunk{c.wholeFileChunk(path, total)},
				Mode:          ModeFallback,
				TotalDuration: total,
			}
		}
		chunks = append(chunks, Chunk{
			Index:           i,
			Path:            chunkPath,
			StartSeconds:    w.start,
			EndSeconds:      w.end,
			DurationSeconds: w.end - w.start,
			SizeBytes:       fileSize(chunkPath),
		})
	}

	c.logger.WithFields(logrus.Fields{
		"chunks":           len(chunks),
		"duration_seconds": total,
		"overlap":          c.overlap,
	}).Info("Audio chunked for parallel transcription")

	return SplitResult{Chunks: chunks, Mode: ModeChunked, TotalDuration: total}
}

type window struct {
	start, end float64
}

// planWindows lays out the sliding window over [0, total): each window spans
// chunkSec seconds, the next one starts overlapSec before the previous one
// ends, and the final window is clipped to the end of the asset. A trailing
// window shorter than minSec is dropped. maxChunks bounds pathological
// inputs.
func planWindows(total, chunkSec, overlapSec, minSec float64, maxChunks int) []window {
	var windows []window
	start := 0.0
	for start < total && len(windows) < maxChunks {
		end := math.Min(start+chunkSec, total)
		if end-start < minSec {
			break
		}
		windows = append(windows, window{start: start, end: end})
		if end >= total {
			break
		}
		next := end - overlapSec
		if next <= start {
			break
		}
		start = next
	}
	return windows
}

// slice extracts one window into its own file, re-encoded mono 16 kHz for
// the transcription model.
func (c *Chunker) slice(ctx context.Context, src, dest string, w window) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-ss", fmt.Sprintf("%.3f", w.start),
		"-t", fmt.Sprintf("%.3f", w.end-w.start),
		"-i", src,
		"-ac", "1",
		"-ar", "16000",
		"-b:a", "64k",
		dest,
	)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg slice [%0.1f, %0.1f): %w", w.start, w.end, err)
	}
	return nil
}

func (c *Chunker) wholeFileChunk(path string, total float64) Chunk {
	return Chunk{
		Index:           0,
		Path:            path,
		StartSeconds:    0,
		EndSeconds:      total,
		DurationSeconds: total,
		SizeBytes:       fileSize(path),
	}
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func removeChunkFiles(chunks []Chunk) {
	for _, ch := range chunks {
		_ = os.Remove(ch.Path)
	}
}

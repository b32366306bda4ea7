package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// CompressionOutcome distinguishes "already small enough" from "re-encoded"
// from "re-encode failed, proceeding with the original".
type CompressionOutcome int

const (
	// Unchanged means the asset was already at or below the target size.
	Unchanged CompressionOutcome = iota
	// Compressed means the asset was re-encoded below the target size.
	Compressed
	// CompressionFailed means re-encoding failed; Path still points at the
	// original so the pipeline can attempt processing anyway.
	CompressionFailed
)

// CompressionResult reports what the compressor did with an asset.
type CompressionResult struct {
	Outcome       CompressionOutcome
	Path          string
	Reason        string // populated on CompressionFailed
	OriginalBytes int64
	FinalBytes    int64
}

// Compressor re-encodes oversized audio down to a target byte budget,
// optimized for speech recognition (mono, 16 kHz).
type Compressor struct {
	logger *logrus.Entry
}

// NewCompressor creates a compression adapter.
func NewCompressor() *Compressor {
	return &Compressor{
		logger: logrus.WithField("component", "compressor"),
	}
}

// Compress shrinks the file at path to at most targetBytes. Failure is never
// fatal: the result carries the original path with Outcome CompressionFailed
// and the pipeline proceeds with the oversized asset.
func (c *Compressor) Compress(ctx context.Context, path string, targetBytes int64) CompressionResult {
	info, err := os.Stat(path)
	if err != nil {
		c.logger.WithError(err).Warn("Could not stat audio file, skipping compression")
		return CompressionResult{Outcome: CompressionFailed, Path: path, Reason: err.Error()}
	}

	size := info.Size()
	if size <= targetBytes {
		c.logger.WithFields(logrus.Fields{
			"size_bytes":   size,
			"target_bytes": targetBytes,
		}).Debug("File already within size limit")
		return CompressionResult{Outcome: Unchanged, Path: path, OriginalBytes: size, FinalBytes: size}
	}

	ratio := float64(targetBytes) / float64(size)
	bitrate := bitrateForRatio(ratio)
	out := compressedPath(path)

	c.logger.WithFields(logrus.Fields{
		"size_bytes": size,
		"ratio":      fmt.Sprintf("%.2f", ratio),
		"bitrate":    bitrate,
		"output":     out,
	}).Info("Compressing audio for transcription")

	// Mono 16 kHz is what the Whisper model expects; it also halves the
	// size of stereo input before the bitrate reduction even applies.
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y", "-i", path,
		"-ac", "1",
		"-ar", "16000",
		"-b:a", bitrate,
		out,
	)
	if err := cmd.Run(); err != nil {
		c.logger.WithError(err).Warn("Audio compression failed, falling back to original file")
		return CompressionResult{Outcome: CompressionFailed, Path: path, Reason: err.Error(), OriginalBytes: size}
	}

	final, err := os.Stat(out)
	if err != nil {
		c.logger.WithError(err).Warn("Compressed file missing, falling back to original file")
		return CompressionResult{Outcome: CompressionFailed, Path: path, Reason: err.Error(), OriginalBytes: size}
	}

	c.logger.WithFields(logrus.Fields{
		"original_bytes":   size,
		"compressed_bytes": final.Size(),
	}).Info("Audio compression complete")

	return CompressionResult{
		Outcome:       Compressed,
		Path:          out,
		OriginalBytes: size,
		FinalBytes:    final.Size(),
	}
}

// bitrateForRatio picks an MP3 bitrate tier from the required compression
// ratio. Tighter targets get more aggressive bitrates.
func bitrateForRatio(ratio float64) string {
	switch {
	case ratio < 0.4:
		return "32k"
	case ratio < 0.6:
		return "48k"
	default:
		return "64k"
	}
}

// compressedPath derives the output path: lecture.wav -> lecture_compressed.mp3.
func compressedPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_compressed.mp3"
}

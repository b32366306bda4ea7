// Command transcribe-local runs the chunked transcription pipeline against a
// local audio file, bypassing S3 and the database. Useful for tuning chunk
// and overlap settings without deploying.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lecturenotes/transcriber/internal/audio"
	"github.com/lecturenotes/transcriber/internal/config"
	"github.com/lecturenotes/transcriber/internal/pipeline"
	"github.com/lecturenotes/transcriber/pkg/transcriber"
	"github.com/sirupsen/logrus"
)

func main() {
	input := flag.String("input", "", "Path to the audio file to transcribe")
	useMock := flag.Bool("mock", false, "Use the mock transcriber instead of the Whisper API")
	chunkMinutes := flag.Int("chunk-minutes", 8, "Chunk duration in minutes")
	overlapSeconds := flag.Int("overlap-seconds", 30, "Overlap between chunks in seconds")
	workers := flag.Int("workers", 5, "Concurrent transcription calls")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if *input == "" {
		logrus.Fatal("An input file is required. Use -input")
	}
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Debug("No .env file loaded, using environment variables")
	}

	cfg := config.Default()
	cfg.ChunkDuration = time.Duration(*chunkMinutes) * time.Minute
	cfg.ChunkOverlap = time.Duration(*overlapSeconds) * time.Second
	cfg.MaxWorkers = *workers

	var trans transcriber.Transcriber
	if *useMock {
		trans = &transcriber.MockTranscriber{}
		logrus.Info("Using mock transcriber")
	} else {
		var err error
		trans, err = transcriber.NewOpenAITranscriber(os.Getenv("OPENAI_API_KEY"))
		if err != nil {
			logrus.WithError(err).Fatal("Failed to initialize Whisper transcriber")
		}
	}
	defer func() {
		if err := trans.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close transcriber")
		}
	}()

	runDir, err := os.MkdirTemp(cfg.TempDir, "transcribe-local-")
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create temp dir")
	}
	defer func() {
		if err := os.RemoveAll(runDir); err != nil {
			logrus.WithError(err).Warn("Could not remove temp dir")
		}
	}()

	ctx := context.Background()

	compressor := audio.NewCompressor()
	processing := *input
	if res := compressor.Compress(ctx, *input, cfg.CompressionTarget); res.Outcome == audio.Compressed {
		processing = res.Path
		defer func() {
			if err := os.Remove(res.Path); err != nil {
				logrus.WithError(err).Warn("Could not remove compressed file")
			}
		}()
	}

	chunker := audio.NewChunker(cfg.ChunkDuration, cfg.ChunkOverlap, cfg.MinChunkDuration, cfg.MaxChunks)
	split := chunker.Split(ctx, processing, runDir)
	logrus.WithFields(logrus.Fields{
		"chunks":           len(split.Chunks),
		"duration_seconds": split.TotalDuration,
	}).Info("Audio prepared")

	dispatcher := pipeline.NewDispatcher(trans, cfg.MaxWorkers, cfg.WhisperSizeLimit)
	results := dispatcher.Transcribe(ctx, split.Chunks)

	transcript := pipeline.NewMerger().Merge(results)
	fmt.Println(transcript)
}

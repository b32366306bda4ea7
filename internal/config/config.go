package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const megabyte = 1024 * 1024

// Config holds all tunables for the transcription pipeline.
type Config struct {
	// Chunking
	ChunkDuration    time.Duration // target duration per audio chunk
	ChunkOverlap     time.Duration // overlap between consecutive chunks
	MinChunkDuration time.Duration // trailing chunks shorter than this are dropped
	MaxChunks        int           // hard cap on fan-out

	// Transcription
	MaxWorkers       int   // concurrent transcription calls
	WhisperSizeLimit int64 // per-file ceiling enforced by the Whisper API

	// Compression
	CompressionTarget int64 // target size when re-encoding oversized assets

	// Intake
	MaxDownloadBytes int64  // assets larger than this are rejected outright
	TempDir          string // scratch space for downloads and chunk files

	// Collaborators
	OpenAIKey             string
	DatabaseDSN           string
	NoteGeneratorFunction string // downstream Lambda name; empty disables the hand-off
	AWSRegion             string
}

// Default returns the configuration matching the production deployment.
func Default() Config {
	return Config{
		ChunkDuration:     8 * time.Minute,
		ChunkOverlap:      30 * time.Second,
		MinChunkDuration:  10 * time.Second,
		MaxChunks:         50,
		MaxWorkers:        5,
		WhisperSizeLimit:  25 * megabyte,
		CompressionTarget: 20 * megabyte,
		MaxDownloadBytes:  400 * megabyte,
		TempDir:           os.TempDir(),
	}
}

// FromEnv loads configuration from the environment, starting from defaults.
// A .env file is honored when present. Invalid numeric values fall back to
// the default with a warning rather than failing startup.
func FromEnv() Config {
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Debug("No .env file loaded, using environment variables")
	}

	cfg := Default()

	cfg.ChunkDuration = envMinutes("CHUNK_DURATION_MINUTES", cfg.ChunkDuration)
	cfg.ChunkOverlap = envSeconds("CHUNK_OVERLAP_SECONDS", cfg.ChunkOverlap)
	cfg.MaxWorkers = envInt("MAX_PARALLEL_WORKERS", cfg.MaxWorkers)
	cfg.MaxChunks = envInt("MAX_CHUNKS", cfg.MaxChunks)
	cfg.CompressionTarget = envMegabytes("COMPRESSION_TARGET_MB", cfg.CompressionTarget)

	if dir := os.Getenv("TRANSCRIBE_TEMP_DIR"); dir != "" {
		cfg.TempDir = dir
	}
	cfg.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	cfg.DatabaseDSN = os.Getenv("DATABASE_DSN")
	cfg.NoteGeneratorFunction = os.Getenv("NOTE_GENERATOR_LAMBDA_ARN")
	cfg.AWSRegion = os.Getenv("AWS_REGION")

	return cfg
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		logrus.WithFields(logrus.Fields{"key": key, "value": raw}).Warn("Invalid integer in environment, using default")
		return fallback
	}
	return v
}

func envSeconds(key string, fallback time.Duration) time.Duration {
	v := envInt(key, int(fallback/time.Second))
	return time.Duration(v) * time.Second
}

func envMinutes(key string, fallback time.Duration) time.Duration {
	v := envInt(key, int(fallback/time.Minute))
	return time.Duration(v) * time.Minute
}

func envMegabytes(key string, fallback int64) int64 {
	v := envInt(key, int(fallback/megabyte))
	return int64(v) * megabyte
}

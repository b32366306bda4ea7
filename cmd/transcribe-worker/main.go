package main

import (
	"context"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/lecturenotes/transcriber/internal/config"
	"github.com/lecturenotes/transcriber/internal/handler"
	"github.com/lecturenotes/transcriber/internal/notify"
	"github.com/lecturenotes/transcriber/internal/pipeline"
	"github.com/lecturenotes/transcriber/internal/storage"
	"github.com/lecturenotes/transcriber/internal/store"
	"github.com/lecturenotes/transcriber/pkg/transcriber"
	"github.com/sirupsen/logrus"
)

func main() {
	configureLogging()

	cfg := config.FromEnv()

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load AWS configuration")
	}

	jobs, err := store.Open(cfg.DatabaseDSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	trans, err := transcriber.NewOpenAITranscriber(cfg.OpenAIKey)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize Whisper transcriber")
	}

	var notifier notify.Notifier = notify.NewLambdaNotifier(awslambda.NewFromConfig(awsCfg), cfg.NoteGeneratorFunction)
	if !notifier.Configured() {
		logrus.Info("NOTE_GENERATOR_LAMBDA_ARN not set, note generation disabled")
	}

	orch := pipeline.NewOrchestrator(cfg, pipeline.Deps{
		Objects:     storage.NewS3Store(s3.NewFromConfig(awsCfg)),
		Jobs:        jobs,
		Transcriber: trans,
		Notifier:    notifier,
	})

	h := handler.New(orch, jobs)
	logrus.WithFields(logrus.Fields{
		"workers":        cfg.MaxWorkers,
		"chunk_duration": cfg.ChunkDuration,
		"overlap":        cfg.ChunkOverlap,
	}).Info("Transcription worker ready")

	lambda.Start(h.Handle)
}

func configureLogging() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
}

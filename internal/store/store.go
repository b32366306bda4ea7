package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Status is the transcription lifecycle state of a video job.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Video is the job record owning a transcription run.
type Video struct {
	ID                  string `gorm:"primaryKey"`
	TranscriptionStatus Status `gorm:"type:text"`
	ErrorMessage        string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TableName maps Video onto the existing videos table.
func (Video) TableName() string { return "videos" }

// Transcript is the merged transcript for one video. At most one row exists
// per video at any time.
type Transcript struct {
	ID        uint   `gorm:"primaryKey"`
	VideoID   string `gorm:"uniqueIndex"`
	Content   string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName maps Transcript onto the existing transcripts table.
func (Transcript) TableName() string { return "transcripts" }

// JobStore persists job status and transcripts.
type JobStore interface {
	// GetStatus returns the current transcription status for a video.
	// Unknown videos report StatusNotStarted.
	GetStatus(ctx context.Context, videoID string) (Status, error)

	// SetStatus records the transcription status, with an optional error
	// message for failed runs.
	SetStatus(ctx context.Context, videoID string, status Status, errorMessage string) error

	// UpsertTranscript writes the transcript for a video, overwriting any
	// transcript from a prior attempt.
	UpsertTranscript(ctx context.Context, videoID, content string) error
}

// GormStore is the relational JobStore implementation.
type GormStore struct {
	db     *gorm.DB
	logger *logrus.Entry
}

// Open connects to Postgres and returns a ready store.
func Open(dsn string) (*GormStore, error) {
	if dsn == "" {
		return nil, errors.New("database dsn is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return NewGormStore(db), nil
}

// NewGormStore wraps an existing gorm connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:     db,
		logger: logrus.WithField("component", "store"),
	}
}

// GetStatus implements JobStore.
func (s *GormStore) GetStatus(ctx context.Context, videoID string) (Status, error) {
	var video Video
	err := s.db.WithContext(ctx).Select("id", "transcription_status").First(&video, "id = ?", videoID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return StatusNotStarted, nil
	}
	if err != nil {
		return StatusNotStarted, fmt.Errorf("reading video status: %w", err)
	}
	if video.TranscriptionStatus == "" {
		return StatusNotStarted, nil
	}
	return video.TranscriptionStatus, nil
}

// SetStatus implements JobStore. The video row is created when absent so a
// status is never silently lost for a job that was triggered before its
// record existed.
func (s *GormStore) SetStatus(ctx context.Context, videoID string, status Status, errorMessage string) error {
	updates := map[string]any{
		"transcription_status": status,
		"error_message":        errorMessage,
	}
	res := s.db.WithContext(ctx).Model(&Video{}).Where("id = ?", videoID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("updating video status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		video := Video{ID: videoID, TranscriptionStatus: status, ErrorMessage: errorMessage}
		if err := s.db.WithContext(ctx).Create(&video).Error; err != nil {
			return fmt.Errorf("creating video status record: %w", err)
		}
	}
	return nil
}

// UpsertTranscript implements JobStore with read-then-write semantics:
// update the existing row when present, insert otherwise.
func (s *GormStore) UpsertTranscript(ctx context.Context, videoID, content string) error {
	var existing Transcript
	err := s.db.WithContext(ctx).First(&existing, "video_id = ?", videoID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		s.logger.WithField("video_id", videoID).Debug("Inserting new transcript")
		transcript := Transcript{VideoID: videoID, Content: content}
		if err := s.db.WithContext(ctx).Create(&transcript).Error; err != nil {
			return fmt.Errorf("inserting transcript: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("reading existing transcript: %w", err)
	default:
		s.logger.WithField("video_id", videoID).Debug("Updating existing transcript")
		if err := s.db.WithContext(ctx).Model(&existing).Update("content", content).Error; err != nil {
			return fmt.Errorf("updating transcript: %w", err)
		}
		return nil
	}
}

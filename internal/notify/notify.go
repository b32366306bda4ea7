package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/sirupsen/logrus"
)

// NotePayload is handed to the note-generation stage.
type NotePayload struct {
	VideoID       string `json:"videoId"`
	UserID        string `json:"userId"`
	RawTranscript string `json:"rawTranscript"`
	NoteFormat    string `json:"noteFormat"`
}

// Notifier triggers the downstream note-generation stage. The dispatch is
// fire-and-forget: the pipeline never waits for the notes themselves.
type Notifier interface {
	// Configured reports whether a downstream stage is wired up at all.
	Configured() bool

	// NotifyNoteGeneration asynchronously invokes the downstream stage.
	NotifyNoteGeneration(ctx context.Context, payload NotePayload) error
}

// LambdaNotifier invokes the note-generation Lambda with the Event
// invocation type, which returns as soon as the platform accepts the event.
type LambdaNotifier struct {
	client       *awslambda.Client
	functionName string
	logger       *logrus.Entry
}

// NewLambdaNotifier creates a notifier for the named function. An empty
// function name yields an unconfigured notifier.
func NewLambdaNotifier(client *awslambda.Client, functionName string) *LambdaNotifier {
	return &LambdaNotifier{
		client:       client,
		functionName: functionName,
		logger:       logrus.WithField("component", "notifier"),
	}
}

// Configured implements Notifier.
func (n *LambdaNotifier) Configured() bool {
	return n.functionName != ""
}

// NotifyNoteGeneration implements Notifier.
func (n *LambdaNotifier) NotifyNoteGeneration(ctx context.Context, payload NotePayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding note generation payload: %w", err)
	}

	out, err := n.client.Invoke(ctx, &awslambda.InvokeInput{
		FunctionName:   aws.String(n.functionName),
		InvocationType: types.InvocationTypeEvent,
		Payload:        body,
	})
	if err != nil {
		return fmt.Errorf("invoking note generation function: %w", err)
	}

	n.logger.WithFields(logrus.Fields{
		"video_id":    payload.VideoID,
		"function":    n.functionName,
		"status_code": out.StatusCode,
	}).Info("Note generation dispatched")
	return nil
}

// NoopNotifier is used when no downstream stage exists; the pipeline still
// completes normally.
type NoopNotifier struct{}

// Configured implements Notifier.
func (NoopNotifier) Configured() bool { return false }

// NotifyNoteGeneration implements Notifier.
func (NoopNotifier) NotifyNoteGeneration(context.Context, NotePayload) error { return nil }

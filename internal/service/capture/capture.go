package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kiosk/internal/backend"
	"kiosk/internal/logger"
	"kiosk/internal/model"
	"kiosk/internal/service/notify"
	"kiosk/internal/task"
)

type FrameSource interface {
	Snapshot() (model.Frame, error)
}

type Encoder interface {
	Encode(frame model.Frame) (model.FrameSample, error)
}

type Submitter interface {
	Capture(ctx context.Context, sample model.FrameSample, shift string) (*backend.CheckIn, error)
}

// Journal records check-in outcomes.
type Journal interface {
	Record(event model.Event)
}

// Loop periodically snapshots the camera and submits the frame for check-in.
type Loop struct {
	source    FrameSource
	encoder   Encoder
	submitter Submitter
	notifier  *notify.Notifier
	journal   Journal
	interval  time.Duration
	logger    *logger.Logger
}

// NewLoop creates a capture loop. journal may be nil.
func NewLoop(source FrameSource, encoder Encoder, submitter Submitter, notifier *notify.Notifier, journal Journal, interval time.Duration, logger *logger.Logger) *Loop {
	return &Loop{
		source:    source,
		encoder:   encoder,
		submitter: submitter,
		notifier:  notifier,
		journal:   journal,
		interval:  interval,
		logger:    logger,
	}
}

// Start runs the loop for shift. Ticks that fire while a submission is still
// outstanding are dropped.
func (l *Loop) Start(ctx context.Context, shift, sessionID string) *task.Task {
	return task.Every(ctx, "capture", l.interval, func(ctx context.Context) {
		l.Tick(ctx, shift, sessionID)
	})
}

// Tick captures and submits one frame.
func (l *Loop) Tick(ctx context.Context, shift, sessionID string) {
	frame, err := l.source.Snapshot()
	if err != nil {
		l.logger.Warning("Capture skipped: %v", err)
		return
	}

	sample, err := l.encoder.Encode(frame)
	if err != nil {
		l.logger.Error("Failed to encode frame: %v", err)
		return
	}

	result, err := l.submitter.Capture(ctx, sample, shift)
	if ctx.Err() != nil {
		return
	}

	var rejection *backend.RejectionError
	switch {
	case err == nil:
		msg := fmt.Sprintf("Checked in: %s (%s)", result.Student, result.Shift)
		l.notifier.Toast(notify.LevelSuccess, msg)
		l.record(model.Event{Kind: model.EventCheckIn, Message: msg, Student: result.Student, Shift: result.Shift, SessionID: sessionID})

	case errors.Is(err, backend.ErrNoSubject):
		// Expected while nobody is in front of the camera.

	case errors.As(err, &rejection):
		l.notifier.Toast(notify.LevelError, rejection.Message)
		l.record(model.Event{Kind: model.EventRejected, Message: rejection.Message, Shift: shift, SessionID: sessionID})

	default:
		l.logger.Warning("Capture submission failed: %v", err)
	}
}

func (l *Loop) record(event model.Event) {
	if l.journal == nil {
		return
	}
	event.Timestamp = time.Now()
	l.journal.Record(event)
}

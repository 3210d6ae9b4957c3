package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"kiosk/internal/camera"
	"kiosk/internal/logger"
	"kiosk/internal/model"
	"kiosk/internal/service/capture"
	"kiosk/internal/service/notify"
	"kiosk/internal/service/overlay"
	"kiosk/internal/service/prediction"
	"kiosk/internal/task"
)

// ErrShiftRequired is returned when a session is started without a shift.
var ErrShiftRequired = errors.New("shift is required")

// Status messages shown on the kiosk.
const (
	MsgCameraStarted = "Camera Started"
	MsgCameraStopped = "Camera Stopped"
	MsgCameraDenied  = "Could not access camera"
	MsgShiftRequired = "Please select a Shift first!"
)

// Viewer event types sent by the manager.
const (
	EventSession    = "session"
	EventPrediction = "prediction"
)

// Broadcaster delivers typed events to viewers.
type Broadcaster interface {
	Send(eventType string, payload interface{})
}

// Components are the parts a Kiosk drives. Any loop may be nil to disable it.
type Components struct {
	Session  *camera.Session
	Capture  *capture.Loop
	Poller   *prediction.Poller
	Overlay  *overlay.Loop
	Renderer overlay.Renderer
	Labels   *prediction.State
	Notifier *notify.Notifier
	Journal  capture.Journal
	Hub      Broadcaster
}

// Status is a snapshot of the kiosk for the API.
type Status struct {
	State      string            `json:"state"`
	Shift      string            `json:"shift,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
	StartedAt  *time.Time        `json:"started_at,omitempty"`
	Prediction *prediction.Label `json:"prediction,omitempty"`
	Loops      []task.Stats      `json:"loops"`
}

// Kiosk starts and stops the camera together with every loop that uses it.
type Kiosk struct {
	c      Components
	logger *logger.Logger

	mu        sync.Mutex
	group     task.Group
	running   bool
	shift     string
	startedAt time.Time
}

// NewKiosk wires the components. The poller's label changes are forwarded
// to viewers.
func NewKiosk(c Components, logger *logger.Logger) *Kiosk {
	if c.Labels == nil {
		c.Labels = &prediction.State{}
	}
	k := &Kiosk{c: c, logger: logger}

	if c.Poller != nil && c.Hub != nil {
		c.Poller.OnChange(func(l prediction.Label) {
			c.Hub.Send(EventPrediction, l)
		})
	}
	return k
}

// Start opens the camera and runs the enabled loops for shift. Starting a
// running kiosk is a no-op.
func (k *Kiosk) Start(ctx context.Context, shift string) error {
	shift = strings.TrimSpace(shift)
	if shift == "" {
		k.c.Notifier.Status(notify.LevelError, MsgShiftRequired)
		return ErrShiftRequired
	}

	k.mu.Lock()
	running := k.running
	k.mu.Unlock()
	if running {
		return nil
	}

	sctx, err := k.c.Session.Start(ctx)
	if err != nil {
		if errors.Is(err, camera.ErrCameraUnavailable) {
			k.c.Notifier.Status(notify.LevelError, MsgCameraDenied)
		}
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	// Stop won the race while the device was opening.
	if sctx.Err() != nil {
		return camera.ErrNotActive
	}
	if k.running {
		return nil
	}

	sessionID := k.c.Session.ID()
	if k.c.Capture != nil {
		k.group.Add(k.c.Capture.Start(sctx, shift, sessionID))
	}
	if k.c.Poller != nil {
		k.group.Add(k.c.Poller.Start(sctx))
	}
	if k.c.Overlay != nil {
		if stream := k.c.Session.Stream(); stream != nil {
			k.group.Add(k.c.Overlay.Start(sctx, stream))
		}
	}

	k.running = true
	k.shift = shift
	k.startedAt = time.Now()
	k.logger.Info("Kiosk started for shift %s with %d loop(s)", shift, k.group.Len())

	k.c.Notifier.Status(notify.LevelSuccess, MsgCameraStarted)
	k.record(MsgCameraStarted, shift, sessionID)
	k.broadcast()
	return nil
}

// Stop cancels every loop, waits for in-flight work, clears the overlay and
// releases the camera. Stopping an idle kiosk is a no-op.
func (k *Kiosk) Stop() {
	k.mu.Lock()
	defer k.mu.Unlock()

	// Also releases a stream that is still opening.
	if !k.running {
		k.c.Session.Stop()
		return
	}

	sessionID := k.c.Session.ID()
	k.group.Stop()
	if k.c.Renderer != nil {
		if err := k.c.Renderer.Clear(); err != nil {
			k.logger.Warning("Failed to clear overlay: %v", err)
		}
	}
	k.c.Session.Stop()
	k.c.Labels.Reset()

	shift := k.shift
	k.running = false
	k.shift = ""
	k.startedAt = time.Time{}
	k.logger.Info("Kiosk stopped")

	k.record(MsgCameraStopped, shift, sessionID)
	k.broadcast()
}

// Status returns the current kiosk state.
func (k *Kiosk) Status() Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.statusLocked()
}

// Running reports whether the loops are active.
func (k *Kiosk) Running() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.running
}

func (k *Kiosk) statusLocked() Status {
	s := Status{
		State:     k.c.Session.State().String(),
		Shift:     k.shift,
		SessionID: k.c.Session.ID(),
		Loops:     k.group.Stats(),
	}
	if k.running {
		at := k.startedAt
		s.StartedAt = &at
	}
	if l, ok := k.c.Labels.Load(); ok {
		s.Prediction = &l
	}
	return s
}

func (k *Kiosk) broadcast() {
	if k.c.Hub != nil {
		k.c.Hub.Send(EventSession, k.statusLocked())
	}
}

func (k *Kiosk) record(msg, shift, sessionID string) {
	if k.c.Journal == nil {
		return
	}
	k.c.Journal.Record(model.Event{
		Kind:      model.EventSession,
		Message:   msg,
		Shift:     shift,
		SessionID: sessionID,
		Timestamp: time.Now(),
	})
}

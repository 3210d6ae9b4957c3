// Package camera owns the lifecycle of the kiosk's video stream.
//
// A Session moves Idle -> Starting -> Active -> Stopping -> Idle. Starting an
// active session is a no-op that returns the running session context;
// stopping an idle session is a no-op. A Stop that lands while the device is
// still opening releases the stream as soon as it arrives, so no stream
// outlives the session that asked for it.
package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"kiosk/internal/logger"
	"kiosk/internal/model"

	"github.com/google/uuid"
)

var (
	// ErrCameraUnavailable is returned when the device is denied or absent.
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrNotActive is returned when a frame is requested from an idle session.
	ErrNotActive = errors.New("camera session is not active")
	// ErrSessionBusy is returned when Start is called while another Start is pending.
	ErrSessionBusy = errors.New("camera session is starting")
	// ErrStreamEnded is returned by streams that can no longer produce frames.
	ErrStreamEnded = errors.New("video stream ended")
)

// Track is one media track of a stream.
type Track interface {
	Stop()
}

// Stream is a live video-only capture.
type Stream interface {
	Tracks() []Track
	ReadFrame() (model.Frame, error)
	Paused() bool
	Ended() bool
}

// Device opens capture streams.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

type State int

const (
	Idle State = iota
	Starting
	Active
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Active:
		return "active"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session holds at most one active stream for one logical video element.
type Session struct {
	device Device
	logger *logger.Logger

	mu          sync.Mutex
	state       State
	stream      Stream
	id          string
	ctx         context.Context
	cancel      context.CancelFunc
	stopPending bool
}

// NewSession creates an idle session for device.
func NewSession(device Device, logger *logger.Logger) *Session {
	return &Session{device: device, logger: logger}
}

// Start opens the device and returns a context that is cancelled by Stop.
// The returned context keeps ctx's values but not its cancellation.
func (s *Session) Start(ctx context.Context) (context.Context, error) {
	s.mu.Lock()
	switch s.state {
	case Active:
		sctx := s.ctx
		s.mu.Unlock()
		return sctx, nil
	case Starting, Stopping:
		s.mu.Unlock()
		return nil, ErrSessionBusy
	}
	s.state = Starting
	s.stopPending = false
	s.mu.Unlock()

	stream, err := s.device.Open(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state = Idle
		if !errors.Is(err, ErrCameraUnavailable) {
			err = fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
		}
		s.logger.Error("Could not access camera: %v", err)
		return nil, err
	}

	if s.stopPending {
		stopTracks(stream)
		s.state = Idle
		s.stopPending = false
		s.logger.Info("Camera released: stop requested while starting")
		return nil, ErrNotActive
	}

	s.stream = stream
	s.id = uuid.NewString()
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.state = Active
	s.logger.Info("Camera session %s started (%d track(s))", s.id, len(stream.Tracks()))

	return s.ctx, nil
}

// Stop halts every track, clears the stream and cancels the session context.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Idle, Stopping:
		return
	case Starting:
		s.stopPending = true
		return
	}

	s.state = Stopping
	s.cancel()
	stopTracks(s.stream)
	s.logger.Info("Camera session %s stopped", s.id)

	s.stream = nil
	s.ctx = nil
	s.cancel = nil
	s.id = ""
	s.state = Idle
}

// Snapshot reads the current frame of the active stream.
func (s *Session) Snapshot() (model.Frame, error) {
	stream := s.Stream()
	if stream == nil {
		return model.Frame{}, ErrNotActive
	}
	return stream.ReadFrame()
}

// Stream returns the attached stream, or nil when the session is not active.
func (s *Session) Stream() Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}

// Context returns the session context, or nil when the session is not active.
func (s *Session) Context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ID returns the identifier of the active session.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Active reports whether a stream is attached.
func (s *Session) Active() bool {
	return s.State() == Active
}

func stopTracks(stream Stream) {
	if stream == nil {
		return
	}
	for _, track := range stream.Tracks() {
		track.Stop()
	}
}

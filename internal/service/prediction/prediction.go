package prediction

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"kiosk/internal/backend"
	"kiosk/internal/logger"
	"kiosk/internal/model"
	"kiosk/internal/task"
)

// Unknown is the label used when the backend finds no confident match.
const Unknown = "Unknown"

// Label is the last known identity and when it was produced.
type Label struct {
	Name string    `json:"name"`
	At   time.Time `json:"at"`
}

// State is a single-slot mailbox: the poller writes, renderers read, and the
// newest value always wins.
type State struct {
	v atomic.Pointer[Label]
}

// Store replaces the current label.
func (s *State) Store(name string, at time.Time) {
	s.v.Store(&Label{Name: name, At: at})
}

// Load returns the current label and whether one has been stored.
func (s *State) Load() (Label, bool) {
	l := s.v.Load()
	if l == nil {
		return Label{}, false
	}
	return *l, true
}

// Reset clears the label.
func (s *State) Reset() {
	s.v.Store(nil)
}

type FrameSource interface {
	Snapshot() (model.Frame, error)
}

type Encoder interface {
	Encode(frame model.Frame) (model.FrameSample, error)
}

type Predictor interface {
	PredictFace(ctx context.Context, sample model.FrameSample) (*backend.Prediction, error)
}

// Poller keeps State in step with the backend's view of who is in frame.
type Poller struct {
	source    FrameSource
	encoder   Encoder
	predictor Predictor
	state     *State
	delay     time.Duration
	logger    *logger.Logger

	onChange func(Label)
}

// NewPoller creates a poller that waits delay after each completed request.
func NewPoller(source FrameSource, encoder Encoder, predictor Predictor, state *State, delay time.Duration, logger *logger.Logger) *Poller {
	return &Poller{
		source:    source,
		encoder:   encoder,
		predictor: predictor,
		state:     state,
		delay:     delay,
		logger:    logger,
	}
}

// OnChange registers a callback invoked when the stored name changes.
func (p *Poller) OnChange(fn func(Label)) {
	p.onChange = fn
}

// Start runs the polling loop until ctx is done or the task is cancelled.
func (p *Poller) Start(ctx context.Context) *task.Task {
	return task.Chain(ctx, "predict", p.delay, p.Poll)
}

// Poll performs one prediction round trip.
func (p *Poller) Poll(ctx context.Context) {
	frame, err := p.source.Snapshot()
	if err != nil {
		p.logger.Warning("Prediction skipped: %v", err)
		return
	}

	sample, err := p.encoder.Encode(frame)
	if err != nil {
		p.logger.Error("Failed to encode frame for prediction: %v", err)
		return
	}

	result, err := p.predictor.PredictFace(ctx, sample)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		// Keep the previous label; a stale name beats flickering.
		if errors.Is(err, backend.ErrTransport) {
			p.logger.Warning("Prediction request failed: %v", err)
		} else {
			p.logger.Info("Prediction rejected: %v", err)
		}
		return
	}

	name := Unknown
	if result.Match && result.Name != "" {
		name = result.Name
	}

	previous, _ := p.state.Load()
	p.state.Store(name, time.Now())

	if previous.Name != name && p.onChange != nil {
		current, _ := p.state.Load()
		p.onChange(current)
	}
}

package overlay

import (
	"context"
	"image"
	"time"

	"kiosk/internal/logger"
	"kiosk/internal/model"
	"kiosk/internal/service/prediction"
	"kiosk/internal/task"
)

// Stream is the part of a video stream the overlay needs.
type Stream interface {
	ReadFrame() (model.Frame, error)
	Paused() bool
	Ended() bool
}

// Detector finds face geometry in a frame. It never assigns identities.
type Detector interface {
	Detect(frame model.Frame) ([]model.Detection, error)
}

// Renderer draws a scene on the viewer canvas. A scene without boxes clears
// previous drawings.
type Renderer interface {
	Render(scene Scene) error
	Clear() error
}

// Box is a detection mapped into canvas coordinates.
type Box struct {
	Rect      image.Rectangle `json:"rect"`
	Landmarks []image.Point   `json:"landmarks,omitempty"`
	Score     float64         `json:"score"`
	Label     string          `json:"label,omitempty"`
}

// Scene is everything drawn for one pass.
type Scene struct {
	Frame    model.Frame
	Canvas   image.Point
	Mirrored bool
	Boxes    []Box
}

// Options control the canvas geometry.
type Options struct {
	Interval time.Duration
	// Display is the on-screen size of the video; zero uses the frame size.
	Display  image.Point
	Mirrored bool
}

// Loop runs local detection and draws boxes labelled from the prediction state.
type Loop struct {
	detector Detector
	renderer Renderer
	labels   *prediction.State
	opts     Options
	logger   *logger.Logger
}

// NewLoop creates an overlay loop.
func NewLoop(detector Detector, renderer Renderer, labels *prediction.State, opts Options, logger *logger.Logger) *Loop {
	return &Loop{detector: detector, renderer: renderer, labels: labels, opts: opts, logger: logger}
}

// Start runs passes over stream until ctx is done or the task is cancelled.
func (l *Loop) Start(ctx context.Context, stream Stream) *task.Task {
	return task.Chain(ctx, "overlay", l.opts.Interval, func(ctx context.Context) {
		l.Pass(ctx, stream)
	})
}

// Pass performs one detection and render pass. It reports whether work was done.
func (l *Loop) Pass(ctx context.Context, stream Stream) bool {
	if stream.Paused() || stream.Ended() {
		return false
	}

	frame, err := stream.ReadFrame()
	if err != nil {
		l.logger.Warning("Overlay frame read failed: %v", err)
		return false
	}

	detections, err := l.detector.Detect(frame)
	if err != nil {
		l.logger.Warning("Local detection failed: %v", err)
		detections = nil
	}
	if ctx.Err() != nil {
		return false
	}

	canvas := l.opts.Display
	if canvas.X <= 0 || canvas.Y <= 0 {
		canvas = frame.Size()
	}

	label := ""
	if current, ok := l.labels.Load(); ok {
		label = current.Name
	}

	boxes := make([]Box, 0, len(detections))
	for _, d := range detections {
		box := MapToCanvas(d, frame.Size(), canvas, l.opts.Mirrored)
		box.Label = label
		boxes = append(boxes, box)
	}

	scene := Scene{Frame: frame, Canvas: canvas, Mirrored: l.opts.Mirrored, Boxes: boxes}
	if err := l.renderer.Render(scene); err != nil {
		l.logger.Warning("Overlay render failed: %v", err)
	}
	return true
}

// MapToCanvas scales a detection from frame to canvas coordinates and flips it
// horizontally when the display is mirrored.
func MapToCanvas(d model.Detection, frame, canvas image.Point, mirrored bool) Box {
	if frame.X <= 0 || frame.Y <= 0 {
		return Box{Rect: d.Box, Landmarks: d.Landmarks, Score: d.Score}
	}
	sx := float64(canvas.X) / float64(frame.X)
	sy := float64(canvas.Y) / float64(frame.Y)

	mapPoint := func(p image.Point) image.Point {
		x := float64(p.X) * sx
		if mirrored {
			x = float64(canvas.X) - x
		}
		return image.Pt(int(x+0.5), int(float64(p.Y)*sy+0.5))
	}

	a := mapPoint(d.Box.Min)
	b := mapPoint(d.Box.Max)
	rect := image.Rectangle{Min: a, Max: b}.Canon()

	var landmarks []image.Point
	if len(d.Landmarks) > 0 {
		landmarks = make([]image.Point, len(d.Landmarks))
		for i, p := range d.Landmarks {
			landmarks[i] = mapPoint(p)
		}
	}

	return Box{Rect: rect, Landmarks: landmarks, Score: d.Score}
}

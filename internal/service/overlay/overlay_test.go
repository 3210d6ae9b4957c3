package overlay

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"kiosk/internal/logger"
	"kiosk/internal/model"
	"kiosk/internal/service/prediction"
)

type fakeStream struct {
	paused, ended bool
	width, height int
	reads         int
}

func (s *fakeStream) ReadFrame() (model.Frame, error) {
	s.reads++
	return model.Frame{Image: image.NewRGBA(image.Rect(0, 0, s.width, s.height)), Width: s.width, Height: s.height}, nil
}
func (s *fakeStream) Paused() bool { return s.paused }
func (s *fakeStream) Ended() bool  { return s.ended }

type fakeDetector struct {
	results []model.Detection
	err     error
}

func (d *fakeDetector) Detect(model.Frame) ([]model.Detection, error) {
	return d.results, d.err
}

type recordingRenderer struct {
	mu      sync.Mutex
	scenes  []Scene
	cleared int
}

func (r *recordingRenderer) Render(s Scene) error {
	r.mu.Lock()
	r.scenes = append(r.scenes, s)
	r.mu.Unlock()
	return nil
}

func (r *recordingRenderer) Clear() error {
	r.mu.Lock()
	r.cleared++
	r.mu.Unlock()
	return nil
}

func (r *recordingRenderer) last() Scene {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scenes[len(r.scenes)-1]
}

// ========================================
// MapToCanvas
// ========================================

func TestMapToCanvas(t *testing.T) {
	det := model.Detection{
		Box:       image.Rect(100, 50, 200, 150),
		Landmarks: []image.Point{{X: 120, Y: 80}},
		Score:     0.9,
	}

	tests := []struct {
		name     string
		canvas   image.Point
		mirrored bool
		rect     image.Rectangle
		mark     image.Point
	}{
		{"identity", image.Pt(640, 480), false, image.Rect(100, 50, 200, 150), image.Pt(120, 80)},
		{"half size", image.Pt(320, 240), false, image.Rect(50, 25, 100, 75), image.Pt(60, 40)},
		{"mirrored", image.Pt(640, 480), true, image.Rect(440, 50, 540, 150), image.Pt(520, 80)},
		{"mirrored half", image.Pt(320, 240), true, image.Rect(220, 25, 270, 75), image.Pt(260, 40)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box := MapToCanvas(det, image.Pt(640, 480), tt.canvas, tt.mirrored)
			if box.Rect != tt.rect {
				t.Errorf("Expected rect %v, got %v", tt.rect, box.Rect)
			}
			if len(box.Landmarks) != 1 || box.Landmarks[0] != tt.mark {
				t.Errorf("Expected landmark %v, got %v", tt.mark, box.Landmarks)
			}
			if box.Score != 0.9 {
				t.Errorf("Expected score to be kept, got %v", box.Score)
			}
		})
	}
}

// ========================================
// Pass
// ========================================

func TestPass_SkipsPausedOrEnded(t *testing.T) {
	renderer := &recordingRenderer{}
	loop := NewLoop(&fakeDetector{}, renderer, &prediction.State{}, Options{}, logger.NewDiscard())

	for _, s := range []*fakeStream{{paused: true, width: 4, height: 4}, {ended: true, width: 4, height: 4}} {
		if loop.Pass(context.Background(), s) {
			t.Error("Expected pass to be skipped")
		}
		if s.reads != 0 {
			t.Error("Expected no frame read for skipped pass")
		}
	}
	if len(renderer.scenes) != 0 {
		t.Errorf("Expected nothing rendered, got %d scenes", len(renderer.scenes))
	}
}

func TestPass_LabelsFromPredictionState(t *testing.T) {
	labels := &prediction.State{}
	labels.Store("Alice", time.Now())

	renderer := &recordingRenderer{}
	detector := &fakeDetector{results: []model.Detection{{Box: image.Rect(0, 0, 10, 10)}, {Box: image.Rect(20, 20, 30, 30)}}}
	loop := NewLoop(detector, renderer, labels, Options{Display: image.Pt(320, 240)}, logger.NewDiscard())

	if !loop.Pass(context.Background(), &fakeStream{width: 640, height: 480}) {
		t.Fatal("Expected pass to run")
	}

	scene := renderer.last()
	if scene.Canvas != image.Pt(320, 240) {
		t.Errorf("Expected canvas sized to display, got %v", scene.Canvas)
	}
	if len(scene.Boxes) != 2 {
		t.Fatalf("Expected 2 boxes, got %d", len(scene.Boxes))
	}
	for _, b := range scene.Boxes {
		if b.Label != "Alice" {
			t.Errorf("Expected label Alice, got %q", b.Label)
		}
	}
}

func TestPass_ZeroDetectionsClears(t *testing.T) {
	renderer := &recordingRenderer{}
	detector := &fakeDetector{results: []model.Detection{{Box: image.Rect(0, 0, 10, 10)}}}
	loop := NewLoop(detector, renderer, &prediction.State{}, Options{}, logger.NewDiscard())
	stream := &fakeStream{width: 64, height: 48}

	loop.Pass(context.Background(), stream)
	detector.results = nil
	loop.Pass(context.Background(), stream)

	scene := renderer.last()
	if len(scene.Boxes) != 0 {
		t.Errorf("Expected empty scene, got %d boxes", len(scene.Boxes))
	}
	if scene.Canvas != image.Pt(64, 48) {
		t.Errorf("Expected canvas to follow frame size, got %v", scene.Canvas)
	}
}

func TestPass_DetectorErrorRendersEmpty(t *testing.T) {
	renderer := &recordingRenderer{}
	loop := NewLoop(&fakeDetector{err: errors.New("cascade not loaded")}, renderer, &prediction.State{}, Options{}, logger.NewDiscard())

	loop.Pass(context.Background(), &fakeStream{width: 8, height: 8})

	if len(renderer.scenes) != 1 || len(renderer.last().Boxes) != 0 {
		t.Errorf("Expected one empty scene, got %+v", renderer.scenes)
	}
}

func TestStart_RunsUntilCancelled(t *testing.T) {
	renderer := &recordingRenderer{}
	loop := NewLoop(&fakeDetector{}, renderer, &prediction.State{}, Options{Interval: time.Millisecond}, logger.NewDiscard())

	tk := loop.Start(context.Background(), &fakeStream{width: 4, height: 4})
	deadline := time.Now().Add(time.Second)
	for {
		renderer.mu.Lock()
		n := len(renderer.scenes)
		renderer.mu.Unlock()
		if n >= 3 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	tk.Cancel()

	renderer.mu.Lock()
	n := len(renderer.scenes)
	renderer.mu.Unlock()
	if n < 3 {
		t.Errorf("Expected at least 3 passes, got %d", n)
	}
}

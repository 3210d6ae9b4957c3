package ai

import (
	"encoding/base64"
	"fmt"
	"image"
	"image/color"

	"kiosk/internal/service/overlay"

	"gocv.io/x/gocv"
)

// Broadcaster delivers typed events to viewers.
type Broadcaster interface {
	Send(eventType string, payload interface{})
}

// OverlayFrame is the payload of an "overlay" event. Image is empty when the
// canvas is cleared.
type OverlayFrame struct {
	Image  string        `json:"image,omitempty"`
	Width  int           `json:"width"`
	Height int           `json:"height"`
	Boxes  []overlay.Box `json:"boxes"`
}

// PreviewRenderer draws overlay scenes onto the frame and pushes the result
// to viewers.
type PreviewRenderer struct {
	hub       Broadcaster
	eventType string
	quality   int
}

// NewPreviewRenderer creates a renderer publishing eventType through hub.
func NewPreviewRenderer(hub Broadcaster, eventType string, quality int) *PreviewRenderer {
	return &PreviewRenderer{hub: hub, eventType: eventType, quality: quality}
}

func (r *PreviewRenderer) Render(scene overlay.Scene) error {
	if scene.Frame.Image == nil {
		return fmt.Errorf("empty frame")
	}

	mat, err := gocv.ImageToMatRGB(scene.Frame.Image)
	if err != nil {
		return fmt.Errorf("failed to convert frame: %v", err)
	}
	defer mat.Close()

	// Obraz odbijamy tak samo jak ramki
	if scene.Mirrored {
		if err := gocv.Flip(mat, &mat, 1); err != nil {
			return fmt.Errorf("failed to mirror frame: %v", err)
		}
	}
	if scene.Canvas.X > 0 && scene.Canvas.Y > 0 && scene.Canvas != scene.Frame.Size() {
		if err := gocv.Resize(mat, &mat, scene.Canvas, 0, 0, gocv.InterpolationLinear); err != nil {
			return fmt.Errorf("failed to resize frame: %v", err)
		}
	}

	if err := DrawBoxes(&mat, scene.Boxes); err != nil {
		return err
	}

	data, err := encodeJPEG(mat, r.quality)
	if err != nil {
		return err
	}

	r.hub.Send(r.eventType, OverlayFrame{
		Image:  "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data),
		Width:  mat.Cols(),
		Height: mat.Rows(),
		Boxes:  scene.Boxes,
	})
	return nil
}

// Clear tells viewers to drop any drawn boxes.
func (r *PreviewRenderer) Clear() error {
	r.hub.Send(r.eventType, OverlayFrame{Boxes: []overlay.Box{}})
	return nil
}

// DrawBoxes draws face boxes, landmarks and labels in canvas coordinates.
func DrawBoxes(mat *gocv.Mat, boxes []overlay.Box) error {
	green := color.RGBA{R: 0, G: 255, B: 0, A: 0}
	blue := color.RGBA{R: 0, G: 128, B: 255, A: 0}

	for _, box := range boxes {
		if err := gocv.Rectangle(mat, box.Rect, green, 2); err != nil {
			return fmt.Errorf("failed to draw rectangle: %v", err)
		}

		for _, p := range box.Landmarks {
			if err := gocv.Circle(mat, p, 3, blue, -1); err != nil {
				return fmt.Errorf("failed to draw landmark: %v", err)
			}
		}

		if box.Label == "" {
			continue
		}
		pt := image.Pt(box.Rect.Min.X, box.Rect.Min.Y-5)
		if err := gocv.PutText(mat, box.Label, pt, gocv.FontHersheySimplex, 0.6, green, 2); err != nil {
			return fmt.Errorf("failed to draw text: %v", err)
		}
	}
	return nil
}

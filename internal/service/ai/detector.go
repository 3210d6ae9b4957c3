package ai

import (
	"fmt"
	"image"
	"os"
	"sync"

	"kiosk/internal/logger"
	"kiosk/internal/model"

	"gocv.io/x/gocv"
)

// MinFaceSize is the smallest face side, in pixels, the detector reports.
const MinFaceSize = 60

// FaceDetector finds faces with a Haar cascade. When an eye cascade is
// configured, eye centres are reported as landmarks.
type FaceDetector struct {
	faces   gocv.CascadeClassifier
	eyes    gocv.CascadeClassifier
	hasEyes bool
	loaded  bool
	mutex   sync.Mutex
	logger  *logger.Logger
}

// NewFaceDetector loads the cascades. A detector whose face cascade failed to
// load is still returned; Detect then reports an error for every frame.
func NewFaceDetector(facePath, eyePath string, logger *logger.Logger) *FaceDetector {
	d := &FaceDetector{
		faces:  gocv.NewCascadeClassifier(),
		eyes:   gocv.NewCascadeClassifier(),
		logger: logger,
	}

	if err := loadCascade(&d.faces, facePath); err != nil {
		d.logger.Warning("Could not initialize face detector: %v", err)
		return d
	}
	d.loaded = true
	d.logger.Info("Face detector initialized from %s", facePath)

	if eyePath != "" {
		if err := loadCascade(&d.eyes, eyePath); err != nil {
			d.logger.Warning("Eye landmarks disabled: %v", err)
		} else {
			d.hasEyes = true
		}
	}
	return d
}

func loadCascade(c *gocv.CascadeClassifier, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("cascade file not found: %s", path)
	}
	if !c.Load(path) {
		return fmt.Errorf("failed to load cascade: %s", path)
	}
	return nil
}

// Loaded reports whether the face cascade is usable.
func (d *FaceDetector) Loaded() bool {
	return d.loaded
}

// Detect returns face boxes in frame coordinates.
func (d *FaceDetector) Detect(frame model.Frame) ([]model.Detection, error) {
	if !d.loaded {
		return nil, fmt.Errorf("face detector not initialized")
	}
	if frame.Image == nil {
		return nil, fmt.Errorf("empty frame")
	}

	mat, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %v", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray); err != nil {
		return nil, fmt.Errorf("failed to convert frame to grayscale: %v", err)
	}
	gocv.EqualizeHist(gray, &gray)

	d.mutex.Lock()
	defer d.mutex.Unlock()

	rects := d.faces.DetectMultiScaleWithParams(gray, 1.1, 5, 0, image.Pt(MinFaceSize, MinFaceSize), image.Pt(0, 0))

	detections := make([]model.Detection, 0, len(rects))
	for _, r := range rects {
		det := model.Detection{Box: r, Score: 1}
		if d.hasEyes {
			det.Landmarks = d.eyeCentres(gray, r)
		}
		detections = append(detections, det)
	}
	return detections, nil
}

// eyeCentres searches the upper half of a face for eyes.
func (d *FaceDetector) eyeCentres(gray gocv.Mat, face image.Rectangle) []image.Point {
	upper := image.Rect(face.Min.X, face.Min.Y, face.Max.X, face.Min.Y+face.Dy()/2)
	region := gray.Region(upper)
	defer region.Close()

	var points []image.Point
	for _, e := range d.eyes.DetectMultiScale(region) {
		c := image.Pt(e.Min.X+e.Dx()/2, e.Min.Y+e.Dy()/2)
		points = append(points, c.Add(upper.Min))
	}
	return points
}

// Close releases the cascades.
func (d *FaceDetector) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.eyes.Close()
	return d.faces.Close()
}

package ai

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kiosk/internal/camera"
	"kiosk/internal/model"

	"gocv.io/x/gocv"
)

// VideoDevice opens a local webcam through OpenCV.
type VideoDevice struct {
	DeviceID int
	Width    int
	Height   int
}

// Open acquires the webcam. Audio is never requested.
func (d VideoDevice) Open(ctx context.Context) (camera.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	capture, err := gocv.OpenVideoCapture(d.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("%w: open device %d: %v", camera.ErrCameraUnavailable, d.DeviceID, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: device %d not opened", camera.ErrCameraUnavailable, d.DeviceID)
	}

	if d.Width > 0 && d.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(d.Width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(d.Height))
	}

	s := &videoStream{capture: capture, mat: gocv.NewMat()}
	s.track = &videoTrack{stream: s}
	return s, nil
}

type videoStream struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
	track   *videoTrack
	ended   bool
	mutex   sync.Mutex
}

func (s *videoStream) Tracks() []camera.Track {
	return []camera.Track{s.track}
}

// ReadFrame grabs the newest frame. Concurrent readers are serialised.
func (s *videoStream) ReadFrame() (model.Frame, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.ended {
		return model.Frame{}, camera.ErrStreamEnded
	}
	if ok := s.capture.Read(&s.mat); !ok || s.mat.Empty() {
		return model.Frame{}, fmt.Errorf("failed to read frame from device")
	}

	img, err := s.mat.ToImage()
	if err != nil {
		return model.Frame{}, fmt.Errorf("failed to convert frame: %v", err)
	}

	return model.Frame{
		Image:      img,
		Width:      s.mat.Cols(),
		Height:     s.mat.Rows(),
		CapturedAt: time.Now(),
	}, nil
}

func (s *videoStream) Paused() bool {
	return false
}

func (s *videoStream) Ended() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.ended
}

func (s *videoStream) close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	s.capture.Close()
	s.mat.Close()
}

type videoTrack struct {
	stream *videoStream
}

// Stop releases the device; the stream reports Ended afterwards.
func (t *videoTrack) Stop() {
	t.stream.close()
}

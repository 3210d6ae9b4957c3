package model

import (
	"encoding/base64"
	"image"
	"time"
)

const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
)

// Frame is a single still image sampled from a live video stream.
type Frame struct {
	Image      image.Image
	Width      int
	Height     int
	CapturedAt time.Time
}

// Size returns the frame dimensions as a point.
func (f Frame) Size() image.Point {
	return image.Pt(f.Width, f.Height)
}

// FrameSample is an encoded still image ready to be sent to the backend.
type FrameSample struct {
	Data     []byte `json:"-"`
	MimeType string `json:"mime_type"`
}

// DataURL renders the sample as "data:<mime>;base64,<payload>".
func (s FrameSample) DataURL() string {
	return "data:" + s.MimeType + ";base64," + base64.StdEncoding.EncodeToString(s.Data)
}

// Extension returns the file extension matching the mime type.
func (s FrameSample) Extension() string {
	switch s.MimeType {
	case MimePNG:
		return ".png"
	default:
		return ".jpg"
	}
}

// Detection is a face found by the local detector, in frame coordinates.
type Detection struct {
	Box       image.Rectangle
	Landmarks []image.Point
	Score     float64
}

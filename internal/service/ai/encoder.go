package ai

import (
	"fmt"

	"kiosk/internal/model"

	"gocv.io/x/gocv"
)

// JPEGEncoder turns frames into JPEG samples at a fixed quality (0-100).
type JPEGEncoder struct {
	Quality int
}

func (e JPEGEncoder) Encode(frame model.Frame) (model.FrameSample, error) {
	if frame.Image == nil {
		return model.FrameSample{}, fmt.Errorf("empty frame")
	}

	mat, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		return model.FrameSample{}, fmt.Errorf("failed to convert frame: %v", err)
	}
	defer mat.Close()

	data, err := encodeJPEG(mat, e.Quality)
	if err != nil {
		return model.FrameSample{}, err
	}
	return model.FrameSample{Data: data, MimeType: model.MimeJPEG}, nil
}

func encodeJPEG(mat gocv.Mat, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = 95
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %v", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

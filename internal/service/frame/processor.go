// Package frame turns one compressed camera frame into an annotated JPEG:
// decode, detect, draw, encode. Nothing is kept between calls.
package frame

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"net/http"
	"webcamdetect/internal/config"
	"webcamdetect/internal/dto"
	"webcamdetect/internal/response"
	"webcamdetect/internal/service/ai"

	"gocv.io/x/gocv"
)

var (
	ErrEmptyFrame  = response.NewError(http.StatusBadRequest, "empty frame")
	ErrDecodeFrame = response.NewError(http.StatusBadRequest, "frame is not a decodable image")
	ErrDetection   = response.NewError(http.StatusInternalServerError, "object detection failed")
	ErrAnnotate    = response.NewError(http.StatusInternalServerError, "failed to annotate frame")
	ErrEncodeFrame = response.NewError(http.StatusInternalServerError, "failed to encode annotated frame")
)

var boxColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}

const (
	boxThickness  = 2
	textScale     = 0.4
	textThickness = 1
	textLift      = 5 // pixels between the caption baseline and the box top
)

// ContentType is the media type of every frame returned by Process.
const ContentType = "image/jpeg"

// Processor runs the per-frame pipeline against a shared detector.
type Processor struct {
	detector ai.Detector
	quality  int
}

// NewProcessor creates a Processor encoding results at the configured JPEG quality.
func NewProcessor(detector ai.Detector, config *config.Config) *Processor {
	return &Processor{
		detector: detector,
		quality:  config.JPEGQuality,
	}
}

// Process decodes frame, runs detection, draws every detection on the
// decoded pixels and returns them re-encoded as JPEG. The output always has
// the input's dimensions.
func (p *Processor) Process(ctx context.Context, frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, ErrEmptyFrame
	}

	mat, err := gocv.IMDecode(frame, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFrame, err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, ErrDecodeFrame
	}

	// Abandoned requests skip inference.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	detections, err := p.detector.Detect(mat)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetection, err)
	}

	if err := DrawDetections(&mat, detections); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnnotate, err)
	}

	return p.encode(mat)
}

// encode writes mat as JPEG at the processor's fixed quality, so equal
// input always produces equal bytes.
func (p *Processor) encode(mat gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{int(gocv.IMWriteJpegQuality), p.quality})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFrame, err)
	}
	defer buf.Close()

	encoded := make([]byte, buf.Len())
	copy(encoded, buf.GetBytes())
	return encoded, nil
}

// DrawDetections draws a box outline and a "<label> <confidence>" caption
// just above the box for each detection. Drawing outside the image is
// clipped by OpenCV.
func DrawDetections(mat *gocv.Mat, detections []dto.DetectionResult) error {
	for _, detection := range detections {
		if err := gocv.Rectangle(mat, detection.Box, boxColor, boxThickness); err != nil {
			return fmt.Errorf("failed to draw rectangle: %v", err)
		}

		pt := image.Pt(detection.Box.Min.X, detection.Box.Min.Y-textLift)
		if err := gocv.PutText(mat, detection.Caption(), pt, gocv.FontHersheySimplex, textScale, boxColor, textThickness); err != nil {
			return fmt.Errorf("failed to draw text: %v", err)
		}
	}
	return nil
}

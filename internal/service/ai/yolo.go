package ai

import (
	"fmt"
	"image"
	"sync"
	"webcamdetect/internal/dto"

	"gocv.io/x/gocv"
)

// classOffset separates boxes of different classes before NMS so that
// suppression only happens within a class.
const classOffset = 8192

// YOLOConfig holds YOLO detector configuration
type YOLOConfig struct {
	ModelPath        string
	ConfidenceThresh float32
	NMSThresh        float32
	InputWidth       int
	InputHeight      int
}

// DefaultYOLOConfig returns defaults for YOLOv8n exported to ONNX. Zero
// fields passed to NewYOLODetector fall back to these.
func DefaultYOLOConfig() YOLOConfig {
	return YOLOConfig{
		ModelPath:        "models/yolov8n.onnx",
		ConfidenceThresh: 0.25,
		NMSThresh:        0.7,
		InputWidth:       640,
		InputHeight:      640,
	}
}

// YOLODetector runs a YOLOv8 ONNX export through the OpenCV DNN module.
type YOLODetector struct {
	net       gocv.Net
	config    YOLOConfig
	labels    Labels
	mu        sync.Mutex
	closed    bool
	inputSize image.Point
}

// NewYOLODetector loads the ONNX model at cfg.ModelPath.
func NewYOLODetector(cfg YOLOConfig, labels Labels) (*YOLODetector, error) {
	defaults := DefaultYOLOConfig()
	if cfg.ModelPath == "" {
		cfg.ModelPath = defaults.ModelPath
	}
	if cfg.NMSThresh <= 0 {
		cfg.NMSThresh = defaults.NMSThresh
	}
	if cfg.InputWidth <= 0 || cfg.InputHeight <= 0 {
		cfg.InputWidth, cfg.InputHeight = defaults.InputWidth, defaults.InputHeight
	}

	net, err := loadNet(cfg.ModelPath, "")
	if err != nil {
		return nil, err
	}

	return &YOLODetector{
		net:       net,
		config:    cfg,
		labels:    labels,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
	}, nil
}

// Detect runs one forward pass over img.
func (d *YOLODetector) Detect(img gocv.Mat) ([]dto.DetectionResult, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	// The output Mat may alias buffers owned by the net, so the lock is held
	// until decoding is done.
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrDetectorClosed
	}

	blob := gocv.BlobFromImage(img, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	// Output shape: [1, 4+C, N] with (cx, cy, w, h) followed by C class scores per anchor
	sizes := output.Size()
	if len(sizes) != 3 || sizes[1] <= 4 {
		return nil, fmt.Errorf("unexpected YOLO output shape %v", sizes)
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read YOLO output: %w", err)
	}

	scaleX := float32(img.Cols()) / float32(d.config.InputWidth)
	scaleY := float32(img.Rows()) / float32(d.config.InputHeight)
	candidates := decodeYOLOv8(data, sizes[1], sizes[2], d.config.ConfidenceThresh, scaleX, scaleY)

	return d.suppress(candidates, img.Cols(), img.Rows()), nil
}

// Label resolves a YOLO class index.
func (d *YOLODetector) Label(classID int) string {
	return d.labels.Label(classID)
}

// Close releases the detector resources
func (d *YOLODetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.net.Close()
}

// suppress applies per-class NMS and clamps surviving boxes to the frame.
func (d *YOLODetector) suppress(candidates []dto.DetectionResult, width, height int) []dto.DetectionResult {
	if len(candidates) == 0 {
		return nil
	}

	boxes := make([]image.Rectangle, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		offset := image.Pt(c.ClassID*classOffset, c.ClassID*classOffset)
		boxes[i] = c.Box.Add(offset)
		scores[i] = c.Confidence
	}

	indices := gocv.NMSBoxes(boxes, scores, d.config.ConfidenceThresh, d.config.NMSThresh)

	results := make([]dto.DetectionResult, 0, len(indices))
	for _, idx := range indices {
		det := candidates[idx]
		det.Box = clampRect(det.Box, width, height)
		if det.Box.Empty() {
			continue
		}
		det.Label = d.labels.Label(det.ClassID)
		results = append(results, det)
	}
	return results
}

// decodeYOLOv8 turns the channel-major YOLOv8 tensor into candidate boxes in
// frame pixels. attrs is 4 + number of classes, anchors the number of
// predictions. Candidates scoring at or below thresh are dropped, the same
// rule decodeSSD and NMSBoxes apply.
func decodeYOLOv8(data []float32, attrs, anchors int, thresh, scaleX, scaleY float32) []dto.DetectionResult {
	var candidates []dto.DetectionResult

	for i := 0; i < anchors; i++ {
		maxScore := float32(0)
		maxClassID := 0

		for c := 4; c < attrs; c++ {
			score := data[c*anchors+i]
			if score > maxScore {
				maxScore = score
				maxClassID = c - 4
			}
		}

		if maxScore <= thresh {
			continue
		}

		cx := data[0*anchors+i]
		cy := data[1*anchors+i]
		w := data[2*anchors+i]
		h := data[3*anchors+i]

		x1 := int((cx - w/2) * scaleX)
		y1 := int((cy - h/2) * scaleY)
		x2 := int((cx + w/2) * scaleX)
		y2 := int((cy + h/2) * scaleY)

		candidates = append(candidates, dto.DetectionResult{
			Box:        image.Rect(x1, y1, x2, y2),
			Confidence: maxScore,
			ClassID:    maxClassID,
		})
	}

	return candidates
}

package ai

import (
	"fmt"
	"image"
	"sync"
	"webcamdetect/internal/dto"

	"gocv.io/x/gocv"
)

// SSDConfig holds the paths and threshold of a TensorFlow SSD MobileNet graph.
type SSDConfig struct {
	ModelPath        string
	ConfigPath       string
	ConfidenceThresh float32
}

// SSDDetector runs a frozen TensorFlow SSD graph through the OpenCV DNN module.
type SSDDetector struct {
	net    gocv.Net
	config SSDConfig
	labels Labels
	mu     sync.Mutex
	closed bool
}

// NewSSDDetector loads the frozen graph and its text config.
func NewSSDDetector(cfg SSDConfig, labels Labels) (*SSDDetector, error) {
	net, err := loadNet(cfg.ModelPath, cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	return &SSDDetector{net: net, config: cfg, labels: labels}, nil
}

// Detect runs the network on the image and returns detections above the confidence threshold.
func (d *SSDDetector) Detect(img gocv.Mat) ([]dto.DetectionResult, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrDetectorClosed
	}

	// Create blob with parameters that fit ssd coco net input
	blob := gocv.BlobFromImage(img, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")

	output := d.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read SSD output: %w", err)
	}

	results := decodeSSD(data, d.config.ConfidenceThresh, img.Cols(), img.Rows())
	for i := range results {
		results[i].Label = d.labels.Label(results[i].ClassID)
	}
	return results, nil
}

// Label resolves a COCO category id.
func (d *SSDDetector) Label(classID int) string {
	return d.labels.Label(classID)
}

// Close releases the detector resources
func (d *SSDDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.net.Close()
}

// decodeSSD reads rows of [batch_id, class_id, confidence, x1, y1, x2, y2]
// with normalized corners and scales them to a width x height frame.
func decodeSSD(data []float32, thresh float32, width, height int) []dto.DetectionResult {
	var results []dto.DetectionResult

	for i := 0; i+7 <= len(data); i += 7 {
		confidence := data[i+2]
		if confidence <= thresh {
			continue
		}

		x1 := int(data[i+3] * float32(width))
		y1 := int(data[i+4] * float32(height))
		x2 := int(data[i+5] * float32(width))
		y2 := int(data[i+6] * float32(height))

		box := clampRect(image.Rect(x1, y1, x2, y2), width, height)
		if box.Empty() {
			continue
		}

		results = append(results, dto.DetectionResult{
			Box:        box,
			Confidence: confidence,
			ClassID:    int(data[i+1]),
		})
	}

	return results
}

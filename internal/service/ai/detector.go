package ai

import (
	"errors"
	"fmt"
	"image"
	"os"
	"webcamdetect/internal/config"
	"webcamdetect/internal/dto"
	"webcamdetect/internal/logger"

	"gocv.io/x/gocv"
)

// ErrDetectorClosed is returned by Detect once Close has released the network.
var ErrDetectorClosed = errors.New("detector closed")

// Detector finds objects in a decoded BGR frame. Implementations are created
// once at startup and shared by all requests, so Detect must be safe for
// concurrent use.
type Detector interface {
	// Detect returns the objects found in img with boxes in img's pixel space.
	Detect(img gocv.Mat) ([]dto.DetectionResult, error)

	// Label resolves a class index to its name. Detect already fills
	// DetectionResult.Label, so this is for callers holding a bare class index.
	Label(classID int) string

	// Close releases the network. Detect returns ErrDetectorClosed afterwards.
	Close() error
}

// NewDetector loads the model selected by the configuration. It fails when the
// model cannot be loaded, so the server never starts without a detector.
func NewDetector(cfg *config.Config, logger *logger.Logger) (Detector, error) {
	labels, err := labelsFor(cfg)
	if err != nil {
		return nil, err
	}

	var detector Detector
	switch cfg.ModelType {
	case config.ModelYOLO:
		detector, err = NewYOLODetector(YOLOConfig{
			ModelPath:        cfg.ModelPath,
			ConfidenceThresh: float32(cfg.ConfidenceThreshold),
			NMSThresh:        float32(cfg.NMSThreshold),
			InputWidth:       cfg.InputSize,
			InputHeight:      cfg.InputSize,
		}, labels)
	case config.ModelSSD:
		detector, err = NewSSDDetector(SSDConfig{
			ModelPath:        cfg.ModelPath,
			ConfigPath:       cfg.ConfigPath,
			ConfidenceThresh: float32(cfg.ConfidenceThreshold),
		}, labels)
	default:
		return nil, fmt.Errorf("unknown model type: %s", cfg.ModelType)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Detection network initialized: %s (%s, %d labels)", cfg.ModelPath, cfg.ModelType, len(labels))
	return detector, nil
}

// labelsFor returns the names file when one is configured, otherwise the
// built-in table matching the model's class numbering.
func labelsFor(cfg *config.Config) (Labels, error) {
	if cfg.LabelsPath != "" {
		return LoadLabels(cfg.LabelsPath)
	}
	if cfg.ModelType == config.ModelSSD {
		return COCOCategories, nil
	}
	return COCOClasses, nil
}

// loadNet reads a network and pins it to the default backend on CPU.
func loadNet(modelPath, configPath string) (gocv.Net, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return gocv.Net{}, fmt.Errorf("model file not found: %s", modelPath)
	}

	var net gocv.Net
	if configPath == "" {
		net = gocv.ReadNetFromONNX(modelPath)
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return gocv.Net{}, fmt.Errorf("config file not found: %s", configPath)
		}
		net = gocv.ReadNet(modelPath, configPath)
	}

	if net.Empty() {
		return gocv.Net{}, fmt.Errorf("failed to load network from %s", modelPath)
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)

	if errBackend != nil || errTarget != nil {
		net.Close()
		return gocv.Net{}, fmt.Errorf("failed to set preferable backend or target")
	}
	return net, nil
}

// clampRect limits r to the frame so every drawn corner lies inside the image.
func clampRect(r image.Rectangle, width, height int) image.Rectangle {
	return r.Canon().Intersect(image.Rect(0, 0, width-1, height-1))
}

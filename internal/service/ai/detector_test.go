package ai

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"webcamdetect/internal/config"
	"webcamdetect/internal/logger"

	"gocv.io/x/gocv"
)

func TestLabels_Label(t *testing.T) {
	tests := []struct {
		name     string
		labels   Labels
		classID  int
		expected string
	}{
		{"first yolo class", COCOClasses, 0, "person"},
		{"last yolo class", COCOClasses, 79, "toothbrush"},
		{"out of range", COCOClasses, 80, "class 80"},
		{"negative", COCOClasses, -1, "class -1"},
		{"ssd category", COCOCategories, 18, "dog"},
		{"ssd gap", COCOCategories, 12, "class 12"},
		{"ssd last", COCOCategories, 90, "toothbrush"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.labels.Label(tc.classID); got != tc.expected {
				t.Errorf("Label(%d) = %q, expected %q", tc.classID, got, tc.expected)
			}
		})
	}
}

func TestBuiltinLabelTables(t *testing.T) {
	if len(COCOClasses) != 80 {
		t.Errorf("Expected 80 YOLO classes, got %d", len(COCOClasses))
	}
	if len(COCOCategories) != 91 {
		t.Errorf("Expected 91 COCO category slots, got %d", len(COCOCategories))
	}
	for i, name := range COCOClasses {
		if name == "" {
			t.Errorf("YOLO class %d has no name", i)
		}
	}
}

func TestLoadLabels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "names.txt")
	if err := os.WriteFile(path, []byte("background\n  cat \n\ndog\n\n\n"), 0644); err != nil {
		t.Fatalf("Failed to write labels: %v", err)
	}

	labels, err := LoadLabels(path)
	if err != nil {
		t.Fatalf("LoadLabels failed: %v", err)
	}

	if len(labels) != 4 {
		t.Fatalf("Expected 4 labels (trailing blanks dropped), got %d: %q", len(labels), labels)
	}
	if labels.Label(1) != "cat" {
		t.Errorf("Expected trimmed label 'cat', got %q", labels.Label(1))
	}
	if labels.Label(2) != "class 2" {
		t.Errorf("Expected blank line to stay as a gap, got %q", labels.Label(2))
	}
	if labels.Label(3) != "dog" {
		t.Errorf("Expected 'dog' at index 3, got %q", labels.Label(3))
	}
}

func TestLoadLabels_Errors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, []byte("\n\n"), 0644); err != nil {
		t.Fatalf("Failed to write labels: %v", err)
	}

	if _, err := LoadLabels(empty); err == nil {
		t.Error("Expected error for empty labels file")
	}
	if _, err := LoadLabels(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("Expected error for missing labels file")
	}
}

func TestLabelsFor(t *testing.T) {
	yolo, err := labelsFor(&config.Config{ModelType: config.ModelYOLO})
	if err != nil || len(yolo) != len(COCOClasses) {
		t.Errorf("Expected built-in YOLO labels, got %d labels, err %v", len(yolo), err)
	}

	ssd, err := labelsFor(&config.Config{ModelType: config.ModelSSD})
	if err != nil || len(ssd) != len(COCOCategories) {
		t.Errorf("Expected built-in SSD labels, got %d labels, err %v", len(ssd), err)
	}
}

func TestNewDetector_MissingModel(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		ModelType:           config.ModelYOLO,
		ModelPath:           filepath.Join(dir, "missing.onnx"),
		ConfidenceThreshold: 0.25,
		NMSThreshold:        0.7,
		InputSize:           640,
		LogDirectory:        filepath.Join(dir, "logs"),
	}
	log := logger.NewLogger(cfg)
	defer log.Close()

	_, err := NewDetector(cfg, log)
	if err == nil || !strings.Contains(err.Error(), "model file not found") {
		t.Fatalf("Expected missing model error, got %v", err)
	}

	cfg.ModelType = config.ModelSSD
	cfg.ConfigPath = filepath.Join(dir, "graph.pbtxt")
	if _, err := NewDetector(cfg, log); err == nil {
		t.Fatal("Expected error for missing SSD model")
	}
}

func TestClosedDetectorRefusesFrames(t *testing.T) {
	img := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer img.Close()

	detectors := map[string]Detector{
		"yolo": &YOLODetector{config: DefaultYOLOConfig(), labels: COCOClasses, closed: true},
		"ssd":  &SSDDetector{labels: COCOCategories, closed: true},
	}

	for name, detector := range detectors {
		t.Run(name, func(t *testing.T) {
			if _, err := detector.Detect(img); !errors.Is(err, ErrDetectorClosed) {
				t.Errorf("Expected ErrDetectorClosed, got %v", err)
			}
			if err := detector.Close(); err != nil {
				t.Errorf("Closing twice should be a no-op, got %v", err)
			}
		})
	}
}

func TestClampRect(t *testing.T) {
	tests := []struct {
		name     string
		in       image.Rectangle
		expected image.Rectangle
	}{
		{"inside", image.Rect(10, 10, 50, 50), image.Rect(10, 10, 50, 50)},
		{"overflows right and bottom", image.Rect(300, 200, 400, 300), image.Rect(300, 200, 319, 239)},
		{"negative origin", image.Rect(-20, -5, 40, 30), image.Rect(0, 0, 40, 30)},
		{"fully outside", image.Rect(400, 400, 500, 500), image.Rectangle{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := clampRect(tc.in, 320, 240); got != tc.expected {
				t.Errorf("clampRect(%v) = %v, expected %v", tc.in, got, tc.expected)
			}
		})
	}
}

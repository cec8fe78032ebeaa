package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	// ModelYOLO selects the YOLOv8 ONNX detector.
	ModelYOLO = "yolo"
	// ModelSSD selects the TensorFlow SSD MobileNet detector.
	ModelSSD = "ssd"
)

type Config struct {
	Host string
	Port int

	ModelType           string
	ModelPath           string
	ConfigPath          string // graph config, SSD only
	LabelsPath          string // empty means the built-in COCO table
	ConfidenceThreshold float64
	NMSThreshold        float64
	InputSize           int // square network input for YOLO

	JPEGQuality   int   // quality of the annotated frame sent back
	MaxFrameBytes int64 // upper bound on a single request body

	CaptureWidth    int
	CaptureHeight   int
	CaptureQuality  float64 // client-side JPEG quality, 0..1
	CaptureInterval int     // delay between round trips in milliseconds

	LogDirectory  string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

// Load reads the configuration from the environment. A .env file in the
// working directory, when present, is loaded first without overriding
// variables that are already set.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Host:                getEnv("HOST", "0.0.0.0"),
		Port:                getEnvAsInt("PORT", 5000),
		ModelType:           getEnv("MODEL_TYPE", ModelYOLO),
		ModelPath:           getEnv("MODEL_PATH", filepath.Join("models", "yolov8n.onnx")),
		ConfigPath:          getEnv("CONFIG_PATH", ""),
		LabelsPath:          getEnv("LABELS_PATH", ""),
		ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.25),
		NMSThreshold:        getEnvAsFloat("NMS_THRESHOLD", 0.7),
		InputSize:           getEnvAsInt("INPUT_SIZE", 640),
		JPEGQuality:         getEnvAsInt("JPEG_QUALITY", 95),
		MaxFrameBytes:       getEnvAsInt64("MAX_FRAME_BYTES", 8<<20),
		CaptureWidth:        getEnvAsInt("CAPTURE_WIDTH", 320),
		CaptureHeight:       getEnvAsInt("CAPTURE_HEIGHT", 240),
		CaptureQuality:      getEnvAsFloat("CAPTURE_QUALITY", 0.6),
		CaptureInterval:     getEnvAsInt("CAPTURE_INTERVAL_MS", 100), // ~10 FPS on CPU
		LogDirectory:        getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogMaxSizeMB:        getEnvAsInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups:       getEnvAsInt("LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays:       getEnvAsInt("LOG_MAX_AGE_DAYS", 7),
	}
}

// Address returns the host:port pair the server binds to.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate reports the first setting that is out of range.
func (c *Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("invalid PORT: %d", c.Port)
	case c.ModelType != ModelYOLO && c.ModelType != ModelSSD:
		return fmt.Errorf("unknown MODEL_TYPE: %q", c.ModelType)
	case c.ModelPath == "":
		return fmt.Errorf("MODEL_PATH is required")
	case c.ModelType == ModelSSD && c.ConfigPath == "":
		return fmt.Errorf("CONFIG_PATH is required for the ssd model")
	case c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1:
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be in (0, 1], got %v", c.ConfidenceThreshold)
	case c.NMSThreshold <= 0 || c.NMSThreshold > 1:
		return fmt.Errorf("NMS_THRESHOLD must be in (0, 1], got %v", c.NMSThreshold)
	case c.InputSize <= 0:
		return fmt.Errorf("INPUT_SIZE must be positive, got %d", c.InputSize)
	case c.JPEGQuality < 1 || c.JPEGQuality > 100:
		return fmt.Errorf("JPEG_QUALITY must be in [1, 100], got %d", c.JPEGQuality)
	case c.MaxFrameBytes <= 0:
		return fmt.Errorf("MAX_FRAME_BYTES must be positive, got %d", c.MaxFrameBytes)
	case c.CaptureWidth <= 0 || c.CaptureHeight <= 0:
		return fmt.Errorf("invalid capture size %dx%d", c.CaptureWidth, c.CaptureHeight)
	case c.CaptureQuality <= 0 || c.CaptureQuality > 1:
		return fmt.Errorf("CAPTURE_QUALITY must be in (0, 1], got %v", c.CaptureQuality)
	case c.CaptureInterval < 0:
		return fmt.Errorf("CAPTURE_INTERVAL_MS must not be negative, got %d", c.CaptureInterval)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"webcamdetect/internal/config"
)

func newTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "logs")
	l := NewLogger(&config.Config{LogDirectory: dir, LogMaxSizeMB: 1, LogMaxBackups: 1, LogMaxAgeDays: 1})
	t.Cleanup(func() { l.Close() })
	return l, dir
}

func readLog(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("Failed to read %s: %v", name, err)
	}
	return string(data)
}

func TestNewLogger_CreatesDirectory(t *testing.T) {
	_, dir := newTestLogger(t)

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Log directory should exist: %v", err)
	}
	if !info.IsDir() {
		t.Error("Log path should be a directory")
	}
}

func TestLogger_WritesPerLevelFiles(t *testing.T) {
	l, dir := newTestLogger(t)

	l.Info("server listening on %s", "0.0.0.0:5000")
	l.Warning("rejected frame: %d bytes", 0)
	l.Error("detector failed: %v", "boom")

	tests := []struct {
		file   string
		prefix string
		text   string
	}{
		{"info.log", "INFO", "server listening on 0.0.0.0:5000"},
		{"warning.log", "WARNING", "rejected frame: 0 bytes"},
		{"error.log", "ERROR", "detector failed: boom"},
	}

	for _, tc := range tests {
		t.Run(tc.file, func(t *testing.T) {
			content := readLog(t, dir, tc.file)
			if !strings.HasPrefix(content, tc.prefix) {
				t.Errorf("Expected %s to start with %q, got %q", tc.file, tc.prefix, content)
			}
			if !strings.Contains(content, tc.text) {
				t.Errorf("Expected %s to contain %q, got %q", tc.file, tc.text, content)
			}
			if !strings.Contains(content, "logger_test.go") {
				t.Errorf("Expected caller file in %s, got %q", tc.file, content)
			}
		})
	}
}

func TestLogger_LevelsAreSeparate(t *testing.T) {
	l, dir := newTestLogger(t)

	l.Error("only in error log")

	if _, err := os.Stat(filepath.Join(dir, "info.log")); err == nil {
		if strings.Contains(readLog(t, dir, "info.log"), "only in error log") {
			t.Error("Error entry leaked into info.log")
		}
	}
}

package route

import (
	"bytes"
	"encoding/json"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"webcamdetect/internal/config"
	"webcamdetect/internal/dto"
	"webcamdetect/internal/handler"
	"webcamdetect/internal/logger"
	"webcamdetect/internal/middleware"
	"webcamdetect/internal/service/frame"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"
)

type fakeDetector struct {
	results []dto.DetectionResult
}

func (f *fakeDetector) Detect(img gocv.Mat) ([]dto.DetectionResult, error) {
	return f.results, nil
}

func (f *fakeDetector) Label(classID int) string { return "person" }

func (f *fakeDetector) Close() error { return nil }

func newTestServer(t *testing.T, det *fakeDetector) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		JPEGQuality:     95,
		MaxFrameBytes:   1 << 20,
		CaptureWidth:    320,
		CaptureHeight:   240,
		CaptureQuality:  0.6,
		CaptureInterval: 100,
		LogDirectory:    filepath.Join(t.TempDir(), "logs"),
		LogMaxSizeMB:    1,
	}
	log := logger.NewLogger(cfg)
	t.Cleanup(func() { log.Close() })

	server := httptest.NewServer(SetupRoutes(frame.NewProcessor(det, cfg), handler.NewSockets(), cfg, log))
	t.Cleanup(server.Close)
	return server
}

func blackJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), height, width, gocv.MatTypeCV8UC3)
	defer mat.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		t.Fatalf("Failed to encode test frame: %v", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...)
}

func postFrame(t *testing.T, server *httptest.Server, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(server.URL+handler.ProcessFramePath, "application/octet-stream", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestIndexPage(t *testing.T) {
	server := newTestServer(t, &fakeDetector{})

	resp, err := http.Get(server.URL + "/")
	if err != nil {
		t.Fatalf("GET / failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "getUserMedia") {
		t.Error("Index page should request camera access")
	}
}

func TestProcessFrame_RoundTrip(t *testing.T) {
	det := &fakeDetector{results: []dto.DetectionResult{{
		Box:        image.Rect(50, 80, 150, 200),
		Confidence: 0.87,
		ClassID:    0,
		Label:      "person",
	}}}
	server := newTestServer(t, det)

	resp := postFrame(t, server, blackJPEG(t, 320, 240))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != frame.ContentType {
		t.Errorf("Expected %s, got %s", frame.ContentType, ct)
	}
	if id := resp.Header.Get(middleware.RequestIDHeader); id == "" {
		t.Error("Expected a request ID header")
	}

	body, _ := io.ReadAll(resp.Body)
	mat, err := gocv.IMDecode(body, gocv.IMReadColor)
	if err != nil || mat.Empty() {
		t.Fatalf("Response is not a decodable JPEG: %v", err)
	}
	defer mat.Close()

	if mat.Cols() != 320 || mat.Rows() != 240 {
		t.Errorf("Expected 320x240, got %dx%d", mat.Cols(), mat.Rows())
	}
	px := mat.GetVecbAt(120, 50)
	if px[1] < 128 || px[0] > 100 || px[2] > 100 {
		t.Errorf("Expected green box edge at (50,120), got %v", px)
	}
}

func TestProcessFrame_BadInput(t *testing.T) {
	server := newTestServer(t, &fakeDetector{})

	tests := []struct {
		name string
		body []byte
	}{
		{"empty", nil},
		{"garbage", []byte("definitely not an image")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := postFrame(t, server, tc.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestFrameSocket(t *testing.T) {
	server := newTestServer(t, &fakeDetector{})
	url := "ws" + strings.TrimPrefix(server.URL, "http") + handler.FrameSocketPath

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	// A bad frame gets an error message and the socket stays usable.
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("garbage")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	messageType, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if messageType != websocket.TextMessage {
		t.Fatalf("Expected text error message, got type %d", messageType)
	}
	var payload map[string]string
	if err := json.Unmarshal(message, &payload); err != nil || payload["error"] == "" {
		t.Errorf("Expected JSON error payload, got %q", message)
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, blackJPEG(t, 160, 120)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	messageType, message, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if messageType != websocket.BinaryMessage {
		t.Fatalf("Expected binary frame, got type %d", messageType)
	}

	mat, err := gocv.IMDecode(message, gocv.IMReadColor)
	if err != nil || mat.Empty() {
		t.Fatalf("Socket reply is not a decodable JPEG: %v", err)
	}
	defer mat.Close()
	if mat.Cols() != 160 || mat.Rows() != 120 {
		t.Errorf("Expected 160x120, got %dx%d", mat.Cols(), mat.Rows())
	}
}

package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"webcamdetect/internal/config"
	"webcamdetect/internal/logger"
	"webcamdetect/internal/middleware"
	"webcamdetect/internal/response"
	"webcamdetect/internal/service/frame"
)

const (
	// ProcessFramePath receives one raw frame per POST.
	ProcessFramePath = "/process_frame"
	// FrameSocketPath carries the same exchange over a websocket.
	FrameSocketPath = "/ws/process_frame"
)

// FrameProcessor turns one compressed frame into an annotated JPEG.
type FrameProcessor interface {
	Process(ctx context.Context, data []byte) ([]byte, error)
}

// ProcessFrameHandler handles POST /process_frame: the raw request body is one
// image, the response body is the annotated JPEG.
func ProcessFrameHandler(processor FrameProcessor, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		requestID := middleware.GetRequestID(r.Context())

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, cfg.MaxFrameBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				logger.Warning("[%s] Frame exceeds %d bytes", requestID, tooLarge.Limit)
				http.Error(w, "Frame too large", http.StatusRequestEntityTooLarge)
				return
			}
			logger.Warning("[%s] Error reading body: %v", requestID, err)
			http.Error(w, "Error reading body", http.StatusBadRequest)
			return
		}

		annotated, err := processor.Process(r.Context(), body)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			status := response.StatusOf(err)
			if status >= http.StatusInternalServerError {
				logger.Error("[%s] Failed to process frame: %v", requestID, err)
			} else {
				logger.Warning("[%s] Rejected frame (%d bytes): %v", requestID, len(body), err)
			}
			http.Error(w, err.Error(), status)
			return
		}

		w.Header().Set("Content-Type", frame.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(annotated)))
		w.Header().Set("Cache-Control", "no-store")
		w.Write(annotated)
	}
}

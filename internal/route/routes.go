package route

import (
	"net/http"
	"webcamdetect/internal/config"
	"webcamdetect/internal/handler"
	"webcamdetect/internal/logger"
	"webcamdetect/internal/middleware"
)

// SetupRoutes registers the capture page, the frame endpoint and its websocket
// variant, and wraps the mux with request ID and access log middleware.
func SetupRoutes(processor handler.FrameProcessor, sockets *handler.Sockets, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Frame endpoints
	mux.HandleFunc(handler.ProcessFramePath, handler.ProcessFrameHandler(processor, cfg, logger))
	mux.HandleFunc(handler.FrameSocketPath, handler.FrameWebsocketHandler(processor, sockets, cfg, logger))

	// Capture/display page
	mux.HandleFunc("/", handler.IndexHandler(cfg, logger))

	// Apply middleware
	return middleware.RequestID(middleware.Logging(logger, handler.ProcessFramePath)(mux))
}

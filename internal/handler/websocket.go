package handler

import (
	"net/http"
	"time"
	"webcamdetect/internal/config"
	"webcamdetect/internal/logger"
	"webcamdetect/internal/middleware"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// socketError is sent as a text message when a frame cannot be processed.
type socketError struct {
	Error string `json:"error"`
}

// FrameWebsocketHandler answers every binary message with one binary message
// holding the annotated JPEG, in order. A failed frame gets a text message
// with the error and the connection stays open. Text messages are ignored.
func FrameWebsocketHandler(processor FrameProcessor, sockets *Sockets, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetRequestID(r.Context())

		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("[%s] WebSocket upgrade error: %v", requestID, err)
			return
		}
		defer conn.Close()

		if !sockets.Register(conn) {
			logger.Warning("[%s] Frame socket refused: server shutting down", requestID)
			return
		}
		defer sockets.Unregister(conn)

		conn.SetReadLimit(cfg.MaxFrameBytes)
		logger.Info("[%s] Frame socket connected", requestID)

		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Error("[%s] Frame socket closed with error: %v", requestID, err)
				} else {
					logger.Info("[%s] Frame socket disconnected", requestID)
				}
				return
			}

			if messageType != websocket.BinaryMessage {
				continue
			}

			annotated, err := processor.Process(r.Context(), message)

			if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				logger.Error("[%s] Error setting write deadline: %v", requestID, err)
				return
			}

			if err != nil {
				logger.Warning("[%s] Failed to process socket frame: %v", requestID, err)
				if writeErr := conn.WriteJSON(socketError{Error: err.Error()}); writeErr != nil {
					logger.Error("[%s] Error sending error message: %v", requestID, writeErr)
					return
				}
				continue
			}

			if err := conn.WriteMessage(websocket.BinaryMessage, annotated); err != nil {
				logger.Error("[%s] Error writing frame: %v", requestID, err)
				return
			}
		}
	}
}

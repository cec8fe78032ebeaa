package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"
	"webcamdetect/internal/logger"
)

// statusRecorder captures the status code and size written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

// Logging writes one access log line per request: errors for 5xx, warnings
// for 4xx, info otherwise. Successful requests to quietPaths are not logged.
func Logging(logger *logger.Logger, quietPaths ...string) func(http.Handler) http.Handler {
	quiet := make(map[string]bool, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(recorder, r)

			status := recorder.status
			if status == 0 {
				status = http.StatusOK
			}

			line := "request_id=%s method=%s path=%s status=%d latency_ms=%d size=%d ip=%s"
			args := []interface{}{
				GetRequestID(r.Context()), r.Method, r.URL.Path, status,
				time.Since(start).Milliseconds(), recorder.size, r.RemoteAddr,
			}

			switch {
			case status >= 500:
				logger.Error(line, args...)
			case status >= 400:
				logger.Warning(line, args...)
			case !quiet[r.URL.Path]:
				logger.Info(line, args...)
			}
		})
	}
}

package handler

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"webcamdetect/internal/config"
	"webcamdetect/internal/logger"
)

//go:embed templates/index.html
var templates embed.FS

var indexTemplate = template.Must(template.ParseFS(templates, "templates/index.html"))

// pageData parameterises the capture page.
type pageData struct {
	Width    int
	Height   int
	Quality  float64
	Interval int
	Endpoint string
}

// IndexHandler serves the capture/display page on GET /. Any other path is 404.
func IndexHandler(cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	data := pageData{
		Width:    cfg.CaptureWidth,
		Height:   cfg.CaptureHeight,
		Quality:  cfg.CaptureQuality,
		Interval: cfg.CaptureInterval,
		Endpoint: ProcessFramePath,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var buf bytes.Buffer
		if err := indexTemplate.Execute(&buf, data); err != nil {
			logger.Error("Failed to render index page: %v", err)
			http.Error(w, "Failed to render page", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(buf.Bytes())
	}
}

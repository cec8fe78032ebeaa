package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"webcamdetect/internal/config"
	"webcamdetect/internal/handler"
	"webcamdetect/internal/logger"
	"webcamdetect/internal/route"
	"webcamdetect/internal/service/ai"
	"webcamdetect/internal/service/frame"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config    *config.Config
	logger    *logger.Logger
	detector  ai.Detector
	processor *frame.Processor
	sockets   *handler.Sockets
	server    *http.Server
}

// NewApp loads configuration and the detection model. It fails when the
// model cannot be loaded, so the server never starts without a detector.
func NewApp() (*App, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.NewLogger(cfg)

	detector, err := ai.NewDetector(cfg, log)
	if err != nil {
		log.Error("Failed to load %s model from %s: %v", cfg.ModelType, cfg.ModelPath, err)
		log.Close()
		return nil, err
	}

	processor := frame.NewProcessor(detector, cfg)
	sockets := handler.NewSockets()

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           route.SetupRoutes(processor, sockets, cfg, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Shutdown does not track hijacked connections.
	server.RegisterOnShutdown(sockets.CloseAll)

	return &App{
		config:    cfg,
		logger:    log,
		detector:  detector,
		processor: processor,
		sockets:   sockets,
		server:    server,
	}, nil
}

// Run serves until SIGINT or SIGTERM, then drains in-flight requests, closes
// frame sockets and waits for their handlers before releasing the model.
func (a *App) Run() error {
	defer a.logger.Close()
	defer a.closeDetector()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.ListenAndServe()
	}()

	fmt.Printf("🚀 Webcam Object Detection Server\n")
	fmt.Printf("📍 URL: http://%s\n", a.config.Address())
	fmt.Printf("🤖 Model: %s (%s)\n", a.config.ModelPath, a.config.ModelType)
	a.logger.Info("Server listening on %s", a.config.Address())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		a.logger.Error("Server stopped: %v", err)
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	shutdownErr := a.server.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		a.logger.Error("Graceful shutdown failed: %v", shutdownErr)
	}
	// OnShutdown hooks run asynchronously; close again so no socket registers
	// after Wait starts.
	a.sockets.CloseAll()
	if err := a.sockets.Wait(shutdownCtx); err != nil {
		a.logger.Warning("%d frame sockets still open at shutdown: %v", a.sockets.Count(), err)
	}
	return shutdownErr
}

func (a *App) closeDetector() {
	if err := a.detector.Close(); err != nil {
		a.logger.Warning("Error releasing model: %v", err)
	}
}

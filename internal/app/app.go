package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"sync"
	"time"

	"kiosk/internal/backend"
	"kiosk/internal/camera"
	"kiosk/internal/config"
	"kiosk/internal/logger"
	"kiosk/internal/repository/sqlite"
	"kiosk/internal/route"
	"kiosk/internal/service"
	"kiosk/internal/service/ai"
	"kiosk/internal/service/capture"
	"kiosk/internal/service/notify"
	"kiosk/internal/service/overlay"
	"kiosk/internal/service/prediction"
	"kiosk/internal/service/registration"
	"kiosk/internal/service/storage"
	"kiosk/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger *logger.Logger

	db         *sqlite.DB
	detector   *ai.FaceDetector
	journal    *storage.JournalService
	hubService *websocket.HubService
	kiosk      *service.Kiosk
	registrar  *registration.Registrar
	handler    http.Handler
}

// NewApp builds every component of the kiosk. The camera is not opened until
// a session is started.
func NewApp(cfg *config.Config, logger *logger.Logger) (*App, error) {
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	client, err := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout)
	if err != nil {
		db.Close()
		return nil, err
	}

	journal := storage.NewJournalService(sqlite.NewEventRepository(db), cfg.JournalBufferLimit, cfg.JournalFlushInterval, logger)
	hub := websocket.NewHubService(logger)
	notifier := notify.NewNotifier(notify.NewGate(cfg.ToastInterval), hub, logger)

	session := camera.NewSession(ai.VideoDevice{
		DeviceID: cfg.CameraDevice,
		Width:    cfg.FrameWidth,
		Height:   cfg.FrameHeight,
	}, logger)

	captureEncoder := ai.JPEGEncoder{Quality: cfg.CaptureQuality}
	labels := &prediction.State{}
	renderer := ai.NewPreviewRenderer(hub, websocket.EventOverlay, cfg.CaptureQuality)

	components := service.Components{
		Session:  session,
		Labels:   labels,
		Notifier: notifier,
		Journal:  journal,
		Hub:      hub,
		Renderer: renderer,
	}
	if cfg.CaptureEnabled {
		components.Capture = capture.NewLoop(session, captureEncoder, client, notifier, journal, cfg.CaptureInterval, logger)
	}
	if cfg.PredictEnabled {
		components.Poller = prediction.NewPoller(session, captureEncoder, client, labels, cfg.PredictDelay, logger)
	}

	var detector *ai.FaceDetector
	if cfg.OverlayEnabled {
		detector = ai.NewFaceDetector(cfg.FaceCascadePath, cfg.EyeCascadePath, logger)
		if detector.Loaded() {
			components.Overlay = overlay.NewLoop(detector, renderer, labels, overlay.Options{
				Interval: cfg.OverlayInterval,
				Display:  image.Pt(cfg.DisplayWidth, cfg.DisplayHeight),
				Mirrored: cfg.Mirrored,
			}, logger)
		} else {
			logger.Warning("Face cascade not loaded, overlay disabled")
		}
	}

	kiosk := service.NewKiosk(components, logger)
	registrar := registration.NewRegistrar(
		sqlite.NewClassRepository(db),
		session,
		ai.JPEGEncoder{Quality: cfg.RegisterQuality},
		client,
		journal,
		cfg.RecordInterval,
		logger,
	)

	a := &App{
		config:     cfg,
		logger:     logger,
		db:         db,
		detector:   detector,
		journal:    journal,
		hubService: hub,
		kiosk:      kiosk,
		registrar:  registrar,
	}
	a.handler = route.SetupRoutes(route.Dependencies{
		Kiosk:     kiosk,
		Directory: client,
		Registry:  registrar,
		Journal:   journal,
		Hub:       hub,
	}, cfg, logger)

	return a, nil
}

// Handler returns the HTTP routes.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run serves HTTP until ctx is cancelled, then shuts everything down in order:
// server, kiosk loops, recordings, journal, database.
func (a *App) Run(ctx context.Context) error {
	bgCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	// Start background services
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.hubService.Run(bgCtx)
	}()
	go func() {
		defer wg.Done()
		a.journal.Run(bgCtx)
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("Attendance kiosk listening on http://localhost:%d", a.config.Port)
	a.logger.Info("Backend: %s", a.config.BackendURL)
	a.logger.Info("Database: %s", a.config.DatabasePath)

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = err
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warning("HTTP shutdown: %v", err)
	}

	a.kiosk.Stop()
	a.registrar.StopAll()

	// Journal flushes on cancel
	cancel()
	wg.Wait()

	if err := a.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Close releases the detector and the database.
func (a *App) Close() error {
	if a.detector != nil {
		a.detector.Close()
	}
	return a.db.Close()
}

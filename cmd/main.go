package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dataglove/internal/calibration"
	"dataglove/internal/config"
	"dataglove/internal/handlers"
	"dataglove/internal/ingest"
	"dataglove/internal/logger"
	"dataglove/internal/pose"
	"dataglove/internal/refresh"
	"dataglove/internal/repository"
	"dataglove/internal/repository/db"
	"dataglove/internal/serialport"
	"dataglove/internal/server"
	"dataglove/internal/service"
)

const shutdownTimeout = 10 * time.Second

// @title        Data glove pose API
// @version      1.0
// @description  Live hand pose from a data glove, with calibration and a session journal.
// @BasePath     /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	// configs/config.yml + GLOVE_* env
	cfg, err := config.Load("configs")
	if err != nil {
		logger.Get(logger.Options{Level: logger.InfoLevel}).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	sqlDB, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err, "path", cfg.DB.Path)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// glove pipeline
	calib := calibration.New(log.With("component", "calibration"))
	store := pose.NewStore(calib)
	pipeline := ingest.New(store, ingest.Config{
		PollInterval: cfg.Ingest.PollInterval,
		StopTimeout:  cfg.Ingest.StopTimeout,
		MaxBuffer:    cfg.Ingest.MaxBuffer,
	}, log.With("component", "ingest"))

	opener := &serialport.Router{Hardware: serialport.NewSerialOpener(cfg.Serial.Baud, cfg.Serial.ReadTimeout)}
	if cfg.Simulator.Enabled {
		opener.Simulator = serialport.NewSimOpener(cfg.Simulator.RateHz, cfg.Serial.ReadTimeout)
	}

	hub := handlers.NewHub(log.With("component", "ws"))
	cycle, err := refresh.New(store, pipeline.Notifications(), hub, cfg.Refresh.FPS, log.With("component", "refresh"))
	if err != nil {
		log.Fatalw("invalid refresh rate", "err", err, "fps", cfg.Refresh.FPS)
	}

	// wire dependencies
	repos := repository.NewRepository(sqlDB)
	services := service.NewService(repos, service.Glove{
		Opener:      opener,
		Ingest:      pipeline,
		Store:       store,
		Calibration: calib,
		Refresh:     cycle,
	}, service.AuthConfig{
		SigningKey: cfg.Auth.SigningKey,
		TokenTTL:   cfg.Auth.TokenTTL,
	}, log)

	pipeline.OnEvent(func(ev ingest.Event) {
		services.HandleIngestEvent(ev)
		hub.SourceLost(ev)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if ok, err := services.RestoreCalibration(ctx); err != nil {
		log.Warnw("calibration_restore_failed", "err", err)
	} else if ok {
		log.Infow("calibration_restored")
	}

	autoConnect(ctx, services, cfg.Sources, log)

	go cycle.Run(ctx)

	apiHandler := handlers.NewHandler(services, hub, handlers.Options{
		AuthEnabled:  cfg.Auth.Enabled,
		AllowOrigins: cfg.CORS.AllowOrigins,
	}, log)

	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port, apiHandler, log)

	waitForShutdown(cancel, srv, services, log)
}

// autoConnect attaches the sources named in config. A failure is logged; the API can
// still connect later.
func autoConnect(ctx context.Context, s *service.Service, src config.SourcesConfig, log *logger.Logger) {
	if src.Angle == "" && src.Pressure == "" {
		return
	}
	err := s.Connect(ctx, service.ConnectParams{AngleSource: src.Angle, PressureSource: src.Pressure})
	if err != nil {
		log.Warnw("auto_connect_failed", "angle", src.Angle, "pressure", src.Pressure, "err", err)
		return
	}
	log.Infow("auto_connected", "angle", src.Angle, "pressure", src.Pressure)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		log.Infow("http_listening", "port", port)
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown blocks until SIGINT/SIGTERM, then releases the glove sources and drains
// the HTTP server.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, s *service.Service, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := s.Disconnect(ctx); err != nil && !errors.Is(err, service.ErrNotConnected) {
		log.Warnw("disconnect_on_shutdown_failed", "err", err)
	}

	// stop the refresh cycle
	cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
	_ = log.Sync()
}

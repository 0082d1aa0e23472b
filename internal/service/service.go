package service

import (
	"context"

	"dataglove"
	"dataglove/internal/ingest"
	"dataglove/internal/logger"
	"dataglove/internal/repository"
	"dataglove/internal/serialport"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Connection attaches and detaches the glove's serial sources.
type Connection interface {
	Connect(ctx context.Context, p ConnectParams) error
	Disconnect(ctx context.Context) error
	ListSources() ([]string, error)
	Sources() []ingest.SourceStatus
	HandleIngestEvent(ev ingest.Event)
}

// Calibration captures and clears the per-channel bounds.
type Calibration interface {
	SetCalibrationMin(ctx context.Context) error
	SetCalibrationMax(ctx context.Context) error
	ResetCalibration(ctx context.Context) error
	CalibrationState() CalibrationView
	RestoreCalibration(ctx context.Context) (bool, error)
}

// Monitoring exposes the current hand pose.
type Monitoring interface {
	GetCurrentPose() dataglove.HandPose
}

// Display controls the refresh cadence.
type Display interface {
	SetRefreshRate(ctx context.Context, fps int) error
	RefreshRate() int
}

// EventLog exposes the session journal with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]dataglove.GloveEvent, error)
}

type Service struct {
	Connection
	Calibration
	Monitoring
	Display
	EventLog
	Authorization
}

// Glove bundles the live pipeline components the services drive.
type Glove struct {
	Opener      serialport.Opener
	Ingest      Ingest
	Store       PoseReader
	Calibration Calibrator
	Refresh     RateController
}

// NewService wires the repository layer and the glove pipeline into concrete services.
func NewService(repos *repository.Repository, g Glove, auth AuthConfig, log *logger.Logger) *Service {
	log = logger.OrNop(log)
	j := newJournal(repos.EventRepo, log)
	return &Service{
		Connection:    NewConnectionService(g.Opener, g.Ingest, j, log),
		Calibration:   NewCalibrationService(g.Calibration, g.Store, g.Ingest, repos.CalibrationRepo, j, log),
		Monitoring:    NewMonitoringService(g.Store),
		Display:       NewDisplayService(g.Refresh, j, log),
		EventLog:      NewEventLogService(repos.EventRepo),
		Authorization: NewAuthService(repos.Auth, auth),
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dataglove/internal/ingest"
	"dataglove/internal/logger"
	"dataglove/internal/serialport"
)

var (
	ErrNoSourceSelected = errors.New("select an angle source, a pressure source or both")
	ErrDuplicateSource  = errors.New("angle and pressure sources must be different ports")
	ErrAlreadyConnected = errors.New("glove already connected, disconnect first")
	ErrNotConnected     = errors.New("glove is not connected")
)

// Ingest is the part of ingest.Pipeline the services drive.
type Ingest interface {
	Start(ctx context.Context, angle, pressure *ingest.Attachment) error
	Stop() error
	Running() bool
	Connected(kind ingest.Kind) bool
	Status() []ingest.SourceStatus
}

type ConnectionService struct {
	opener  serialport.Opener
	ingest  Ingest
	journal *journal
	log     *logger.Logger
}

func NewConnectionService(opener serialport.Opener, in Ingest, j *journal, log *logger.Logger) *ConnectionService {
	return &ConnectionService{opener: opener, ingest: in, journal: j, log: logger.OrNop(log)}
}

// Connect opens the selected sources and starts their read loops. The loops outlive ctx;
// they stop on Disconnect.
func (s *ConnectionService) Connect(ctx context.Context, p ConnectParams) error {
	angleID := strings.TrimSpace(p.AngleSource)
	pressureID := strings.TrimSpace(p.PressureSource)
	if angleID == "" && pressureID == "" {
		return ErrNoSourceSelected
	}
	if angleID == pressureID {
		return ErrDuplicateSource
	}

	if s.ingest.Running() {
		if s.ingest.Connected(ingest.KindAngle) || s.ingest.Connected(ingest.KindPressure) {
			return ErrAlreadyConnected
		}
		// every source was lost; clear the dead run before starting over
		if err := s.ingest.Stop(); err != nil {
			s.log.Warnw("glove_stale_run_stop_failed", "err", err)
		}
	}

	angle, err := s.open(angleID)
	if err != nil {
		return err
	}
	pressure, err := s.open(pressureID)
	if err != nil {
		closeAttachment(angle)
		return err
	}

	if err := s.ingest.Start(context.WithoutCancel(ctx), angle, pressure); err != nil {
		closeAttachment(angle)
		closeAttachment(pressure)
		if errors.Is(err, ingest.ErrAlreadyRunning) {
			return ErrAlreadyConnected
		}
		return fmt.Errorf("start ingest: %w", err)
	}

	s.log.Infow("glove_connected", "angle_source", angleID, "pressure_source", pressureID)
	s.journal.record(ctx, EventConnect, describeSources("Connected", angleID, pressureID), map[string]any{
		"angle_source":    angleID,
		"pressure_source": pressureID,
	})
	return nil
}

// Disconnect stops both loops and releases the ports. A loop that overruns the stop
// timeout is logged; its port is closed regardless.
func (s *ConnectionService) Disconnect(ctx context.Context) error {
	if !s.ingest.Running() {
		return ErrNotConnected
	}
	meta := map[string]any{}
	if err := s.ingest.Stop(); err != nil {
		if !errors.Is(err, ingest.ErrStopTimeout) {
			return fmt.Errorf("stop ingest: %w", err)
		}
		s.log.Warnw("glove_disconnect_timeout", "err", err)
		meta["stop_timeout"] = true
	}
	s.log.Infow("glove_disconnected")
	s.journal.record(ctx, EventDisconnect, "Disconnected", meta)
	return nil
}

// ListSources returns the ids accepted by Connect, in opener order.
func (s *ConnectionService) ListSources() ([]string, error) {
	ids, err := s.opener.List()
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Sources reports the angle and pressure source status.
func (s *ConnectionService) Sources() []ingest.SourceStatus {
	return s.ingest.Status()
}

// HandleIngestEvent journals source losses. It is registered as the pipeline event hook.
func (s *ConnectionService) HandleIngestEvent(ev ingest.Event) {
	if ev.Type != ingest.EventSourceLost {
		return
	}
	meta := map[string]any{"source": string(ev.Kind), "port": ev.PortID}
	if ev.Err != nil {
		meta["error"] = ev.Err.Error()
	}
	s.journal.record(context.Background(), EventSourceLost, fmt.Sprintf("%s source %s lost", ev.Kind, ev.PortID), meta)
}

func (s *ConnectionService) open(id string) (*ingest.Attachment, error) {
	if id == "" {
		return nil, nil
	}
	port, err := s.opener.Open(id)
	if err != nil {
		return nil, err
	}
	return &ingest.Attachment{ID: id, Port: port}, nil
}

func closeAttachment(a *ingest.Attachment) {
	if a != nil {
		_ = a.Port.Close()
	}
}

func describeSources(verb, angle, pressure string) string {
	parts := make([]string, 0, 2)
	if angle != "" {
		parts = append(parts, "angle="+angle)
	}
	if pressure != "" {
		parts = append(parts, "pressure="+pressure)
	}
	return verb + " " + strings.Join(parts, ", ")
}

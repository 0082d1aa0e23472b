package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dataglove"
	"dataglove/internal/ingest"
	"dataglove/internal/logger"
	"dataglove/internal/repository"
)

var (
	ErrAngleSourceRequired = errors.New("calibration needs a connected angle source")
	ErrNoRawFrame          = errors.New("no angle frame received yet")
)

// Calibrator is satisfied by calibration.Map.
type Calibrator interface {
	SetMinimum(raw dataglove.RawAngleFrame)
	SetMaximum(raw dataglove.RawAngleFrame)
	Reset()
	Active() bool
	Profile() dataglove.CalibrationProfile
	Restore(p dataglove.CalibrationProfile)
}

// PoseReader is satisfied by pose.Store.
type PoseReader interface {
	Snapshot() dataglove.HandPose
	LastRawAngles() (dataglove.RawAngleFrame, bool)
}

// CalibrationView is the externally visible calibration state. Nil bounds are unset.
type CalibrationView struct {
	Active bool                     `json:"active"`
	Min    *dataglove.RawAngleFrame `json:"min"`
	Max    *dataglove.RawAngleFrame `json:"max"`
}

type CalibrationService struct {
	cal     Calibrator
	poses   PoseReader
	ingest  Ingest
	repo    repository.CalibrationRepo
	journal *journal
	log     *logger.Logger
}

func NewCalibrationService(cal Calibrator, poses PoseReader, in Ingest, repo repository.CalibrationRepo, j *journal, log *logger.Logger) *CalibrationService {
	return &CalibrationService{cal: cal, poses: poses, ingest: in, repo: repo, journal: j, log: logger.OrNop(log)}
}

// SetCalibrationMin captures the most recent raw angle frame as the lower bound.
func (s *CalibrationService) SetCalibrationMin(ctx context.Context) error {
	raw, err := s.latestRaw()
	if err != nil {
		return err
	}
	s.cal.SetMinimum(raw)
	s.log.Infow("calibration_min_captured", "raw", raw[:], "active", s.cal.Active())
	s.persist(ctx)
	s.journal.record(ctx, EventCalibrationMin, "Calibration minimum captured", map[string]any{"raw": raw[:]})
	return nil
}

// SetCalibrationMax captures the most recent raw angle frame as the upper bound.
func (s *CalibrationService) SetCalibrationMax(ctx context.Context) error {
	raw, err := s.latestRaw()
	if err != nil {
		return err
	}
	s.cal.SetMaximum(raw)
	s.log.Infow("calibration_max_captured", "raw", raw[:], "active", s.cal.Active())
	s.persist(ctx)
	s.journal.record(ctx, EventCalibrationMax, "Calibration maximum captured", map[string]any{"raw": raw[:]})
	return nil
}

// ResetCalibration clears both bounds. It needs no connected source.
func (s *CalibrationService) ResetCalibration(ctx context.Context) error {
	s.cal.Reset()
	s.log.Infow("calibration_reset")
	s.persist(ctx)
	s.journal.record(ctx, EventCalibrationReset, "Calibration reset", nil)
	return nil
}

func (s *CalibrationService) CalibrationState() CalibrationView {
	p := s.cal.Profile()
	return CalibrationView{Active: s.cal.Active(), Min: p.Min, Max: p.Max}
}

// RestoreCalibration loads the stored profile, if any, into the live map.
func (s *CalibrationService) RestoreCalibration(ctx context.Context) (bool, error) {
	if s.repo == nil {
		return false, nil
	}
	p, ok, err := s.repo.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("restore calibration: %w", err)
	}
	if !ok {
		return false, nil
	}
	s.cal.Restore(p)
	s.log.Infow("calibration_restored", "active", s.cal.Active(), "saved_at", p.UpdatedAt)
	return true, nil
}

func (s *CalibrationService) latestRaw() (dataglove.RawAngleFrame, error) {
	if !s.ingest.Connected(ingest.KindAngle) {
		return dataglove.RawAngleFrame{}, ErrAngleSourceRequired
	}
	raw, ok := s.poses.LastRawAngles()
	if !ok {
		return dataglove.RawAngleFrame{}, ErrNoRawFrame
	}
	return raw, nil
}

func (s *CalibrationService) persist(ctx context.Context) {
	if s.repo == nil {
		return
	}
	p := s.cal.Profile()
	p.UpdatedAt = time.Now().UTC()
	if err := s.repo.Save(context.WithoutCancel(ctx), p); err != nil {
		s.log.Warnw("calibration_save_failed", "err", err)
	}
}

package service

import (
	"context"

	"dataglove/internal/logger"
)

// RateController is satisfied by refresh.Cycle.
type RateController interface {
	SetRate(fps int) error
	Rate() int
}

type DisplayService struct {
	cycle   RateController
	journal *journal
	log     *logger.Logger
}

func NewDisplayService(cycle RateController, j *journal, log *logger.Logger) *DisplayService {
	return &DisplayService{cycle: cycle, journal: j, log: logger.OrNop(log)}
}

// SetRefreshRate switches the refresh cadence; fps must be one of refresh.Rates.
func (s *DisplayService) SetRefreshRate(ctx context.Context, fps int) error {
	prev := s.cycle.Rate()
	if err := s.cycle.SetRate(fps); err != nil {
		return err
	}
	if prev != fps {
		s.journal.record(ctx, EventRefreshRate, "Refresh rate changed", map[string]any{"from": prev, "to": fps})
	}
	return nil
}

func (s *DisplayService) RefreshRate() int { return s.cycle.Rate() }

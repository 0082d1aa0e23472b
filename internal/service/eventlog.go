package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"dataglove"
	"dataglove/internal/repository"
)

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

var ErrInvalidTimeRange = errors.New("invalid time range: from must be <= to")

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares query parameters and validates the time range.
func normalizeAndValidateFilter(f LogFilter) (repository.EventFilter, error) {
	out := repository.EventFilter{
		From: normalizeToUTC(f.From),
		To:   normalizeToUTC(f.To),
		Type: normalizeEventType(f.Type),
	}
	if !out.From.IsZero() && !out.To.IsZero() && out.From.After(out.To) {
		return repository.EventFilter{}, ErrInvalidTimeRange
	}
	return out, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]dataglove.GloveEvent, error) {
	filter, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, filter)
}

package service

import (
	"context"
	"time"

	"dataglove"
	"dataglove/internal/logger"
	"dataglove/internal/repository"

	"github.com/google/uuid"
)

// Journal event types.
const (
	EventConnect          = "CONNECT"
	EventDisconnect       = "DISCONNECT"
	EventSourceLost       = "SOURCE_LOST"
	EventCalibrationMin   = "CALIBRATION_MIN"
	EventCalibrationMax   = "CALIBRATION_MAX"
	EventCalibrationReset = "CALIBRATION_RESET"
	EventRefreshRate      = "REFRESH_RATE"
)

// journal appends session events. A failed append is logged, never returned: the
// operation that produced the event has already happened.
type journal struct {
	repo repository.EventRepo
	log  *logger.Logger
}

func newJournal(repo repository.EventRepo, log *logger.Logger) *journal {
	return &journal{repo: repo, log: logger.OrNop(log)}
}

func (j *journal) record(ctx context.Context, typ, description string, meta map[string]any) {
	if j == nil || j.repo == nil {
		return
	}
	ev := dataglove.GloveEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        typ,
		Description: description,
	}
	if id, ok := OperatorFrom(ctx); ok {
		if meta == nil {
			meta = make(map[string]any, 1)
		}
		meta["operator_id"] = id
	}
	if len(meta) > 0 {
		ev.Metadata = meta
	}
	if err := j.repo.Append(context.WithoutCancel(ctx), ev); err != nil {
		j.log.Warnw("journal_append_failed", "type", typ, "err", err)
	}
}

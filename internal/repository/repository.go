package repository

import (
	"context"
	"database/sql"
	"time"

	"dataglove"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*dataglove.Operator, error)
}

// EventFilter narrows List. Zero bounds and an empty type match everything.
type EventFilter struct {
	From time.Time
	To   time.Time
	Type string
}

type EventRepo interface {
	Append(ctx context.Context, e dataglove.GloveEvent) error
	List(ctx context.Context, f EventFilter) ([]dataglove.GloveEvent, error)
}

type CalibrationRepo interface {
	Save(ctx context.Context, p dataglove.CalibrationProfile) error
	Load(ctx context.Context) (dataglove.CalibrationProfile, bool, error)
}

type Repository struct {
	EventRepo       EventRepo
	CalibrationRepo CalibrationRepo
	Auth            Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo:       NewEventSQLite(db),
		CalibrationRepo: NewCalibrationSQLite(db),
		Auth:            NewOperatorRepository(db),
	}
}

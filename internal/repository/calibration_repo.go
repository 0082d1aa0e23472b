package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dataglove"
)

type CalibrationSQLite struct {
	db *sql.DB
}

func NewCalibrationSQLite(db *sql.DB) *CalibrationSQLite {
	return &CalibrationSQLite{db: db}
}

var _ CalibrationRepo = (*CalibrationSQLite)(nil)

const (
	calibrationRowID = 1

	upsertCalibrationSQL = `
		INSERT INTO calibration_profile (id, min_bounds, max_bounds, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			min_bounds=excluded.min_bounds,
			max_bounds=excluded.max_bounds,
			updated_at=excluded.updated_at
	`

	selectCalibrationSQL = `SELECT min_bounds, max_bounds, updated_at FROM calibration_profile WHERE id=?`
)

func marshalBounds(b *dataglove.RawAngleFrame) (sql.NullString, error) {
	if b == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func unmarshalBounds(s sql.NullString) (*dataglove.RawAngleFrame, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var b dataglove.RawAngleFrame
	if err := json.Unmarshal([]byte(s.String), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Save replaces the stored profile.
func (r *CalibrationSQLite) Save(ctx context.Context, p dataglove.CalibrationProfile) error {
	lo, err := marshalBounds(p.Min)
	if err != nil {
		return fmt.Errorf("marshal min bounds: %w", err)
	}
	hi, err := marshalBounds(p.Max)
	if err != nil {
		return fmt.Errorf("marshal max bounds: %w", err)
	}

	ts := p.UpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	if _, err := r.db.ExecContext(ctx, upsertCalibrationSQL, calibrationRowID, lo, hi, ts.UTC().Format(timestampLayout)); err != nil {
		return fmt.Errorf("save calibration profile: %w", err)
	}
	return nil
}

// Load returns the stored profile; ok is false when none was ever saved.
func (r *CalibrationSQLite) Load(ctx context.Context) (p dataglove.CalibrationProfile, ok bool, err error) {
	var lo, hi sql.NullString
	row := r.db.QueryRowContext(ctx, selectCalibrationSQL, calibrationRowID)
	if err := row.Scan(&lo, &hi, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dataglove.CalibrationProfile{}, false, nil
		}
		return dataglove.CalibrationProfile{}, false, fmt.Errorf("load calibration profile: %w", err)
	}
	if p.Min, err = unmarshalBounds(lo); err != nil {
		return dataglove.CalibrationProfile{}, false, fmt.Errorf("decode min bounds: %w", err)
	}
	if p.Max, err = unmarshalBounds(hi); err != nil {
		return dataglove.CalibrationProfile{}, false, fmt.Errorf("decode max bounds: %w", err)
	}
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, true, nil
}

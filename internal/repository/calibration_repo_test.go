package repository

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"dataglove"

	"github.com/DATA-DOG/go-sqlmock"
)

func newCalibrationMock(t *testing.T) (*CalibrationSQLite, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("mock expectations: %v", err)
		}
		_ = db.Close()
	})
	return NewCalibrationSQLite(db), mock
}

func frameOf(v float64) *dataglove.RawAngleFrame {
	var f dataglove.RawAngleFrame
	for i := range f {
		f[i] = v
	}
	return &f
}

func TestCalibrationSave_MinOnly(t *testing.T) {
	repo, mock := newCalibrationMock(t)

	at := time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta(upsertCalibrationSQL)).
		WithArgs(calibrationRowID, "[1,1,1,1,1,1,1,1,1,1,1,1,1,1]", nil, "2026-02-02 08:00:00.000000000").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(ctx(t), dataglove.CalibrationProfile{Min: frameOf(1), UpdatedAt: at}); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestCalibrationSave_Error(t *testing.T) {
	repo, mock := newCalibrationMock(t)
	mock.ExpectExec("INSERT INTO calibration_profile").WillReturnError(errors.New("locked"))
	if err := repo.Save(ctx(t), dataglove.CalibrationProfile{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestCalibrationLoad(t *testing.T) {
	tests := []struct {
		name    string
		expect  func(sqlmock.Sqlmock)
		wantOK  bool
		wantErr bool
		check   func(t *testing.T, p dataglove.CalibrationProfile)
	}{
		{
			name: "no row",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(selectCalibrationSQL)).
					WithArgs(calibrationRowID).
					WillReturnRows(sqlmock.NewRows([]string{"min_bounds", "max_bounds", "updated_at"}))
			},
		},
		{
			name: "both bounds",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(selectCalibrationSQL)).
					WithArgs(calibrationRowID).
					WillReturnRows(sqlmock.NewRows([]string{"min_bounds", "max_bounds", "updated_at"}).
						AddRow("[0,0,0,0,0,0,0,0,0,0,0,0,0,0]", "[90,90,90,90,90,90,90,90,90,90,90,90,90,90]", time.Now()))
			},
			wantOK: true,
			check: func(t *testing.T, p dataglove.CalibrationProfile) {
				if p.Min == nil || p.Max == nil || p.Max[13] != 90 {
					t.Fatalf("unexpected profile %+v", p)
				}
			},
		},
		{
			name: "max unset",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(selectCalibrationSQL)).
					WithArgs(calibrationRowID).
					WillReturnRows(sqlmock.NewRows([]string{"min_bounds", "max_bounds", "updated_at"}).
						AddRow("[5,5,5,5,5,5,5,5,5,5,5,5,5,5]", nil, time.Now()))
			},
			wantOK: true,
			check: func(t *testing.T, p dataglove.CalibrationProfile) {
				if p.Min == nil || p.Min[0] != 5 || p.Max != nil {
					t.Fatalf("unexpected profile %+v", p)
				}
			},
		},
		{
			name: "corrupt bounds",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(selectCalibrationSQL)).
					WithArgs(calibrationRowID).
					WillReturnRows(sqlmock.NewRows([]string{"min_bounds", "max_bounds", "updated_at"}).
						AddRow("{", nil, time.Now()))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newCalibrationMock(t)
			tt.expect(mock)

			p, ok, err := repo.Load(ctx(t))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if tt.check != nil {
				tt.check(t, p)
			}
		})
	}
}

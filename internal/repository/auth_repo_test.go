package repository

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"dataglove"

	"github.com/DATA-DOG/go-sqlmock"
)

var operatorClock = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

func newOperatorMock(t *testing.T) (*OperatorRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sqlmock expectations: %v", err)
		}
		_ = db.Close()
	})
	repo := NewOperatorRepository(db)
	repo.now = func() time.Time { return operatorClock }
	return repo, mock
}

func TestOperatorRepository_Create(t *testing.T) {
	stamp := operatorClock.Format(timestampLayout)
	cases := []struct {
		name    string
		result  driver.Result
		execErr error
		wantID  int
		wantErr error
	}{
		{name: "stored with creation time", result: sqlmock.NewResult(3, 1), wantID: 3},
		{name: "username taken", execErr: errors.New("constraint failed: UNIQUE constraint failed: operators.username (2067)"), wantErr: ErrOperatorExists},
		{name: "driver failure", execErr: errors.New("disk I/O error")},
		{name: "no insert id", result: sqlmock.NewErrorResult(errors.New("no rowid"))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newOperatorMock(t)
			exp := mock.ExpectExec(regexp.QuoteMeta(insertOperatorSQL)).WithArgs("bench-op", "h", stamp)
			if tc.execErr != nil {
				exp.WillReturnError(tc.execErr)
			} else {
				exp.WillReturnResult(tc.result)
			}

			id, err := repo.Create("bench-op", "h")
			if tc.wantID != 0 {
				if err != nil || id != tc.wantID {
					t.Fatalf("Create = %d, %v; want %d", id, err, tc.wantID)
				}
				return
			}
			if err == nil || id != 0 {
				t.Fatalf("Create = %d, %v; want an error and id 0", id, err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
			if tc.wantErr == nil && errors.Is(err, ErrOperatorExists) {
				t.Fatalf("generic failures must not look like a taken username: %v", err)
			}
		})
	}
}

func TestOperatorRepository_GetByUsername(t *testing.T) {
	repo, mock := newOperatorMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(selectOperatorByUsernameSQL)).
		WithArgs("bench-op").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "created_at"}).
			AddRow(7, "bench-op", "h", operatorClock.Format(timestampLayout)))
	mock.ExpectQuery(regexp.QuoteMeta(selectOperatorByUsernameSQL)).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta(selectOperatorByUsernameSQL)).
		WithArgs("bench-op").
		WillReturnError(errors.New("database is locked"))

	op, err := repo.GetByUsername("bench-op")
	want := dataglove.Operator{ID: 7, Username: "bench-op", PasswordHash: "h", CreatedAt: operatorClock}
	if err != nil || op == nil || *op != want {
		t.Fatalf("found: got %+v, %v; want %+v", op, err, want)
	}

	if op, err := repo.GetByUsername("ghost"); op != nil || err != nil {
		t.Fatalf("missing operator: got %+v, %v; want nil, nil", op, err)
	}

	if op, err := repo.GetByUsername("bench-op"); err == nil || op != nil {
		t.Fatalf("query failure: got %+v, %v", op, err)
	}
}

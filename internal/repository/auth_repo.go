package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"dataglove"
)

// ErrOperatorExists is returned by Create when the username is taken.
var ErrOperatorExists = errors.New("operator already exists")

const (
	insertOperatorSQL           = `INSERT INTO operators (username, password_hash, created_at) VALUES (?, ?, ?)`
	selectOperatorByUsernameSQL = `SELECT id, username, password_hash, created_at FROM operators WHERE username = ?`
)

// OperatorRepository stores the accounts allowed to drive the glove API.
type OperatorRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewOperatorRepository(db *sql.DB) *OperatorRepository {
	return &OperatorRepository{db: db, now: time.Now}
}

var _ Authorization = (*OperatorRepository)(nil)

// Create inserts a new operator and returns its ID.
func (r *OperatorRepository) Create(username, passwordHash string) (int, error) {
	res, err := r.db.Exec(insertOperatorSQL, username, passwordHash, r.now().UTC().Format(timestampLayout))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %q", ErrOperatorExists, username)
		}
		return 0, fmt.Errorf("insert operator %q: %w", username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("operator %q inserted without id: %w", username, err)
	}
	return int(id), nil
}

// GetByUsername returns (nil, nil) when no operator has that username.
func (r *OperatorRepository) GetByUsername(username string) (*dataglove.Operator, error) {
	var (
		op      dataglove.Operator
		created string
	)
	err := r.db.QueryRow(selectOperatorByUsernameSQL, username).Scan(&op.ID, &op.Username, &op.PasswordHash, &created)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("select operator %q: %w", username, err)
	}
	if t, perr := time.Parse(timestampLayout, created); perr == nil {
		op.CreatedAt = t.UTC()
	}
	return &op, nil
}

// isUniqueViolation matches sqlite's constraint message; the driver's typed error is not
// available behind database/sql mocks.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

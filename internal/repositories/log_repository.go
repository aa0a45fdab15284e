package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/Divarin/Community-sub002/internal/models"
)

// LogRepository abstracts session audit log persistence.
type LogRepository interface {
	Insert(ctx context.Context, e models.LogEntry) error
}

// LogRepo is a sqlx implementation of LogRepository.
type LogRepo struct {
	db *sqlx.DB
}

// NewLogRepo constructs a LogRepo.
func NewLogRepo(db *sqlx.DB) *LogRepo {
	return &LogRepo{db: db}
}

// Insert stores an audit log entry.
func (r *LogRepo) Insert(ctx context.Context, e models.LogEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO log_entries (user_id, session_id, message) VALUES ($1, $2, $3)`,
		e.UserID, e.SessionID, e.Message)
	return err
}

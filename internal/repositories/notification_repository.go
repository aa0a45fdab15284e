package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/Divarin/Community-sub002/internal/models"
)

// NotificationRepository abstracts stored offline notifications.
type NotificationRepository interface {
	Insert(ctx context.Context, n models.Notification) (models.Notification, error)
	GetUnseenByUser(ctx context.Context, userID int) ([]models.Notification, error)
	MarkSeen(ctx context.Context, userID int) error
}

// NotificationRepo is a sqlx implementation of NotificationRepository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// Insert stores a notification.
func (r *NotificationRepo) Insert(ctx context.Context, n models.Notification) (models.Notification, error) {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO notifications (user_id, message)
         VALUES ($1, $2)
         RETURNING id, user_id, message, seen, created_at`,
		n.UserID, n.Message).
		StructScan(&n)
	return n, err
}

// GetUnseenByUser returns pending notifications in arrival order.
func (r *NotificationRepo) GetUnseenByUser(ctx context.Context, userID int) ([]models.Notification, error) {
	var rows []models.Notification
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, user_id, message, seen, created_at
         FROM notifications WHERE user_id=$1 AND seen=FALSE ORDER BY id`, userID)
	return rows, err
}

// MarkSeen flags every pending notification of the user as seen.
func (r *NotificationRepo) MarkSeen(ctx context.Context, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET seen=TRUE WHERE user_id=$1 AND seen=FALSE`, userID)
	return err
}

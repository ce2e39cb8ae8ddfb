package repository

import (
	"context"
	"fmt"

	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/database"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/models"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/logger"
)

const notificationColumns = `id, recipient_id, type, title, message, load_id, read, created_at`

// NotificationRepository handles database operations for in-app
// notifications
type NotificationRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *database.Database, logger logger.Logger) *NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an in-app notification row
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (id, recipient_id, type, title, message, load_id, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.DB.ExecContext(
		ctx,
		query,
		n.ID,
		n.RecipientID,
		n.Type,
		n.Title,
		n.Message,
		n.LoadID,
		n.Read,
		n.CreatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create notification", "error", err, "recipientID", n.RecipientID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// ListByRecipient retrieves a user's notifications, unread first, then
// newest first.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]*models.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY read ASC, created_at DESC
		LIMIT $2 OFFSET $3
	`

	var notifications []*models.Notification
	err := r.db.DB.SelectContext(ctx, &notifications, query, recipientID, limit, offset)

	if err != nil {
		r.logger.Error("Failed to list notifications", "error", err, "recipientID", recipientID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return notifications, nil
}

// CountUnread counts a user's unread notifications
func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND read = FALSE`

	var count int
	err := r.db.DB.GetContext(ctx, &count, query, recipientID)

	if err != nil {
		r.logger.Error("Failed to count unread notifications", "error", err, "recipientID", recipientID)
		return 0, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return count, nil
}

// MarkRead flips the read flag on one notification. The recipient predicate
// stops users from marking other people's notifications.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID string) error {
	query := `UPDATE notifications SET read = TRUE WHERE id = $1 AND recipient_id = $2`

	result, err := r.db.DB.ExecContext(ctx, query, id, recipientID)

	if err != nil {
		r.logger.Error("Failed to mark notification read", "error", err, "notificationID", id)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	rowsAffected, err := result.RowsAffected()

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// MarkAllRead flips the read flag on all of a user's notifications
func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID string) error {
	query := `UPDATE notifications SET read = TRUE WHERE recipient_id = $1 AND read = FALSE`

	_, err := r.db.DB.ExecContext(ctx, query, recipientID)

	if err != nil {
		r.logger.Error("Failed to mark all notifications read", "error", err, "recipientID", recipientID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

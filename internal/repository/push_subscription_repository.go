package repository

import (
	"context"
	"fmt"

	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/database"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/models"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/logger"
)

// PushSubscriptionRepository handles database operations for web-push
// subscriptions
type PushSubscriptionRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewPushSubscriptionRepository creates a new PushSubscriptionRepository
func NewPushSubscriptionRepository(db *database.Database, logger logger.Logger) *PushSubscriptionRepository {
	return &PushSubscriptionRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert stores a subscription, replacing the keys if the user re-subscribes
// the same endpoint.
func (r *PushSubscriptionRepository) Upsert(ctx context.Context, sub *models.PushSubscription) error {
	query := `
		INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh, auth, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, endpoint)
		DO UPDATE SET p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth
	`

	_, err := r.db.DB.ExecContext(
		ctx,
		query,
		sub.ID,
		sub.UserID,
		sub.Endpoint,
		sub.P256dh,
		sub.Auth,
		sub.CreatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to upsert push subscription", "error", err, "userID", sub.UserID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// ListByUser retrieves all of a user's registered device endpoints
func (r *PushSubscriptionRepository) ListByUser(ctx context.Context, userID string) ([]*models.PushSubscription, error) {
	query := `
		SELECT id, user_id, endpoint, p256dh, auth, created_at
		FROM push_subscriptions
		WHERE user_id = $1
	`

	var subs []*models.PushSubscription
	err := r.db.DB.SelectContext(ctx, &subs, query, userID)

	if err != nil {
		r.logger.Error("Failed to list push subscriptions", "error", err, "userID", userID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return subs, nil
}

// Delete removes a subscription on opt-out or when the endpoint reports
// itself permanently gone during dispatch.
func (r *PushSubscriptionRepository) Delete(ctx context.Context, userID, endpoint string) error {
	query := `DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2`

	_, err := r.db.DB.ExecContext(ctx, query, userID, endpoint)

	if err != nil {
		r.logger.Error("Failed to delete push subscription", "error", err, "userID", userID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

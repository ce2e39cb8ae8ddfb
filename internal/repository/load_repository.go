package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/database"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/models"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/logger"
)

const loadColumns = `
	id, client_id, origin_address, destination_address, trailer_type, weight_lbs,
	pickup_date, pickup_time, delivery_date, delivery_time, delivery_asap, status,
	assigned_at, arrived_at, loaded_at, in_transit_at, arrived_at_delivery_at, delivered_at,
	driver_id, driver_name, truck_number, price_cents, eta,
	client_signature_url, signature_timestamp,
	payment_required, payment_status, payment_intent_id, paid_at,
	created_at, updated_at`

// LoadRepository handles database operations for loads. Every status
// mutation is a single conditional update matching id AND the expected
// predecessor status, with the matching change-feed event written in the
// same transaction.
type LoadRepository struct {
	db     *database.Database
	outbox *OutboxRepository
	logger logger.Logger
}

// NewLoadRepository creates a new LoadRepository
func NewLoadRepository(db *database.Database, outbox *OutboxRepository, logger logger.Logger) *LoadRepository {
	return &LoadRepository{
		db:     db,
		outbox: outbox,
		logger: logger,
	}
}

// CreateLoad inserts a new pending load and its created event atomically.
func (r *LoadRepository) CreateLoad(ctx context.Context, load *models.Load) error {
	event, err := models.NewLoadCreatedEvent(load)

	if err != nil {
		return fmt.Errorf("failed to build load created event: %v", err)
	}

	tx, err := r.db.DB.BeginTxx(ctx, nil)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Error("Failed to rollback transaction", "error", rbErr)
			}
		}
	}()

	query := `
		INSERT INTO loads (
			id, client_id, origin_address, destination_address, trailer_type, weight_lbs,
			pickup_date, pickup_time, delivery_date, delivery_time, delivery_asap, status,
			payment_required, payment_status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err = tx.ExecContext(
		ctx,
		query,
		load.ID,
		load.ClientID,
		load.OriginAddress,
		load.DestinationAddress,
		load.TrailerType,
		load.WeightLbs,
		load.PickupDate,
		load.PickupTime,
		load.DeliveryDate,
		load.DeliveryTime,
		load.DeliveryASAP,
		load.Status,
		load.PaymentRequired,
		load.PaymentStatus,
		load.CreatedAt,
		load.UpdatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create load", "error", err, "loadID", load.ID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if err = r.outbox.CreateInTx(ctx, tx, event); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		r.logger.Error("Failed to commit load creation", "error", err, "loadID", load.ID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// GetLoad retrieves a load by its ID
func (r *LoadRepository) GetLoad(ctx context.Context, id string) (*models.Load, error) {
	query := `SELECT ` + loadColumns + ` FROM loads WHERE id = $1`

	var load models.Load
	err := r.db.DB.GetContext(ctx, &load, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get load by ID", "error", err, "loadID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &load, nil
}

// ListByClient retrieves loads owned by a client, newest first.
func (r *LoadRepository) ListByClient(ctx context.Context, clientID string, limit, offset int) ([]*models.Load, error) {
	query := `SELECT ` + loadColumns + `
		FROM loads WHERE client_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	var loads []*models.Load
	err := r.db.DB.SelectContext(ctx, &loads, query, clientID, limit, offset)

	if err != nil {
		r.logger.Error("Failed to list loads by client", "error", err, "clientID", clientID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return loads, nil
}

// ListByDriver retrieves loads assigned to a driver, newest first.
func (r *LoadRepository) ListByDriver(ctx context.Context, driverID string, limit, offset int) ([]*models.Load, error) {
	query := `SELECT ` + loadColumns + `
		FROM loads WHERE driver_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	var loads []*models.Load
	err := r.db.DB.SelectContext(ctx, &loads, query, driverID, limit, offset)

	if err != nil {
		r.logger.Error("Failed to list loads by driver", "error", err, "driverID", driverID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return loads, nil
}

// ListAll retrieves all loads with pagination, newest first.
func (r *LoadRepository) ListAll(ctx context.Context, limit, offset int) ([]*models.Load, error) {
	query := `SELECT ` + loadColumns + `
		FROM loads ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	var loads []*models.Load
	err := r.db.DB.SelectContext(ctx, &loads, query, limit, offset)

	if err != nil {
		r.logger.Error("Failed to list loads", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return loads, nil
}

// AssignLoad performs the pending-to-assigned transition: one conditional
// update matching the expected predecessor status, setting all assignment
// fields and assigned_at together. Returns applied=false when the load was
// not in pending (illegal transition or lost race).
func (r *LoadRepository) AssignLoad(ctx context.Context, loadID string, a models.Assignment) (*models.Load, bool, error) {
	now := models.GetCurrentTime()

	query := `
		UPDATE loads
		SET status = $1, assigned_at = $2, driver_id = $3, driver_name = $4,
		    truck_number = $5, price_cents = $6, eta = $7, updated_at = $8
		WHERE id = $9 AND status = $10
		RETURNING ` + loadColumns

	return r.conditionalUpdate(ctx, loadID, models.LoadStatusPending, func(load *models.Load) (*models.OutboxMessage, error) {
		return models.NewLoadStatusChangedEvent(load, models.LoadStatusPending)
	}, query,
		models.LoadStatusAssigned, now, a.DriverID, a.DriverName,
		a.TruckNumber, a.PriceCents, a.ETA, now, loadID, models.LoadStatusPending)
}

// UpdateAssignment edits an existing assignment in place. assigned_at is not
// restamped. Returns applied=false when the load is no longer in assigned.
func (r *LoadRepository) UpdateAssignment(ctx context.Context, loadID string, a models.Assignment) (*models.Load, bool, error) {
	now := models.GetCurrentTime()

	query := `
		UPDATE loads
		SET driver_id = $1, driver_name = $2, truck_number = $3,
		    price_cents = $4, eta = $5, updated_at = $6
		WHERE id = $7 AND status = $8
		RETURNING ` + loadColumns

	return r.conditionalUpdate(ctx, loadID, models.LoadStatusAssigned, func(load *models.Load) (*models.OutboxMessage, error) {
		return models.NewLoadAssignmentUpdatedEvent(load)
	}, query,
		a.DriverID, a.DriverName, a.TruckNumber, a.PriceCents, a.ETA, now,
		loadID, models.LoadStatusAssigned)
}

// AdvanceStatus applies a driver transition as one conditional update from
// the given predecessor, stamping the transition's timestamp column. For
// deliver with a captured signature the proof columns are written in the
// same update. Returns applied=false on a predecessor mismatch.
func (r *LoadRepository) AdvanceStatus(ctx context.Context, loadID string, tr models.Transition, from models.LoadStatus, proof *models.SignatureProof) (*models.Load, bool, error) {
	spec := tr.Spec()
	now := models.GetCurrentTime()

	// The timestamp column comes from the transition catalog, never from
	// caller input.
	if proof != nil {
		query := fmt.Sprintf(`
			UPDATE loads
			SET status = $1, %s = $2, client_signature_url = $3,
			    signature_timestamp = $4, updated_at = $5
			WHERE id = $6 AND status = $7
			RETURNING `+loadColumns, spec.TimestampColumn)

		return r.conditionalUpdate(ctx, loadID, from, func(load *models.Load) (*models.OutboxMessage, error) {
			return models.NewLoadStatusChangedEvent(load, from)
		}, query,
			spec.To, now, proof.URL, proof.Captured, now, loadID, from)
	}

	query := fmt.Sprintf(`
		UPDATE loads
		SET status = $1, %s = $2, updated_at = $3
		WHERE id = $4 AND status = $5
		RETURNING `+loadColumns, spec.TimestampColumn)

	return r.conditionalUpdate(ctx, loadID, from, func(load *models.Load) (*models.OutboxMessage, error) {
		return models.NewLoadStatusChangedEvent(load, from)
	}, query,
		spec.To, now, now, loadID, from)
}

// SetPaymentIntent records the checkout session against the load, gated on
// payment still being pending.
func (r *LoadRepository) SetPaymentIntent(ctx context.Context, loadID, intentID string) (*models.Load, bool, error) {
	now := models.GetCurrentTime()

	query := `
		UPDATE loads
		SET payment_intent_id = $1, updated_at = $2
		WHERE id = $3 AND payment_required = TRUE AND payment_status = $4
		RETURNING ` + loadColumns

	return r.conditionalUpdate(ctx, loadID, "", func(load *models.Load) (*models.OutboxMessage, error) {
		return models.NewPaymentStatusChangedEvent(load)
	}, query,
		intentID, now, loadID, models.PaymentStatusPending)
}

// MarkPaid records a confirmed payment, stamping paid_at once.
func (r *LoadRepository) MarkPaid(ctx context.Context, loadID string) (*models.Load, bool, error) {
	now := models.GetCurrentTime()

	query := `
		UPDATE loads
		SET payment_status = $1, paid_at = $2, updated_at = $3
		WHERE id = $4 AND payment_status = $5
		RETURNING ` + loadColumns

	return r.conditionalUpdate(ctx, loadID, "", func(load *models.Load) (*models.OutboxMessage, error) {
		return models.NewPaymentStatusChangedEvent(load)
	}, query,
		models.PaymentStatusPaid, now, now, loadID, models.PaymentStatusPending)
}

// MarkPaymentFailed records a failed or expired checkout.
func (r *LoadRepository) MarkPaymentFailed(ctx context.Context, loadID string) (*models.Load, bool, error) {
	now := models.GetCurrentTime()

	query := `
		UPDATE loads
		SET payment_status = $1, updated_at = $2
		WHERE id = $3 AND payment_status = $4
		RETURNING ` + loadColumns

	return r.conditionalUpdate(ctx, loadID, "", func(load *models.Load) (*models.OutboxMessage, error) {
		return models.NewPaymentStatusChangedEvent(load)
	}, query,
		models.PaymentStatusFailed, now, loadID, models.PaymentStatusPending)
}

// CountActiveByDriver counts a driver's loads in any non-terminal,
// non-pending status. Used as the load-balancing hint on the candidate list.
func (r *LoadRepository) CountActiveByDriver(ctx context.Context, driverID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM loads
		WHERE driver_id = $1 AND status IN ($2, $3, $4, $5, $6)
	`

	var count int
	err := r.db.DB.GetContext(ctx, &count, query, driverID,
		models.LoadStatusAssigned,
		models.LoadStatusArrived,
		models.LoadStatusLoaded,
		models.LoadStatusInTransit,
		models.LoadStatusArrivedAtDelivery,
	)

	if err != nil {
		r.logger.Error("Failed to count active loads by driver", "error", err, "driverID", driverID)
		return 0, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return count, nil
}

// conditionalUpdate runs one conditional UPDATE ... RETURNING inside a
// transaction and, when a row matched, writes the change-feed event built
// from the updated row. sql.ErrNoRows from RETURNING means the predicate
// did not match: the caller lost a race or requested an illegal transition.
func (r *LoadRepository) conditionalUpdate(
	ctx context.Context,
	loadID string,
	expected models.LoadStatus,
	buildEvent func(*models.Load) (*models.OutboxMessage, error),
	query string,
	args ...interface{},
) (*models.Load, bool, error) {
	tx, err := r.db.DB.BeginTxx(ctx, nil)

	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Error("Failed to rollback transaction", "error", rbErr)
			}
		}
	}()

	var load models.Load
	err = tx.QueryRowxContext(ctx, query, args...).StructScan(&load)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// No row matched the predicate. Roll back and report not-applied.
			err = nil
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Error("Failed to rollback transaction", "error", rbErr)
			}
			r.logger.Debug("Conditional update matched no rows",
				"loadID", loadID, "expectedStatus", expected)
			return nil, false, nil
		}
		r.logger.Error("Conditional update failed", "error", err, "loadID", loadID)
		return nil, false, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	event, err := buildEvent(&load)

	if err != nil {
		return nil, false, fmt.Errorf("failed to build change-feed event: %v", err)
	}

	if err = r.outbox.CreateInTx(ctx, tx, event); err != nil {
		return nil, false, err
	}

	if err = tx.Commit(); err != nil {
		r.logger.Error("Failed to commit conditional update", "error", err, "loadID", loadID)
		return nil, false, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &load, true, nil
}

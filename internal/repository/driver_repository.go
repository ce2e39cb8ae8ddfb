package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/database"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/models"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/logger"
)

const driverColumns = `
	id, account_id, account_linked, invite_email, name, truck_type, truck_number,
	availability_status, available_at, active, created_at, updated_at`

// DriverRepository handles database operations for drivers
type DriverRepository struct {
	db     *database.Database
	outbox *OutboxRepository
	logger logger.Logger
}

// NewDriverRepository creates a new DriverRepository
func NewDriverRepository(db *database.Database, outbox *OutboxRepository, logger logger.Logger) *DriverRepository {
	return &DriverRepository{
		db:     db,
		outbox: outbox,
		logger: logger,
	}
}

// Create inserts a new provisioned driver
func (r *DriverRepository) Create(ctx context.Context, driver *models.Driver) error {
	query := `
		INSERT INTO drivers (
			id, account_id, account_linked, invite_email, name, truck_type, truck_number,
			availability_status, available_at, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.DB.ExecContext(
		ctx,
		query,
		driver.ID,
		driver.AccountID,
		driver.AccountLinked,
		driver.InviteEmail,
		driver.Name,
		driver.TruckType,
		driver.TruckNumber,
		driver.AvailabilityStatus,
		driver.AvailableAt,
		driver.Active,
		driver.CreatedAt,
		driver.UpdatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create driver", "error", err, "driverID", driver.ID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// GetByID retrieves a driver by its ID
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*models.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE id = $1`

	var driver models.Driver
	err := r.db.DB.GetContext(ctx, &driver, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get driver by ID", "error", err, "driverID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &driver, nil
}

// GetByAccountID retrieves the driver linked to an account
func (r *DriverRepository) GetByAccountID(ctx context.Context, accountID string) (*models.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE account_id = $1 AND active = TRUE`

	var driver models.Driver
	err := r.db.DB.GetContext(ctx, &driver, query, accountID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get driver by account ID", "error", err, "accountID", accountID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &driver, nil
}

// GetByInviteEmail retrieves an active, still-unlinked driver by invite email
func (r *DriverRepository) GetByInviteEmail(ctx context.Context, email string) (*models.Driver, error) {
	query := `SELECT ` + driverColumns + `
		FROM drivers WHERE invite_email = $1 AND account_linked = FALSE AND active = TRUE`

	var driver models.Driver
	err := r.db.DB.GetContext(ctx, &driver, query, email)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get driver by invite email", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &driver, nil
}

// ListAvailable retrieves active drivers whose availability is available.
func (r *DriverRepository) ListAvailable(ctx context.Context) ([]*models.Driver, error) {
	query := `SELECT ` + driverColumns + `
		FROM drivers WHERE active = TRUE AND availability_status = $1
		ORDER BY name ASC`

	var drivers []*models.Driver
	err := r.db.DB.SelectContext(ctx, &drivers, query, models.DriverAvailable)

	if err != nil {
		r.logger.Error("Failed to list available drivers", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return drivers, nil
}

// ListAll retrieves all active drivers
func (r *DriverRepository) ListAll(ctx context.Context) ([]*models.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE active = TRUE ORDER BY name ASC`

	var drivers []*models.Driver
	err := r.db.DB.SelectContext(ctx, &drivers, query)

	if err != nil {
		r.logger.Error("Failed to list drivers", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return drivers, nil
}

// SetAvailability updates a driver's availability and writes the matching
// change-feed event in the same transaction. available_at carries the time
// a not-available driver becomes available again.
func (r *DriverRepository) SetAvailability(ctx context.Context, driverID string, status models.AvailabilityStatus, availableAt *time.Time) (*models.Driver, error) {
	tx, err := r.db.DB.BeginTxx(ctx, nil)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Error("Failed to rollback transaction", "error", rbErr)
			}
		}
	}()

	query := `
		UPDATE drivers
		SET availability_status = $1, available_at = $2, updated_at = $3
		WHERE id = $4 AND active = TRUE
		RETURNING ` + driverColumns

	var driver models.Driver
	err = tx.QueryRowxContext(ctx, query, status, availableAt, models.GetCurrentTime(), driverID).StructScan(&driver)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNotFound
			return nil, err
		}
		r.logger.Error("Failed to set driver availability", "error", err, "driverID", driverID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	event, err := models.NewDriverAvailabilityChangedEvent(&driver)

	if err != nil {
		return nil, fmt.Errorf("failed to build availability event: %v", err)
	}

	if err = r.outbox.CreateInTx(ctx, tx, event); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		r.logger.Error("Failed to commit availability change", "error", err, "driverID", driverID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &driver, nil
}

// LinkAccount attaches the real account to a provisioned driver record.
func (r *DriverRepository) LinkAccount(ctx context.Context, driverID, accountID string) error {
	query := `
		UPDATE drivers
		SET account_id = $1, account_linked = TRUE, updated_at = $2
		WHERE id = $3 AND account_linked = FALSE
	`

	result, err := r.db.DB.ExecContext(ctx, query, accountID, models.GetCurrentTime(), driverID)

	if err != nil {
		r.logger.Error("Failed to link driver account", "error", err, "driverID", driverID)
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

// Deactivate soft-deletes a driver. Historical loads keep referencing it.
func (r *DriverRepository) Deactivate(ctx context.Context, driverID string) error {
	query := `UPDATE drivers SET active = FALSE, updated_at = $1 WHERE id = $2`

	result, err := r.db.DB.ExecContext(ctx, query, models.GetCurrentTime(), driverID)

	if err != nil {
		r.logger.Error("Failed to deactivate driver", "error", err, "driverID", driverID)
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

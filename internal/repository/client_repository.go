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

const clientColumns = `
	id, account_id, account_linked, invite_email, name, company_name, phone, email,
	active, created_at, updated_at`

// ClientRepository handles database operations for clients
type ClientRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewClientRepository creates a new ClientRepository
func NewClientRepository(db *database.Database, logger logger.Logger) *ClientRepository {
	return &ClientRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new provisioned client
func (r *ClientRepository) Create(ctx context.Context, client *models.Client) error {
	query := `
		INSERT INTO clients (
			id, account_id, account_linked, invite_email, name, company_name, phone, email,
			active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.DB.ExecContext(
		ctx,
		query,
		client.ID,
		client.AccountID,
		client.AccountLinked,
		client.InviteEmail,
		client.Name,
		client.CompanyName,
		client.Phone,
		client.Email,
		client.Active,
		client.CreatedAt,
		client.UpdatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create client", "error", err, "clientID", client.ID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// GetByID retrieves a client by its ID
func (r *ClientRepository) GetByID(ctx context.Context, id string) (*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`

	var client models.Client
	err := r.db.DB.GetContext(ctx, &client, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get client by ID", "error", err, "clientID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &client, nil
}

// GetByAccountID retrieves the client linked to an account
func (r *ClientRepository) GetByAccountID(ctx context.Context, accountID string) (*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE account_id = $1 AND active = TRUE`

	var client models.Client
	err := r.db.DB.GetContext(ctx, &client, query, accountID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get client by account ID", "error", err, "accountID", accountID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &client, nil
}

// GetByInviteEmail retrieves an active, still-unlinked client by invite email
func (r *ClientRepository) GetByInviteEmail(ctx context.Context, email string) (*models.Client, error) {
	query := `SELECT ` + clientColumns + `
		FROM clients WHERE invite_email = $1 AND account_linked = FALSE AND active = TRUE`

	var client models.Client
	err := r.db.DB.GetContext(ctx, &client, query, email)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get client by invite email", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &client, nil
}

// ListAll retrieves all active clients
func (r *ClientRepository) ListAll(ctx context.Context) ([]*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE active = TRUE ORDER BY name ASC`

	var clients []*models.Client
	err := r.db.DB.SelectContext(ctx, &clients, query)

	if err != nil {
		r.logger.Error("Failed to list clients", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return clients, nil
}

// LinkAccount attaches the real account to a provisioned client record.
func (r *ClientRepository) LinkAccount(ctx context.Context, clientID, accountID string) error {
	query := `
		UPDATE clients
		SET account_id = $1, account_linked = TRUE, updated_at = $2
		WHERE id = $3 AND account_linked = FALSE
	`

	result, err := r.db.DB.ExecContext(ctx, query, accountID, models.GetCurrentTime(), clientID)

	if err != nil {
		r.logger.Error("Failed to link client account", "error", err, "clientID", clientID)
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

// Deactivate soft-deletes a client
func (r *ClientRepository) Deactivate(ctx context.Context, clientID string) error {
	query := `UPDATE clients SET active = FALSE, updated_at = $1 WHERE id = $2`

	result, err := r.db.DB.ExecContext(ctx, query, models.GetCurrentTime(), clientID)

	if err != nil {
		r.logger.Error("Failed to deactivate client", "error", err, "clientID", clientID)
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

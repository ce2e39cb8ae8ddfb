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

// UserRoleRepository handles role lookups for authorization and audience
// resolution
type UserRoleRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewUserRoleRepository creates a new UserRoleRepository
func NewUserRoleRepository(db *database.Database, logger logger.Logger) *UserRoleRepository {
	return &UserRoleRepository{
		db:     db,
		logger: logger,
	}
}

// GetRole retrieves the role for a user
func (r *UserRoleRepository) GetRole(ctx context.Context, userID string) (models.Role, error) {
	query := `SELECT role FROM user_roles WHERE user_id = $1`

	var role models.Role
	err := r.db.DB.GetContext(ctx, &role, query, userID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		r.logger.Error("Failed to get user role", "error", err, "userID", userID)
		return "", fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return role, nil
}

// SetRole upserts the role for a user
func (r *UserRoleRepository) SetRole(ctx context.Context, userID string, role models.Role) error {
	query := `
		INSERT INTO user_roles (user_id, role, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role
	`

	_, err := r.db.DB.ExecContext(ctx, query, userID, role, models.GetCurrentTime())

	if err != nil {
		r.logger.Error("Failed to set user role", "error", err, "userID", userID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// ListDispatcherIDs retrieves the user ids of all dispatchers. Used for
// secondary-audience resolution.
func (r *UserRoleRepository) ListDispatcherIDs(ctx context.Context) ([]string, error) {
	query := `SELECT user_id FROM user_roles WHERE role = $1`

	var ids []string
	err := r.db.DB.SelectContext(ctx, &ids, query, models.RoleDispatcher)

	if err != nil {
		r.logger.Error("Failed to list dispatcher ids", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return ids, nil
}

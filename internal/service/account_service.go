package service

import (
	"context"
	"errors"

	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/models"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/repository"
	apperrors "github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/errors"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/logger"
)

// ClientStore is the slice of the store the account service needs for
// clients.
type ClientStore interface {
	Create(ctx context.Context, client *models.Client) error
	GetByInviteEmail(ctx context.Context, email string) (*models.Client, error)
	LinkAccount(ctx context.Context, clientID, accountID string) error
	ListAll(ctx context.Context) ([]*models.Client, error)
	Deactivate(ctx context.Context, clientID string) error
}

// DriverLinker is the driver half of invite linking.
type DriverLinker interface {
	GetByInviteEmail(ctx context.Context, email string) (*models.Driver, error)
	LinkAccount(ctx context.Context, driverID, accountID string) error
}

// RoleStore assigns roles to linked accounts.
type RoleStore interface {
	SetRole(ctx context.Context, userID string, role models.Role) error
}

// AccountService covers client provisioning and the signup-time linking of
// pre-provisioned driver/client records to real accounts.
type AccountService struct {
	clients ClientStore
	drivers DriverLinker
	roles   RoleStore
	logger  logger.Logger
}

// NewAccountService creates an account service
func NewAccountService(clients ClientStore, drivers DriverLinker, roles RoleStore, logger logger.Logger) *AccountService {
	return &AccountService{
		clients: clients,
		drivers: drivers,
		roles:   roles,
		logger:  logger,
	}
}

// ProvisionClient creates a client record with a placeholder account link.
func (s *AccountService) ProvisionClient(ctx context.Context, actor models.Actor, name, companyName, phone, email string) (*models.Client, error) {
	if actor.Role != models.RoleDispatcher {
		return nil, apperrors.NewAuthorizationError("only dispatchers can provision clients")
	}

	if name == "" || email == "" {
		return nil, apperrors.NewValidationError("name and email are required")
	}

	client := models.NewClient(name, companyName, phone, email)

	if err := s.clients.Create(ctx, client); err != nil {
		return nil, mapStoreError(err, "")
	}

	s.logger.Info("Client provisioned", "clientID", client.ID, "inviteEmail", email)
	return client, nil
}

// LinkSignup attaches a freshly signed-up account to the provisioned
// driver or client record whose invite email matches, and records the
// account's role. Called once after the hosted auth provider completes a
// signup.
func (s *AccountService) LinkSignup(ctx context.Context, accountID, email string) (models.Role, error) {
	if accountID == "" || email == "" {
		return "", apperrors.NewValidationError("account id and email are required")
	}

	if driver, err := s.drivers.GetByInviteEmail(ctx, email); err == nil {
		if err := s.drivers.LinkAccount(ctx, driver.ID, accountID); err != nil {
			return "", mapStoreError(err, "driver invite no longer open")
		}

		if err := s.roles.SetRole(ctx, accountID, models.RoleDriver); err != nil {
			return "", mapStoreError(err, "")
		}

		s.logger.Info("Driver account linked", "driverID", driver.ID, "accountID", accountID)
		return models.RoleDriver, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return "", mapStoreError(err, "")
	}

	if client, err := s.clients.GetByInviteEmail(ctx, email); err == nil {
		if err := s.clients.LinkAccount(ctx, client.ID, accountID); err != nil {
			return "", mapStoreError(err, "client invite no longer open")
		}

		if err := s.roles.SetRole(ctx, accountID, models.RoleClient); err != nil {
			return "", mapStoreError(err, "")
		}

		s.logger.Info("Client account linked", "clientID", client.ID, "accountID", accountID)
		return models.RoleClient, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return "", mapStoreError(err, "")
	}

	return "", apperrors.NewNotFoundError("no open invite for this email")
}

// ListClients returns the active client directory.
func (s *AccountService) ListClients(ctx context.Context, actor models.Actor) ([]*models.Client, error) {
	if actor.Role != models.RoleDispatcher {
		return nil, apperrors.NewAuthorizationError("only dispatchers can list clients")
	}

	clients, err := s.clients.ListAll(ctx)

	if err != nil {
		return nil, mapStoreError(err, "")
	}

	return clients, nil
}

// DeactivateClient soft-deletes a client from the directory.
func (s *AccountService) DeactivateClient(ctx context.Context, actor models.Actor, clientID string) error {
	if actor.Role != models.RoleDispatcher {
		return apperrors.NewAuthorizationError("only dispatchers can deactivate clients")
	}

	if err := s.clients.Deactivate(ctx, clientID); err != nil {
		return mapStoreError(err, "client not found")
	}

	s.logger.Info("Client deactivated", "clientID", clientID)
	return nil
}

package service

import (
	"context"
	"errors"
	"time"

	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/models"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/notify"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/repository"
	apperrors "github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/errors"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/logger"
)

// DriverStore is the slice of the store the driver service needs.
type DriverStore interface {
	Create(ctx context.Context, driver *models.Driver) error
	GetByID(ctx context.Context, id string) (*models.Driver, error)
	GetByAccountID(ctx context.Context, accountID string) (*models.Driver, error)
	ListAvailable(ctx context.Context) ([]*models.Driver, error)
	ListAll(ctx context.Context) ([]*models.Driver, error)
	SetAvailability(ctx context.Context, driverID string, status models.AvailabilityStatus, availableAt *time.Time) (*models.Driver, error)
	Deactivate(ctx context.Context, driverID string) error
}

// LoadCounter exposes the active-load count used as the assignment
// load-balancing hint.
type LoadCounter interface {
	CountActiveByDriver(ctx context.Context, driverID string) (int, error)
}

// Notifier is the notification dispatch service.
type Notifier interface {
	Dispatch(ctx context.Context, e notify.Event) (notify.Result, error)
}

// DriverService covers the dispatcher-facing driver directory and driver
// availability changes.
type DriverService struct {
	drivers  DriverStore
	loads    LoadCounter
	notifier Notifier
	logger   logger.Logger
}

// NewDriverService creates a driver service
func NewDriverService(drivers DriverStore, loads LoadCounter, notifier Notifier, logger logger.Logger) *DriverService {
	return &DriverService{
		drivers:  drivers,
		loads:    loads,
		notifier: notifier,
		logger:   logger,
	}
}

// Candidate is one assignable driver with its active-load count.
type Candidate struct {
	Driver      *models.Driver `json:"driver"`
	ActiveLoads int            `json:"active_loads"`
}

// ListCandidates returns available drivers with their current count of
// loads in any non-terminal, non-pending status, as a load-balancing hint
// for the assignment form.
func (s *DriverService) ListCandidates(ctx context.Context, actor models.Actor) ([]*Candidate, error) {
	if actor.Role != models.RoleDispatcher {
		return nil, apperrors.NewAuthorizationError("only dispatchers can list assignable drivers")
	}

	drivers, err := s.drivers.ListAvailable(ctx)

	if err != nil {
		return nil, mapStoreError(err, "")
	}

	candidates := make([]*Candidate, 0, len(drivers))

	for _, driver := range drivers {
		count, err := s.loads.CountActiveByDriver(ctx, driver.ID)

		if err != nil {
			// The hint is advisory; show the driver without it.
			s.logger.Warn("Failed to count active loads", "error", err, "driverID", driver.ID)
			count = 0
		}

		candidates = append(candidates, &Candidate{Driver: driver, ActiveLoads: count})
	}

	return candidates, nil
}

// Provision creates a driver record with a placeholder account link. The
// real account attaches later when the invited person signs up.
func (s *DriverService) Provision(ctx context.Context, actor models.Actor, name, inviteEmail, truckType, truckNumber string) (*models.Driver, error) {
	if actor.Role != models.RoleDispatcher {
		return nil, apperrors.NewAuthorizationError("only dispatchers can provision drivers")
	}

	if name == "" || inviteEmail == "" || truckNumber == "" {
		return nil, apperrors.NewValidationError("name, invite email, and truck number are required")
	}

	trailer, err := models.ParseTrailerType(truckType)

	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	driver := models.NewDriver(name, inviteEmail, trailer, truckNumber)

	if err := s.drivers.Create(ctx, driver); err != nil {
		return nil, mapStoreError(err, "")
	}

	s.logger.Info("Driver provisioned", "driverID", driver.ID, "inviteEmail", inviteEmail)
	return driver, nil
}

// SetAvailability changes a driver's availability. Drivers may change their
// own; dispatchers may change anyone's. Every change notifies all
// dispatchers.
func (s *DriverService) SetAvailability(ctx context.Context, actor models.Actor, driverID string, status models.AvailabilityStatus, availableAt *time.Time) (*models.Driver, error) {
	switch actor.Role {
	case models.RoleDispatcher:
	case models.RoleDriver:
		own, err := s.drivers.GetByAccountID(ctx, actor.UserID)

		if err != nil {
			return nil, mapStoreError(err, "no driver record for this account")
		}

		if own.ID != driverID {
			return nil, apperrors.NewAuthorizationError("drivers can only change their own availability")
		}
	default:
		return nil, apperrors.NewAuthorizationError("clients cannot change driver availability")
	}

	if status != models.DriverNotAvailable {
		availableAt = nil
	}

	driver, err := s.drivers.SetAvailability(ctx, driverID, status, availableAt)

	if err != nil {
		return nil, mapStoreError(err, "driver not found")
	}

	s.logger.Info("Driver availability changed", "driverID", driverID, "status", status)

	availability := string(status)

	if availableAt != nil {
		availability += " until " + availableAt.Format("Jan 2, 2006 3:04 PM MST")
	}

	_, dispatchErr := s.notifier.Dispatch(ctx, notify.Event{
		Type:              models.NotificationDriverAvailability,
		NotifyDispatchers: true,
		Data: map[string]string{
			"driver_name":  driver.Name,
			"availability": availability,
		},
	})

	if dispatchErr != nil {
		s.logger.Warn("Availability notification degraded", "error", dispatchErr, "driverID", driverID)
		return driver, apperrors.NewDispatchDegradedError(
			"availability changed but dispatcher notifications degraded")
	}

	return driver, nil
}

// Deactivate soft-deletes a driver from the directory.
func (s *DriverService) Deactivate(ctx context.Context, actor models.Actor, driverID string) error {
	if actor.Role != models.RoleDispatcher {
		return apperrors.NewAuthorizationError("only dispatchers can deactivate drivers")
	}

	if err := s.drivers.Deactivate(ctx, driverID); err != nil {
		return mapStoreError(err, "driver not found")
	}

	s.logger.Info("Driver deactivated", "driverID", driverID)
	return nil
}

// ListAll returns the full active driver directory.
func (s *DriverService) ListAll(ctx context.Context, actor models.Actor) ([]*models.Driver, error) {
	if actor.Role != models.RoleDispatcher {
		return nil, apperrors.NewAuthorizationError("only dispatchers can list drivers")
	}

	drivers, err := s.drivers.ListAll(ctx)

	if err != nil {
		return nil, mapStoreError(err, "")
	}

	return drivers, nil
}

func mapStoreError(err error, notFoundMsg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		if notFoundMsg == "" {
			notFoundMsg = "record not found"
		}
		return apperrors.NewNotFoundError(notFoundMsg)
	}
	return apperrors.NewStoreUnavailableError(err.Error())
}

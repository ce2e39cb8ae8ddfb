package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/models"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/notify"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/repository"
	apperrors "github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/errors"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/logger"
)

// LoadStore is the slice of the persistent store the lifecycle manager
// needs. Mutations are atomic conditional updates: applied=false reports a
// predecessor mismatch (illegal request or lost race), never a partial
// write.
type LoadStore interface {
	CreateLoad(ctx context.Context, load *models.Load) error
	GetLoad(ctx context.Context, id string) (*models.Load, error)
	AssignLoad(ctx context.Context, loadID string, a models.Assignment) (*models.Load, bool, error)
	UpdateAssignment(ctx context.Context, loadID string, a models.Assignment) (*models.Load, bool, error)
	AdvanceStatus(ctx context.Context, loadID string, tr models.Transition, from models.LoadStatus, proof *models.SignatureProof) (*models.Load, bool, error)
}

// DriverStore resolves and updates driver records.
type DriverStore interface {
	GetByID(ctx context.Context, id string) (*models.Driver, error)
	GetByAccountID(ctx context.Context, accountID string) (*models.Driver, error)
	SetAvailability(ctx context.Context, driverID string, status models.AvailabilityStatus, availableAt *time.Time) (*models.Driver, error)
}

// ClientStore resolves client records for ownership checks and audience
// resolution.
type ClientStore interface {
	GetByID(ctx context.Context, id string) (*models.Client, error)
	GetByAccountID(ctx context.Context, accountID string) (*models.Client, error)
}

// Notifier is the notification dispatch service.
type Notifier interface {
	Dispatch(ctx context.Context, e notify.Event) (notify.Result, error)
}

// Manager owns the load status state machine: it enforces legal
// transitions, stamps per-transition timestamps, and fans out notifications
// with the right audience after each committed write.
type Manager struct {
	loads    LoadStore
	drivers  DriverStore
	clients  ClientStore
	notifier Notifier
	logger   logger.Logger
}

// NewManager creates a lifecycle manager
func NewManager(loads LoadStore, drivers DriverStore, clients ClientStore, notifier Notifier, logger logger.Logger) *Manager {
	return &Manager{
		loads:    loads,
		drivers:  drivers,
		clients:  clients,
		notifier: notifier,
		logger:   logger,
	}
}

// SubmitLoadRequest carries the client-entered fields of a new load.
type SubmitLoadRequest struct {
	OriginAddress      string
	DestinationAddress string
	TrailerType        string
	WeightLbs          int
	PickupDate         time.Time
	PickupTime         *string
	DeliveryDate       *time.Time
	DeliveryTime       *string
	DeliveryASAP       bool
	PaymentRequired    bool
}

// AssignmentRequest carries the dispatcher-entered assignment fields.
type AssignmentRequest struct {
	DriverID    string
	TruckNumber string
	PriceCents  int64
	ETA         *time.Time
}

// SubmitLoad creates a pending load for the acting client and notifies the
// client (confirmation) plus all dispatchers. A dispatch failure is
// returned as a degraded success alongside the created load.
func (m *Manager) SubmitLoad(ctx context.Context, actor models.Actor, req SubmitLoadRequest) (*models.Load, error) {
	if actor.Role != models.RoleClient {
		return nil, apperrors.NewAuthorizationError("only clients can submit loads")
	}

	client, err := m.clients.GetByAccountID(ctx, actor.UserID)

	if err != nil {
		return nil, mapStoreError(err, "client account not found")
	}

	trailer, err := models.ParseTrailerType(req.TrailerType)

	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	if req.OriginAddress == "" || req.DestinationAddress == "" {
		return nil, apperrors.NewValidationError("origin and destination addresses are required")
	}

	if req.WeightLbs <= 0 || req.WeightLbs > models.MaxWeightLbs {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("weight must be between 1 and %d lbs", models.MaxWeightLbs))
	}

	if req.PickupDate.IsZero() {
		return nil, apperrors.NewValidationError("pickup date is required")
	}

	load := models.NewLoad(client.ID, req.OriginAddress, req.DestinationAddress, trailer, req.WeightLbs, req.PickupDate)
	load.PickupTime = req.PickupTime
	load.DeliveryDate = req.DeliveryDate
	load.DeliveryTime = req.DeliveryTime
	load.DeliveryASAP = req.DeliveryASAP
	load.PaymentRequired = req.PaymentRequired

	if err := m.loads.CreateLoad(ctx, load); err != nil {
		return nil, mapStoreError(err, "load not found")
	}

	m.logger.Info("Load submitted", "loadID", load.ID, "clientID", client.ID)

	return m.dispatch(ctx, load, notify.Event{
		Type:              models.NotificationLoadSubmitted,
		LoadID:            &load.ID,
		PrimaryRecipient:  client.AccountID,
		PrimaryEmail:      client.Email,
		NotifyDispatchers: true,
		Data:              m.eventData(load),
	})
}

// AssignDriver performs pending-to-assigned, or edits an existing
// assignment in place. The initial assignment stamps assigned_at, flips the
// driver to not-available, and notifies the client that the load was
// approved. An edit never restamps assigned_at and never re-fires the
// approved notification, but fires an eta-updated notification when the ETA
// actually changed.
func (m *Manager) AssignDriver(ctx context.Context, actor models.Actor, loadID string, req AssignmentRequest) (*models.Load, error) {
	if actor.Role != models.RoleDispatcher {
		return nil, apperrors.NewAuthorizationError("only dispatchers can assign drivers")
	}

	if req.TruckNumber == "" {
		return nil, apperrors.NewValidationError("truck number is required")
	}

	if req.PriceCents <= 0 {
		return nil, apperrors.NewValidationError("price must be positive")
	}

	load, err := m.loads.GetLoad(ctx, loadID)

	if err != nil {
		return nil, mapStoreError(err, "load not found")
	}

	driver, err := m.drivers.GetByID(ctx, req.DriverID)

	if err != nil {
		return nil, mapStoreError(err, "driver not found")
	}

	if !driver.Active {
		return nil, apperrors.NewValidationError("driver is deactivated")
	}

	assignment := models.Assignment{
		DriverID:    driver.ID,
		DriverName:  driver.Name, // display snapshot, not a live reference
		TruckNumber: req.TruckNumber,
		PriceCents:  req.PriceCents,
		ETA:         req.ETA,
	}

	switch load.Status {
	case models.LoadStatusPending:
		return m.assignInitial(ctx, load, driver, assignment)
	case models.LoadStatusAssigned:
		return m.assignEdit(ctx, load, assignment)
	default:
		return nil, apperrors.NewInvalidTransitionError(
			fmt.Sprintf("load %s is %s; assignment requires pending or assigned", load.ID, load.Status))
	}
}

func (m *Manager) assignInitial(ctx context.Context, load *models.Load, driver *models.Driver, a models.Assignment) (*models.Load, error) {
	updated, applied, err := m.loads.AssignLoad(ctx, load.ID, a)

	if err != nil {
		return nil, mapStoreError(err, "load not found")
	}

	if !applied {
		return nil, apperrors.NewInvalidTransitionError(
			fmt.Sprintf("load %s left pending before the assignment landed", load.ID))
	}

	m.logger.Info("Load assigned", "loadID", load.ID, "driverID", driver.ID)

	// The driver is committed to this load now. Availability is a directory
	// attribute, not a lifecycle invariant; a failure here is logged, not
	// unwound.
	if _, err := m.drivers.SetAvailability(ctx, driver.ID, models.DriverNotAvailable, nil); err != nil {
		m.logger.Error("Failed to mark driver not available", "error", err, "driverID", driver.ID)
	}

	return m.dispatchToClient(ctx, updated, models.NotificationLoadApproved)
}

func (m *Manager) assignEdit(ctx context.Context, load *models.Load, a models.Assignment) (*models.Load, error) {
	oldETA := load.ETA

	updated, applied, err := m.loads.UpdateAssignment(ctx, load.ID, a)

	if err != nil {
		return nil, mapStoreError(err, "load not found")
	}

	if !applied {
		return nil, apperrors.NewInvalidTransitionError(
			fmt.Sprintf("load %s left assigned before the edit landed", load.ID))
	}

	m.logger.Info("Assignment updated", "loadID", load.ID, "driverID", a.DriverID)

	if !etaChanged(oldETA, a.ETA) {
		return updated, nil
	}

	return m.dispatchToClient(ctx, updated, models.NotificationETAUpdated)
}

// Advance applies one driver transition: arrive, load, depart,
// arrive_at_delivery, or deliver. The acting driver must be the one
// assigned to the load. Deliver optionally records the captured signature
// and returns the driver to the available pool.
func (m *Manager) Advance(ctx context.Context, actor models.Actor, loadID string, tr models.Transition, proof *models.SignatureProof) (*models.Load, error) {
	if actor.Role != models.RoleDriver {
		return nil, apperrors.NewAuthorizationError("only drivers can advance load status")
	}

	if tr == models.TransitionAssign {
		return nil, apperrors.NewValidationError("assignment is a dispatcher operation")
	}

	if proof != nil && tr != models.TransitionDeliver {
		return nil, apperrors.NewValidationError("a signature can only accompany the deliver transition")
	}

	load, err := m.loads.GetLoad(ctx, loadID)

	if err != nil {
		return nil, mapStoreError(err, "load not found")
	}

	driver, err := m.drivers.GetByAccountID(ctx, actor.UserID)

	if err != nil {
		return nil, mapStoreError(err, "no driver record for this account")
	}

	if load.DriverID == nil || *load.DriverID != driver.ID {
		return nil, apperrors.NewAuthorizationError("load is not assigned to this driver")
	}

	if !tr.LegalFrom(load.Status) {
		return nil, apperrors.NewInvalidTransitionError(
			fmt.Sprintf("cannot %s a load in %s", tr, load.Status))
	}

	updated, applied, err := m.loads.AdvanceStatus(ctx, load.ID, tr, load.Status, proof)

	if err != nil {
		return nil, mapStoreError(err, "load not found")
	}

	if !applied {
		// Someone else moved the load between our read and the conditional
		// update. Exactly one of the racing calls wins.
		return nil, apperrors.NewInvalidTransitionError(
			fmt.Sprintf("load %s is no longer %s", load.ID, load.Status))
	}

	m.logger.Info("Load status advanced",
		"loadID", load.ID, "transition", tr, "newStatus", updated.Status)

	if tr == models.TransitionDeliver {
		if _, err := m.drivers.SetAvailability(ctx, driver.ID, models.DriverAvailable, nil); err != nil {
			m.logger.Error("Failed to mark driver available", "error", err, "driverID", driver.ID)
		}
	}

	switch tr {
	case models.TransitionDepart:
		return m.dispatchToClient(ctx, updated, models.NotificationLoadInTransit)
	case models.TransitionDeliver:
		return m.dispatchToClient(ctx, updated, models.NotificationLoadDelivered)
	}

	// arrive, load, arrive_at_delivery: no notification audience; the
	// change-feed event written with the update covers realtime views.
	return updated, nil
}

// dispatchToClient notifies the load's owning client.
func (m *Manager) dispatchToClient(ctx context.Context, load *models.Load, nType models.NotificationType) (*models.Load, error) {
	client, err := m.clients.GetByID(ctx, load.ClientID)

	if err != nil {
		m.logger.Error("Failed to resolve client for notification",
			"error", err, "loadID", load.ID, "clientID", load.ClientID)
		return load, apperrors.NewDispatchDegradedError(
			fmt.Sprintf("status committed but client %s could not be resolved for notification", load.ClientID))
	}

	return m.dispatch(ctx, load, notify.Event{
		Type:             nType,
		LoadID:           &load.ID,
		PrimaryRecipient: client.AccountID,
		PrimaryEmail:     client.Email,
		Data:             m.eventData(load),
	})
}

// dispatch runs the notification fan-out after a committed write. The write
// already happened: any failure here degrades the call instead of failing
// it.
func (m *Manager) dispatch(ctx context.Context, load *models.Load, e notify.Event) (*models.Load, error) {
	result, err := m.notifier.Dispatch(ctx, e)

	if err != nil {
		m.logger.Warn("Notification dispatch degraded",
			"loadID", load.ID, "eventType", e.Type, "error", err,
			"pushSent", result.PushSent, "pushFailed", result.PushFailed)
		return load, apperrors.NewDispatchDegradedError(
			fmt.Sprintf("status committed but notifications degraded: %v", err))
	}

	return load, nil
}

func (m *Manager) eventData(load *models.Load) map[string]string {
	data := map[string]string{
		"route":       fmt.Sprintf("%s to %s", load.OriginAddress, load.DestinationAddress),
		"destination": load.DestinationAddress,
	}

	if load.DriverName != nil {
		data["driver_name"] = *load.DriverName
	}
	if load.TruckNumber != nil {
		data["truck_number"] = *load.TruckNumber
	}
	if load.ETA != nil {
		data["eta"] = load.ETA.Format("Jan 2, 2006 3:04 PM MST")
	}

	return data
}

func etaChanged(prev, next *time.Time) bool {
	if prev == nil && next == nil {
		return false
	}
	if prev == nil || next == nil {
		return true
	}
	return !prev.Equal(*next)
}

// mapStoreError translates repository sentinels to the error taxonomy.
func mapStoreError(err error, notFoundMsg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFoundError(notFoundMsg)
	}
	return apperrors.NewStoreUnavailableError(err.Error())
}

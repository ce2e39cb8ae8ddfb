package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/models"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/notify"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/repository"
	apperrors "github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/errors"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/logger"
)

// LoadStore is the slice of the store the payment gate needs.
type LoadStore interface {
	GetLoad(ctx context.Context, id string) (*models.Load, error)
	SetPaymentIntent(ctx context.Context, loadID, intentID string) (*models.Load, bool, error)
	MarkPaid(ctx context.Context, loadID string) (*models.Load, bool, error)
	MarkPaymentFailed(ctx context.Context, loadID string) (*models.Load, bool, error)
}

// ClientStore resolves the owning client.
type ClientStore interface {
	GetByID(ctx context.Context, id string) (*models.Client, error)
	GetByAccountID(ctx context.Context, accountID string) (*models.Client, error)
}

// Notifier is the notification dispatch service.
type Notifier interface {
	Dispatch(ctx context.Context, e notify.Event) (notify.Result, error)
}

// Gate implements the payment side channel. Payment never blocks the
// operational state machine: the only guarded operation is opening a
// checkout session, and confirmations are recorded against the load.
type Gate struct {
	loads    LoadStore
	clients  ClientStore
	notifier Notifier
	logger   logger.Logger
}

// NewGate creates a payment gate
func NewGate(loads LoadStore, clients ClientStore, notifier Notifier, logger logger.Logger) *Gate {
	return &Gate{
		loads:    loads,
		clients:  clients,
		notifier: notifier,
		logger:   logger,
	}
}

// CheckoutSession is the reference handed to the external checkout flow.
type CheckoutSession struct {
	IntentID    string `json:"intent_id"`
	LoadID      string `json:"load_id"`
	AmountCents int64  `json:"amount_cents"`
}

// CreateCheckout opens a checkout session for a load. Allowed only when the
// load requires payment, payment is still pending, a positive price is set,
// and the actor is the load's owning client.
func (g *Gate) CreateCheckout(ctx context.Context, actor models.Actor, loadID string) (*CheckoutSession, error) {
	if actor.Role != models.RoleClient {
		return nil, apperrors.NewAuthorizationError("only the owning client can pay for a load")
	}

	client, err := g.clients.GetByAccountID(ctx, actor.UserID)

	if err != nil {
		return nil, mapStoreError(err, "client account not found")
	}

	load, err := g.loads.GetLoad(ctx, loadID)

	if err != nil {
		return nil, mapStoreError(err, "load not found")
	}

	if load.ClientID != client.ID {
		return nil, apperrors.NewAuthorizationError("load belongs to a different client")
	}

	if !load.PaymentRequired {
		return nil, apperrors.NewValidationError("load does not require payment")
	}

	if load.PaymentStatus != models.PaymentStatusPending {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("payment is %s, not pending", load.PaymentStatus))
	}

	if load.PriceCents == nil || *load.PriceCents <= 0 {
		return nil, apperrors.NewValidationError("load has no price yet")
	}

	intentID := models.GenerateID("pay")

	updated, applied, err := g.loads.SetPaymentIntent(ctx, loadID, intentID)

	if err != nil {
		return nil, mapStoreError(err, "load not found")
	}

	if !applied {
		return nil, apperrors.NewConflictError("payment is no longer pending")
	}

	g.logger.Info("Checkout session created", "loadID", loadID, "intentID", intentID)

	return &CheckoutSession{
		IntentID:    intentID,
		LoadID:      updated.ID,
		AmountCents: *updated.PriceCents,
	}, nil
}

// ConfirmPayment records a successful payment confirmation from the
// external callback and notifies the client plus all dispatchers. Repeated
// confirmations for the same load are absorbed silently.
func (g *Gate) ConfirmPayment(ctx context.Context, loadID, intentID string) error {
	load, err := g.loads.GetLoad(ctx, loadID)

	if err != nil {
		return mapStoreError(err, "load not found")
	}

	if load.PaymentIntentID == nil || *load.PaymentIntentID != intentID {
		return apperrors.NewValidationError("payment intent does not match this load")
	}

	updated, applied, err := g.loads.MarkPaid(ctx, loadID)

	if err != nil {
		return mapStoreError(err, "load not found")
	}

	if !applied {
		// Duplicate callback; the first one already recorded the payment.
		g.logger.Info("Ignoring duplicate payment confirmation", "loadID", loadID)
		return nil
	}

	g.logger.Info("Payment confirmed", "loadID", loadID, "intentID", intentID)

	client, err := g.clients.GetByID(ctx, updated.ClientID)

	if err != nil {
		g.logger.Error("Failed to resolve client for payment notification",
			"error", err, "loadID", loadID)
		return apperrors.NewDispatchDegradedError(
			"payment recorded but the client could not be resolved for notification")
	}

	_, err = g.notifier.Dispatch(ctx, notify.Event{
		Type:              models.NotificationPaymentReceived,
		LoadID:            &updated.ID,
		PrimaryRecipient:  client.AccountID,
		PrimaryEmail:      client.Email,
		NotifyDispatchers: true,
		Data: map[string]string{
			"route": fmt.Sprintf("%s to %s", updated.OriginAddress, updated.DestinationAddress),
		},
	})

	if err != nil {
		g.logger.Warn("Payment notification degraded", "error", err, "loadID", loadID)
		return apperrors.NewDispatchDegradedError(
			fmt.Sprintf("payment recorded but notifications degraded: %v", err))
	}

	return nil
}

// FailPayment records a failed or expired checkout. No further side
// effects.
func (g *Gate) FailPayment(ctx context.Context, loadID, intentID string) error {
	load, err := g.loads.GetLoad(ctx, loadID)

	if err != nil {
		return mapStoreError(err, "load not found")
	}

	if load.PaymentIntentID == nil || *load.PaymentIntentID != intentID {
		return apperrors.NewValidationError("payment intent does not match this load")
	}

	_, applied, err := g.loads.MarkPaymentFailed(ctx, loadID)

	if err != nil {
		return mapStoreError(err, "load not found")
	}

	if !applied {
		g.logger.Info("Ignoring payment failure for non-pending payment", "loadID", loadID)
		return nil
	}

	g.logger.Info("Payment marked failed", "loadID", loadID, "intentID", intentID)
	return nil
}

func mapStoreError(err error, notFoundMsg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFoundError(notFoundMsg)
	}
	return apperrors.NewStoreUnavailableError(err.Error())
}

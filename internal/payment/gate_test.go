package payment

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/models"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/notify"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/repository"
	apperrors "github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/errors"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/logger"
)

type fakeLoadStore struct {
	loads map[string]*models.Load
}

func (s *fakeLoadStore) GetLoad(ctx context.Context, id string) (*models.Load, error) {
	load, ok := s.loads[id]

	if !ok {
		return nil, repository.ErrNotFound
	}

	cp := *load
	return &cp, nil
}

func (s *fakeLoadStore) SetPaymentIntent(ctx context.Context, loadID, intentID string) (*models.Load, bool, error) {
	load, ok := s.loads[loadID]

	if !ok {
		return nil, false, repository.ErrNotFound
	}

	if load.PaymentStatus != models.PaymentStatusPending {
		return nil, false, nil
	}

	load.PaymentIntentID = &intentID

	cp := *load
	return &cp, true, nil
}

func (s *fakeLoadStore) MarkPaid(ctx context.Context, loadID string) (*models.Load, bool, error) {
	load, ok := s.loads[loadID]

	if !ok {
		return nil, false, repository.ErrNotFound
	}

	if load.PaymentStatus != models.PaymentStatusPending {
		return nil, false, nil
	}

	now := time.Now().UTC()
	load.PaymentStatus = models.PaymentStatusPaid
	load.PaidAt = &now

	cp := *load
	return &cp, true, nil
}

func (s *fakeLoadStore) MarkPaymentFailed(ctx context.Context, loadID string) (*models.Load, bool, error) {
	load, ok := s.loads[loadID]

	if !ok {
		return nil, false, repository.ErrNotFound
	}

	if load.PaymentStatus != models.PaymentStatusPending {
		return nil, false, nil
	}

	load.PaymentStatus = models.PaymentStatusFailed

	cp := *load
	return &cp, true, nil
}

type fakeClientStore struct {
	clients map[string]*models.Client
}

func (s *fakeClientStore) GetByID(ctx context.Context, id string) (*models.Client, error) {
	client, ok := s.clients[id]

	if !ok {
		return nil, repository.ErrNotFound
	}

	return client, nil
}

func (s *fakeClientStore) GetByAccountID(ctx context.Context, accountID string) (*models.Client, error) {
	for _, client := range s.clients {
		if client.AccountID == accountID {
			return client, nil
		}
	}

	return nil, repository.ErrNotFound
}

type fakeNotifier struct {
	events []notify.Event
	err    error
}

func (n *fakeNotifier) Dispatch(ctx context.Context, e notify.Event) (notify.Result, error) {
	n.events = append(n.events, e)
	return notify.Result{}, n.err
}

func testGate() (*Gate, *fakeLoadStore, *fakeNotifier, *models.Client, *models.Load) {
	client := models.NewClient("Jo Martin", "Acme Lumber", "403-555-0101", "jo@acmelumber.example")
	client.AccountID = "acct-client"

	load := models.NewLoad(client.ID, "Calgary, AB", "Edmonton, AB", models.TrailerFlatBed, 40000, time.Now())
	load.PaymentRequired = true
	price := int64(150000)
	load.PriceCents = &price

	loads := &fakeLoadStore{loads: map[string]*models.Load{load.ID: load}}
	clients := &fakeClientStore{clients: map[string]*models.Client{client.ID: client}}
	notifier := &fakeNotifier{}

	l := logger.NewLoggerTo(io.Discard, io.Discard, "error")

	return NewGate(loads, clients, notifier, l), loads, notifier, client, load
}

func clientActor(c *models.Client) models.Actor {
	return models.Actor{UserID: c.AccountID, Role: models.RoleClient, Email: c.Email}
}

func TestCreateCheckout(t *testing.T) {
	gate, loads, _, client, load := testGate()

	session, err := gate.CreateCheckout(context.Background(), clientActor(client), load.ID)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if session.LoadID != load.ID || session.AmountCents != 150000 {
		t.Errorf("got session %+v, want the load's price", session)
	}

	stored := loads.loads[load.ID]

	if stored.PaymentIntentID == nil || *stored.PaymentIntentID != session.IntentID {
		t.Error("intent id not recorded on the load")
	}
}

func TestCreateCheckoutGuards(t *testing.T) {
	t.Run("wrong role", func(t *testing.T) {
		gate, _, _, _, load := testGate()

		_, err := gate.CreateCheckout(context.Background(),
			models.Actor{UserID: "acct-dispatcher", Role: models.RoleDispatcher}, load.ID)

		if !errors.Is(err, apperrors.ErrAuthorization) {
			t.Errorf("got %v, want an authorization error", err)
		}
	})

	t.Run("wrong client", func(t *testing.T) {
		gate, _, _, _, load := testGate()

		other := models.NewClient("Lee Chan", "Northern Steel", "", "lee@northernsteel.example")
		other.AccountID = "acct-other"
		gate.clients.(*fakeClientStore).clients[other.ID] = other

		_, err := gate.CreateCheckout(context.Background(), clientActor(other), load.ID)

		if !errors.Is(err, apperrors.ErrAuthorization) {
			t.Errorf("got %v, want an authorization error", err)
		}
	})

	t.Run("payment not required", func(t *testing.T) {
		gate, loads, _, client, load := testGate()
		loads.loads[load.ID].PaymentRequired = false

		_, err := gate.CreateCheckout(context.Background(), clientActor(client), load.ID)

		if !errors.Is(err, apperrors.ErrValidation) {
			t.Errorf("got %v, want a validation error", err)
		}
	})

	t.Run("already paid", func(t *testing.T) {
		gate, loads, _, client, load := testGate()
		loads.loads[load.ID].PaymentStatus = models.PaymentStatusPaid

		_, err := gate.CreateCheckout(context.Background(), clientActor(client), load.ID)

		if !errors.Is(err, apperrors.ErrValidation) {
			t.Errorf("got %v, want a validation error", err)
		}
	})

	t.Run("no price", func(t *testing.T) {
		gate, loads, _, client, load := testGate()
		loads.loads[load.ID].PriceCents = nil

		_, err := gate.CreateCheckout(context.Background(), clientActor(client), load.ID)

		if !errors.Is(err, apperrors.ErrValidation) {
			t.Errorf("got %v, want a validation error", err)
		}
	})
}

func TestConfirmPayment(t *testing.T) {
	gate, loads, notifier, client, load := testGate()

	session, err := gate.CreateCheckout(context.Background(), clientActor(client), load.ID)

	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if err := gate.ConfirmPayment(context.Background(), load.ID, session.IntentID); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	stored := loads.loads[load.ID]

	if stored.PaymentStatus != models.PaymentStatusPaid || stored.PaidAt == nil {
		t.Error("payment not recorded")
	}

	if len(notifier.events) != 1 || notifier.events[0].Type != models.NotificationPaymentReceived {
		t.Errorf("got events %v, want payment_received", notifier.events)
	}

	if !notifier.events[0].NotifyDispatchers {
		t.Error("payment confirmation must notify dispatchers")
	}
}

func TestConfirmPaymentIdempotent(t *testing.T) {
	gate, _, notifier, client, load := testGate()

	session, _ := gate.CreateCheckout(context.Background(), clientActor(client), load.ID)

	if err := gate.ConfirmPayment(context.Background(), load.ID, session.IntentID); err != nil {
		t.Fatalf("first confirm failed: %v", err)
	}

	// The duplicate callback is absorbed silently with no second
	// notification.
	if err := gate.ConfirmPayment(context.Background(), load.ID, session.IntentID); err != nil {
		t.Fatalf("duplicate confirm returned %v, want nil", err)
	}

	if len(notifier.events) != 1 {
		t.Errorf("got %d notifications, want 1", len(notifier.events))
	}
}

func TestConfirmPaymentIntentMismatch(t *testing.T) {
	gate, _, _, client, load := testGate()

	if _, err := gate.CreateCheckout(context.Background(), clientActor(client), load.ID); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	err := gate.ConfirmPayment(context.Background(), load.ID, "pay-bogus")

	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("got %v, want a validation error", err)
	}
}

func TestConfirmPaymentDegradedNotification(t *testing.T) {
	gate, loads, notifier, client, load := testGate()

	session, _ := gate.CreateCheckout(context.Background(), clientActor(client), load.ID)
	notifier.err = errors.New("email provider down")

	err := gate.ConfirmPayment(context.Background(), load.ID, session.IntentID)

	if !apperrors.IsDispatchDegraded(err) {
		t.Fatalf("got %v, want a dispatch degraded error", err)
	}

	if loads.loads[load.ID].PaymentStatus != models.PaymentStatusPaid {
		t.Error("the payment must stay recorded when notifications fail")
	}
}

func TestFailPayment(t *testing.T) {
	gate, loads, notifier, client, load := testGate()

	session, _ := gate.CreateCheckout(context.Background(), clientActor(client), load.ID)

	if err := gate.FailPayment(context.Background(), load.ID, session.IntentID); err != nil {
		t.Fatalf("fail failed: %v", err)
	}

	if loads.loads[load.ID].PaymentStatus != models.PaymentStatusFailed {
		t.Error("payment failure not recorded")
	}

	// A failed checkout has no notification side effects.
	if len(notifier.events) != 0 {
		t.Errorf("got %d notifications, want none", len(notifier.events))
	}
}

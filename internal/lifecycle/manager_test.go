package lifecycle

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/models"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/notify"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/repository"
	apperrors "github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/errors"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/logger"
)

// fakeLoadStore keeps loads in memory with the same conditional-update
// semantics as the real store: a mutation applies only when the load is
// still in the expected predecessor status.
type fakeLoadStore struct {
	mu    sync.Mutex
	loads map[string]*models.Load
}

func newFakeLoadStore() *fakeLoadStore {
	return &fakeLoadStore{loads: make(map[string]*models.Load)}
}

func (s *fakeLoadStore) CreateLoad(ctx context.Context, load *models.Load) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *load
	s.loads[load.ID] = &cp
	return nil
}

func (s *fakeLoadStore) GetLoad(ctx context.Context, id string) (*models.Load, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	load, ok := s.loads[id]

	if !ok {
		return nil, repository.ErrNotFound
	}

	cp := *load
	return &cp, nil
}

func (s *fakeLoadStore) AssignLoad(ctx context.Context, loadID string, a models.Assignment) (*models.Load, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	load, ok := s.loads[loadID]

	if !ok {
		return nil, false, repository.ErrNotFound
	}

	if load.Status != models.LoadStatusPending {
		return nil, false, nil
	}

	now := time.Now().UTC()
	load.Status = models.LoadStatusAssigned
	load.AssignedAt = &now
	applyAssignment(load, a)

	cp := *load
	return &cp, true, nil
}

func (s *fakeLoadStore) UpdateAssignment(ctx context.Context, loadID string, a models.Assignment) (*models.Load, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	load, ok := s.loads[loadID]

	if !ok {
		return nil, false, repository.ErrNotFound
	}

	if load.Status != models.LoadStatusAssigned {
		return nil, false, nil
	}

	applyAssignment(load, a)

	cp := *load
	return &cp, true, nil
}

func applyAssignment(load *models.Load, a models.Assignment) {
	load.DriverID = &a.DriverID
	load.DriverName = &a.DriverName
	load.TruckNumber = &a.TruckNumber
	load.PriceCents = &a.PriceCents
	load.ETA = a.ETA
}

func (s *fakeLoadStore) AdvanceStatus(ctx context.Context, loadID string, tr models.Transition, from models.LoadStatus, proof *models.SignatureProof) (*models.Load, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	load, ok := s.loads[loadID]

	if !ok {
		return nil, false, repository.ErrNotFound
	}

	if load.Status != from {
		return nil, false, nil
	}

	now := time.Now().UTC()
	load.Status = tr.Spec().To

	switch tr {
	case models.TransitionArrive:
		load.ArrivedAt = &now
	case models.TransitionLoad:
		load.LoadedAt = &now
	case models.TransitionDepart:
		load.InTransitAt = &now
	case models.TransitionArriveAtDelivery:
		load.ArrivedAtDeliveryAt = &now
	case models.TransitionDeliver:
		load.DeliveredAt = &now
	}

	if proof != nil {
		load.ClientSignatureURL = &proof.URL
		load.SignatureTimestamp = &proof.Captured
	}

	cp := *load
	return &cp, true, nil
}

type fakeDriverStore struct {
	mu      sync.Mutex
	drivers map[string]*models.Driver
}

func newFakeDriverStore(drivers ...*models.Driver) *fakeDriverStore {
	s := &fakeDriverStore{drivers: make(map[string]*models.Driver)}

	for _, d := range drivers {
		s.drivers[d.ID] = d
	}

	return s
}

func (s *fakeDriverStore) GetByID(ctx context.Context, id string) (*models.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	driver, ok := s.drivers[id]

	if !ok {
		return nil, repository.ErrNotFound
	}

	cp := *driver
	return &cp, nil
}

func (s *fakeDriverStore) GetByAccountID(ctx context.Context, accountID string) (*models.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, driver := range s.drivers {
		if driver.AccountID == accountID {
			cp := *driver
			return &cp, nil
		}
	}

	return nil, repository.ErrNotFound
}

func (s *fakeDriverStore) SetAvailability(ctx context.Context, driverID string, status models.AvailabilityStatus, availableAt *time.Time) (*models.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	driver, ok := s.drivers[driverID]

	if !ok {
		return nil, repository.ErrNotFound
	}

	driver.AvailabilityStatus = status
	driver.AvailableAt = availableAt

	cp := *driver
	return &cp, nil
}

type fakeClientStore struct {
	clients map[string]*models.Client
}

func newFakeClientStore(clients ...*models.Client) *fakeClientStore {
	s := &fakeClientStore{clients: make(map[string]*models.Client)}

	for _, c := range clients {
		s.clients[c.ID] = c
	}

	return s
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

// fakeNotifier records dispatched events and can be told to fail.
type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (n *fakeNotifier) Dispatch(ctx context.Context, e notify.Event) (notify.Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.events = append(n.events, e)

	if n.err != nil {
		return notify.Result{PushFailed: 1}, n.err
	}

	return notify.Result{PushSent: 1}, nil
}

func (n *fakeNotifier) eventTypes() []models.NotificationType {
	n.mu.Lock()
	defer n.mu.Unlock()

	types := make([]models.NotificationType, len(n.events))

	for i, e := range n.events {
		types[i] = e.Type
	}

	return types
}

type fixture struct {
	manager  *Manager
	loads    *fakeLoadStore
	drivers  *fakeDriverStore
	clients  *fakeClientStore
	notifier *fakeNotifier
	client   *models.Client
	driver   *models.Driver
}

func newFixture() *fixture {
	client := models.NewClient("Jo Martin", "Acme Lumber", "403-555-0101", "jo@acmelumber.example")
	client.AccountID = "acct-client"
	client.AccountLinked = true

	driver := models.NewDriver("Sam Reyes", "sam@roadrunner.example", models.TrailerFlatBed, "TRK-12")
	driver.AccountID = "acct-driver"
	driver.AccountLinked = true

	loads := newFakeLoadStore()
	drivers := newFakeDriverStore(driver)
	clients := newFakeClientStore(client)
	notifier := &fakeNotifier{}

	l := logger.NewLoggerTo(io.Discard, io.Discard, "error")

	return &fixture{
		manager:  NewManager(loads, drivers, clients, notifier, l),
		loads:    loads,
		drivers:  drivers,
		clients:  clients,
		notifier: notifier,
		client:   client,
		driver:   driver,
	}
}

func (f *fixture) clientActor() models.Actor {
	return models.Actor{UserID: f.client.AccountID, Role: models.RoleClient, Email: f.client.Email}
}

func (f *fixture) driverActor() models.Actor {
	return models.Actor{UserID: f.driver.AccountID, Role: models.RoleDriver}
}

func dispatcherActor() models.Actor {
	return models.Actor{UserID: "acct-dispatcher", Role: models.RoleDispatcher}
}

func (f *fixture) submitLoad(t *testing.T) *models.Load {
	t.Helper()

	load, err := f.manager.SubmitLoad(context.Background(), f.clientActor(), SubmitLoadRequest{
		OriginAddress:      "Calgary, AB",
		DestinationAddress: "Edmonton, AB",
		TrailerType:        "Flat Bed",
		WeightLbs:          42000,
		PickupDate:         time.Now().Add(24 * time.Hour),
	})

	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	return load
}

func (f *fixture) assignLoad(t *testing.T, loadID string, eta *time.Time) *models.Load {
	t.Helper()

	load, err := f.manager.AssignDriver(context.Background(), dispatcherActor(), loadID, AssignmentRequest{
		DriverID:    f.driver.ID,
		TruckNumber: "TRK-12",
		PriceCents:  150000,
		ETA:         eta,
	})

	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	return load
}

func (f *fixture) advance(t *testing.T, loadID string, transitions ...models.Transition) *models.Load {
	t.Helper()

	var load *models.Load
	var err error

	for _, tr := range transitions {
		load, err = f.manager.Advance(context.Background(), f.driverActor(), loadID, tr, nil)

		if err != nil {
			t.Fatalf("advance %s failed: %v", tr, err)
		}
	}

	return load
}

func TestSubmitLoad(t *testing.T) {
	f := newFixture()

	load := f.submitLoad(t)

	if load.Status != models.LoadStatusPending {
		t.Errorf("got status %s, want pending", load.Status)
	}

	if load.ClientID != f.client.ID {
		t.Errorf("got client %s, want %s", load.ClientID, f.client.ID)
	}

	if len(f.notifier.events) != 1 {
		t.Fatalf("got %d events, want 1", len(f.notifier.events))
	}

	e := f.notifier.events[0]

	if e.Type != models.NotificationLoadSubmitted {
		t.Errorf("got event %s, want load_submitted", e.Type)
	}

	if !e.NotifyDispatchers {
		t.Error("submission must notify dispatchers")
	}

	if e.PrimaryRecipient != f.client.AccountID {
		t.Errorf("got recipient %s, want the client account", e.PrimaryRecipient)
	}
}

func TestSubmitLoadValidation(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name string
		req  SubmitLoadRequest
	}{
		{"unknown trailer", SubmitLoadRequest{
			OriginAddress: "A", DestinationAddress: "B", TrailerType: "Reefer",
			WeightLbs: 1000, PickupDate: time.Now(),
		}},
		{"missing addresses", SubmitLoadRequest{
			TrailerType: "Flat Bed", WeightLbs: 1000, PickupDate: time.Now(),
		}},
		{"overweight", SubmitLoadRequest{
			OriginAddress: "A", DestinationAddress: "B", TrailerType: "Flat Bed",
			WeightLbs: models.MaxWeightLbs + 1, PickupDate: time.Now(),
		}},
		{"no pickup date", SubmitLoadRequest{
			OriginAddress: "A", DestinationAddress: "B", TrailerType: "Flat Bed",
			WeightLbs: 1000,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.SubmitLoad(context.Background(), f.clientActor(), tt.req)

			if !errors.Is(err, apperrors.ErrValidation) {
				t.Errorf("got %v, want a validation error", err)
			}
		})
	}
}

func TestSubmitLoadRequiresClientRole(t *testing.T) {
	f := newFixture()

	_, err := f.manager.SubmitLoad(context.Background(), dispatcherActor(), SubmitLoadRequest{})

	if !errors.Is(err, apperrors.ErrAuthorization) {
		t.Errorf("got %v, want an authorization error", err)
	}
}

func TestAssignDriver(t *testing.T) {
	f := newFixture()
	load := f.submitLoad(t)

	assigned := f.assignLoad(t, load.ID, nil)

	if assigned.Status != models.LoadStatusAssigned {
		t.Errorf("got status %s, want assigned", assigned.Status)
	}

	if assigned.AssignedAt == nil {
		t.Error("assigned_at must be stamped on the initial assignment")
	}

	if assigned.DriverID == nil || *assigned.DriverID != f.driver.ID {
		t.Error("driver id not recorded")
	}

	if assigned.DriverName == nil || *assigned.DriverName != f.driver.Name {
		t.Error("driver name snapshot not recorded")
	}

	stored, _ := f.drivers.GetByID(context.Background(), f.driver.ID)

	if stored.AvailabilityStatus != models.DriverNotAvailable {
		t.Errorf("got driver availability %s, want not_available", stored.AvailabilityStatus)
	}

	types := f.notifier.eventTypes()

	if len(types) != 2 || types[1] != models.NotificationLoadApproved {
		t.Errorf("got events %v, want load_submitted then load_approved", types)
	}
}

func TestAssignDriverRequiresDispatcherRole(t *testing.T) {
	f := newFixture()
	load := f.submitLoad(t)

	_, err := f.manager.AssignDriver(context.Background(), f.clientActor(), load.ID, AssignmentRequest{
		DriverID: f.driver.ID, TruckNumber: "TRK-12", PriceCents: 1000,
	})

	if !errors.Is(err, apperrors.ErrAuthorization) {
		t.Errorf("got %v, want an authorization error", err)
	}
}

func TestAssignEditDoesNotRestamp(t *testing.T) {
	f := newFixture()
	load := f.submitLoad(t)

	eta := time.Now().Add(48 * time.Hour)
	assigned := f.assignLoad(t, load.ID, &eta)
	firstStamp := assigned.AssignedAt

	// Edit with the same ETA: no restamp, no notification.
	edited := f.assignLoad(t, load.ID, &eta)

	if !edited.AssignedAt.Equal(*firstStamp) {
		t.Error("an assignment edit must not restamp assigned_at")
	}

	types := f.notifier.eventTypes()

	if len(types) != 2 {
		t.Fatalf("got events %v, want no notification for an unchanged edit", types)
	}

	// Edit with a new ETA: exactly one eta_updated, never load_approved again.
	newETA := eta.Add(6 * time.Hour)
	f.assignLoad(t, load.ID, &newETA)

	types = f.notifier.eventTypes()

	if len(types) != 3 || types[2] != models.NotificationETAUpdated {
		t.Errorf("got events %v, want a single eta_updated after the change", types)
	}
}

func TestAssignDriverRejectsLateStatus(t *testing.T) {
	f := newFixture()
	load := f.submitLoad(t)
	f.assignLoad(t, load.ID, nil)
	f.advance(t, load.ID, models.TransitionArrive)

	_, err := f.manager.AssignDriver(context.Background(), dispatcherActor(), load.ID, AssignmentRequest{
		DriverID: f.driver.ID, TruckNumber: "TRK-12", PriceCents: 1000,
	})

	if !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Errorf("got %v, want an invalid transition error", err)
	}
}

func TestAdvanceFullLifecycle(t *testing.T) {
	f := newFixture()
	load := f.submitLoad(t)
	f.assignLoad(t, load.ID, nil)

	final := f.advance(t, load.ID,
		models.TransitionArrive,
		models.TransitionLoad,
		models.TransitionDepart,
		models.TransitionArriveAtDelivery,
	)

	if final.Status != models.LoadStatusArrivedAtDelivery {
		t.Fatalf("got status %s, want arrived_at_delivery", final.Status)
	}

	if final.ArrivedAt == nil || final.LoadedAt == nil || final.InTransitAt == nil || final.ArrivedAtDeliveryAt == nil {
		t.Error("every committed transition must stamp its timestamp")
	}

	types := f.notifier.eventTypes()
	// submitted, approved, in_transit; arrive/load/arrive_at_delivery are
	// change-feed only.
	want := []models.NotificationType{
		models.NotificationLoadSubmitted,
		models.NotificationLoadApproved,
		models.NotificationLoadInTransit,
	}

	if len(types) != len(want) {
		t.Fatalf("got events %v, want %v", types, want)
	}

	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, types[i], want[i])
		}
	}
}

func TestDeliverWithSignature(t *testing.T) {
	f := newFixture()
	load := f.submitLoad(t)
	f.assignLoad(t, load.ID, nil)
	f.advance(t, load.ID, models.TransitionArrive, models.TransitionLoad, models.TransitionDepart)

	proof := &models.SignatureProof{URL: "https://cdn.example/sig.png", Captured: time.Now()}

	delivered, err := f.manager.Advance(context.Background(), f.driverActor(), load.ID, models.TransitionDeliver, proof)

	if err != nil {
		t.Fatalf("deliver failed: %v", err)
	}

	if delivered.Status != models.LoadStatusDelivered {
		t.Errorf("got status %s, want delivered", delivered.Status)
	}

	if delivered.DeliveredAt == nil {
		t.Error("delivered_at not stamped")
	}

	if delivered.ClientSignatureURL == nil || *delivered.ClientSignatureURL != proof.URL {
		t.Error("signature url not recorded")
	}

	// Delivery from in_transit is legal; the arrived-at-delivery stage was
	// skipped here.
	if delivered.ArrivedAtDeliveryAt != nil {
		t.Error("skipped stage must not be stamped")
	}

	stored, _ := f.drivers.GetByID(context.Background(), f.driver.ID)

	if stored.AvailabilityStatus != models.DriverAvailable {
		t.Errorf("got driver availability %s, want available after delivery", stored.AvailabilityStatus)
	}

	types := f.notifier.eventTypes()

	if types[len(types)-1] != models.NotificationLoadDelivered {
		t.Errorf("got final event %s, want load_delivered", types[len(types)-1])
	}
}

func TestSignatureOnlyWithDeliver(t *testing.T) {
	f := newFixture()
	load := f.submitLoad(t)
	f.assignLoad(t, load.ID, nil)

	proof := &models.SignatureProof{URL: "https://cdn.example/sig.png", Captured: time.Now()}

	_, err := f.manager.Advance(context.Background(), f.driverActor(), load.ID, models.TransitionArrive, proof)

	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("got %v, want a validation error", err)
	}
}

func TestAdvanceTerminalLoad(t *testing.T) {
	f := newFixture()
	load := f.submitLoad(t)
	f.assignLoad(t, load.ID, nil)
	f.advance(t, load.ID,
		models.TransitionArrive,
		models.TransitionLoad,
		models.TransitionDepart,
		models.TransitionDeliver,
	)

	_, err := f.manager.Advance(context.Background(), f.driverActor(), load.ID, models.TransitionDeliver, nil)

	if !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Errorf("got %v, want an invalid transition error", err)
	}
}

func TestAdvanceByWrongDriver(t *testing.T) {
	f := newFixture()
	load := f.submitLoad(t)
	f.assignLoad(t, load.ID, nil)

	other := models.NewDriver("Pat Lindo", "pat@roadrunner.example", models.TrailerStepDeck, "TRK-99")
	other.AccountID = "acct-other"
	f.drivers.drivers[other.ID] = other

	_, err := f.manager.Advance(context.Background(),
		models.Actor{UserID: other.AccountID, Role: models.RoleDriver},
		load.ID, models.TransitionArrive, nil)

	if !errors.Is(err, apperrors.ErrAuthorization) {
		t.Errorf("got %v, want an authorization error", err)
	}

	stored, _ := f.loads.GetLoad(context.Background(), load.ID)

	if stored.Status != models.LoadStatusAssigned {
		t.Errorf("status moved to %s on a rejected request", stored.Status)
	}
}

func TestConcurrentAdvanceOneWinner(t *testing.T) {
	f := newFixture()
	load := f.submitLoad(t)
	f.assignLoad(t, load.ID, nil)

	var wg sync.WaitGroup
	results := make([]error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()
			_, results[i] = f.manager.Advance(context.Background(), f.driverActor(), load.ID, models.TransitionArrive, nil)
		}(i)
	}

	wg.Wait()

	wins := 0

	for _, err := range results {
		if err == nil {
			wins++
		} else if !errors.Is(err, apperrors.ErrInvalidTransition) {
			t.Errorf("loser got %v, want an invalid transition error", err)
		}
	}

	if wins != 1 {
		t.Errorf("got %d winners, want exactly 1", wins)
	}

	stored, _ := f.loads.GetLoad(context.Background(), load.ID)

	if stored.Status != models.LoadStatusArrived {
		t.Errorf("got status %s, want arrived", stored.Status)
	}
}

func TestDispatchFailureDegradesButCommits(t *testing.T) {
	f := newFixture()
	load := f.submitLoad(t)
	f.assignLoad(t, load.ID, nil)
	f.advance(t, load.ID, models.TransitionArrive, models.TransitionLoad)

	f.notifier.err = errors.New("email provider down")

	updated, err := f.manager.Advance(context.Background(), f.driverActor(), load.ID, models.TransitionDepart, nil)

	if !apperrors.IsDispatchDegraded(err) {
		t.Fatalf("got %v, want a dispatch degraded error", err)
	}

	if updated == nil || updated.Status != models.LoadStatusInTransit {
		t.Error("the status change must commit even when notifications fail")
	}

	stored, _ := f.loads.GetLoad(context.Background(), load.ID)

	if stored.Status != models.LoadStatusInTransit {
		t.Errorf("got stored status %s, want in_transit", stored.Status)
	}
}

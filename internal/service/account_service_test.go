package service

import (
	"context"
	"errors"
	"testing"

	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/models"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/repository"
	apperrors "github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/errors"
)

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

func (s *fakeClientStore) Create(ctx context.Context, client *models.Client) error {
	s.clients[client.ID] = client
	return nil
}

func (s *fakeClientStore) GetByInviteEmail(ctx context.Context, email string) (*models.Client, error) {
	for _, client := range s.clients {
		if client.InviteEmail == email && !client.AccountLinked && client.Active {
			return client, nil
		}
	}

	return nil, repository.ErrNotFound
}

func (s *fakeClientStore) LinkAccount(ctx context.Context, clientID, accountID string) error {
	client, ok := s.clients[clientID]

	if !ok || client.AccountLinked {
		return repository.ErrNotFound
	}

	client.AccountID = accountID
	client.AccountLinked = true
	return nil
}

func (s *fakeClientStore) ListAll(ctx context.Context) ([]*models.Client, error) {
	var out []*models.Client

	for _, client := range s.clients {
		if client.Active {
			out = append(out, client)
		}
	}

	return out, nil
}

func (s *fakeClientStore) Deactivate(ctx context.Context, clientID string) error {
	client, ok := s.clients[clientID]

	if !ok {
		return repository.ErrNotFound
	}

	client.Active = false
	return nil
}

type fakeDriverLinker struct {
	drivers map[string]*models.Driver
}

func (s *fakeDriverLinker) GetByInviteEmail(ctx context.Context, email string) (*models.Driver, error) {
	for _, driver := range s.drivers {
		if driver.InviteEmail == email && !driver.AccountLinked && driver.Active {
			return driver, nil
		}
	}

	return nil, repository.ErrNotFound
}

func (s *fakeDriverLinker) LinkAccount(ctx context.Context, driverID, accountID string) error {
	driver, ok := s.drivers[driverID]

	if !ok || driver.AccountLinked {
		return repository.ErrNotFound
	}

	driver.AccountID = accountID
	driver.AccountLinked = true
	return nil
}

type fakeRoleStore struct {
	roles map[string]models.Role
}

func (s *fakeRoleStore) SetRole(ctx context.Context, userID string, role models.Role) error {
	s.roles[userID] = role
	return nil
}

func testAccountService(clients *fakeClientStore, drivers *fakeDriverLinker) (*AccountService, *fakeRoleStore) {
	roles := &fakeRoleStore{roles: make(map[string]models.Role)}
	return NewAccountService(clients, drivers, roles, testLogger()), roles
}

func TestProvisionClient(t *testing.T) {
	clients := newFakeClientStore()
	svc, _ := testAccountService(clients, &fakeDriverLinker{drivers: map[string]*models.Driver{}})

	client, err := svc.ProvisionClient(context.Background(), dispatcherActor(),
		"Jo Martin", "Acme Lumber", "403-555-0101", "jo@acmelumber.example")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if client.AccountLinked {
		t.Error("a provisioned client must start unlinked")
	}

	if client.InviteEmail != "jo@acmelumber.example" {
		t.Errorf("got invite email %s, want the provided email", client.InviteEmail)
	}
}

func TestProvisionClientRequiresDispatcher(t *testing.T) {
	svc, _ := testAccountService(newFakeClientStore(), &fakeDriverLinker{drivers: map[string]*models.Driver{}})

	_, err := svc.ProvisionClient(context.Background(),
		models.Actor{UserID: "a", Role: models.RoleClient},
		"Jo Martin", "", "", "jo@acmelumber.example")

	if !errors.Is(err, apperrors.ErrAuthorization) {
		t.Errorf("got %v, want an authorization error", err)
	}
}

func TestLinkSignupDriver(t *testing.T) {
	driver := models.NewDriver("Sam Reyes", "sam@roadrunner.example", models.TrailerFlatBed, "TRK-12")
	drivers := &fakeDriverLinker{drivers: map[string]*models.Driver{driver.ID: driver}}
	svc, roles := testAccountService(newFakeClientStore(), drivers)

	role, err := svc.LinkSignup(context.Background(), "acct-new", "sam@roadrunner.example")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if role != models.RoleDriver {
		t.Errorf("got role %s, want driver", role)
	}

	if !driver.AccountLinked || driver.AccountID != "acct-new" {
		t.Error("driver record not linked to the new account")
	}

	if roles.roles["acct-new"] != models.RoleDriver {
		t.Error("role not recorded for the new account")
	}
}

func TestLinkSignupClient(t *testing.T) {
	client := models.NewClient("Jo Martin", "Acme Lumber", "", "jo@acmelumber.example")
	clients := newFakeClientStore(client)
	svc, roles := testAccountService(clients, &fakeDriverLinker{drivers: map[string]*models.Driver{}})

	role, err := svc.LinkSignup(context.Background(), "acct-new", "jo@acmelumber.example")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if role != models.RoleClient {
		t.Errorf("got role %s, want client", role)
	}

	if roles.roles["acct-new"] != models.RoleClient {
		t.Error("role not recorded for the new account")
	}
}

func TestLinkSignupNoOpenInvite(t *testing.T) {
	svc, _ := testAccountService(newFakeClientStore(), &fakeDriverLinker{drivers: map[string]*models.Driver{}})

	_, err := svc.LinkSignup(context.Background(), "acct-new", "stranger@example.com")

	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("got %v, want a not found error", err)
	}
}

func TestLinkSignupUsedInvite(t *testing.T) {
	client := models.NewClient("Jo Martin", "Acme Lumber", "", "jo@acmelumber.example")
	clients := newFakeClientStore(client)
	svc, _ := testAccountService(clients, &fakeDriverLinker{drivers: map[string]*models.Driver{}})

	if _, err := svc.LinkSignup(context.Background(), "acct-first", "jo@acmelumber.example"); err != nil {
		t.Fatalf("first link failed: %v", err)
	}

	// The invite is consumed; a second signup with the same email finds no
	// open invite.
	_, err := svc.LinkSignup(context.Background(), "acct-second", "jo@acmelumber.example")

	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("got %v, want a not found error", err)
	}

	if client.AccountID != "acct-first" {
		t.Error("the second signup must not steal the linked record")
	}
}

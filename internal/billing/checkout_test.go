package billing

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"carflex/internal/pack"
	"carflex/internal/user"
)

type fakePackStore struct {
	packs map[string]*pack.Pack
}

func (s *fakePackStore) GetByID(ctx context.Context, id string) (*pack.Pack, error) {
	p, ok := s.packs[id]
	if !ok {
		return nil, errors.New("pack not found")
	}
	return p, nil
}

type fakeCustomerStore struct {
	stored map[string]string
}

func (s *fakeCustomerStore) SetStripeCustomerID(ctx context.Context, id, customerID string) error {
	s.stored[id] = customerID
	return nil
}

type fakeGateway struct {
	customersCreated int
	lastSession      SessionParams
}

func (g *fakeGateway) CreateCustomer(ctx context.Context, email, name, userID string) (string, error) {
	g.customersCreated++
	return "cus_new", nil
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, p SessionParams) (string, error) {
	g.lastSession = p
	return "https://checkout.stripe.test/session", nil
}

func newTestCheckout() (*Checkout, *fakeGateway, *fakeCustomerStore) {
	packs := &fakePackStore{packs: map[string]*pack.Pack{
		"pack-1": {
			ID:           "pack-1",
			Name:         "Midrange",
			Subtitle:     "Sedans & SUVs",
			PriceMonthly: "499.00",
			PriceYearly:  "4990.00",
		},
	}}
	customers := &fakeCustomerStore{stored: make(map[string]string)}
	gateway := &fakeGateway{}
	c := NewCheckout(packs, customers, gateway, "http://localhost:5000",
		zerolog.New(os.Stderr).Level(zerolog.Disabled))
	return c, gateway, customers
}

func TestCreateSessionRejectsInvalidPeriod(t *testing.T) {
	c, _, _ := newTestCheckout()
	u := &user.User{ID: "u1", Email: "driver@example.com"}

	_, err := c.CreateSession(context.Background(), u, "pack-1", "weekly")
	if !errors.Is(err, ErrInvalidBillingPeriod) {
		t.Fatalf("expected ErrInvalidBillingPeriod, got %v", err)
	}
}

func TestCreateSessionUnknownPack(t *testing.T) {
	c, _, _ := newTestCheckout()
	u := &user.User{ID: "u1", Email: "driver@example.com"}

	if _, err := c.CreateSession(context.Background(), u, "missing", "monthly"); err == nil {
		t.Fatal("expected error for unknown pack")
	}
}

func TestCreateSessionCreatesAndPersistsCustomer(t *testing.T) {
	c, gateway, customers := newTestCheckout()
	u := &user.User{ID: "u1", Email: "driver@example.com", Name: "Driver"}

	url, err := c.CreateSession(context.Background(), u, "pack-1", "monthly")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if url == "" {
		t.Fatal("expected a session URL")
	}

	if gateway.customersCreated != 1 {
		t.Errorf("customers created = %d, want 1", gateway.customersCreated)
	}
	if customers.stored["u1"] != "cus_new" {
		t.Errorf("customer id not persisted: %q", customers.stored["u1"])
	}
	if gateway.lastSession.CustomerID != "cus_new" {
		t.Errorf("session customer = %q, want cus_new", gateway.lastSession.CustomerID)
	}
}

func TestCreateSessionReusesExistingCustomer(t *testing.T) {
	c, gateway, customers := newTestCheckout()
	u := &user.User{ID: "u1", Email: "driver@example.com", StripeCustomerID: "cus_existing"}

	if _, err := c.CreateSession(context.Background(), u, "pack-1", "monthly"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if gateway.customersCreated != 0 {
		t.Error("must not create a new customer when one exists")
	}
	if len(customers.stored) != 0 {
		t.Error("must not rewrite the stored customer id")
	}
	if gateway.lastSession.CustomerID != "cus_existing" {
		t.Errorf("session customer = %q, want cus_existing", gateway.lastSession.CustomerID)
	}
}

func TestCreateSessionPricing(t *testing.T) {
	c, gateway, _ := newTestCheckout()
	u := &user.User{ID: "u1", Email: "driver@example.com", StripeCustomerID: "cus_1"}

	if _, err := c.CreateSession(context.Background(), u, "pack-1", "monthly"); err != nil {
		t.Fatalf("monthly: %v", err)
	}
	if gateway.lastSession.UnitAmount != 49900 {
		t.Errorf("monthly unit amount = %d, want 49900", gateway.lastSession.UnitAmount)
	}

	if _, err := c.CreateSession(context.Background(), u, "pack-1", "yearly"); err != nil {
		t.Fatalf("yearly: %v", err)
	}
	if gateway.lastSession.UnitAmount != 499000 {
		t.Errorf("yearly unit amount = %d, want 499000", gateway.lastSession.UnitAmount)
	}
}

func TestCreateSessionCarriesReconcilerMetadata(t *testing.T) {
	c, gateway, _ := newTestCheckout()
	u := &user.User{ID: "u1", Email: "driver@example.com", StripeCustomerID: "cus_1"}

	if _, err := c.CreateSession(context.Background(), u, "pack-1", "yearly"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	s := gateway.lastSession
	if s.UserID != "u1" || s.PackID != "pack-1" || s.BillingPeriod != "yearly" {
		t.Errorf("metadata wrong: user=%q pack=%q period=%q", s.UserID, s.PackID, s.BillingPeriod)
	}
	if !strings.Contains(s.SuccessURL, "{CHECKOUT_SESSION_ID}") {
		t.Errorf("success URL missing session id placeholder: %q", s.SuccessURL)
	}
}

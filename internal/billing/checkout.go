package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"carflex/internal/metrics"
	"carflex/internal/pack"
	"carflex/internal/subscription"
	"carflex/internal/user"
)

var ErrInvalidBillingPeriod = errors.New("invalid billing period")

// Gateway is the provider-side surface the checkout initiator needs. The
// real implementation wraps an injected Stripe client; tests supply a fake.
type Gateway interface {
	CreateCustomer(ctx context.Context, email, name, userID string) (string, error)
	CreateCheckoutSession(ctx context.Context, p SessionParams) (url string, err error)
}

// SessionParams describes one hosted-checkout session. Metadata carries
// {userId, packId, billingPeriod} so the reconciler can recover context
// without querying by mutable fields.
type SessionParams struct {
	CustomerID    string
	PackName      string
	PackSubtitle  string
	BillingPeriod string
	UnitAmount    int64 // cents
	UserID        string
	PackID        string
	SuccessURL    string
	CancelURL     string
}

type packStore interface {
	GetByID(ctx context.Context, id string) (*pack.Pack, error)
}

type customerStore interface {
	SetStripeCustomerID(ctx context.Context, id, customerID string) error
}

// Checkout creates hosted-checkout sessions for a user+pack+period triple.
type Checkout struct {
	packs   packStore
	users   customerStore
	gateway Gateway
	appURL  string
	log     zerolog.Logger
}

func NewCheckout(packs packStore, users customerStore, gateway Gateway, appURL string, log zerolog.Logger) *Checkout {
	return &Checkout{packs: packs, users: users, gateway: gateway, appURL: appURL, log: log}
}

// CreateSession ensures the user has a provider customer record, then
// creates a subscription-mode checkout session and returns its URL.
func (c *Checkout) CreateSession(ctx context.Context, u *user.User, packID, billingPeriod string) (string, error) {
	if !subscription.ValidPeriod(billingPeriod) {
		return "", ErrInvalidBillingPeriod
	}

	p, err := c.packs.GetByID(ctx, packID)
	if err != nil {
		return "", err
	}

	customerID := u.StripeCustomerID
	if customerID == "" {
		customerID, err = c.gateway.CreateCustomer(ctx, u.Email, u.Name, u.ID)
		if err != nil {
			return "", fmt.Errorf("create stripe customer: %w", err)
		}
		if err := c.users.SetStripeCustomerID(ctx, u.ID, customerID); err != nil {
			return "", fmt.Errorf("store stripe customer id: %w", err)
		}
	}

	priceStr := p.PriceMonthly
	if billingPeriod == subscription.PeriodYearly {
		priceStr = p.PriceYearly
	}
	cents, err := ParsePriceCents(priceStr)
	if err != nil {
		return "", fmt.Errorf("pack %s price: %w", p.ID, err)
	}

	url, err := c.gateway.CreateCheckoutSession(ctx, SessionParams{
		CustomerID:    customerID,
		PackName:      p.Name,
		PackSubtitle:  p.Subtitle,
		BillingPeriod: billingPeriod,
		UnitAmount:    cents,
		UserID:        u.ID,
		PackID:        p.ID,
		SuccessURL:    c.appURL + "/dashboard?success=true&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     c.appURL + "/packs?canceled=true",
	})
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}

	metrics.CheckoutSessionsTotal.WithLabelValues(billingPeriod).Inc()
	c.log.Info().
		Str("user_id", u.ID).
		Str("pack", p.Name).
		Str("billing_period", billingPeriod).
		Msg("checkout session created")

	return url, nil
}

// StripeGateway implements Gateway on the official client. The client is
// injected, not taken from package-level state, so tests can substitute.
type StripeGateway struct {
	api *client.API
}

func NewStripeGateway(api *client.API) *StripeGateway {
	return &StripeGateway{api: api}
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, email, name, userID string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	params.AddMetadata("userId", userID)

	cust, err := g.api.Customers.New(params)
	if err != nil {
		return "", err
	}
	return cust.ID, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p SessionParams) (string, error) {
	interval := "month"
	if p.BillingPeriod == subscription.PeriodYearly {
		interval = "year"
	}

	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(p.CustomerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(p.PackName + " Pack"),
						Description: stripe.String(p.PackSubtitle),
					},
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String(interval),
					},
					UnitAmount: stripe.Int64(p.UnitAmount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata("userId", p.UserID)
	params.AddMetadata("packId", p.PackID)
	params.AddMetadata("billingPeriod", p.BillingPeriod)

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

package billing

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v79"
)

// The reconciler dispatches over a closed set of event kinds, each with its
// own typed payload, instead of branching on raw type strings everywhere.

// Event is one of the provider lifecycle events the reconciler acts on.
type Event interface {
	isEvent()
}

// CheckoutCompleted signals a finished hosted-checkout flow. The metadata
// fields were attached at session creation and are read back as-is.
type CheckoutCompleted struct {
	UserID          string
	PackID          string
	BillingPeriod   string
	CustomerRef     string
	SubscriptionRef string
}

// InvoicePaid signals a successful recurring charge.
type InvoicePaid struct {
	SubscriptionRef  string
	PaymentIntentRef string
	InvoiceNumber    string
	AmountPaidCents  int64
}

// InvoiceFailed signals a failed recurring charge.
type InvoiceFailed struct {
	SubscriptionRef string
}

// SubscriptionDeleted signals a provider-side cancellation.
type SubscriptionDeleted struct {
	SubscriptionRef string
}

func (CheckoutCompleted) isEvent()   {}
func (InvoicePaid) isEvent()         {}
func (InvoiceFailed) isEvent()       {}
func (SubscriptionDeleted) isEvent() {}

// ParseEvent maps a verified Stripe event onto the typed event set.
// Returns (nil, nil) for event types the reconciler does not handle.
func ParseEvent(e stripe.Event) (Event, error) {
	switch e.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(e.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("unmarshal checkout session: %w", err)
		}
		ev := CheckoutCompleted{
			UserID:        sess.Metadata["userId"],
			PackID:        sess.Metadata["packId"],
			BillingPeriod: sess.Metadata["billingPeriod"],
		}
		if sess.Customer != nil {
			ev.CustomerRef = sess.Customer.ID
		}
		if sess.Subscription != nil {
			ev.SubscriptionRef = sess.Subscription.ID
		}
		return ev, nil

	case "invoice.payment_succeeded":
		var inv stripe.Invoice
		if err := json.Unmarshal(e.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("unmarshal invoice: %w", err)
		}
		ev := InvoicePaid{
			InvoiceNumber:   inv.Number,
			AmountPaidCents: inv.AmountPaid,
		}
		if inv.Subscription != nil {
			ev.SubscriptionRef = inv.Subscription.ID
		}
		if inv.PaymentIntent != nil {
			ev.PaymentIntentRef = inv.PaymentIntent.ID
		}
		return ev, nil

	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(e.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("unmarshal invoice: %w", err)
		}
		ev := InvoiceFailed{}
		if inv.Subscription != nil {
			ev.SubscriptionRef = inv.Subscription.ID
		}
		return ev, nil

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(e.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("unmarshal subscription: %w", err)
		}
		return SubscriptionDeleted{SubscriptionRef: sub.ID}, nil
	}

	return nil, nil
}

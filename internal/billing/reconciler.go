package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"carflex/internal/metrics"
	"carflex/internal/payment"
	"carflex/internal/subscription"
	"carflex/internal/user"
)

// ErrSignatureInvalid rejects a webhook delivery whose signature does not
// verify against the configured secret. It is the only reconciler failure
// the provider should not retry.
var ErrSignatureInvalid = errors.New("webhook signature invalid")

// Reconciler translates Stripe lifecycle events into ledger mutations,
// exactly once in effect. Stripe delivers at-least-once and without ordering
// guarantees, so every mutating transition is guarded by a storage-level
// idempotency key (see Ledger). Events that cannot be resolved to local
// state are acknowledged and dropped: retrying cannot fix missing metadata,
// and non-2xx answers only cause retry storms. Only ledger failures are
// surfaced, so the provider redelivers into an idempotent handler.
type Reconciler struct {
	ledger Ledger
	secret string
	log    zerolog.Logger
	now    func() time.Time
}

func NewReconciler(ledger Ledger, webhookSecret string, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		ledger: ledger,
		secret: webhookSecret,
		log:    log,
		now:    time.Now,
	}
}

// HandleEvent verifies and applies one webhook delivery. payload must be the
// exact bytes received on the wire: the signature is computed over them.
func (r *Reconciler) HandleEvent(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, r.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		metrics.StripeSignatureFailuresTotal.Inc()
		r.log.Warn().Err(err).Msg("stripe webhook signature verification failed")
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	parsed, err := ParseEvent(event)
	if err != nil {
		// Malformed payload of a known type. Permanently unresolvable, ack.
		r.log.Error().Err(err).Str("type", string(event.Type)).Msg("stripe event payload malformed")
		r.count(event.Type, "malformed")
		return nil
	}
	if parsed == nil {
		r.log.Debug().Str("type", string(event.Type)).Msg("unhandled stripe event type")
		r.count(event.Type, "ignored")
		return nil
	}

	var outcome string
	switch ev := parsed.(type) {
	case CheckoutCompleted:
		outcome, err = r.applyCheckoutCompleted(ctx, ev)
	case InvoicePaid:
		outcome, err = r.applyInvoicePaid(ctx, ev)
	case InvoiceFailed:
		outcome, err = r.applyInvoiceFailed(ctx, ev)
	case SubscriptionDeleted:
		outcome, err = r.applySubscriptionDeleted(ctx, ev)
	}
	if err != nil {
		r.count(event.Type, "error")
		return fmt.Errorf("apply %s: %w", event.Type, err)
	}

	r.count(event.Type, outcome)
	return nil
}

func (r *Reconciler) count(t stripe.EventType, outcome string) {
	metrics.StripeWebhookEventsTotal.WithLabelValues(string(t), outcome).Inc()
}

// applyCheckoutCompleted creates the local subscription for a completed
// checkout. The Stripe subscription ref is claimed onto the user row first;
// the unique constraint behind ClaimStripeRefs makes redelivery (including
// concurrent duplicates) produce exactly one subscription row.
func (r *Reconciler) applyCheckoutCompleted(ctx context.Context, ev CheckoutCompleted) (string, error) {
	if ev.UserID == "" || ev.PackID == "" || !subscription.ValidPeriod(ev.BillingPeriod) {
		r.log.Warn().
			Str("user_id", ev.UserID).
			Str("pack_id", ev.PackID).
			Str("billing_period", ev.BillingPeriod).
			Msg("checkout session missing metadata, dropping")
		return "dropped", nil
	}

	if ev.SubscriptionRef != "" {
		existing, err := r.ledger.FindUserByStripeSubscriptionID(ctx, ev.SubscriptionRef)
		if err != nil {
			return "", err
		}
		if existing != nil {
			r.log.Info().Str("subscription_ref", ev.SubscriptionRef).Msg("checkout already processed, skipping duplicate")
			return "skipped", nil
		}

		claimed, err := r.ledger.ClaimStripeRefs(ctx, ev.UserID, ev.CustomerRef, ev.SubscriptionRef)
		if err != nil {
			return "", err
		}
		if !claimed {
			r.log.Info().
				Str("user_id", ev.UserID).
				Str("subscription_ref", ev.SubscriptionRef).
				Msg("subscription ref already claimed, skipping duplicate")
			return "skipped", nil
		}
	}

	now := r.now()
	sub := &subscription.Subscription{
		UserID:          ev.UserID,
		PackID:          ev.PackID,
		Status:          subscription.StatusActive,
		BillingPeriod:   ev.BillingPeriod,
		MileageUsed:     0,
		StartDate:       now,
		NextBillingDate: subscription.NextBilling(now, ev.BillingPeriod),
	}
	if err := r.ledger.CreateSubscription(ctx, sub); err != nil {
		return "", err
	}

	r.log.Info().
		Str("user_id", ev.UserID).
		Str("pack_id", ev.PackID).
		Str("subscription_id", sub.ID).
		Msg("subscription created from checkout")
	return "applied", nil
}

// applyInvoicePaid records the charge and advances the next billing date by
// one period of the *local* subscription, not whatever the invoice says.
// CreatePayment is insert-or-ignore on the payment-intent ref, so redelivery
// records one payment and advances the date once.
func (r *Reconciler) applyInvoicePaid(ctx context.Context, ev InvoicePaid) (string, error) {
	u, sub, outcome, err := r.resolveSubscription(ctx, ev.SubscriptionRef, "invoice.payment_succeeded")
	if sub == nil {
		return outcome, err
	}

	invoiceNumber := ev.InvoiceNumber
	if invoiceNumber == "" {
		invoiceNumber = fmt.Sprintf("INV-%d", r.now().UnixMilli())
	}

	pay := &payment.Payment{
		SubscriptionID:        sub.ID,
		UserID:                u.ID,
		Amount:                FormatCents(ev.AmountPaidCents),
		Status:                payment.StatusSucceeded,
		StripePaymentIntentID: ev.PaymentIntentRef,
		InvoiceNumber:         invoiceNumber,
		PaymentDate:           r.now(),
	}
	created, err := r.ledger.CreatePayment(ctx, pay)
	if err != nil {
		return "", err
	}
	if !created {
		r.log.Info().Str("payment_intent", ev.PaymentIntentRef).Msg("payment already recorded, skipping duplicate")
		return "skipped", nil
	}

	next := subscription.NextBilling(sub.NextBillingDate, sub.BillingPeriod)
	status := subscription.StatusActive
	if _, err := r.ledger.UpdateSubscription(ctx, sub.ID, subscription.Update{
		Status:          &status,
		NextBillingDate: &next,
	}); err != nil {
		return "", err
	}

	r.log.Info().
		Str("user_id", u.ID).
		Str("amount", pay.Amount).
		Str("invoice", invoiceNumber).
		Msg("payment recorded")
	return "applied", nil
}

func (r *Reconciler) applyInvoiceFailed(ctx context.Context, ev InvoiceFailed) (string, error) {
	u, sub, outcome, err := r.resolveSubscription(ctx, ev.SubscriptionRef, "invoice.payment_failed")
	if sub == nil {
		return outcome, err
	}

	status := subscription.StatusInactive
	if _, err := r.ledger.UpdateSubscription(ctx, sub.ID, subscription.Update{Status: &status}); err != nil {
		return "", err
	}

	r.log.Warn().Str("user_id", u.ID).Str("subscription_id", sub.ID).Msg("payment failed, subscription marked inactive")
	return "applied", nil
}

func (r *Reconciler) applySubscriptionDeleted(ctx context.Context, ev SubscriptionDeleted) (string, error) {
	u, sub, outcome, err := r.resolveSubscription(ctx, ev.SubscriptionRef, "customer.subscription.deleted")
	if sub == nil {
		return outcome, err
	}

	status := subscription.StatusCancelled
	now := r.now()
	if _, err := r.ledger.UpdateSubscription(ctx, sub.ID, subscription.Update{
		Status:  &status,
		EndDate: &now,
	}); err != nil {
		return "", err
	}

	r.log.Info().Str("user_id", u.ID).Str("subscription_id", sub.ID).Msg("subscription cancelled")
	return "applied", nil
}

// resolveSubscription walks ref -> user -> current subscription. A miss at
// any step is logged and dropped: events for subscriptions we never linked
// (out-of-order delivery, foreign accounts) are permanently unresolvable.
func (r *Reconciler) resolveSubscription(ctx context.Context, ref, eventType string) (u *user.User, sub *subscription.Subscription, outcome string, err error) {
	if ref == "" {
		r.log.Warn().Str("type", eventType).Msg("event carries no subscription ref, dropping")
		return nil, nil, "dropped", nil
	}

	u, err = r.ledger.FindUserByStripeSubscriptionID(ctx, ref)
	if err != nil {
		return nil, nil, "", err
	}
	if u == nil {
		r.log.Warn().
			Str("type", eventType).
			Str("subscription_ref", ref).
			Msg("no user linked to subscription ref, dropping (checkout may not have been processed yet)")
		return nil, nil, "dropped", nil
	}

	sub, err = r.ledger.FindCurrentSubscription(ctx, u.ID)
	if err != nil {
		return nil, nil, "", err
	}
	if sub == nil {
		r.log.Warn().
			Str("type", eventType).
			Str("user_id", u.ID).
			Msg("user has no subscription row, dropping")
		return u, nil, "dropped", nil
	}

	return u, sub, "", nil
}

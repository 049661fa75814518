package billing

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v79/webhook"

	"carflex/internal/payment"
	"carflex/internal/subscription"
	"carflex/internal/user"
)

const testSecret = "whsec_test_secret"

// fakeLedger mirrors the storage-level guarantees of the postgres
// repositories: the subscription ref claim is first-wins, and payment
// inserts are ignore-on-duplicate keyed by the payment intent ref.
type fakeLedger struct {
	users         map[string]*user.User
	subscriptions []*subscription.Subscription
	payments      map[string]*payment.Payment
	nextID        int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		users:    make(map[string]*user.User),
		payments: make(map[string]*payment.Payment),
	}
}

func (l *fakeLedger) addUser(id, email string) *user.User {
	u := &user.User{ID: id, Email: email, Name: "Test User", Role: user.RoleUser}
	l.users[id] = u
	return u
}

func (l *fakeLedger) FindUserByStripeSubscriptionID(ctx context.Context, ref string) (*user.User, error) {
	for _, u := range l.users {
		if u.StripeSubscriptionID == ref {
			return u, nil
		}
	}
	return nil, nil
}

func (l *fakeLedger) FindCurrentSubscription(ctx context.Context, userID string) (*subscription.Subscription, error) {
	for i := len(l.subscriptions) - 1; i >= 0; i-- {
		if l.subscriptions[i].UserID == userID {
			return l.subscriptions[i], nil
		}
	}
	return nil, nil
}

func (l *fakeLedger) FindPaymentByStripeIntentID(ctx context.Context, ref string) (*payment.Payment, error) {
	return l.payments[ref], nil
}

func (l *fakeLedger) ClaimStripeRefs(ctx context.Context, userID, customerRef, subscriptionRef string) (bool, error) {
	u, ok := l.users[userID]
	if !ok {
		return false, nil
	}
	if u.StripeSubscriptionID == subscriptionRef {
		return false, nil
	}
	for _, other := range l.users {
		if other.ID != userID && other.StripeSubscriptionID == subscriptionRef {
			return false, nil
		}
	}
	u.StripeCustomerID = customerRef
	u.StripeSubscriptionID = subscriptionRef
	return true, nil
}

func (l *fakeLedger) CreateSubscription(ctx context.Context, s *subscription.Subscription) error {
	l.nextID++
	s.ID = fmt.Sprintf("sub-row-%d", l.nextID)
	s.CreatedAt = time.Now()
	l.subscriptions = append(l.subscriptions, s)
	return nil
}

func (l *fakeLedger) CreatePayment(ctx context.Context, p *payment.Payment) (bool, error) {
	if p.StripePaymentIntentID != "" {
		if _, exists := l.payments[p.StripePaymentIntentID]; exists {
			return false, nil
		}
	}
	l.nextID++
	p.ID = fmt.Sprintf("pay-row-%d", l.nextID)
	p.CreatedAt = time.Now()
	l.payments[p.StripePaymentIntentID] = p
	return true, nil
}

func (l *fakeLedger) UpdateSubscription(ctx context.Context, id string, upd subscription.Update) (*subscription.Subscription, error) {
	for _, s := range l.subscriptions {
		if s.ID != id {
			continue
		}
		if upd.Status != nil {
			s.Status = *upd.Status
		}
		if upd.Vehicle != nil {
			s.Vehicle = *upd.Vehicle
		}
		if upd.MileageUsed != nil {
			s.MileageUsed = *upd.MileageUsed
		}
		if upd.NextBillingDate != nil {
			s.NextBillingDate = *upd.NextBillingDate
		}
		if upd.EndDate != nil {
			s.EndDate = upd.EndDate
		}
		return s, nil
	}
	return nil, errors.New("subscription not found")
}

func newTestReconciler(ledger Ledger, now time.Time) *Reconciler {
	r := NewReconciler(ledger, testSecret, zerolog.New(os.Stderr).Level(zerolog.Disabled))
	r.now = func() time.Time { return now }
	return r
}

// sign wraps a payload with a valid Stripe-Signature header for testSecret.
func sign(payload []byte) string {
	ts := time.Now()
	sig := webhook.ComputeSignature(ts, payload, testSecret)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(sig))
}

func checkoutPayload(userID, packID, period, customerRef, subRef string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_checkout",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_test_1",
				"customer": %q,
				"subscription": %q,
				"metadata": {"userId": %q, "packId": %q, "billingPeriod": %q}
			}
		}
	}`, customerRef, subRef, userID, packID, period))
}

func invoicePaidPayload(subRef, intentRef, number string, amountPaid int64) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_invoice",
		"type": "invoice.payment_succeeded",
		"data": {
			"object": {
				"id": "in_test_1",
				"subscription": %q,
				"payment_intent": %q,
				"number": %q,
				"amount_paid": %d
			}
		}
	}`, subRef, intentRef, number, amountPaid))
}

func TestHandleEventRejectsBadSignature(t *testing.T) {
	ledger := newFakeLedger()
	r := newTestReconciler(ledger, time.Now())

	payload := checkoutPayload("u1", "p1", "monthly", "cus_1", "sub_1")
	err := r.HandleEvent(context.Background(), payload, "t=123,v1=deadbeef")
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
	if len(ledger.subscriptions) != 0 || len(ledger.payments) != 0 {
		t.Fatal("ledger must not be touched on signature failure")
	}
}

func TestHandleEventIgnoresUnknownType(t *testing.T) {
	ledger := newFakeLedger()
	r := newTestReconciler(ledger, time.Now())

	payload := []byte(`{"id":"evt_x","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)
	if err := r.HandleEvent(context.Background(), payload, sign(payload)); err != nil {
		t.Fatalf("unhandled event type must be acknowledged, got %v", err)
	}
}

func TestCheckoutCompletedCreatesSubscription(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addUser("u1", "driver@example.com")
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	r := newTestReconciler(ledger, now)

	payload := checkoutPayload("u1", "pack-1", "monthly", "cus_1", "sub_1")
	if err := r.HandleEvent(context.Background(), payload, sign(payload)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if len(ledger.subscriptions) != 1 {
		t.Fatalf("expected 1 subscription, got %d", len(ledger.subscriptions))
	}
	sub := ledger.subscriptions[0]
	if sub.Status != subscription.StatusActive {
		t.Errorf("status = %q, want active", sub.Status)
	}
	if sub.PackID != "pack-1" || sub.UserID != "u1" {
		t.Errorf("subscription linked wrong: user=%q pack=%q", sub.UserID, sub.PackID)
	}
	if !sub.StartDate.Equal(now) {
		t.Errorf("start date = %v, want %v", sub.StartDate, now)
	}
	want := time.Date(2025, 2, 15, 10, 0, 0, 0, time.UTC)
	if !sub.NextBillingDate.Equal(want) {
		t.Errorf("next billing = %v, want %v", sub.NextBillingDate, want)
	}

	u := ledger.users["u1"]
	if u.StripeCustomerID != "cus_1" || u.StripeSubscriptionID != "sub_1" {
		t.Errorf("stripe refs not linked: customer=%q subscription=%q", u.StripeCustomerID, u.StripeSubscriptionID)
	}
}

func TestCheckoutCompletedYearlyBillingDate(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addUser("u1", "driver@example.com")
	now := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	r := newTestReconciler(ledger, now)

	payload := checkoutPayload("u1", "pack-1", "yearly", "cus_1", "sub_1")
	if err := r.HandleEvent(context.Background(), payload, sign(payload)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	want := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	if got := ledger.subscriptions[0].NextBillingDate; !got.Equal(want) {
		t.Errorf("yearly next billing = %v, want %v", got, want)
	}
}

func TestCheckoutCompletedRedeliveryIsIdempotent(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addUser("u1", "driver@example.com")
	r := newTestReconciler(ledger, time.Now())

	payload := checkoutPayload("u1", "pack-1", "monthly", "cus_1", "sub_1")
	for i := 0; i < 3; i++ {
		if err := r.HandleEvent(context.Background(), payload, sign(payload)); err != nil {
			t.Fatalf("delivery %d: %v", i+1, err)
		}
	}

	if len(ledger.subscriptions) != 1 {
		t.Fatalf("expected exactly 1 subscription after redelivery, got %d", len(ledger.subscriptions))
	}
}

func TestCheckoutCompletedMissingMetadataIsAcked(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addUser("u1", "driver@example.com")
	r := newTestReconciler(ledger, time.Now())

	payload := checkoutPayload("u1", "", "monthly", "cus_1", "sub_1")
	if err := r.HandleEvent(context.Background(), payload, sign(payload)); err != nil {
		t.Fatalf("missing metadata must be acknowledged, got %v", err)
	}
	if len(ledger.subscriptions) != 0 {
		t.Fatal("no subscription may be created without pack metadata")
	}
}

func TestInvoicePaidRecordsPaymentAndAdvancesBilling(t *testing.T) {
	ledger := newFakeLedger()
	u := ledger.addUser("u1", "driver@example.com")
	u.StripeSubscriptionID = "sub_1"
	billedAt := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	ledger.subscriptions = append(ledger.subscriptions, &subscription.Subscription{
		ID:              "sub-row-1",
		UserID:          "u1",
		PackID:          "pack-1",
		Status:          subscription.StatusActive,
		BillingPeriod:   subscription.PeriodMonthly,
		NextBillingDate: billedAt,
	})
	r := newTestReconciler(ledger, time.Now())

	payload := invoicePaidPayload("sub_1", "pi_1", "INV-0042", 49900)
	if err := r.HandleEvent(context.Background(), payload, sign(payload)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if len(ledger.payments) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(ledger.payments))
	}
	pay := ledger.payments["pi_1"]
	if pay.Amount != "499.00" {
		t.Errorf("amount = %q, want 499.00", pay.Amount)
	}
	if pay.InvoiceNumber != "INV-0042" {
		t.Errorf("invoice number = %q, want INV-0042", pay.InvoiceNumber)
	}
	if pay.Status != payment.StatusSucceeded {
		t.Errorf("status = %q, want succeeded", pay.Status)
	}

	want := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	if got := ledger.subscriptions[0].NextBillingDate; !got.Equal(want) {
		t.Errorf("next billing = %v, want %v", got, want)
	}
}

func TestInvoicePaidRedeliveryAdvancesOnce(t *testing.T) {
	ledger := newFakeLedger()
	u := ledger.addUser("u1", "driver@example.com")
	u.StripeSubscriptionID = "sub_1"
	billedAt := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	ledger.subscriptions = append(ledger.subscriptions, &subscription.Subscription{
		ID:              "sub-row-1",
		UserID:          "u1",
		BillingPeriod:   subscription.PeriodMonthly,
		Status:          subscription.StatusActive,
		NextBillingDate: billedAt,
	})
	r := newTestReconciler(ledger, time.Now())

	payload := invoicePaidPayload("sub_1", "pi_1", "INV-0042", 49900)
	for i := 0; i < 3; i++ {
		if err := r.HandleEvent(context.Background(), payload, sign(payload)); err != nil {
			t.Fatalf("delivery %d: %v", i+1, err)
		}
	}

	if len(ledger.payments) != 1 {
		t.Fatalf("expected exactly 1 payment after redelivery, got %d", len(ledger.payments))
	}
	want := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	if got := ledger.subscriptions[0].NextBillingDate; !got.Equal(want) {
		t.Errorf("billing date advanced more than once: %v, want %v", got, want)
	}
}

func TestInvoicePaidUnknownSubscriptionIsAcked(t *testing.T) {
	ledger := newFakeLedger()
	r := newTestReconciler(ledger, time.Now())

	payload := invoicePaidPayload("sub_unknown", "pi_1", "INV-0001", 29900)
	if err := r.HandleEvent(context.Background(), payload, sign(payload)); err != nil {
		t.Fatalf("unresolvable invoice must be acknowledged, got %v", err)
	}
	if len(ledger.payments) != 0 {
		t.Fatal("no payment may be recorded for an unknown subscription ref")
	}
}

func TestInvoicePaidGeneratesInvoiceNumberWhenMissing(t *testing.T) {
	ledger := newFakeLedger()
	u := ledger.addUser("u1", "driver@example.com")
	u.StripeSubscriptionID = "sub_1"
	ledger.subscriptions = append(ledger.subscriptions, &subscription.Subscription{
		ID:              "sub-row-1",
		UserID:          "u1",
		BillingPeriod:   subscription.PeriodMonthly,
		Status:          subscription.StatusActive,
		NextBillingDate: time.Now(),
	})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := newTestReconciler(ledger, now)

	payload := invoicePaidPayload("sub_1", "pi_9", "", 29900)
	if err := r.HandleEvent(context.Background(), payload, sign(payload)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	want := fmt.Sprintf("INV-%d", now.UnixMilli())
	if got := ledger.payments["pi_9"].InvoiceNumber; got != want {
		t.Errorf("invoice number = %q, want %q", got, want)
	}
}

func TestInvoiceFailedMarksSubscriptionInactive(t *testing.T) {
	ledger := newFakeLedger()
	u := ledger.addUser("u1", "driver@example.com")
	u.StripeSubscriptionID = "sub_1"
	ledger.subscriptions = append(ledger.subscriptions, &subscription.Subscription{
		ID:            "sub-row-1",
		UserID:        "u1",
		BillingPeriod: subscription.PeriodMonthly,
		Status:        subscription.StatusActive,
	})
	r := newTestReconciler(ledger, time.Now())

	payload := []byte(`{
		"id": "evt_fail",
		"type": "invoice.payment_failed",
		"data": {"object": {"id": "in_f", "subscription": "sub_1"}}
	}`)
	if err := r.HandleEvent(context.Background(), payload, sign(payload)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if got := ledger.subscriptions[0].Status; got != subscription.StatusInactive {
		t.Errorf("status = %q, want inactive", got)
	}
}

func TestSubscriptionDeletedCancelsAndSetsEndDate(t *testing.T) {
	ledger := newFakeLedger()
	u := ledger.addUser("u1", "driver@example.com")
	u.StripeSubscriptionID = "sub_1"
	ledger.subscriptions = append(ledger.subscriptions, &subscription.Subscription{
		ID:            "sub-row-1",
		UserID:        "u1",
		BillingPeriod: subscription.PeriodMonthly,
		Status:        subscription.StatusActive,
	})
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	r := newTestReconciler(ledger, now)

	payload := []byte(`{
		"id": "evt_del",
		"type": "customer.subscription.deleted",
		"data": {"object": {"id": "sub_1"}}
	}`)
	if err := r.HandleEvent(context.Background(), payload, sign(payload)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	sub := ledger.subscriptions[0]
	if sub.Status != subscription.StatusCancelled {
		t.Errorf("status = %q, want cancelled", sub.Status)
	}
	if sub.EndDate == nil || !sub.EndDate.Equal(now) {
		t.Errorf("end date = %v, want %v", sub.EndDate, now)
	}
}

func TestOutOfOrderInvoiceBeforeCheckout(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addUser("u1", "driver@example.com")
	r := newTestReconciler(ledger, time.Now())

	// invoice arrives before its checkout has been processed: acked, no payment
	invoice := invoicePaidPayload("sub_1", "pi_1", "INV-0001", 49900)
	if err := r.HandleEvent(context.Background(), invoice, sign(invoice)); err != nil {
		t.Fatalf("early invoice: %v", err)
	}
	if len(ledger.payments) != 0 {
		t.Fatal("early invoice must not create a payment")
	}

	// checkout lands, then the retried invoice succeeds
	checkout := checkoutPayload("u1", "pack-1", "monthly", "cus_1", "sub_1")
	if err := r.HandleEvent(context.Background(), checkout, sign(checkout)); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if err := r.HandleEvent(context.Background(), invoice, sign(invoice)); err != nil {
		t.Fatalf("retried invoice: %v", err)
	}

	if len(ledger.subscriptions) != 1 || len(ledger.payments) != 1 {
		t.Fatalf("expected 1 subscription and 1 payment, got %d and %d",
			len(ledger.subscriptions), len(ledger.payments))
	}
}

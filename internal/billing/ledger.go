package billing

import (
	"context"

	"carflex/internal/payment"
	"carflex/internal/subscription"
	"carflex/internal/user"
)

// Ledger is the persistence contract the reconciler mutates through. Every
// call is a single-row operation; the reconciler holds no state of its own
// and does no locking beyond what these calls guarantee.
type Ledger interface {
	// FindUserByStripeSubscriptionID returns (nil, nil) when no user carries the ref.
	FindUserByStripeSubscriptionID(ctx context.Context, ref string) (*user.User, error)
	// FindCurrentSubscription returns the newest subscription row for the user, or (nil, nil).
	FindCurrentSubscription(ctx context.Context, userID string) (*subscription.Subscription, error)
	// FindPaymentByStripeIntentID returns (nil, nil) when no payment carries the ref.
	FindPaymentByStripeIntentID(ctx context.Context, ref string) (*payment.Payment, error)
	// ClaimStripeRefs atomically links provider refs onto the user row;
	// returns false when the subscription ref was already claimed.
	ClaimStripeRefs(ctx context.Context, userID, customerRef, subscriptionRef string) (bool, error)
	CreateSubscription(ctx context.Context, s *subscription.Subscription) error
	// CreatePayment inserts unless the intent ref exists; returns whether a row was created.
	CreatePayment(ctx context.Context, p *payment.Payment) (bool, error)
	UpdateSubscription(ctx context.Context, id string, upd subscription.Update) (*subscription.Subscription, error)
}

type userStore interface {
	GetByStripeSubscriptionID(ctx context.Context, ref string) (*user.User, error)
	ClaimStripeRefs(ctx context.Context, id, customerID, subscriptionRef string) (bool, error)
}

type subscriptionStore interface {
	Create(ctx context.Context, s *subscription.Subscription) error
	GetCurrentByUserID(ctx context.Context, userID string) (*subscription.Subscription, error)
	Update(ctx context.Context, id string, upd subscription.Update) (*subscription.Subscription, error)
}

type paymentStore interface {
	Create(ctx context.Context, p *payment.Payment) (bool, error)
	GetByStripePaymentIntentID(ctx context.Context, ref string) (*payment.Payment, error)
}

// repoLedger composes the postgres repositories into the Ledger contract.
type repoLedger struct {
	users userStore
	subs  subscriptionStore
	pays  paymentStore
}

func NewLedger(users userStore, subs subscriptionStore, pays paymentStore) Ledger {
	return &repoLedger{users: users, subs: subs, pays: pays}
}

func (l *repoLedger) FindUserByStripeSubscriptionID(ctx context.Context, ref string) (*user.User, error) {
	return l.users.GetByStripeSubscriptionID(ctx, ref)
}

func (l *repoLedger) FindCurrentSubscription(ctx context.Context, userID string) (*subscription.Subscription, error) {
	return l.subs.GetCurrentByUserID(ctx, userID)
}

func (l *repoLedger) FindPaymentByStripeIntentID(ctx context.Context, ref string) (*payment.Payment, error) {
	return l.pays.GetByStripePaymentIntentID(ctx, ref)
}

func (l *repoLedger) ClaimStripeRefs(ctx context.Context, userID, customerRef, subscriptionRef string) (bool, error) {
	return l.users.ClaimStripeRefs(ctx, userID, customerRef, subscriptionRef)
}

func (l *repoLedger) CreateSubscription(ctx context.Context, s *subscription.Subscription) error {
	return l.subs.Create(ctx, s)
}

func (l *repoLedger) CreatePayment(ctx context.Context, p *payment.Payment) (bool, error) {
	return l.pays.Create(ctx, p)
}

func (l *repoLedger) UpdateSubscription(ctx context.Context, id string, upd subscription.Update) (*subscription.Subscription, error) {
	return l.subs.Update(ctx, id, upd)
}

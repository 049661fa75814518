package repository

import (
	"context"
	"database/sql"
	"errors"

	"carflex/internal/payment"
)

type PostgresPaymentRepository struct {
	db *sql.DB
}

func NewPostgresPaymentRepository(db *sql.DB) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{db: db}
}

const paymentColumns = `id, subscription_id, user_id, amount, status,
	COALESCE(stripe_payment_intent_id, ''), invoice_number, payment_date, created_at`

func scanPayment(row interface{ Scan(...interface{}) error }) (*payment.Payment, error) {
	p := &payment.Payment{}
	err := row.Scan(
		&p.ID,
		&p.SubscriptionID,
		&p.UserID,
		&p.Amount,
		&p.Status,
		&p.StripePaymentIntentID,
		&p.InvoiceNumber,
		&p.PaymentDate,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts the payment, or does nothing when a row with the same
// Stripe payment-intent reference already exists. The unique index on
// stripe_payment_intent_id makes this the idempotency gate for
// invoice.payment_succeeded: returns false when the charge was recorded
// before, true when this call created the row.
func (r *PostgresPaymentRepository) Create(ctx context.Context, p *payment.Payment) (bool, error) {
	query := `INSERT INTO payments (subscription_id, user_id, amount, status, stripe_payment_intent_id, invoice_number, payment_date)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
		ON CONFLICT (stripe_payment_intent_id) DO NOTHING
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		p.SubscriptionID, p.UserID, p.Amount, p.Status, p.StripePaymentIntentID, p.InvoiceNumber, p.PaymentDate,
	).Scan(&p.ID, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// conflict: the insert was skipped
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetByStripePaymentIntentID returns (nil, nil) when no payment carries the reference.
func (r *PostgresPaymentRepository) GetByStripePaymentIntentID(ctx context.Context, ref string) (*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE stripe_payment_intent_id = $1`
	p, err := scanPayment(r.db.QueryRowContext(ctx, query, ref))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *PostgresPaymentRepository) GetByUserID(ctx context.Context, userID string) ([]*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE user_id = $1 ORDER BY payment_date DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*payment.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *PostgresPaymentRepository) GetAllWithUser(ctx context.Context) ([]*payment.WithUser, error) {
	query := `SELECT p.id, p.subscription_id, p.user_id, p.amount, p.status,
			COALESCE(p.stripe_payment_intent_id, ''), p.invoice_number, p.payment_date, p.created_at,
			u.id, u.email, u.name, u.role, u.created_at
		FROM payments p
		JOIN users u ON u.id = p.user_id
		ORDER BY p.payment_date DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*payment.WithUser
	for rows.Next() {
		out := &payment.WithUser{}
		err := rows.Scan(
			&out.ID, &out.SubscriptionID, &out.UserID, &out.Amount, &out.Status,
			&out.StripePaymentIntentID, &out.InvoiceNumber, &out.PaymentDate, &out.CreatedAt,
			&out.User.ID, &out.User.Email, &out.User.Name, &out.User.Role, &out.User.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, out)
	}
	return items, rows.Err()
}

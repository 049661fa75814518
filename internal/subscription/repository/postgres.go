package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"carflex/internal/subscription"
)

type PostgresSubscriptionRepository struct {
	db *sql.DB
}

func NewPostgresSubscriptionRepository(db *sql.DB) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{db: db}
}

const subColumns = `s.id, s.user_id, s.pack_id, s.status, s.billing_period, COALESCE(s.vehicle, ''),
	s.mileage_used, s.start_date, s.next_billing_date, s.end_date, s.created_at`

func scanSubscription(row interface{ Scan(...interface{}) error }) (*subscription.Subscription, error) {
	s := &subscription.Subscription{}
	var endDate sql.NullTime
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.PackID,
		&s.Status,
		&s.BillingPeriod,
		&s.Vehicle,
		&s.MileageUsed,
		&s.StartDate,
		&s.NextBillingDate,
		&endDate,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if endDate.Valid {
		s.EndDate = &endDate.Time
	}
	return s, nil
}

func (r *PostgresSubscriptionRepository) Create(ctx context.Context, s *subscription.Subscription) error {
	query := `INSERT INTO subscriptions (user_id, pack_id, status, billing_period, mileage_used, start_date, next_billing_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	return r.db.QueryRowContext(ctx, query,
		s.UserID, s.PackID, s.Status, s.BillingPeriod, s.MileageUsed, s.StartDate, s.NextBillingDate,
	).Scan(&s.ID, &s.CreatedAt)
}

// GetCurrentByUserID returns the user's current subscription: the newest row
// by creation time. Returns (nil, nil) when the user never subscribed.
func (r *PostgresSubscriptionRepository) GetCurrentByUserID(ctx context.Context, userID string) (*subscription.Subscription, error) {
	query := `SELECT ` + subColumns + ` FROM subscriptions s
		WHERE s.user_id = $1
		ORDER BY s.created_at DESC
		LIMIT 1`

	s, err := scanSubscription(r.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// GetCurrentWithPack is GetCurrentByUserID joined with the pack row, for the
// dashboard view.
func (r *PostgresSubscriptionRepository) GetCurrentWithPack(ctx context.Context, userID string) (*subscription.WithPack, error) {
	query := `SELECT ` + subColumns + `,
			p.id, p.name, p.subtitle, p.price_monthly, p.price_yearly, p.mileage_limit, p.features, p.is_popular, p.created_at
		FROM subscriptions s
		JOIN packs p ON p.id = s.pack_id
		WHERE s.user_id = $1
		ORDER BY s.created_at DESC
		LIMIT 1`

	row := r.db.QueryRowContext(ctx, query, userID)

	out := &subscription.WithPack{}
	var endDate sql.NullTime
	var mileage sql.NullInt64
	err := row.Scan(
		&out.ID, &out.UserID, &out.PackID, &out.Status, &out.BillingPeriod, &out.Vehicle,
		&out.MileageUsed, &out.StartDate, &out.NextBillingDate, &endDate, &out.CreatedAt,
		&out.Pack.ID, &out.Pack.Name, &out.Pack.Subtitle, &out.Pack.PriceMonthly, &out.Pack.PriceYearly,
		&mileage, pq.Array(&out.Pack.Features), &out.Pack.IsPopular, &out.Pack.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if endDate.Valid {
		out.EndDate = &endDate.Time
	}
	if mileage.Valid {
		limit := int(mileage.Int64)
		out.Pack.MileageLimit = &limit
	}
	return out, nil
}

func (r *PostgresSubscriptionRepository) Update(ctx context.Context, id string, upd subscription.Update) (*subscription.Subscription, error) {
	query := `UPDATE subscriptions SET
			status = COALESCE($2, status),
			vehicle = COALESCE($3, vehicle),
			mileage_used = COALESCE($4, mileage_used),
			next_billing_date = COALESCE($5, next_billing_date),
			end_date = COALESCE($6, end_date)
		WHERE id = $1
		RETURNING id, user_id, pack_id, status, billing_period, COALESCE(vehicle, ''),
			mileage_used, start_date, next_billing_date, end_date, created_at`

	return scanSubscription(r.db.QueryRowContext(ctx, query,
		id, upd.Status, upd.Vehicle, upd.MileageUsed, upd.NextBillingDate, upd.EndDate))
}

func (r *PostgresSubscriptionRepository) GetAllWithUserAndPack(ctx context.Context) ([]*subscription.WithUserAndPack, error) {
	query := `SELECT ` + subColumns + `,
			u.id, u.email, u.name, COALESCE(u.phone, ''), u.role, u.created_at,
			p.id, p.name, p.subtitle, p.price_monthly, p.price_yearly, p.mileage_limit, p.features, p.is_popular, p.created_at
		FROM subscriptions s
		JOIN users u ON u.id = s.user_id
		JOIN packs p ON p.id = s.pack_id
		ORDER BY s.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*subscription.WithUserAndPack
	for rows.Next() {
		out := &subscription.WithUserAndPack{}
		var endDate sql.NullTime
		var mileage sql.NullInt64
		err := rows.Scan(
			&out.ID, &out.UserID, &out.PackID, &out.Status, &out.BillingPeriod, &out.Vehicle,
			&out.MileageUsed, &out.StartDate, &out.NextBillingDate, &endDate, &out.CreatedAt,
			&out.User.ID, &out.User.Email, &out.User.Name, &out.User.Phone, &out.User.Role, &out.User.CreatedAt,
			&out.Pack.ID, &out.Pack.Name, &out.Pack.Subtitle, &out.Pack.PriceMonthly, &out.Pack.PriceYearly,
			&mileage, pq.Array(&out.Pack.Features), &out.Pack.IsPopular, &out.Pack.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if endDate.Valid {
			out.EndDate = &endDate.Time
		}
		if mileage.Valid {
			limit := int(mileage.Int64)
			out.Pack.MileageLimit = &limit
		}
		items = append(items, out)
	}
	return items, rows.Err()
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"carflex/internal/user"
)

const uniqueViolation = "23505"

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

const userColumns = `id, email, password, name, COALESCE(phone, ''), COALESCE(address, ''), role,
	COALESCE(stripe_customer_id, ''), COALESCE(stripe_subscription_id, ''), created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Password,
		&u.Name,
		&u.Phone,
		&u.Address,
		&u.Role,
		&u.StripeCustomerID,
		&u.StripeSubscriptionID,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *user.User) error {
	query := `INSERT INTO users (email, password, name, phone, address, role)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)
		RETURNING id, created_at`

	return r.db.QueryRowContext(ctx, query,
		u.Email, u.Password, u.Name, u.Phone, u.Address, u.Role,
	).Scan(&u.ID, &u.CreatedAt)
}

func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByStripeSubscriptionID resolves a Stripe subscription reference to its
// user. Returns (nil, nil) when no user carries the reference.
func (r *PostgresUserRepository) GetByStripeSubscriptionID(ctx context.Context, ref string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE stripe_subscription_id = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, ref))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (r *PostgresUserRepository) GetAll(ctx context.Context) ([]*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *PostgresUserRepository) UpdateProfile(ctx context.Context, id string, upd user.ProfileUpdate) (*user.User, error) {
	query := `UPDATE users SET
			name = COALESCE($2, name),
			phone = COALESCE($3, phone),
			address = COALESCE($4, address)
		WHERE id = $1
		RETURNING ` + userColumns

	return scanUser(r.db.QueryRowContext(ctx, query, id, upd.Name, upd.Phone, upd.Address))
}

func (r *PostgresUserRepository) AdminUpdate(ctx context.Context, id string, upd user.AdminUpdate) (*user.User, error) {
	query := `UPDATE users SET
			role = COALESCE($2, role),
			name = COALESCE($3, name),
			email = COALESCE($4, email),
			phone = COALESCE($5, phone),
			address = COALESCE($6, address)
		WHERE id = $1
		RETURNING ` + userColumns

	return scanUser(r.db.QueryRowContext(ctx, query, id, upd.Role, upd.Name, upd.Email, upd.Phone, upd.Address))
}

// SetStripeCustomerID stores the provider customer reference created at first
// checkout. Last write wins when raced; every write stores a valid customer.
func (r *PostgresUserRepository) SetStripeCustomerID(ctx context.Context, id, customerID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET stripe_customer_id = $2 WHERE id = $1`,
		id, customerID)
	return err
}

// ClaimStripeRefs links a Stripe subscription reference onto the user row.
// It is the idempotency gate for checkout.session.completed: the conditional
// WHERE makes a same-user redelivery claim zero rows, and the unique index on
// stripe_subscription_id rejects a cross-user duplicate. Returns false when
// the reference was already claimed.
func (r *PostgresUserRepository) ClaimStripeRefs(ctx context.Context, id, customerID, subscriptionRef string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET stripe_customer_id = $2, stripe_subscription_id = $3
		 WHERE id = $1 AND (stripe_subscription_id IS NULL OR stripe_subscription_id <> $3)`,
		id, customerID, subscriptionRef)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return false, nil
		}
		return false, fmt.Errorf("claim stripe refs: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

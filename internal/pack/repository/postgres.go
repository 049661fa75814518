package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"carflex/internal/pack"
)

type PostgresPackRepository struct {
	db *sql.DB
}

func NewPostgresPackRepository(db *sql.DB) *PostgresPackRepository {
	return &PostgresPackRepository{db: db}
}

const packColumns = `id, name, subtitle, price_monthly, price_yearly, mileage_limit, features, is_popular, created_at`

func scanPack(row interface{ Scan(...interface{}) error }) (*pack.Pack, error) {
	p := &pack.Pack{}
	var mileage sql.NullInt64
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Subtitle,
		&p.PriceMonthly,
		&p.PriceYearly,
		&mileage,
		pq.Array(&p.Features),
		&p.IsPopular,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if mileage.Valid {
		limit := int(mileage.Int64)
		p.MileageLimit = &limit
	}
	return p, nil
}

func (r *PostgresPackRepository) GetAll(ctx context.Context) ([]*pack.Pack, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+packColumns+` FROM packs ORDER BY price_monthly`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var packs []*pack.Pack
	for rows.Next() {
		p, err := scanPack(rows)
		if err != nil {
			return nil, err
		}
		packs = append(packs, p)
	}
	return packs, rows.Err()
}

func (r *PostgresPackRepository) GetByID(ctx context.Context, id string) (*pack.Pack, error) {
	return scanPack(r.db.QueryRowContext(ctx, `SELECT `+packColumns+` FROM packs WHERE id = $1`, id))
}

func (r *PostgresPackRepository) Create(ctx context.Context, p *pack.Pack) error {
	query := `INSERT INTO packs (name, subtitle, price_monthly, price_yearly, mileage_limit, features, is_popular)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	var mileage sql.NullInt64
	if p.MileageLimit != nil {
		mileage = sql.NullInt64{Int64: int64(*p.MileageLimit), Valid: true}
	}

	return r.db.QueryRowContext(ctx, query,
		p.Name, p.Subtitle, p.PriceMonthly, p.PriceYearly, mileage, pq.Array(p.Features), p.IsPopular,
	).Scan(&p.ID, &p.CreatedAt)
}

func (r *PostgresPackRepository) Update(ctx context.Context, id string, upd pack.Update) (*pack.Pack, error) {
	query := `UPDATE packs SET
			name = COALESCE($2, name),
			subtitle = COALESCE($3, subtitle),
			price_monthly = COALESCE($4, price_monthly),
			price_yearly = COALESCE($5, price_yearly),
			mileage_limit = COALESCE($6, mileage_limit),
			features = COALESCE($7, features),
			is_popular = COALESCE($8, is_popular)
		WHERE id = $1
		RETURNING ` + packColumns

	var features interface{}
	if upd.Features != nil {
		features = pq.Array(upd.Features)
	}

	return scanPack(r.db.QueryRowContext(ctx, query,
		id, upd.Name, upd.Subtitle, upd.PriceMonthly, upd.PriceYearly, upd.MileageLimit, features, upd.IsPopular))
}

func (r *PostgresPackRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM packs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PostgresPackRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM packs`).Scan(&n)
	return n, err
}

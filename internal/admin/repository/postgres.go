package repository

import (
	"context"
	"database/sql"

	"carflex/internal/metrics"
)

// Stats is the admin dashboard summary.
type Stats struct {
	TotalUsers          int    `json:"totalUsers"`
	TotalSubscriptions  int    `json:"totalSubscriptions"`
	ActiveSubscriptions int    `json:"activeSubscriptions"`
	TotalRevenue        string `json:"totalRevenue"`
}

type PostgresStatsRepository struct {
	db *sql.DB
}

func NewPostgresStatsRepository(db *sql.DB) *PostgresStatsRepository {
	return &PostgresStatsRepository{db: db}
}

// GetStats aggregates in SQL; revenue sums the NUMERIC amount column and is
// returned as a two-decimal string.
func (r *PostgresStatsRepository) GetStats(ctx context.Context) (*Stats, error) {
	query := `SELECT
		(SELECT COUNT(*) FROM users),
		(SELECT COUNT(*) FROM subscriptions),
		(SELECT COUNT(*) FROM subscriptions WHERE status = 'active'),
		(SELECT TO_CHAR(COALESCE(SUM(amount), 0), 'FM999999990.00') FROM payments)`

	s := &Stats{}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&s.TotalUsers,
		&s.TotalSubscriptions,
		&s.ActiveSubscriptions,
		&s.TotalRevenue,
	)
	if err != nil {
		return nil, err
	}

	metrics.ActiveSubscriptions.Set(float64(s.ActiveSubscriptions))
	return s, nil
}

package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"orchestrator/internal/domain"
)

// TrendRepositoryPG implements domain.TrendRepository.
type TrendRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewTrendRepository creates a trend repository backed by PostgreSQL.
func NewTrendRepository(pool *pgxpool.Pool) *TrendRepositoryPG {
	return &TrendRepositoryPG{pool: pool}
}

const trendColumns = `id, title, description, type, popularity, is_active, expires_at, created_at`

// List returns recent trends regardless of state.
func (r *TrendRepositoryPG) List(ctx context.Context, limit int) ([]domain.TrendRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + trendColumns + ` FROM trends ORDER BY popularity DESC LIMIT $1;`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrends(rows)
}

// ListActiveTop returns active, unexpired trends by popularity.
func (r *TrendRepositoryPG) ListActiveTop(ctx context.Context, now time.Time, limit int) ([]domain.TrendRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT ` + trendColumns + ` FROM trends
WHERE is_active AND (expires_at IS NULL OR expires_at >= $1)
ORDER BY popularity DESC
LIMIT $2;`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrends(rows)
}

func collectTrends(rows pgx.Rows) ([]domain.TrendRecord, error) {
	var trends []domain.TrendRecord
	for rows.Next() {
		var t domain.TrendRecord
		var expires *time.Time
		if err := rows.Scan(
			&t.ID,
			&t.Title,
			&t.Description,
			&t.Type,
			&t.Popularity,
			&t.IsActive,
			&expires,
			&t.CreatedAt,
		); err != nil {
			return nil, err
		}
		if expires != nil {
			t.ExpiresAt = *expires
		}
		trends = append(trends, t)
	}
	return trends, rows.Err()
}

var _ domain.TrendRepository = (*TrendRepositoryPG)(nil)

package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"orchestrator/internal/domain"
)

// AnalyticsRepositoryPG implements domain.AnalyticsRepository.
type AnalyticsRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewAnalyticsRepository creates an analytics repository backed by PostgreSQL.
func NewAnalyticsRepository(pool *pgxpool.Pool) *AnalyticsRepositoryPG {
	return &AnalyticsRepositoryPG{pool: pool}
}

// ListSince returns performance snapshots recorded after the given time.
func (r *AnalyticsRepositoryPG) ListSince(ctx context.Context, since time.Time) ([]domain.PerformanceSnapshot, error) {
	query := `
SELECT id, character_id, trend_id, content_type, aesthetic, engagement_rate, views, created_at
FROM performance_snapshots
WHERE created_at >= $1
ORDER BY created_at ASC;
`
	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []domain.PerformanceSnapshot
	for rows.Next() {
		var s domain.PerformanceSnapshot
		if err := rows.Scan(
			&s.ID,
			&s.CharacterID,
			&s.TrendID,
			&s.ContentType,
			&s.Aesthetic,
			&s.EngagementRate,
			&s.Views,
			&s.CreatedAt,
		); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// Summary aggregates engagement across all snapshots.
func (r *AnalyticsRepositoryPG) Summary(ctx context.Context) (*domain.AnalyticsSummary, error) {
	query := `
SELECT count(*), COALESCE(avg(engagement_rate), 0), COALESCE(sum(views), 0)
FROM performance_snapshots;
`
	var summary domain.AnalyticsSummary
	if err := r.pool.QueryRow(ctx, query).Scan(
		&summary.Snapshots,
		&summary.AvgEngagement,
		&summary.TotalViews,
	); err != nil {
		return nil, err
	}
	return &summary, nil
}

var _ domain.AnalyticsRepository = (*AnalyticsRepositoryPG)(nil)

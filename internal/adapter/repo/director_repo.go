package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"orchestrator/internal/domain"
)

// DirectorStateRepositoryPG implements domain.DirectorStateRepository.
type DirectorStateRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewDirectorStateRepository creates a director state repository backed by PostgreSQL.
func NewDirectorStateRepository(pool *pgxpool.Pool) *DirectorStateRepositoryPG {
	return &DirectorStateRepositoryPG{pool: pool}
}

// Upsert writes the single current director state.
func (r *DirectorStateRepositoryPG) Upsert(ctx context.Context, state *domain.DirectorState) error {
	rankings, err := json.Marshal(state.Rankings)
	if err != nil {
		return fmt.Errorf("marshal rankings: %w", err)
	}
	plans, err := json.Marshal(state.Plans)
	if err != nil {
		return fmt.Errorf("marshal plans: %w", err)
	}
	query := `
INSERT INTO director_state (id, rankings, plans, last_analysis)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET rankings = EXCLUDED.rankings, plans = EXCLUDED.plans, last_analysis = EXCLUDED.last_analysis;
`
	_, err = r.pool.Exec(ctx, query, state.ID, rankings, plans, state.LastAnalysis)
	return err
}

// Get fetches the current director state.
func (r *DirectorStateRepositoryPG) Get(ctx context.Context) (*domain.DirectorState, error) {
	query := `SELECT id, rankings, plans, last_analysis FROM director_state WHERE id = $1;`
	var state domain.DirectorState
	var rankings, plans []byte
	err := r.pool.QueryRow(ctx, query, domain.DirectorStateID).Scan(
		&state.ID,
		&rankings,
		&plans,
		&state.LastAnalysis,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(rankings, &state.Rankings); err != nil {
		return nil, fmt.Errorf("unmarshal rankings: %w", err)
	}
	if err := json.Unmarshal(plans, &state.Plans); err != nil {
		return nil, fmt.Errorf("unmarshal plans: %w", err)
	}
	return &state, nil
}

var _ domain.DirectorStateRepository = (*DirectorStateRepositoryPG)(nil)

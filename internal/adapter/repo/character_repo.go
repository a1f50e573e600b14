package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"orchestrator/internal/domain"
)

// CharacterRepositoryPG implements domain.CharacterRepository.
type CharacterRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewCharacterRepository creates a character repository backed by PostgreSQL.
func NewCharacterRepository(pool *pgxpool.Pool) *CharacterRepositoryPG {
	return &CharacterRepositoryPG{pool: pool}
}

const characterColumns = `id, code, ethnicity, base_age, aesthetic_type, variant, is_active, performance_score, created_at`

// InsertRoster inserts the initial character roster, skipping codes that
// already exist, and returns how many rows were inserted.
func (r *CharacterRepositoryPG) InsertRoster(ctx context.Context, roster []domain.CharacterProfile) (int, error) {
	query := `
INSERT INTO characters (id, code, ethnicity, base_age, aesthetic_type, variant, is_active, performance_score, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (code) DO NOTHING;
`
	inserted := 0
	for _, c := range roster {
		tag, err := r.pool.Exec(ctx, query,
			c.ID, c.Code, c.Ethnicity, c.BaseAge, c.AestheticType, c.Variant,
			c.IsActive, c.PerformanceScore, c.CreatedAt,
		)
		if err != nil {
			return inserted, err
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// GetByID fetches a character profile.
func (r *CharacterRepositoryPG) GetByID(ctx context.Context, id string) (*domain.CharacterProfile, error) {
	query := `SELECT ` + characterColumns + ` FROM characters WHERE id = $1;`
	c, err := scanCharacter(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// List returns the whole roster.
func (r *CharacterRepositoryPG) List(ctx context.Context) ([]domain.CharacterProfile, error) {
	query := `SELECT ` + characterColumns + ` FROM characters ORDER BY code;`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCharacters(rows)
}

// ListActiveTop returns active characters by performance score.
func (r *CharacterRepositoryPG) ListActiveTop(ctx context.Context, limit int) ([]domain.CharacterProfile, error) {
	if limit <= 0 {
		limit = 6
	}
	query := `SELECT ` + characterColumns + ` FROM characters
WHERE is_active ORDER BY performance_score DESC LIMIT $1;`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCharacters(rows)
}

// UpdatePerformanceScore rewrites a character's cumulative score.
func (r *CharacterRepositoryPG) UpdatePerformanceScore(ctx context.Context, id string, score float64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE characters SET performance_score = $2 WHERE id = $1;`, id, score)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanCharacter(row rowScanner) (*domain.CharacterProfile, error) {
	var c domain.CharacterProfile
	if err := row.Scan(
		&c.ID,
		&c.Code,
		&c.Ethnicity,
		&c.BaseAge,
		&c.AestheticType,
		&c.Variant,
		&c.IsActive,
		&c.PerformanceScore,
		&c.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func collectCharacters(rows pgx.Rows) ([]domain.CharacterProfile, error) {
	var characters []domain.CharacterProfile
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, err
		}
		characters = append(characters, *c)
	}
	return characters, rows.Err()
}

var _ domain.CharacterRepository = (*CharacterRepositoryPG)(nil)

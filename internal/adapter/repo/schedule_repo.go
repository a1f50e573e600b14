package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"orchestrator/internal/domain"
)

// ScheduleRepositoryPG implements domain.ScheduleRepository.
type ScheduleRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewScheduleRepository creates a schedule repository backed by PostgreSQL.
func NewScheduleRepository(pool *pgxpool.Pool) *ScheduleRepositoryPG {
	return &ScheduleRepositoryPG{pool: pool}
}

const scheduleColumns = `id, date, title, status, external_id, created_at, updated_at`

// Create inserts a new schedule entry.
func (r *ScheduleRepositoryPG) Create(ctx context.Context, entry *domain.ScheduleEntry) error {
	query := `
INSERT INTO schedule_entries (id, date, title, status, external_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.Date,
		entry.Title,
		entry.Status,
		entry.ExternalID,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	return err
}

// GetByID fetches a schedule entry.
func (r *ScheduleRepositoryPG) GetByID(ctx context.Context, id string) (*domain.ScheduleEntry, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedule_entries WHERE id = $1;`
	entry, err := scanScheduleEntry(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return entry, nil
}

// List returns recent entries, newest date first.
func (r *ScheduleRepositoryPG) List(ctx context.Context, limit int) ([]domain.ScheduleEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + scheduleColumns + ` FROM schedule_entries ORDER BY date DESC, created_at DESC LIMIT $1;`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectScheduleEntries(rows)
}

// Update rewrites an entry's editable fields (date, title, status). The
// status write is how an operator re-schedules a failed entry.
func (r *ScheduleRepositoryPG) Update(ctx context.Context, entry *domain.ScheduleEntry) error {
	query := `
UPDATE schedule_entries SET date = $2, title = $3, status = $4, updated_at = now() WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, query, entry.ID, entry.Date, entry.Title, entry.Status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes an entry.
func (r *ScheduleRepositoryPG) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM schedule_entries WHERE id = $1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListDue returns entries dated on the given day still in scheduled state.
func (r *ScheduleRepositoryPG) ListDue(ctx context.Context, day time.Time) ([]domain.ScheduleEntry, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedule_entries WHERE date = $1 AND status = 'scheduled';`
	rows, err := r.pool.Query(ctx, query, day.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectScheduleEntries(rows)
}

// UpdateStatusIf applies a conditional status transition, reporting whether
// the row was actually updated.
func (r *ScheduleRepositoryPG) UpdateStatusIf(ctx context.Context, id string, from, to domain.ScheduleStatus, externalID string) (bool, error) {
	query := `
UPDATE schedule_entries
SET status = $3, external_id = COALESCE(NULLIF($4, ''), external_id), updated_at = now()
WHERE id = $1 AND status = $2;
`
	tag, err := r.pool.Exec(ctx, query, id, from, to, externalID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanScheduleEntry(row rowScanner) (*domain.ScheduleEntry, error) {
	var entry domain.ScheduleEntry
	if err := row.Scan(
		&entry.ID,
		&entry.Date,
		&entry.Title,
		&entry.Status,
		&entry.ExternalID,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &entry, nil
}

func collectScheduleEntries(rows pgx.Rows) ([]domain.ScheduleEntry, error) {
	var entries []domain.ScheduleEntry
	for rows.Next() {
		entry, err := scanScheduleEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

var _ domain.ScheduleRepository = (*ScheduleRepositoryPG)(nil)

package domain

import (
	"context"
	"time"
)

// JobFilter narrows job listings. Nil members match everything.
type JobFilter struct {
	Status  *JobStatus
	Kind    *JobKind
	BatchID string
	Limit   int
}

// JobRepository defines persistence for job entities. Claim and the Mark*
// methods rely on the store's conditional-update semantics so that
// concurrent dispatchers never double-process a record.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	List(ctx context.Context, filter JobFilter) ([]Job, error)
	Stats(ctx context.Context) (QueueStats, error)
	BatchStatus(ctx context.Context, batchID string) (BatchStatus, error)

	// ClaimNext atomically moves up to limit eligible pending jobs to
	// processing, ordered by (priority desc, created_at asc), and returns
	// the claimed jobs.
	ClaimNext(ctx context.Context, now time.Time, limit int) ([]Job, error)
	MarkCompleted(ctx context.Context, jobID string, result map[string]any) error
	MarkFailed(ctx context.Context, jobID string, errMsg string) error
	// Requeue returns a processing job to pending with an incremented retry
	// count, eligible again at nextAttempt.
	Requeue(ctx context.Context, jobID string, errMsg string, retryCount int, nextAttempt time.Time) error
	UpdateProgress(ctx context.Context, jobID string, progress int) error
}

// ScheduleRepository defines persistence for schedule entries.
type ScheduleRepository interface {
	Create(ctx context.Context, entry *ScheduleEntry) error
	GetByID(ctx context.Context, id string) (*ScheduleEntry, error)
	List(ctx context.Context, limit int) ([]ScheduleEntry, error)
	Update(ctx context.Context, entry *ScheduleEntry) error
	Delete(ctx context.Context, id string) error

	// ListDue returns entries dated on the given day still in scheduled state.
	ListDue(ctx context.Context, day time.Time) ([]ScheduleEntry, error)
	// UpdateStatusIf transitions only when the current status matches from,
	// reporting whether the row was updated.
	UpdateStatusIf(ctx context.Context, id string, from, to ScheduleStatus, externalID string) (bool, error)
}

// CharacterRepository defines persistence for character profiles.
type CharacterRepository interface {
	InsertRoster(ctx context.Context, roster []CharacterProfile) (int, error)
	GetByID(ctx context.Context, id string) (*CharacterProfile, error)
	List(ctx context.Context) ([]CharacterProfile, error)
	ListActiveTop(ctx context.Context, limit int) ([]CharacterProfile, error)
	UpdatePerformanceScore(ctx context.Context, id string, score float64) error
}

// TrendRepository provides read access to trend signals.
type TrendRepository interface {
	List(ctx context.Context, limit int) ([]TrendRecord, error)
	// ListActiveTop returns active, unexpired trends by popularity.
	ListActiveTop(ctx context.Context, now time.Time, limit int) ([]TrendRecord, error)
}

// AnalyticsRepository provides read access to performance snapshots.
type AnalyticsRepository interface {
	ListSince(ctx context.Context, since time.Time) ([]PerformanceSnapshot, error)
	Summary(ctx context.Context) (*AnalyticsSummary, error)
}

// AnalyticsSummary aggregates engagement across all snapshots.
type AnalyticsSummary struct {
	Snapshots     int     `json:"snapshots"`
	AvgEngagement float64 `json:"avg_engagement"`
	TotalViews    int64   `json:"total_views"`
}

// DirectorStateRepository persists the single current director state.
type DirectorStateRepository interface {
	Upsert(ctx context.Context, state *DirectorState) error
	Get(ctx context.Context) (*DirectorState, error)
}

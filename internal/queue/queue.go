package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"orchestrator/internal/domain"
	"orchestrator/internal/infra"
	"orchestrator/internal/providers/generation"
	"orchestrator/internal/storage"
)

// Config bounds the queue's concurrency and retry behavior.
type Config struct {
	MaxConcurrent  int
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	JobTimeout     time.Duration
	PollInterval   time.Duration
}

// DefaultConfig returns the queue defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:  2,
		MaxRetries:     3,
		RetryBaseDelay: 5 * time.Second,
		RetryMaxDelay:  5 * time.Minute,
		JobTimeout:     10 * time.Minute,
		PollInterval:   2 * time.Second,
	}
}

// Event describes a job lifecycle change pushed to live subscribers.
type Event struct {
	Type     string           `json:"type"`
	JobID    string           `json:"job_id"`
	Kind     domain.JobKind   `json:"kind"`
	Status   domain.JobStatus `json:"status"`
	Progress int              `json:"progress"`
	Error    string           `json:"error,omitempty"`
}

// Notifier receives job lifecycle events. Implementations must not block.
type Notifier interface {
	Notify(event Event)
}

// Queue accepts job submissions, enforces the concurrency ceiling, executes
// jobs via the generation client, and persists every lifecycle transition.
// Storage is the source of truth; the queue only tracks the in-flight count
// in memory, so its view is trivially reconcilable after a restart.
type Queue struct {
	repo      domain.JobRepository
	generator generation.Client
	store     storage.ObjectStore
	notifier  Notifier
	cfg       Config
	logger    infra.Logger

	nudge chan struct{}

	mu     sync.Mutex
	active int
}

// New constructs a queue. store and notifier may be nil.
func New(repo domain.JobRepository, generator generation.Client, store storage.ObjectStore, notifier Notifier, cfg Config, logger infra.Logger) *Queue {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	return &Queue{
		repo:      repo,
		generator: generator,
		store:     store,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
		nudge:     make(chan struct{}, 1),
	}
}

// Submit validates and enqueues a single job, returning its id immediately.
// Batch submissions go through SubmitBatch. The queue does not deduplicate
// logically identical submissions; that is the caller's responsibility.
func (q *Queue) Submit(ctx context.Context, kind domain.JobKind, payload domain.JobPayload, priority int) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: unknown job kind %q", domain.ErrValidation, kind)
	}
	if kind == domain.JobKindBatchGeneration {
		return "", fmt.Errorf("%w: batch submissions must use SubmitBatch", domain.ErrValidation)
	}
	if err := payload.Validate(kind); err != nil {
		return "", fmt.Errorf("%w: payload does not match kind %q", domain.ErrValidation, kind)
	}

	job := q.newJob(kind, payload, priority, "")
	if err := q.repo.Create(ctx, job); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	q.publish("job.submitted", *job)
	q.wake()
	return job.ID, nil
}

// SubmitBatch expands a batch request into N characters x M prompts
// independent jobs sharing one batch id. The batch itself has no state
// machine; its status is derived from the children.
func (q *Queue) SubmitBatch(ctx context.Context, batch domain.BatchPayload, priority int) (string, []string, error) {
	payload := domain.JobPayload{Batch: &batch}
	if err := payload.Validate(domain.JobKindBatchGeneration); err != nil {
		return "", nil, fmt.Errorf("%w: batch requires character_ids and prompts", domain.ErrValidation)
	}
	childKind := domain.JobKindImageGeneration
	if batch.ContentType == string(domain.ContentTypeVideo) {
		childKind = domain.JobKindVideoGeneration
	}

	batchID := uuid.NewString()
	ids := make([]string, 0, len(batch.CharacterIDs)*len(batch.Prompts))
	for _, characterID := range batch.CharacterIDs {
		for _, prompt := range batch.Prompts {
			child := q.newJob(childKind, childPayload(childKind, characterID, prompt), priority, batchID)
			if err := q.repo.Create(ctx, child); err != nil {
				return "", ids, fmt.Errorf("enqueue batch job: %w", err)
			}
			ids = append(ids, child.ID)
			q.publish("job.submitted", *child)
		}
	}
	q.wake()
	return batchID, ids, nil
}

func childPayload(kind domain.JobKind, characterID, prompt string) domain.JobPayload {
	if kind == domain.JobKindVideoGeneration {
		return domain.JobPayload{Video: &domain.VideoPayload{CharacterID: characterID, Prompt: prompt}}
	}
	return domain.JobPayload{Image: &domain.ImagePayload{CharacterID: characterID, Prompt: prompt}}
}

func (q *Queue) newJob(kind domain.JobKind, payload domain.JobPayload, priority int, batchID string) *domain.Job {
	now := time.Now().UTC()
	return &domain.Job{
		ID:            uuid.NewString(),
		Kind:          kind,
		Status:        domain.JobStatusPending,
		Priority:      priority,
		BatchID:       batchID,
		Payload:       payload,
		MaxRetries:    q.cfg.MaxRetries,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// GetJob fetches a job by id.
func (q *Queue) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return q.repo.GetByID(ctx, jobID)
}

// ListJobs returns jobs matching the filter.
func (q *Queue) ListJobs(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error) {
	return q.repo.List(ctx, filter)
}

// Stats returns aggregate counts by status.
func (q *Queue) Stats(ctx context.Context) (domain.QueueStats, error) {
	return q.repo.Stats(ctx)
}

// BatchStatus returns the derived batch view.
func (q *Queue) BatchStatus(ctx context.Context, batchID string) (domain.BatchStatus, error) {
	return q.repo.BatchStatus(ctx, batchID)
}

// Run drives the dispatch loop until the context is cancelled. Ticks fire on
// the poll interval and on submission nudges.
func (q *Queue) Run(ctx context.Context) error {
	q.logger.Info().
		Int("max_concurrent", q.cfg.MaxConcurrent).
		Dur("poll_interval", q.cfg.PollInterval).
		Msg("queue: dispatcher started")

	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			q.logger.Info().Msg("queue: dispatcher stopped")
			return ctx.Err()
		case <-ticker.C:
		case <-q.nudge:
		}
		if err := q.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
			q.logger.Error().Err(err).Msg("queue: tick failed")
		}
	}
}

// Tick runs one selection pass: claim up to the free capacity worth of
// pending jobs and hand each to a worker goroutine. Selection never waits
// on job execution, so one slow external call cannot stall admission.
func (q *Queue) Tick(ctx context.Context) error {
	q.mu.Lock()
	capacity := q.cfg.MaxConcurrent - q.active
	q.mu.Unlock()
	if capacity <= 0 {
		return nil
	}

	jobs, err := q.repo.ClaimNext(ctx, time.Now().UTC(), capacity)
	if err != nil {
		return fmt.Errorf("claim jobs: %w", err)
	}
	for i := range jobs {
		job := jobs[i]
		q.mu.Lock()
		q.active++
		q.mu.Unlock()
		q.publish("job.started", job)
		go q.execute(ctx, job)
	}
	return nil
}

// ActiveCount reports how many workers are currently executing.
func (q *Queue) ActiveCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// execute runs one claimed job through the generation client and records
// the outcome. Worker errors become job state, never loop crashes.
func (q *Queue) execute(ctx context.Context, job domain.Job) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error().Str("job_id", job.ID).Interface("panic", r).Msg("queue: worker panic")
			q.recordFailure(ctx, job, fmt.Errorf("worker panic: %v", r))
		}
		q.mu.Lock()
		q.active--
		q.mu.Unlock()
		q.wake()
	}()

	execCtx := ctx
	if q.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, q.cfg.JobTimeout)
		defer cancel()
	}

	// Mark the external call in flight so pollers and live subscribers
	// can tell a dispatched job from one still waiting in the claim.
	if err := q.repo.UpdateProgress(ctx, job.ID, 50); err != nil {
		q.logger.Warn().Err(err).Str("job_id", job.ID).Msg("queue: progress update failed")
	} else {
		job.Progress = 50
		q.publish("job.progress", job)
	}

	result, err := q.generator.Generate(execCtx, job.Kind, job.Payload)
	if err != nil {
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: job exceeded %s", domain.ErrTimeout, q.cfg.JobTimeout)
		}
		q.recordFailure(ctx, job, err)
		return
	}

	resultMap := map[string]any{
		"resource_url": result.ResourceURL,
		"format":       result.Format,
	}
	for k, v := range result.Meta {
		resultMap[k] = v
	}
	if q.store != nil && len(result.Data) > 0 {
		key, storeErr := q.store.Write(ctx, storage.AssetKey(job.ID, result.Format), result.Data)
		if storeErr != nil {
			q.logger.Warn().Err(storeErr).Str("job_id", job.ID).Msg("queue: persist asset failed")
		} else {
			resultMap["storage_key"] = key
		}
	}

	if err := q.repo.MarkCompleted(ctx, job.ID, resultMap); err != nil {
		q.logger.Error().Err(err).Str("job_id", job.ID).Msg("queue: mark completed failed")
		return
	}
	job.Status = domain.JobStatusCompleted
	job.Progress = 100
	q.publish("job.completed", job)
	q.logger.Info().Str("job_id", job.ID).Str("kind", string(job.Kind)).Msg("queue: job completed")
}

// recordFailure applies the retry policy: retryable failures re-enter
// pending with exponential backoff until maxRetries, everything else (and
// exhausted jobs) becomes terminal failed.
func (q *Queue) recordFailure(ctx context.Context, job domain.Job, cause error) {
	if domain.IsRetryable(cause) && job.RetryCount < job.MaxRetries {
		retryCount := job.RetryCount + 1
		delay := q.backoff(job.RetryCount)
		nextAttempt := time.Now().UTC().Add(delay)
		if err := q.repo.Requeue(ctx, job.ID, cause.Error(), retryCount, nextAttempt); err != nil {
			q.logger.Error().Err(err).Str("job_id", job.ID).Msg("queue: requeue failed")
			return
		}
		job.Status = domain.JobStatusPending
		job.RetryCount = retryCount
		job.ErrorMessage = cause.Error()
		q.publish("job.retrying", job)
		q.logger.Warn().
			Str("job_id", job.ID).
			Int("retry", retryCount).
			Dur("delay", delay).
			Err(cause).
			Msg("queue: job requeued")
		return
	}

	if err := q.repo.MarkFailed(ctx, job.ID, cause.Error()); err != nil {
		q.logger.Error().Err(err).Str("job_id", job.ID).Msg("queue: mark failed failed")
		return
	}
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = cause.Error()
	q.publish("job.failed", job)
	q.logger.Error().Err(cause).Str("job_id", job.ID).Msg("queue: job failed")
}

// backoff computes base * 2^retryCount capped at the configured maximum.
func (q *Queue) backoff(retryCount int) time.Duration {
	base := q.cfg.RetryBaseDelay
	if base <= 0 {
		base = DefaultConfig().RetryBaseDelay
	}
	max := q.cfg.RetryMaxDelay
	if max <= 0 {
		max = DefaultConfig().RetryMaxDelay
	}
	delay := base
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

func (q *Queue) wake() {
	select {
	case q.nudge <- struct{}{}:
	default:
	}
}

func (q *Queue) publish(eventType string, job domain.Job) {
	if q.notifier == nil {
		return
	}
	q.notifier.Notify(Event{
		Type:     eventType,
		JobID:    job.ID,
		Kind:     job.Kind,
		Status:   job.Status,
		Progress: job.Progress,
		Error:    job.ErrorMessage,
	})
}

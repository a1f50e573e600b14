package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"orchestrator/internal/domain"
	"orchestrator/internal/providers/generation"
)

type memJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[string]*domain.Job)}
}

func (r *memJobRepo) Create(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memJobRepo) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (r *memJobRepo) List(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Job
	for _, job := range r.jobs {
		if filter.Status != nil && job.Status != *filter.Status {
			continue
		}
		if filter.Kind != nil && job.Kind != *filter.Kind {
			continue
		}
		if filter.BatchID != "" && job.BatchID != filter.BatchID {
			continue
		}
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *memJobRepo) Stats(ctx context.Context) (domain.QueueStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stats domain.QueueStats
	for _, job := range r.jobs {
		stats.Total++
		switch job.Status {
		case domain.JobStatusPending:
			stats.Pending++
		case domain.JobStatusProcessing:
			stats.Processing++
		case domain.JobStatusCompleted:
			stats.Completed++
		case domain.JobStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (r *memJobRepo) BatchStatus(ctx context.Context, batchID string) (domain.BatchStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := domain.BatchStatus{BatchID: batchID}
	for _, job := range r.jobs {
		if job.BatchID != batchID {
			continue
		}
		status.Total++
		switch job.Status {
		case domain.JobStatusPending:
			status.Pending++
		case domain.JobStatusProcessing:
			status.Processing++
		case domain.JobStatusCompleted:
			status.Completed++
		case domain.JobStatusFailed:
			status.Failed++
		}
	}
	if status.Total == 0 {
		return domain.BatchStatus{}, domain.ErrNotFound
	}
	return status, nil
}

func (r *memJobRepo) ClaimNext(ctx context.Context, now time.Time, limit int) ([]domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var eligible []*domain.Job
	for _, job := range r.jobs {
		if job.Status == domain.JobStatusPending && !job.NextAttemptAt.After(now) {
			eligible = append(eligible, job)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Priority != eligible[j].Priority {
			return eligible[i].Priority > eligible[j].Priority
		}
		return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
	})
	if len(eligible) > limit {
		eligible = eligible[:limit]
	}
	claimed := make([]domain.Job, 0, len(eligible))
	for _, job := range eligible {
		job.Status = domain.JobStatusProcessing
		started := now
		job.StartedAt = &started
		job.UpdatedAt = now
		claimed = append(claimed, *job)
	}
	return claimed, nil
}

func (r *memJobRepo) MarkCompleted(ctx context.Context, jobID string, result map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if job.Status != domain.JobStatusProcessing {
		return domain.ErrInvalidTransition
	}
	job.Status = domain.JobStatusCompleted
	job.Progress = 100
	job.Result = result
	completed := time.Now().UTC()
	job.CompletedAt = &completed
	return nil
}

func (r *memJobRepo) MarkFailed(ctx context.Context, jobID string, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if job.Status != domain.JobStatusProcessing {
		return domain.ErrInvalidTransition
	}
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = errMsg
	completed := time.Now().UTC()
	job.CompletedAt = &completed
	return nil
}

func (r *memJobRepo) Requeue(ctx context.Context, jobID string, errMsg string, retryCount int, nextAttempt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if job.Status != domain.JobStatusProcessing {
		return domain.ErrInvalidTransition
	}
	job.Status = domain.JobStatusPending
	job.ErrorMessage = errMsg
	job.RetryCount = retryCount
	job.NextAttemptAt = nextAttempt
	job.StartedAt = nil
	return nil
}

func (r *memJobRepo) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Progress = progress
	return nil
}

// scriptedGenerator fails the first failures calls with failErr, then
// succeeds. It records the prompt of every call in order.
type scriptedGenerator struct {
	mu       sync.Mutex
	failures int
	failErr  error
	calls    int
	prompts  []string
	block    chan struct{}
}

func (g *scriptedGenerator) Generate(ctx context.Context, kind domain.JobKind, payload domain.JobPayload) (*generation.Result, error) {
	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	g.mu.Lock()
	g.calls++
	call := g.calls
	g.prompts = append(g.prompts, promptOf(payload))
	g.mu.Unlock()
	if call <= g.failures {
		return nil, g.failErr
	}
	return &generation.Result{ResourceURL: "https://cdn.test/" + fmt.Sprint(call), Format: "image/png"}, nil
}

func promptOf(payload domain.JobPayload) string {
	switch {
	case payload.Image != nil:
		return payload.Image.Prompt
	case payload.Video != nil:
		return payload.Video.Prompt
	case payload.Voiceover != nil:
		return payload.Voiceover.Text
	case payload.Plan != nil:
		return payload.Plan.Prompt
	}
	return ""
}

func (g *scriptedGenerator) recorded() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

func testQueue(repo domain.JobRepository, generator generation.Client, cfg Config) *Queue {
	return New(repo, generator, nil, nil, cfg, zerolog.Nop())
}

func imagePayload(prompt string) domain.JobPayload {
	return domain.JobPayload{Image: &domain.ImagePayload{CharacterID: "ID_01_A", Prompt: prompt}}
}

func waitForStatus(t *testing.T, repo *memJobRepo, jobID string, want domain.JobStatus) *domain.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := repo.GetByID(context.Background(), jobID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if job.Status == want {
			return job
		}
		time.Sleep(2 * time.Millisecond)
	}
	job, _ := repo.GetByID(context.Background(), jobID)
	t.Fatalf("job %s never reached %s, last status %s", jobID, want, job.Status)
	return nil
}

// drain ticks until the job reaches a terminal status, honoring backoff by
// advancing past nextAttemptAt via short sleeps.
func drain(t *testing.T, q *Queue, repo *memJobRepo, jobID string) *domain.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if err := q.Tick(context.Background()); err != nil {
			t.Fatalf("Tick() error = %v", err)
		}
		job, err := repo.GetByID(context.Background(), jobID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if job.Status.Terminal() {
			// let in-flight workers settle before returning
			waitForIdle(t, q)
			return job
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal status", jobID)
	return nil
}

func waitForIdle(t *testing.T, q *Queue) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if q.ActiveCount() == 0 {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("queue never drained, active = %d", q.ActiveCount())
}

func TestSubmitValidation(t *testing.T) {
	q := testQueue(newMemJobRepo(), &scriptedGenerator{}, DefaultConfig())
	ctx := context.Background()

	tests := []struct {
		name    string
		kind    domain.JobKind
		payload domain.JobPayload
	}{
		{name: "unknown kind", kind: domain.JobKind("resize"), payload: imagePayload("x")},
		{name: "batch kind rejected", kind: domain.JobKindBatchGeneration, payload: domain.JobPayload{Batch: &domain.BatchPayload{CharacterIDs: []string{"a"}, Prompts: []string{"b"}}}},
		{name: "payload mismatch", kind: domain.JobKindVideoGeneration, payload: imagePayload("x")},
		{name: "empty prompt", kind: domain.JobKindImageGeneration, payload: domain.JobPayload{Image: &domain.ImagePayload{CharacterID: "c"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := q.Submit(ctx, tc.kind, tc.payload, 0); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("Submit() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestTickClaimsHighestPriorityFirst(t *testing.T) {
	repo := newMemJobRepo()
	gen := &scriptedGenerator{}
	cfg := DefaultConfig()
	cfg.MaxConcurrent = 1
	q := testQueue(repo, gen, cfg)
	ctx := context.Background()

	lowID, err := q.Submit(ctx, domain.JobKindImageGeneration, imagePayload("low"), 1)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	highID, err := q.Submit(ctx, domain.JobKindImageGeneration, imagePayload("high"), 3)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if err := q.Tick(ctx); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	waitForStatus(t, repo, highID, domain.JobStatusCompleted)
	if job, _ := repo.GetByID(ctx, lowID); job.Status != domain.JobStatusPending {
		t.Fatalf("low priority job status = %s, want pending while capacity is taken", job.Status)
	}
	waitForIdle(t, q)

	if err := q.Tick(ctx); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	waitForStatus(t, repo, lowID, domain.JobStatusCompleted)

	got := gen.recorded()
	want := []string{"high", "low"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("execution order = %v, want %v", got, want)
	}
}

func TestConcurrencyCeiling(t *testing.T) {
	repo := newMemJobRepo()
	gate := make(chan struct{})
	gen := &scriptedGenerator{block: gate}
	cfg := DefaultConfig()
	cfg.MaxConcurrent = 2
	q := testQueue(repo, gen, cfg)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := q.Submit(ctx, domain.JobKindImageGeneration, imagePayload(fmt.Sprintf("p%d", i)), 0)
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		ids = append(ids, id)
	}

	if err := q.Tick(ctx); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for q.ActiveCount() != 2 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if got := q.ActiveCount(); got != 2 {
		t.Fatalf("ActiveCount() = %d, want 2", got)
	}

	// capacity exhausted: another tick must not claim the third job
	if err := q.Tick(ctx); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Processing != 2 || stats.Pending != 1 {
		t.Fatalf("stats = %+v, want 2 processing / 1 pending", stats)
	}

	close(gate)
	for _, id := range ids[:2] {
		waitForStatus(t, repo, id, domain.JobStatusCompleted)
	}
	waitForIdle(t, q)
}

func TestRetryableFailureThenSuccess(t *testing.T) {
	repo := newMemJobRepo()
	gen := &scriptedGenerator{failures: 2, failErr: fmt.Errorf("%w: upstream 503", domain.ErrProviderFailure)}
	cfg := DefaultConfig()
	cfg.RetryBaseDelay = time.Millisecond
	cfg.RetryMaxDelay = 2 * time.Millisecond
	q := testQueue(repo, gen, cfg)

	jobID, err := q.Submit(context.Background(), domain.JobKindImageGeneration, imagePayload("retry me"), 0)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	job := drain(t, q, repo, jobID)
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %s, want completed", job.Status)
	}
	if job.RetryCount != 2 {
		t.Fatalf("retry count = %d, want 2", job.RetryCount)
	}
}

func TestNonRetryableFailsImmediately(t *testing.T) {
	repo := newMemJobRepo()
	gen := &scriptedGenerator{failures: 10, failErr: errors.New("malformed payload")}
	q := testQueue(repo, gen, DefaultConfig())

	jobID, err := q.Submit(context.Background(), domain.JobKindImageGeneration, imagePayload("doomed"), 0)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	job := drain(t, q, repo, jobID)
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if job.RetryCount != 0 {
		t.Fatalf("retry count = %d, want 0 for a non-retryable failure", job.RetryCount)
	}
	if job.ErrorMessage == "" {
		t.Fatal("error message not recorded")
	}
}

func TestRetriesExhausted(t *testing.T) {
	repo := newMemJobRepo()
	gen := &scriptedGenerator{failures: 10, failErr: fmt.Errorf("%w: flaky", domain.ErrProviderFailure)}
	cfg := DefaultConfig()
	cfg.MaxRetries = 1
	cfg.RetryBaseDelay = time.Millisecond
	cfg.RetryMaxDelay = 2 * time.Millisecond
	q := testQueue(repo, gen, cfg)

	jobID, err := q.Submit(context.Background(), domain.JobKindImageGeneration, imagePayload("flaky"), 0)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	job := drain(t, q, repo, jobID)
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want failed after exhausting retries", job.Status)
	}
	if job.RetryCount != 1 {
		t.Fatalf("retry count = %d, want 1", job.RetryCount)
	}
}

func TestSubmitBatchExpands(t *testing.T) {
	repo := newMemJobRepo()
	q := testQueue(repo, &scriptedGenerator{}, DefaultConfig())
	ctx := context.Background()

	batchID, ids, err := q.SubmitBatch(ctx, domain.BatchPayload{
		CharacterIDs: []string{"ID_01_A", "ID_02_B"},
		Prompts:      []string{"sunset", "street", "cafe"},
		ContentType:  string(domain.ContentTypeVideo),
	}, 4)
	if err != nil {
		t.Fatalf("SubmitBatch() error = %v", err)
	}
	if len(ids) != 6 {
		t.Fatalf("len(ids) = %d, want 6", len(ids))
	}
	for _, id := range ids {
		job, err := repo.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID(%s) error = %v", id, err)
		}
		if job.BatchID != batchID {
			t.Fatalf("job %s batch id = %s, want %s", id, job.BatchID, batchID)
		}
		if job.Kind != domain.JobKindVideoGeneration {
			t.Fatalf("job kind = %s, want video_generation for video content type", job.Kind)
		}
		if job.Priority != 4 {
			t.Fatalf("job priority = %d, want 4", job.Priority)
		}
	}

	status, err := q.BatchStatus(ctx, batchID)
	if err != nil {
		t.Fatalf("BatchStatus() error = %v", err)
	}
	if status.Total != 6 || status.Pending != 6 {
		t.Fatalf("batch status = %+v, want 6 total / 6 pending", status)
	}
	if status.Terminal() {
		t.Fatal("fresh batch reported terminal")
	}

	if _, _, err := q.SubmitBatch(ctx, domain.BatchPayload{}, 0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("empty batch error = %v, want ErrValidation", err)
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetryBaseDelay = 5 * time.Second
	cfg.RetryMaxDelay = 12 * time.Second
	q := testQueue(newMemJobRepo(), &scriptedGenerator{}, cfg)

	tests := []struct {
		retryCount int
		want       time.Duration
	}{
		{retryCount: 0, want: 5 * time.Second},
		{retryCount: 1, want: 10 * time.Second},
		{retryCount: 2, want: 12 * time.Second},
		{retryCount: 8, want: 12 * time.Second},
	}
	for _, tc := range tests {
		if got := q.backoff(tc.retryCount); got != tc.want {
			t.Fatalf("backoff(%d) = %s, want %s", tc.retryCount, got, tc.want)
		}
	}
}

func TestWorkerReportsMidProgress(t *testing.T) {
	repo := newMemJobRepo()
	gate := make(chan struct{})
	gen := &scriptedGenerator{block: gate}
	q := testQueue(repo, gen, Config{MaxConcurrent: 1})
	ctx := context.Background()

	jobID, err := q.Submit(ctx, domain.JobKindImageGeneration, imagePayload("slow render"), 5)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := q.Tick(ctx); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	// while the external call is in flight the job must show progress
	deadline := time.Now().Add(2 * time.Second)
	for {
		job, err := repo.GetByID(ctx, jobID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if job.Progress == 50 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job progress = %d while dispatched, want 50", job.Progress)
		}
		time.Sleep(2 * time.Millisecond)
	}

	close(gate)
	job := waitForStatus(t, repo, jobID, domain.JobStatusCompleted)
	if job.Progress != 100 {
		t.Fatalf("completed progress = %d, want 100", job.Progress)
	}
}

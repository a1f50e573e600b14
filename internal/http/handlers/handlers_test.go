package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"orchestrator/internal/director"
	"orchestrator/internal/domain"
	"orchestrator/internal/http/handlers"
	httpapi "orchestrator/internal/http/httpapi"
	"orchestrator/internal/providers/generation"
	"orchestrator/internal/providers/social"
	"orchestrator/internal/queue"
	"orchestrator/internal/scheduler"
)

type memJobs struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
}

func (r *memJobs) Create(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memJobs) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (r *memJobs) List(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error) {
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
	sort.Slice(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

func (r *memJobs) Stats(ctx context.Context) (domain.QueueStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stats domain.QueueStats
	for _, job := range r.jobs {
		stats.Total++
		if job.Status == domain.JobStatusPending {
			stats.Pending++
		}
	}
	return stats, nil
}

func (r *memJobs) BatchStatus(ctx context.Context, batchID string) (domain.BatchStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := domain.BatchStatus{BatchID: batchID}
	for _, job := range r.jobs {
		if job.BatchID == batchID {
			status.Total++
			status.Pending++
		}
	}
	if status.Total == 0 {
		return domain.BatchStatus{}, domain.ErrNotFound
	}
	return status, nil
}

func (r *memJobs) ClaimNext(ctx context.Context, now time.Time, limit int) ([]domain.Job, error) {
	return nil, nil
}

func (r *memJobs) MarkCompleted(ctx context.Context, jobID string, result map[string]any) error {
	return nil
}

func (r *memJobs) MarkFailed(ctx context.Context, jobID string, errMsg string) error {
	return nil
}

func (r *memJobs) Requeue(ctx context.Context, jobID string, errMsg string, retryCount int, nextAttempt time.Time) error {
	return nil
}

func (r *memJobs) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	return nil
}

type memSchedules struct {
	mu      sync.Mutex
	entries map[string]*domain.ScheduleEntry
}

func (r *memSchedules) Create(ctx context.Context, entry *domain.ScheduleEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *entry
	r.entries[entry.ID] = &cp
	return nil
}

func (r *memSchedules) GetByID(ctx context.Context, id string) (*domain.ScheduleEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *entry
	return &cp, nil
}

func (r *memSchedules) List(ctx context.Context, limit int) ([]domain.ScheduleEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ScheduleEntry
	for _, entry := range r.entries {
		out = append(out, *entry)
	}
	return out, nil
}

func (r *memSchedules) Update(ctx context.Context, entry *domain.ScheduleEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[entry.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *entry
	r.entries[entry.ID] = &cp
	return nil
}

func (r *memSchedules) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.entries, id)
	return nil
}

func (r *memSchedules) ListDue(ctx context.Context, day time.Time) ([]domain.ScheduleEntry, error) {
	return nil, nil
}

func (r *memSchedules) UpdateStatusIf(ctx context.Context, id string, from, to domain.ScheduleStatus, externalID string) (bool, error) {
	return false, nil
}

type memCharacters struct {
	mu         sync.Mutex
	characters map[string]domain.CharacterProfile
}

func (r *memCharacters) InsertRoster(ctx context.Context, roster []domain.CharacterProfile) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inserted := 0
	for _, c := range roster {
		if _, ok := r.characters[c.Code]; ok {
			continue
		}
		r.characters[c.Code] = c
		inserted++
	}
	return inserted, nil
}

func (r *memCharacters) GetByID(ctx context.Context, id string) (*domain.CharacterProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.characters[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (r *memCharacters) List(ctx context.Context) ([]domain.CharacterProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CharacterProfile
	for _, c := range r.characters {
		out = append(out, c)
	}
	return out, nil
}

func (r *memCharacters) ListActiveTop(ctx context.Context, limit int) ([]domain.CharacterProfile, error) {
	return nil, nil
}

func (r *memCharacters) UpdatePerformanceScore(ctx context.Context, id string, score float64) error {
	return nil
}

type stubTrends struct{}

func (stubTrends) List(ctx context.Context, limit int) ([]domain.TrendRecord, error) {
	return nil, nil
}

func (stubTrends) ListActiveTop(ctx context.Context, now time.Time, limit int) ([]domain.TrendRecord, error) {
	return nil, nil
}

type stubAnalytics struct{}

func (stubAnalytics) ListSince(ctx context.Context, since time.Time) ([]domain.PerformanceSnapshot, error) {
	return nil, nil
}

func (stubAnalytics) Summary(ctx context.Context) (*domain.AnalyticsSummary, error) {
	return &domain.AnalyticsSummary{Snapshots: 3, AvgEngagement: 7.5, TotalViews: 1200}, nil
}

type stubDirectorState struct {
	state *domain.DirectorState
}

func (s *stubDirectorState) Upsert(ctx context.Context, state *domain.DirectorState) error {
	cp := *state
	s.state = &cp
	return nil
}

func (s *stubDirectorState) Get(ctx context.Context) (*domain.DirectorState, error) {
	if s.state == nil {
		return nil, domain.ErrNotFound
	}
	return s.state, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *memJobs) {
	t.Helper()
	logger := zerolog.Nop()
	jobs := &memJobs{jobs: make(map[string]*domain.Job)}
	schedules := &memSchedules{entries: make(map[string]*domain.ScheduleEntry)}
	characters := &memCharacters{characters: make(map[string]domain.CharacterProfile)}
	states := &stubDirectorState{}

	q := queue.New(jobs, generation.NewHTTPClient(generation.Options{}), nil, nil, queue.DefaultConfig(), logger)
	engine := director.New(characters, stubTrends{}, stubAnalytics{}, states, director.DefaultConfig(), logger)
	sched := scheduler.New(schedules, social.NewTikTokPublisher(social.Options{}), scheduler.DefaultConfig(), logger)

	app := &handlers.App{
		Queue:          q,
		Director:       engine,
		Scheduler:      sched,
		Schedules:      schedules,
		Characters:     characters,
		Trends:         stubTrends{},
		Analytics:      stubAnalytics{},
		DirectorStates: states,
		Logger:         logger,
	}
	srv := httptest.NewServer(httpapi.NewRouter(app, httpapi.RouterOptions{}))
	t.Cleanup(srv.Close)
	return srv, jobs
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/healthz", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Fatalf("body = %v, want status ok", body)
	}
}

func TestGenerateImageAndStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/generate/image",
		`{"character_id":"ID_01_A","prompt":"city at night","priority":7}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	jobID, _ := body["job_id"].(string)
	if jobID == "" {
		t.Fatalf("body = %v, want job_id", body)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/queue/status/"+jobID, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	job, _ := body["job"].(map[string]any)
	if job["status"] != string(domain.JobStatusPending) {
		t.Fatalf("job status = %v, want pending", job["status"])
	}
	if job["priority"] != float64(7) {
		t.Fatalf("job priority = %v, want 7", job["priority"])
	}
}

func TestGenerateImageValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/generate/image", `{"character_id":"ID_01_A"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for missing prompt", resp.StatusCode)
	}
}

func TestQueueJobStatusNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/v1/queue/status/nope", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestQueueSubmitRejectsBatchKind(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/queue",
		`{"kind":"batch_generation","payload":{"batch":{"character_ids":["a"],"prompts":["b"]}}}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (batch goes through /generate/batch)", resp.StatusCode)
	}
}

func TestBatchSubmitAndStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/generate/batch",
		`{"character_ids":["ID_01_A","ID_02_A"],"prompts":["a","b","c"],"content_type":"image","priority":2}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if body["total"] != float64(6) {
		t.Fatalf("total = %v, want 6", body["total"])
	}
	batchID, _ := body["batch_id"].(string)
	if batchID == "" {
		t.Fatal("missing batch_id")
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/generate/batch/"+batchID, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	batch, _ := body["batch"].(map[string]any)
	if batch["total"] != float64(6) {
		t.Fatalf("batch total = %v, want 6", batch["total"])
	}
	if body["terminal"] != false {
		t.Fatalf("terminal = %v, want false", body["terminal"])
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/generate/batch/unknown", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown batch status = %d, want 404", resp.StatusCode)
	}
}

func TestScheduleCRUD(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/schedule",
		`{"date":"2026-04-01","title":"spring drop"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatal("missing entry id")
	}
	if body["status"] != string(domain.ScheduleStatusScheduled) {
		t.Fatalf("new entry status = %v, want scheduled", body["status"])
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/schedule", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, want 200", resp.StatusCode)
	}
	if body["total"] != float64(1) {
		t.Fatalf("list total = %v, want 1", body["total"])
	}

	resp, body = doJSON(t, http.MethodPut, srv.URL+"/v1/schedule/"+id, `{"title":"renamed"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d, want 200", resp.StatusCode)
	}
	if body["title"] != "renamed" {
		t.Fatalf("updated title = %v, want renamed", body["title"])
	}

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/v1/schedule/"+id, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/schedule/"+id, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted status = %d, want 404", resp.StatusCode)
	}
}

func TestScheduleCreateRejectsBadDate(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/schedule", `{"date":"April 1st","title":"x"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCharactersInitIsIdempotent(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/characters/init", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["inserted"] != float64(18) {
		t.Fatalf("first init inserted = %v, want 18", body["inserted"])
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/v1/characters/init", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["inserted"] != float64(0) {
		t.Fatalf("second init inserted = %v, want 0", body["inserted"])
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/characters", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["total"] != float64(18) {
		t.Fatalf("characters total = %v, want 18", body["total"])
	}
}

func TestDirectorStateBeforeFirstRun(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/v1/director/plan", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 before any planning cycle", resp.StatusCode)
	}
}

func TestDirectorRunPlanFallsBack(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/director/plan", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["total"] != float64(1) {
		t.Fatalf("total = %v, want 1 fallback plan with no signals", body["total"])
	}
	if body["submitted"] != float64(1) {
		t.Fatalf("submitted = %v, want 1", body["submitted"])
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/director/plan", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("state status = %d, want 200 after a planning cycle", resp.StatusCode)
	}
	if body["id"] != domain.DirectorStateID {
		t.Fatalf("state id = %v, want %s", body["id"], domain.DirectorStateID)
	}
}

func TestAnalyticsSummary(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/analytics/summary", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["snapshots"] != float64(3) {
		t.Fatalf("snapshots = %v, want 3", body["snapshots"])
	}
}

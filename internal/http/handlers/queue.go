package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"orchestrator/internal/domain"
)

type submitJobRequest struct {
	Kind     domain.JobKind    `json:"kind"`
	Payload  domain.JobPayload `json:"payload"`
	Priority int               `json:"priority"`
}

// QueueSubmit enqueues a single generation job.
func (a *App) QueueSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	jobID, err := a.Queue.Submit(r.Context(), req.Kind, req.Payload, req.Priority)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		a.Logger.Error().Err(err).Msg("http: submit job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to enqueue job")
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{
		"job_id": jobID,
		"status": domain.JobStatusPending,
	})
}

// QueueList returns jobs matching optional status/kind filters.
func (a *App) QueueList(w http.ResponseWriter, r *http.Request) {
	filter := domain.JobFilter{Limit: 50}
	if v := r.URL.Query().Get("status"); v != "" {
		status := domain.JobStatus(v)
		filter.Status = &status
	}
	if v := r.URL.Query().Get("kind"); v != "" {
		kind := domain.JobKind(v)
		filter.Kind = &kind
	}
	if v := r.URL.Query().Get("batch_id"); v != "" {
		filter.BatchID = v
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	jobs, err := a.Queue.ListJobs(r.Context(), filter)
	if err != nil {
		a.Logger.Error().Err(err).Msg("http: list jobs failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list jobs")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"jobs":  jobViews(jobs),
		"total": len(jobs),
	})
}

// QueueJobStatus returns one job by id.
func (a *App) QueueJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	job, err := a.Queue.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("http: get job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to fetch job")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"job": jobView(*job)})
}

// QueueStats returns aggregate queue counters.
func (a *App) QueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.Queue.Stats(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("http: queue stats failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to fetch stats")
		return
	}
	a.json(w, http.StatusOK, stats)
}

type submitBatchRequest struct {
	CharacterIDs []string `json:"character_ids"`
	Prompts      []string `json:"prompts"`
	ContentType  string   `json:"content_type"`
	Priority     int      `json:"priority"`
}

// QueueSubmitBatch expands a batch request into independent jobs sharing
// one batch id.
func (a *App) QueueSubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req submitBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	batchID, jobIDs, err := a.Queue.SubmitBatch(r.Context(), domain.BatchPayload{
		CharacterIDs: req.CharacterIDs,
		Prompts:      req.Prompts,
		ContentType:  req.ContentType,
	}, req.Priority)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		a.Logger.Error().Err(err).Msg("http: submit batch failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to enqueue batch")
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{
		"batch_id": batchID,
		"job_ids":  jobIDs,
		"total":    len(jobIDs),
	})
}

// QueueBatchStatus returns the derived view over a batch's children.
func (a *App) QueueBatchStatus(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batch_id")
	if batchID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "batch_id required")
		return
	}
	status, err := a.Queue.BatchStatus(r.Context(), batchID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "batch not found")
			return
		}
		a.Logger.Error().Err(err).Str("batch_id", batchID).Msg("http: batch status failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to fetch batch")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"batch":    status,
		"terminal": status.Terminal(),
	})
}

func jobView(job domain.Job) map[string]any {
	view := map[string]any{
		"id":          job.ID,
		"kind":        job.Kind,
		"status":      job.Status,
		"priority":    job.Priority,
		"progress":    job.Progress,
		"retry_count": job.RetryCount,
		"max_retries": job.MaxRetries,
		"created_at":  job.CreatedAt,
		"updated_at":  job.UpdatedAt,
	}
	if job.BatchID != "" {
		view["batch_id"] = job.BatchID
	}
	if job.ErrorMessage != "" {
		view["error"] = job.ErrorMessage
	}
	if job.Result != nil {
		view["result"] = job.Result
	}
	if job.StartedAt != nil {
		view["started_at"] = job.StartedAt
	}
	if job.CompletedAt != nil {
		view["completed_at"] = job.CompletedAt
	}
	return view
}

func jobViews(jobs []domain.Job) []map[string]any {
	views := make([]map[string]any, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, jobView(job))
	}
	return views
}

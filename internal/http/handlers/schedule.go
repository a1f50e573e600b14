package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"orchestrator/internal/domain"
)

type scheduleEntryRequest struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Title string `json:"title"`
}

// ScheduleCreate registers a new publish intent for a given day.
func (a *App) ScheduleCreate(w http.ResponseWriter, r *http.Request) {
	var req scheduleEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Title == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "title required")
		return
	}
	day, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "date must be YYYY-MM-DD")
		return
	}
	now := time.Now().UTC()
	entry := domain.ScheduleEntry{
		ID:        uuid.NewString(),
		Date:      day,
		Title:     req.Title,
		Status:    domain.ScheduleStatusScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.Schedules.Create(r.Context(), &entry); err != nil {
		a.Logger.Error().Err(err).Msg("http: create schedule entry failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create entry")
		return
	}
	a.json(w, http.StatusCreated, entry)
}

// ScheduleList returns recent schedule entries.
func (a *App) ScheduleList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	entries, err := a.Schedules.List(r.Context(), limit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("http: list schedule entries failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list entries")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   len(entries),
	})
}

// ScheduleGet returns one entry by id.
func (a *App) ScheduleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "entry_id")
	entry, err := a.Schedules.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "entry not found")
			return
		}
		a.Logger.Error().Err(err).Str("entry_id", id).Msg("http: get schedule entry failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to fetch entry")
		return
	}
	a.json(w, http.StatusOK, entry)
}

// ScheduleUpdate rewrites an entry's date and title. A failed entry moves
// back to scheduled so the next due tick retries it.
func (a *App) ScheduleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "entry_id")
	var req scheduleEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	entry, err := a.Schedules.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "entry not found")
			return
		}
		a.Logger.Error().Err(err).Str("entry_id", id).Msg("http: get schedule entry failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to fetch entry")
		return
	}
	if entry.Status == domain.ScheduleStatusPosted {
		a.error(w, http.StatusConflict, "conflict", "entry already posted")
		return
	}
	if req.Date != "" {
		day, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "date must be YYYY-MM-DD")
			return
		}
		entry.Date = day
	}
	if req.Title != "" {
		entry.Title = req.Title
	}
	entry.Status = domain.ScheduleStatusScheduled
	entry.UpdatedAt = time.Now().UTC()
	if err := a.Schedules.Update(r.Context(), entry); err != nil {
		a.Logger.Error().Err(err).Str("entry_id", id).Msg("http: update schedule entry failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to update entry")
		return
	}
	a.json(w, http.StatusOK, entry)
}

// ScheduleDelete removes an entry.
func (a *App) ScheduleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "entry_id")
	if err := a.Schedules.Delete(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "entry not found")
			return
		}
		a.Logger.Error().Err(err).Str("entry_id", id).Msg("http: delete schedule entry failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to delete entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ScheduleTick forces one scheduler pass, useful for operations and tests.
func (a *App) ScheduleTick(w http.ResponseWriter, r *http.Request) {
	a.Scheduler.Tick(r.Context())
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

package handlers

import (
	"errors"
	"net/http"

	"orchestrator/internal/domain"
)

// DirectorRunPlan runs one planning cycle and enqueues the resulting jobs.
func (a *App) DirectorRunPlan(w http.ResponseWriter, r *http.Request) {
	plans, err := a.Director.GeneratePlan(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("http: director plan failed")
		a.error(w, http.StatusInternalServerError, "internal", "planning cycle failed")
		return
	}
	submitted := a.Director.SubmitPlans(r.Context(), a.Queue, plans)
	a.json(w, http.StatusOK, map[string]any{
		"plans":     plans,
		"total":     len(plans),
		"submitted": submitted,
	})
}

// DirectorState returns the last persisted planning state.
func (a *App) DirectorState(w http.ResponseWriter, r *http.Request) {
	state, err := a.DirectorStates.Get(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "no planning cycle has run yet")
			return
		}
		a.Logger.Error().Err(err).Msg("http: director state failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to fetch director state")
		return
	}
	a.json(w, http.StatusOK, state)
}

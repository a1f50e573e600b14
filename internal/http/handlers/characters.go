package handlers

import (
	"net/http"
	"time"

	"orchestrator/internal/director"
)

// CharactersList returns the full roster.
func (a *App) CharactersList(w http.ResponseWriter, r *http.Request) {
	characters, err := a.Characters.List(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("http: list characters failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list characters")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"characters": characters,
		"total":      len(characters),
	})
}

// CharactersInit seeds the default roster. Existing codes are left
// untouched, so the endpoint is safe to call repeatedly.
func (a *App) CharactersInit(w http.ResponseWriter, r *http.Request) {
	roster := director.DefaultRoster(time.Now().UTC())
	inserted, err := a.Characters.InsertRoster(r.Context(), roster)
	if err != nil {
		a.Logger.Error().Err(err).Msg("http: init roster failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to seed roster")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"inserted": inserted,
		"total":    len(roster),
	})
}

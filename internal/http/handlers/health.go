package handlers

import "net/http"

// Health reports liveness plus a few cheap in-process gauges.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"active_jobs": a.Queue.ActiveCount(),
	})
}

package handlers

import "net/http"

// AnalyticsSummary returns aggregate engagement statistics.
func (a *App) AnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.Analytics.Summary(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("http: analytics summary failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to compute summary")
		return
	}
	a.json(w, http.StatusOK, summary)
}

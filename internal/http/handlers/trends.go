package handlers

import (
	"net/http"
	"strconv"
	"time"
)

// TrendsList returns trend signals, optionally restricted to active ones.
func (a *App) TrendsList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	var err error
	var trends any
	if r.URL.Query().Get("active") == "true" {
		trends, err = a.Trends.ListActiveTop(r.Context(), time.Now().UTC(), limit)
	} else {
		trends, err = a.Trends.List(r.Context(), limit)
	}
	if err != nil {
		a.Logger.Error().Err(err).Msg("http: list trends failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list trends")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"trends": trends})
}

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"orchestrator/internal/domain"
	"orchestrator/pkg/zip"
)

// BatchDownload streams every completed asset of a batch as one zip
// archive. Jobs still pending or failed are skipped; the archive only
// contains what actually finished.
func (a *App) BatchDownload(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batch_id")
	if batchID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "batch_id required")
		return
	}
	completed := domain.JobStatusCompleted
	jobs, err := a.Queue.ListJobs(r.Context(), domain.JobFilter{
		Status:  &completed,
		BatchID: batchID,
		Limit:   1000,
	})
	if err != nil {
		a.Logger.Error().Err(err).Str("batch_id", batchID).Msg("http: batch download lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list batch jobs")
		return
	}
	if len(jobs) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no completed assets in batch")
		return
	}

	assets := make([]zip.Asset, 0, len(jobs))
	for _, job := range jobs {
		key, ok := job.Result["storage_key"].(string)
		if !ok || key == "" {
			continue
		}
		data, err := a.Store.Read(r.Context(), key)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				a.Logger.Warn().Str("job_id", job.ID).Str("key", key).Msg("http: stored asset missing")
				continue
			}
			a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("http: read asset failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to read asset")
			return
		}
		assets = append(assets, zip.Asset{
			Filename: job.ID + path.Ext(key),
			Data:     data,
		})
	}
	if len(assets) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no stored assets in batch")
		return
	}

	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		a.Logger.Error().Err(err).Str("batch_id", batchID).Msg("http: archive failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "batch-"+batchID+".zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

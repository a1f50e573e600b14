package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"orchestrator/internal/domain"
)

// Convenience endpoints wrapping queue submission with a flat request body
// per content kind.

type generateImageRequest struct {
	CharacterID string `json:"character_id"`
	Prompt      string `json:"prompt"`
	Aesthetic   string `json:"aesthetic"`
	AspectRatio string `json:"aspect_ratio"`
	Priority    int    `json:"priority"`
}

func (a *App) GenerateImage(w http.ResponseWriter, r *http.Request) {
	var req generateImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	payload := domain.JobPayload{Image: &domain.ImagePayload{
		CharacterID: req.CharacterID,
		Prompt:      req.Prompt,
		Aesthetic:   req.Aesthetic,
		AspectRatio: req.AspectRatio,
	}}
	a.enqueue(w, r, domain.JobKindImageGeneration, payload, req.Priority)
}

type generateVideoRequest struct {
	CharacterID string `json:"character_id"`
	Prompt      string `json:"prompt"`
	Aesthetic   string `json:"aesthetic"`
	DurationSec int    `json:"duration_sec"`
	Priority    int    `json:"priority"`
}

func (a *App) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	var req generateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	payload := domain.JobPayload{Video: &domain.VideoPayload{
		CharacterID: req.CharacterID,
		Prompt:      req.Prompt,
		Aesthetic:   req.Aesthetic,
		DurationSec: req.DurationSec,
	}}
	a.enqueue(w, r, domain.JobKindVideoGeneration, payload, req.Priority)
}

type generateVoiceoverRequest struct {
	CharacterID string `json:"character_id"`
	Text        string `json:"text"`
	Voice       string `json:"voice"`
	Priority    int    `json:"priority"`
}

func (a *App) GenerateVoiceover(w http.ResponseWriter, r *http.Request) {
	var req generateVoiceoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	payload := domain.JobPayload{Voiceover: &domain.VoiceoverPayload{
		CharacterID: req.CharacterID,
		Text:        req.Text,
		Voice:       req.Voice,
	}}
	a.enqueue(w, r, domain.JobKindVoiceoverGeneration, payload, req.Priority)
}

func (a *App) enqueue(w http.ResponseWriter, r *http.Request, kind domain.JobKind, payload domain.JobPayload, priority int) {
	jobID, err := a.Queue.Submit(r.Context(), kind, payload, priority)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		a.Logger.Error().Err(err).Str("kind", string(kind)).Msg("http: enqueue failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to enqueue job")
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{
		"job_id": jobID,
		"kind":   kind,
		"status": domain.JobStatusPending,
	})
}

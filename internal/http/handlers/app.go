package handlers

import (
	"encoding/json"
	"net/http"

	"orchestrator/internal/director"
	"orchestrator/internal/domain"
	"orchestrator/internal/infra"
	"orchestrator/internal/queue"
	"orchestrator/internal/scheduler"
	"orchestrator/internal/storage"
)

// App bundles the dependencies the HTTP surface needs.
type App struct {
	Queue     *queue.Queue
	Director  *director.Engine
	Scheduler *scheduler.Scheduler

	Schedules      domain.ScheduleRepository
	Characters     domain.CharacterRepository
	Trends         domain.TrendRepository
	Analytics      domain.AnalyticsRepository
	DirectorStates domain.DirectorStateRepository

	Store  storage.ObjectStore
	Logger infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]string{"error": kind, "message": message})
}

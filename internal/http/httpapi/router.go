package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"orchestrator/internal/http/handlers"
	"orchestrator/internal/middleware"
	"orchestrator/internal/ws"
)

// RouterOptions carries the ambient knobs the router needs beyond handlers.
type RouterOptions struct {
	AllowedOrigins []string
	RateLimit      int
	RateWindow     time.Duration
	Hub            *ws.Hub
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)
	if opts.RateLimit > 0 {
		r.Use(middleware.RateLimit(opts.RateLimit, opts.RateWindow))
	}

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/queue", func(r chi.Router) {
		r.Post("/", app.QueueSubmit)
		r.Get("/", app.QueueList)
		r.Get("/stats", app.QueueStats)
		r.Get("/status/{job_id}", app.QueueJobStatus)
	})

	r.Route("/v1/generate", func(r chi.Router) {
		r.Post("/image", app.GenerateImage)
		r.Post("/video", app.GenerateVideo)
		r.Post("/voiceover", app.GenerateVoiceover)
		r.Post("/batch", app.QueueSubmitBatch)
		r.Get("/batch/{batch_id}", app.QueueBatchStatus)
		r.Get("/batch/{batch_id}/download", app.BatchDownload)
	})

	r.Route("/v1/director", func(r chi.Router) {
		r.Post("/plan", app.DirectorRunPlan)
		r.Get("/plan", app.DirectorState)
	})

	r.Route("/v1/schedule", func(r chi.Router) {
		r.Post("/", app.ScheduleCreate)
		r.Get("/", app.ScheduleList)
		r.Post("/tick", app.ScheduleTick)
		r.Get("/{entry_id}", app.ScheduleGet)
		r.Put("/{entry_id}", app.ScheduleUpdate)
		r.Delete("/{entry_id}", app.ScheduleDelete)
	})

	r.Route("/v1/characters", func(r chi.Router) {
		r.Get("/", app.CharactersList)
		r.Post("/init", app.CharactersInit)
	})

	r.Get("/v1/trends", app.TrendsList)
	r.Get("/v1/analytics/summary", app.AnalyticsSummary)

	if opts.Hub != nil {
		r.Get("/v1/ws", opts.Hub.ServeHTTP)
	}

	return r
}

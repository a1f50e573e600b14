package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"orchestrator/internal/adapter/repo"
	"orchestrator/internal/director"
	"orchestrator/internal/http/handlers"
	httpapi "orchestrator/internal/http/httpapi"
	"orchestrator/internal/infra"
	"orchestrator/internal/providers/generation"
	"orchestrator/internal/providers/social"
	"orchestrator/internal/queue"
	"orchestrator/internal/scheduler"
	"orchestrator/internal/storage"
	"orchestrator/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	jobs := repo.NewJobRepository(dbpool)
	schedules := repo.NewScheduleRepository(dbpool)
	characters := repo.NewCharacterRepository(dbpool)
	trends := repo.NewTrendRepository(dbpool)
	analytics := repo.NewAnalyticsRepository(dbpool)
	directorStates := repo.NewDirectorStateRepository(dbpool)

	store, err := newObjectStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize object store")
	}

	generator := generation.NewHTTPClient(generation.Options{
		BaseURL: cfg.GenerationBaseURL,
		APIKey:  cfg.GenerationAPIKey,
		Logger:  &logger,
	})
	publisher := social.NewTikTokPublisher(social.Options{
		BaseURL:     cfg.TikTokBaseURL,
		AccessToken: cfg.TikTokAccessToken,
		Logger:      &logger,
	})

	hub := ws.NewHub(logger)

	q := queue.New(jobs, generator, store, hub, queue.Config{
		MaxConcurrent:  cfg.QueueMaxConcurrent,
		MaxRetries:     cfg.QueueMaxRetries,
		RetryBaseDelay: cfg.QueueRetryBaseDelay,
		RetryMaxDelay:  cfg.QueueRetryMaxDelay,
		JobTimeout:     cfg.QueueJobTimeout,
		PollInterval:   cfg.QueuePollInterval,
	}, logger)

	engine := director.New(characters, trends, analytics, directorStates, director.Config{
		TopCharacters:      cfg.DirectorTopCharacters,
		TopTrends:          cfg.DirectorTopTrends,
		LookbackDays:       cfg.DirectorLookbackDays,
		RelevanceThreshold: cfg.DirectorRelevanceThreshold,
		PlansPerCharacter:  cfg.DirectorPlansPerCharacter,
		Interval:           cfg.DirectorInterval,
		PlanPriority:       cfg.DirectorPlanPriority,
	}, logger)

	sched := scheduler.New(schedules, publisher, scheduler.Config{
		Interval:     cfg.SchedulerInterval,
		EntryTimeout: cfg.SchedulerEntryTimeout,
	}, logger)
	sched.Start(ctx)
	defer sched.Stop()

	if cfg.EmbeddedWorker {
		go func() {
			if err := q.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("queue dispatcher stopped")
			}
		}()
		go func() {
			if err := engine.Run(ctx, q); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("director loop stopped")
			}
		}()
	}

	app := &handlers.App{
		Queue:          q,
		Director:       engine,
		Scheduler:      sched,
		Schedules:      schedules,
		Characters:     characters,
		Trends:         trends,
		Analytics:      analytics,
		DirectorStates: directorStates,
		Store:          store,
		Logger:         logger,
	}
	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimit:      cfg.RateLimitRequests,
		RateWindow:     cfg.RateLimitWindow,
		Hub:            hub,
	})

	server := infra.NewHTTPServer(cfg, router)
	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func newObjectStore(ctx context.Context, cfg *infra.Config) (storage.ObjectStore, error) {
	if cfg.StorageBackend == "minio" {
		return storage.NewMinIOStore(ctx, storage.MinIOOptions{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
	}
	return storage.NewFileStore(cfg.StoragePath)
}

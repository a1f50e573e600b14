package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"orchestrator/internal/adapter/repo"
	"orchestrator/internal/director"
	"orchestrator/internal/infra"
	"orchestrator/internal/providers/generation"
	"orchestrator/internal/queue"
	"orchestrator/internal/storage"
)

// The worker runs the queue dispatcher and the director loop without an
// HTTP surface. Deploy it alongside the API with EMBEDDED_WORKER=false on
// the API side to split serving from processing.
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

	q := queue.New(jobs, generator, store, nil, queue.Config{
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

	logger.Info().Msg("worker started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	cancel()
	logger.Info().Msg("worker stopped")
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

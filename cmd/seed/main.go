package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"

	"orchestrator/internal/adapter/repo"
	"orchestrator/internal/director"
	"orchestrator/internal/infra"
)

// Seed applies the schema and inserts the default character roster. Safe to
// run repeatedly: the schema uses IF NOT EXISTS and the roster insert skips
// existing codes.
func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	schema, err := os.ReadFile("db/schema.sql")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to read schema file")
	}
	if _, err := dbpool.Exec(ctx, string(schema)); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply schema")
	}
	logger.Info().Msg("schema applied")

	characters := repo.NewCharacterRepository(dbpool)
	roster := director.DefaultRoster(time.Now().UTC())
	inserted, err := characters.InsertRoster(ctx, roster)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to seed roster")
	}
	logger.Info().Int("inserted", inserted).Int("total", len(roster)).Msg("roster seeded")
}

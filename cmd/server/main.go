package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/warroom/internal/auth"
	"github.com/freeeve/warroom/internal/config"
	"github.com/freeeve/warroom/internal/handler"
	"github.com/freeeve/warroom/internal/logger"
	"github.com/freeeve/warroom/internal/repository/postgres"
	redisrepo "github.com/freeeve/warroom/internal/repository/redis"
	"github.com/freeeve/warroom/internal/service"
	"github.com/freeeve/warroom/pkg/battle"
	"github.com/freeeve/warroom/pkg/odds"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init(logger.Options{})
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logger.Init(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File, Dev: cfg.Log.Dev})
	log.Info().Str("port", cfg.Port).Int("oddsWorkers", cfg.Odds.Workers).Msg("Config loaded")

	_, catalog := battle.DefaultRuleset()
	if cfg.RulesFile != "" {
		if _, catalog, err = battle.LoadRuleset(cfg.RulesFile); err != nil {
			log.Fatal().Err(err).Str("file", cfg.RulesFile).Msg("Ruleset load failed")
		}
	}

	// Database
	db, err := postgres.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	defer db.Close()

	// Redis
	redisClient, err := redisrepo.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer redisClient.Close()

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret)
	wsHub := handler.NewHub()

	oddsSvc := service.NewOddsService(postgres.NewStateRepo(db), redisClient, catalog, wsHub, service.OddsOptions{
		Workers:     cfg.Odds.Workers,
		DefaultRuns: cfg.Odds.DefaultRuns,
		MaxRuns:     cfg.Odds.MaxRuns,
		Seed:        cfg.Odds.Seed,
		Planner: odds.PlannerConfig{
			SkewThreshold: cfg.Odds.SkewThreshold,
			LowLuckFactor: cfg.Odds.LowLuckFactor,
			MinRuns:       1,
		},
	})

	router := handler.NewRouter(
		handler.NewOddsHandler(oddsSvc),
		handler.NewWSHandler(wsHub, jwtMgr),
		jwtMgr,
		map[string]handler.HealthCheck{
			"postgres": db.PingContext,
			"redis":    redisClient.Ping,
		},
	)

	// WriteTimeout is generous since odds requests block until the
	// calculation finishes.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Int("runningCalculations", oddsSvc.Running()).Msg("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}

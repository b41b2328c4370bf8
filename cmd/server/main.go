package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fieldvisit/backend/internal/config"
	"github.com/fieldvisit/backend/internal/db"
	"github.com/fieldvisit/backend/internal/geocode"
	httpapi "github.com/fieldvisit/backend/internal/http"
	"github.com/fieldvisit/backend/internal/service"
	"github.com/fieldvisit/backend/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "fieldvisit-backend").Logger()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	var emitter telemetry.Emitter
	if cfg.TelemetryURL == "" {
		emitter = telemetry.NopEmitter{}
		logger.Info().Msg("telemetry disabled")
	} else {
		emitter = telemetry.HTTPEmitter{BaseURL: cfg.TelemetryURL}
	}

	assembler := &service.Assembler{
		Repo:      store,
		Telemetry: emitter,
		Logger:    logger,
	}
	optimizer := service.Optimizer{
		Population:  cfg.OptimizerPopulation,
		Generations: cfg.OptimizerGenerations,
		Elite:       cfg.OptimizerElite,
		AvgStopMin:  cfg.AvgStopMinutes,
		Logger:      logger,
	}
	geocoder := &geocode.NominatimGeocoder{}

	router := httpapi.Router(cfg, store, assembler, optimizer, geocoder, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"bkmrks/internal/config"
	"bkmrks/internal/database"
	"bkmrks/internal/logging"
	"bkmrks/internal/worker"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Setup(cfg.LogLevel)

	if cfg.QueueBackend == config.QueueBadger {
		log.Fatal().Msg("The badger queue is only reachable from the API process; set QUEUE_BACKEND=redis to run a standalone worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	queue, err := worker.OpenQueue(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open job queue")
	}
	defer queue.Close()

	runner := worker.New(cfg, db, queue, os.Stderr)
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Job runner stopped with error")
	}
	log.Info().Msg("Worker exiting")
}

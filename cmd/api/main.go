package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"bkmrks/internal/config"
	"bkmrks/internal/logging"
	"bkmrks/internal/server"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Setup(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := server.NewServer(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise server")
	}

	done := make(chan bool, 1)
	go s.GracefulShutdown(cancel, done)

	err = s.Start(ctx)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("HTTP server error")
	}

	<-done
	log.Info().Msg("Graceful shutdown complete.")
}

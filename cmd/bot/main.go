package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"bkmrks/internal/bot"
	"bkmrks/internal/config"
	"bkmrks/internal/logging"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logFile, err := os.OpenFile(cfg.BotLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.BotLogFile).Msg("Failed to open bot log file")
	}
	defer logFile.Close()
	logging.Setup(cfg.LogLevel, logFile)

	if cfg.BotToken == "" {
		log.Fatal().Msg("BOT_TOKEN is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := bot.NewHandler(bot.NewAPIClient(cfg.APIBaseURL, cfg.BotAPIKey))
	b, err := bot.New(cfg.BotToken, handler)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start bot")
	}

	log.Info().Str("api", cfg.APIBaseURL).Msg("Bot started.")
	b.Start(ctx)
	log.Info().Msg("Bot stopped.")
}

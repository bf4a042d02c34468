package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"bkmrks/internal/config"
	"bkmrks/internal/importer"
	"bkmrks/internal/logging"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Setup(cfg.LogLevel)

	env := &environment{cfg: cfg}
	defer env.close()

	app := &cli.App{
		Name:  "bkmrksctl",
		Usage: "Administer a bkmrks installation",
		Commands: []*cli.Command{
			{
				Name:  "user",
				Usage: "Manage user accounts",
				Subcommands: []*cli.Command{
					{
						Name:      "set-quota",
						Usage:     "Set a user's disk quota in megabytes",
						ArgsUsage: "<username> <megabytes>",
						Action:    env.setQuota,
					},
					{
						Name:      "set-telegram",
						Usage:     "Link a Telegram chat id to a user; an empty id unlinks it",
						ArgsUsage: "<username> [telegram-id]",
						Action:    env.setTelegram,
					},
				},
			},
			{
				Name:      "import",
				Usage:     "Import a browser bookmark export for a user",
				ArgsUsage: "<username> <file>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   importer.FormatChrome,
						Usage:   "export format: chrome or firefox",
					},
				},
				Action: env.importFile,
			},
			{
				Name:  "downloads",
				Usage: "Manage video downloads",
				Subcommands: []*cli.Command{
					{
						Name:   "retry-failed",
						Usage:  "Reschedule every failed download and every download with an expired lease",
						Action: env.retryFailed,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		env.close()
		log.Fatal().Err(err).Msg("Command failed")
	}
}

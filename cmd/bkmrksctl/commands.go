package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"go.mongodb.org/mongo-driver/bson"

	"bkmrks/internal/config"
	"bkmrks/internal/database"
	"bkmrks/internal/importer"
	"bkmrks/internal/jobs"
	"bkmrks/internal/models"
	"bkmrks/internal/repositories"
	"bkmrks/internal/services"
	"bkmrks/internal/worker"
)

// environment opens the database and queue on first use so that
// "--help" works without either.
type environment struct {
	cfg   config.Config
	db    database.Service
	queue jobs.Queue
}

func (e *environment) openDB() (database.Service, error) {
	if e.db != nil {
		return e.db, nil
	}
	db, err := database.New(e.cfg.MongoURI, e.cfg.MongoDatabase)
	if err != nil {
		return nil, err
	}
	e.db = db
	return db, nil
}

func (e *environment) close() {
	if e.queue != nil {
		if err := e.queue.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing job queue")
		}
		e.queue = nil
	}
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
		e.db = nil
	}
}

func (e *environment) user(c *cli.Context, username string) (repositories.UserRepository, *models.User, error) {
	db, err := e.openDB()
	if err != nil {
		return nil, nil, err
	}
	users := repositories.NewUserRepository(db)
	u, err := users.FindByUsername(c.Context, username)
	if err != nil {
		return nil, nil, fmt.Errorf("user %q: %w", username, err)
	}
	return users, u, nil
}

func (e *environment) setQuota(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: bkmrksctl user set-quota <username> <megabytes>", 2)
	}
	quota, err := strconv.Atoi(c.Args().Get(1))
	if err != nil || quota < 0 {
		return cli.Exit("quota must be a non-negative integer", 2)
	}

	users, u, err := e.user(c, c.Args().Get(0))
	if err != nil {
		return err
	}
	if _, err := users.Update(c.Context, u.ID, bson.M{"disk_quota": quota}); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Disk quota of %s set to %d Mb\n", u.Username, quota)
	return nil
}

func (e *environment) setTelegram(c *cli.Context) error {
	if c.NArg() < 1 || c.NArg() > 2 {
		return cli.Exit("usage: bkmrksctl user set-telegram <username> [telegram-id]", 2)
	}

	users, u, err := e.user(c, c.Args().Get(0))
	if err != nil {
		return err
	}
	var value interface{}
	if id := c.Args().Get(1); id != "" {
		value = id
	}
	if _, err := users.Update(c.Context, u.ID, bson.M{"telegram_id": value}); err != nil {
		return err
	}
	if value == nil {
		fmt.Fprintf(c.App.Writer, "Telegram id of %s removed\n", u.Username)
	} else {
		fmt.Fprintf(c.App.Writer, "Telegram id of %s set to %s\n", u.Username, value)
	}
	return nil
}

func (e *environment) importFile(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: bkmrksctl import [--format chrome|firefox] <username> <file>", 2)
	}
	data, err := os.ReadFile(c.Args().Get(1))
	if err != nil {
		return err
	}
	entries, err := importer.Parse(data, c.String("format"))
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return cli.Exit("no links found in export", 1)
	}

	_, u, err := e.user(c, c.Args().Get(0))
	if err != nil {
		return err
	}
	im := importer.New(repositories.NewBookmarkRepository(e.db), repositories.NewFolderRepository(e.db), c.App.ErrWriter)
	res, err := im.Import(c.Context, u.ID, entries)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "\nImport complete: %d imported, %d skipped, %d folders created\n", res.Imported, res.Skipped, res.FoldersCreated)
	return nil
}

func (e *environment) retryFailed(c *cli.Context) error {
	db, err := e.openDB()
	if err != nil {
		return err
	}
	queue, err := worker.OpenQueue(c.Context, e.cfg)
	if err != nil {
		return err
	}
	e.queue = queue

	downloads := services.NewDownloadService(
		repositories.NewDownloadRepository(db),
		repositories.NewBookmarkRepository(db),
		repositories.NewUserRepository(db),
		jobs.NewScheduler(queue),
	)
	n, err := downloads.RetryFailed(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%d failed downloads rescheduled\n", n)

	stale, err := downloads.RecoverStale(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%d stale downloads rescheduled\n", stale)
	return nil
}

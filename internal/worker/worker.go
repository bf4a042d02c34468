package worker

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"bkmrks/internal/config"
	"bkmrks/internal/database"
	"bkmrks/internal/downloader"
	"bkmrks/internal/jobs"
	"bkmrks/internal/repositories"
)

// OpenQueue connects to the job broker selected by QUEUE_BACKEND.
func OpenQueue(ctx context.Context, cfg config.Config) (jobs.Queue, error) {
	switch cfg.QueueBackend {
	case config.QueueRedis:
		q, err := jobs.NewRedisQueue(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to open redis queue: %w", err)
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("Using redis job queue")
		return q, nil
	case config.QueueBadger:
		q, err := jobs.NewBadgerQueue(cfg.BadgerPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger queue: %w", err)
		}
		log.Info().Str("path", cfg.BadgerPath).Msg("Using badger job queue")
		return q, nil
	default:
		return nil, fmt.Errorf("unsupported queue backend %q", cfg.QueueBackend)
	}
}

// New builds a runner that executes download jobs from queue.
// progress receives the per-download byte progress bar and may be nil.
func New(cfg config.Config, db database.Service, queue jobs.Queue, progress io.Writer) *jobs.Runner {
	storage := downloader.NewStorage(cfg.MediaRoot)
	downloads := repositories.NewDownloadRepository(db, storage.OnDownloadDeleted)
	bookmarks := repositories.NewBookmarkRepository(db)

	processor := downloader.NewProcessor(downloads, bookmarks, downloader.NewYouTubeSource(progress), storage, cfg.DownloadLease)

	runner := jobs.NewRunner(queue, cfg.WorkerConcurrency)
	processor.Register(runner, jobs.DefaultRetryPolicy())
	return runner
}

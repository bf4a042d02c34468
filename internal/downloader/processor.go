package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bkmrks/internal/jobs"
	"bkmrks/internal/metrics"
	"bkmrks/internal/models"
	"bkmrks/internal/repositories"
	"bkmrks/internal/utils"
)

const ProcessJobType = "downloads.process"

// ErrLeased is returned when another attempt holds the download's lease. The
// job is retried so that the record is picked up once the lease ends.
var ErrLeased = errors.New("download is leased by another attempt")

type ProcessPayload struct {
	DownloadID string `json:"download_id"`
}

// Processor is the job handler that turns a Pending download into a file.
type Processor struct {
	downloads repositories.DownloadRepository
	bookmarks repositories.BookmarkRepository
	source    VideoSource
	storage   *Storage
	lease     time.Duration
}

func NewProcessor(downloads repositories.DownloadRepository, bookmarks repositories.BookmarkRepository, source VideoSource, storage *Storage, lease time.Duration) *Processor {
	return &Processor{
		downloads: downloads,
		bookmarks: bookmarks,
		source:    source,
		storage:   storage,
		lease:     lease,
	}
}

// Register binds the processor to its job type on r.
func (p *Processor) Register(r *jobs.Runner, policy jobs.RetryPolicy) {
	r.Register(ProcessJobType, p.Handle, policy)
}

func (p *Processor) Handle(ctx context.Context, job jobs.Job) error {
	var payload ProcessPayload
	if err := job.Decode(&payload); err != nil {
		return backoff.Permanent(err)
	}
	id, err := primitive.ObjectIDFromHex(payload.DownloadID)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("invalid download id %q: %w", payload.DownloadID, err))
	}
	return p.Process(ctx, id)
}

// Process runs one attempt for downloadID. A returned error means the attempt
// failed and may be retried.
func (p *Processor) Process(ctx context.Context, downloadID primitive.ObjectID) error {
	logger := log.With().Str("download_id", downloadID.Hex()).Logger()

	d, err := p.downloads.FindByID(ctx, downloadID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return backoff.Permanent(fmt.Errorf("download %s: %w", downloadID.Hex(), err))
		}
		return err
	}
	if d.Status == models.DownloadCompleted {
		logger.Debug().Msg("Download already completed")
		return nil
	}

	claimed, err := p.downloads.Claim(ctx, downloadID, p.lease)
	if err != nil {
		return err
	}
	if claimed == nil {
		return p.refused(ctx, downloadID)
	}

	// Final status writes outlive a cancelled attempt so that the lease is released.
	persistCtx := context.WithoutCancel(ctx)

	bm, err := p.bookmarks.FindByID(ctx, claimed.BookmarkID)
	if err != nil && !errors.Is(err, utils.ErrNotFound) {
		if merr := p.downloads.MarkFailed(persistCtx, downloadID); merr != nil {
			logger.Error().Err(merr).Msg("Failed to mark download as failed")
		}
		return err
	}
	if bm == nil || !IsSupportedURL(bm.URL) {
		logger.Info().Msg("Bookmark URL is not supported for downloads, removing download")
		metrics.DownloadsFinishedTotal.WithLabelValues("unsupported").Inc()
		if err := p.downloads.Delete(persistCtx, downloadID); err != nil && !errors.Is(err, utils.ErrNotFound) {
			return err
		}
		return nil
	}

	title, rel, size, err := p.fetch(ctx, bm.URL)
	if err != nil {
		logger.Error().Err(err).Str("url", bm.URL).Msg("An error has occurred while downloading video")
		metrics.DownloadsFinishedTotal.WithLabelValues("failed").Inc()
		if merr := p.downloads.MarkFailed(persistCtx, downloadID); merr != nil {
			logger.Error().Err(merr).Msg("Failed to mark download as failed")
		}
		return err
	}

	if err := p.downloads.MarkCompleted(persistCtx, downloadID, title, rel, size); err != nil {
		_ = p.storage.Remove(rel)
		return err
	}
	metrics.DownloadsFinishedTotal.WithLabelValues("completed").Inc()
	metrics.DownloadedBytesTotal.Add(float64(size))
	logger.Info().Str("file", rel).Int64("file_size", size).Msg("Video saved to file")
	return nil
}

// refused tells apart the claim refusals: a finished or removed record ends the
// job, a live lease makes it retry.
func (p *Processor) refused(ctx context.Context, downloadID primitive.ObjectID) error {
	d, err := p.downloads.FindByID(ctx, downloadID)
	if errors.Is(err, utils.ErrNotFound) {
		log.Info().Str("download_id", downloadID.Hex()).Msg("Download was removed, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	if d.Status == models.DownloadCompleted {
		log.Debug().Str("download_id", downloadID.Hex()).Msg("Download already completed")
		return nil
	}
	log.Info().Str("download_id", downloadID.Hex()).Msg("Download is being processed elsewhere, will check again")
	return ErrLeased
}

// fetch writes the video to a new file and removes it again on any failure.
func (p *Processor) fetch(ctx context.Context, url string) (string, string, int64, error) {
	f, rel, err := p.storage.Create()
	if err != nil {
		return "", "", 0, err
	}

	title, err := p.source.Fetch(ctx, url, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close video file: %w", cerr)
	}
	if err == nil {
		var size int64
		if size, err = p.fileSize(rel); err == nil {
			return title, rel, size, nil
		}
	}

	if rerr := p.storage.Remove(rel); rerr != nil {
		log.Error().Err(rerr).Str("file", rel).Msg("Failed to remove partial download")
	}
	return "", "", 0, err
}

func (p *Processor) fileSize(rel string) (int64, error) {
	path, err := p.storage.Path(rel)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return info.Size(), nil
}

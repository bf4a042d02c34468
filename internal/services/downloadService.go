package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bkmrks/internal/downloader"
	"bkmrks/internal/jobs"
	"bkmrks/internal/metrics"
	"bkmrks/internal/models"
	"bkmrks/internal/repositories"
	"bkmrks/internal/utils"
)

// JobScheduler hands work to the background workers.
type JobScheduler interface {
	Schedule(ctx context.Context, jobType string, payload interface{}) (jobs.Job, error)
}

type DownloadService interface {
	StartDownload(ctx context.Context, userID primitive.ObjectID, req models.StartDownloadRequest) (*models.Download, error)
	GetDownload(ctx context.Context, userID, downloadID primitive.ObjectID) (*models.Download, error)
	RetryFailed(ctx context.Context) (int, error)
	RecoverStale(ctx context.Context) (int, error)
}

type downloadServiceImpl struct {
	downloadRepo repositories.DownloadRepository
	bookmarkRepo repositories.BookmarkRepository
	userRepo     repositories.UserRepository
	scheduler    JobScheduler
	validator    *utils.Validator
}

func NewDownloadService(
	downloadRepo repositories.DownloadRepository,
	bookmarkRepo repositories.BookmarkRepository,
	userRepo repositories.UserRepository,
	scheduler JobScheduler,
) DownloadService {
	return &downloadServiceImpl{
		downloadRepo: downloadRepo,
		bookmarkRepo: bookmarkRepo,
		userRepo:     userRepo,
		scheduler:    scheduler,
		validator:    utils.NewValidator(),
	}
}

// checkQuota rejects the request when the user has no disk quota left.
func (s *downloadServiceImpl) checkQuota(ctx context.Context, user *models.User) error {
	total, err := s.downloadRepo.SumCompletedFileSize(ctx, user.ID)
	if err != nil {
		return err
	}
	used := BytesToMB(total)
	if float64(user.DiskQuota)-used <= 0 {
		log.Warn().Str("userID", user.ID.Hex()).Int("disk_quota", user.DiskQuota).Float64("disk_space_used", used).Msg("Disk quota exhausted")
		metrics.DownloadsRejectedTotal.Inc()
		return utils.NewValidationError("bookmark_id", fmt.Sprintf(
			"User '%s' has not enough disk quota to download files! Disk quota: %.1f Mb, disk space used: %.1f Mb.",
			user.Username, float64(user.DiskQuota), used,
		))
	}
	return nil
}

func (s *downloadServiceImpl) StartDownload(ctx context.Context, userID primitive.ObjectID, req models.StartDownloadRequest) (*models.Download, error) {
	log.Debug().Str("userID", userID.Hex()).Str("bookmark_id", req.BookmarkID).Msg("Attempting to start download")
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	notExists := utils.NewValidationError("bookmark_id", fmt.Sprintf("Bookmark with id=%s does not exist!", req.BookmarkID))
	bookmarkID, err := primitive.ObjectIDFromHex(req.BookmarkID)
	if err != nil {
		return nil, notExists
	}
	bm, err := s.bookmarkRepo.FindByID(ctx, bookmarkID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, notExists
		}
		return nil, err
	}
	if bm.UserID != userID {
		log.Warn().Str("userID", userID.Hex()).Str("bookmark_id", bookmarkID.Hex()).Msg("Download requested for another user's bookmark")
		return nil, utils.ErrForbidden
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkQuota(ctx, user); err != nil {
		return nil, err
	}

	d, created, err := s.downloadRepo.UpsertPending(ctx, bookmarkID, bm.Title)
	if err != nil {
		log.Error().Err(err).Str("bookmark_id", bookmarkID.Hex()).Msg("Failed to create download record")
		return nil, err
	}
	if !created {
		switch d.Status {
		case models.DownloadCompleted:
			log.Info().Str("download_id", d.ID.Hex()).Msg("Download already completed, not scheduling")
			return d, nil
		case models.DownloadFailed:
			if d, err = s.downloadRepo.ResetFailed(ctx, d.ID); err != nil {
				return nil, err
			}
		}
	}

	if err := s.schedule(ctx, d.ID); err != nil {
		return nil, err
	}
	metrics.DownloadsStartedTotal.Inc()
	log.Info().Str("download_id", d.ID.Hex()).Bool("created", created).Msg("Download scheduled")
	return d, nil
}

func (s *downloadServiceImpl) schedule(ctx context.Context, downloadID primitive.ObjectID) error {
	job, err := s.scheduler.Schedule(ctx, downloader.ProcessJobType, downloader.ProcessPayload{DownloadID: downloadID.Hex()})
	if err != nil {
		log.Error().Err(err).Str("download_id", downloadID.Hex()).Msg("Failed to schedule download job")
		return fmt.Errorf("failed to schedule download: %w", err)
	}
	log.Debug().Str("download_id", downloadID.Hex()).Str("job_id", job.ID.String()).Msg("Download job enqueued")
	return nil
}

func (s *downloadServiceImpl) GetDownload(ctx context.Context, userID, downloadID primitive.ObjectID) (*models.Download, error) {
	d, err := s.downloadRepo.FindByID(ctx, downloadID)
	if err != nil {
		return nil, err
	}
	bm, err := s.bookmarkRepo.FindByID(ctx, d.BookmarkID)
	if err != nil {
		return nil, err
	}
	if bm.UserID != userID {
		return nil, utils.ErrForbidden
	}
	return d, nil
}

// RetryFailed moves every Failed download back to Pending and schedules it.
func (s *downloadServiceImpl) RetryFailed(ctx context.Context) (int, error) {
	failed, err := s.downloadRepo.ListByStatus(ctx, models.DownloadFailed)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range failed {
		if _, err := s.downloadRepo.ResetFailed(ctx, d.ID); err != nil {
			if errors.Is(err, utils.ErrNotFound) {
				continue
			}
			return n, err
		}
		if err := s.schedule(ctx, d.ID); err != nil {
			return n, err
		}
		n++
	}
	log.Info().Int("count", n).Msg("Failed downloads rescheduled")
	return n, nil
}

// RecoverStale schedules every Pending download whose lease has ended. The
// worker that held the lease stopped before writing a final status and its job
// is gone with it.
func (s *downloadServiceImpl) RecoverStale(ctx context.Context) (int, error) {
	stale, err := s.downloadRepo.ListStale(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range stale {
		if err := s.schedule(ctx, d.ID); err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		log.Warn().Int("count", n).Msg("Stale downloads rescheduled")
	}
	return n, nil
}

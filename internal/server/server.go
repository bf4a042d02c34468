package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/time/rate"

	"bkmrks/internal/config"
	"bkmrks/internal/database"
	"bkmrks/internal/downloader"
	"bkmrks/internal/jobs"
	"bkmrks/internal/metadata"
	"bkmrks/internal/middlewares"
	"bkmrks/internal/repositories"
	"bkmrks/internal/services"
	"bkmrks/internal/worker"
)

const (
	totalUsersRefresh = 5 * time.Minute
	otpPurgeInterval  = time.Hour
	staleSweep        = 10 * time.Minute
)

type Server struct {
	cfg        config.Config
	httpServer *http.Server
	db         database.Service
	queue      jobs.Queue
	runner     *jobs.Runner
	runnerDone chan struct{}
	otpRepo    repositories.OTPRepository

	userService     services.UserService
	resetService    services.PasswordResetService
	authService     services.AuthService
	folderService   services.FolderService
	tagService      services.TagService
	bookmarkService services.BookmarkService
	summaryService  services.SummaryService
	downloadService services.DownloadService

	auth      *middlewares.Authenticator
	ownership *middlewares.Ownership
	limiter   *middlewares.RateLimiter
}

func NewServer(ctx context.Context, cfg config.Config) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}

	db, err := database.New(cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	queue, err := worker.OpenQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	storage := downloader.NewStorage(cfg.MediaRoot)
	userRepo := repositories.NewUserRepository(db)
	folderRepo := repositories.NewFolderRepository(db)
	tagRepo := repositories.NewTagRepository(db)
	bookmarkRepo := repositories.NewBookmarkRepository(db)
	downloadRepo := repositories.NewDownloadRepository(db, storage.OnDownloadDeleted)
	otpRepo := repositories.NewOTPRepository(db)

	var fetcher metadata.Fetcher = metadata.NewHTTPFetcher(cfg.MetadataTimeout)
	if cfg.MetadataFetcher == config.FetcherRod {
		fetcher = metadata.NewRodFetcher(cfg.MetadataTimeout)
	}

	summarizer, err := services.NewGeminiSummarizer(ctx, cfg.LLMAPIKey, cfg.LLMModel)
	if err != nil {
		return nil, err
	}
	if summarizer == nil {
		log.Warn().Msg("LLM_API_KEY is not set, bookmark summaries are disabled")
	}

	token := services.TokenConfig{Secret: []byte(cfg.JWTSecret), TTL: cfg.JWTTTL}
	email := services.NewEmailService(services.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
	})

	providers := services.InitializeGoth(services.OAuthConfig{
		GoogleClientID:       cfg.GoogleClientID,
		GoogleClientSecret:   cfg.GoogleClientSecret,
		FacebookClientID:     cfg.FacebookClientID,
		FacebookClientSecret: cfg.FacebookClientSecret,
		CallbackBase:         cfg.OAuthCallbackBase,
		SessionKey:           cfg.SessionKey,
		SecureCookies:        cfg.SecureCookies,
	})
	log.Info().Strs("providers", providers).Msg("OAuth providers configured")

	s := &Server{
		cfg:     cfg,
		db:      db,
		queue:   queue,
		otpRepo: otpRepo,

		userService:     services.NewUserService(userRepo, folderRepo, bookmarkRepo, downloadRepo, otpRepo, token),
		resetService:    services.NewPasswordResetService(userRepo, otpRepo, email),
		authService:     services.NewAuthService(userRepo, token),
		folderService:   services.NewFolderService(folderRepo, bookmarkRepo, userRepo),
		tagService:      services.NewTagService(tagRepo),
		bookmarkService: services.NewBookmarkService(bookmarkRepo, folderRepo, tagRepo, userRepo, downloadRepo, fetcher),
		summaryService:  services.NewSummaryService(bookmarkRepo, summarizer),
		downloadService: services.NewDownloadService(downloadRepo, bookmarkRepo, userRepo, jobs.NewScheduler(queue)),

		auth:      middlewares.NewAuthenticator(token.Secret),
		ownership: ownershipFor(bookmarkRepo, folderRepo, downloadRepo),
		limiter:   middlewares.NewRateLimiter(rate.Limit(3), 5),
	}

	if cfg.RunsEmbeddedWorker() {
		s.runner = worker.New(cfg, db, queue, os.Stderr)
		s.runnerDone = make(chan struct{})
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s, nil
}

func ownershipFor(bookmarks repositories.BookmarkRepository, folders repositories.FolderRepository, downloads repositories.DownloadRepository) *middlewares.Ownership {
	o := middlewares.NewOwnership()
	o.Register("bookmark", func(ctx context.Context, id primitive.ObjectID) (primitive.ObjectID, error) {
		bm, err := bookmarks.FindByID(ctx, id)
		if err != nil {
			return primitive.NilObjectID, err
		}
		return bm.UserID, nil
	})
	o.Register("folder", func(ctx context.Context, id primitive.ObjectID) (primitive.ObjectID, error) {
		f, err := folders.FindByID(ctx, id)
		if err != nil {
			return primitive.NilObjectID, err
		}
		return f.UserID, nil
	})
	o.Register("download", func(ctx context.Context, id primitive.ObjectID) (primitive.ObjectID, error) {
		d, err := downloads.FindByID(ctx, id)
		if err != nil {
			return primitive.NilObjectID, err
		}
		bm, err := bookmarks.FindByID(ctx, d.BookmarkID)
		if err != nil {
			return primitive.NilObjectID, err
		}
		return bm.UserID, nil
	})
	return o
}

// Start serves HTTP and runs the background loops until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	go s.limiter.CleanupVisitors(ctx)
	go services.UpdateTotalUsersPeriodically(ctx, s.userService, totalUsersRefresh)
	go s.purgeExpiredOTPs(ctx)
	go s.recoverStaleDownloads(ctx)
	if s.runner != nil {
		go func() {
			defer close(s.runnerDone)
			if err := s.runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Embedded job runner stopped")
			}
		}()
	}

	log.Info().Int("port", s.cfg.Port).Bool("embedded_worker", s.runner != nil).Msg("Starting server")
	return s.httpServer.ListenAndServe()
}

func (s *Server) purgeExpiredOTPs(ctx context.Context) {
	ticker := time.NewTicker(otpPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.otpRepo.DeleteExpired(ctx)
			if err != nil {
				log.Error().Err(err).Msg("Failed to purge expired OTPs")
				continue
			}
			log.Debug().Int64("deleted", n).Msg("Purged expired OTPs")
		}
	}
}

func (s *Server) recoverStaleDownloads(ctx context.Context) {
	ticker := time.NewTicker(staleSweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.downloadService.RecoverStale(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to reschedule stale downloads")
			}
		}
	}
}

// GracefulShutdown waits for SIGINT or SIGTERM, stops the HTTP server, calls
// cancel to stop the background loops, waits for in-flight jobs and closes the
// queue and database.
func (s *Server) GracefulShutdown(cancel context.CancelFunc, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Info().Msg("Shutting down gracefully, press Ctrl+C again to force")
	stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown with error")
	}
	cancel()
	if s.runnerDone != nil {
		<-s.runnerDone
	}

	if err := s.queue.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing job queue")
	}
	if err := s.db.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing database connection")
	}

	log.Info().Msg("Server exiting")
	done <- true
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// User Activity Metrics
	NewUsersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_new_users_total",
		Help: "Total number of new user registrations.",
	})
	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_login_attempts_total",
		Help: "Total number of login attempts (successful and failed).",
	}, []string{"status"}) // status: "success" or "failed"

	// Bookmarks
	BookmarkCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_bookmark_created_total",
		Help: "Total number of bookmarks created.",
	}, []string{"source"}) // source: "web", "telegram" or "import"
	FolderCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_folder_created_total",
		Help: "Total number of folders created.",
	})
	TagCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_tag_created_total",
		Help: "Total number of tags created.",
	})
	SummaryGeneratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_summary_generated_total",
		Help: "Total number of summaries generated.",
	})

	// Downloads
	DownloadsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_downloads_started_total",
		Help: "Total number of download requests that scheduled a job.",
	})
	DownloadsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_downloads_quota_rejected_total",
		Help: "Total number of download requests rejected by the disk quota.",
	})
	DownloadsFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_downloads_finished_total",
		Help: "Total number of download attempts by outcome.",
	}, []string{"outcome"}) // outcome: "completed", "failed" or "unsupported"
	DownloadedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_downloaded_bytes_total",
		Help: "Total number of bytes written by completed downloads.",
	})

	// Jobs
	JobRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_job_retries_total",
		Help: "Total number of job attempts rescheduled after a failure.",
	}, []string{"type"})
	JobsExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_jobs_exhausted_total",
		Help: "Total number of jobs dropped after a permanent error or the last retry.",
	}, []string{"type"})
	JobDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "app_job_duration_seconds",
		Help:    "Duration of job handler runs in seconds.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	}, []string{"type", "status"})
)

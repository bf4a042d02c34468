package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Scheduler is the producer side used by the API.
type Scheduler struct {
	queue Queue
}

func NewScheduler(queue Queue) *Scheduler {
	return &Scheduler{queue: queue}
}

// Schedule enqueues a job of jobType that is ready immediately.
func (s *Scheduler) Schedule(ctx context.Context, jobType string, payload interface{}) (Job, error) {
	job, err := NewJob(jobType, payload)
	if err != nil {
		return Job{}, err
	}
	if err := s.queue.Enqueue(ctx, job, time.Now()); err != nil {
		return Job{}, err
	}
	log.Debug().Str("job_id", job.ID.String()).Str("job_type", jobType).Msg("Job scheduled")
	return job, nil
}

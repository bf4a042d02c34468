package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"bkmrks/internal/metrics"
)

// Handler processes one job. Returning a backoff.Permanent error stops retries.
type Handler func(ctx context.Context, job Job) error

type registration struct {
	handler Handler
	policy  RetryPolicy
}

// Runner pulls jobs from a Queue with a fixed number of goroutines and
// reschedules failed ones according to each job type's RetryPolicy.
type Runner struct {
	queue       Queue
	concurrency int

	mu       sync.RWMutex
	handlers map[string]registration
}

func NewRunner(queue Queue, concurrency int) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		queue:       queue,
		concurrency: concurrency,
		handlers:    make(map[string]registration),
	}
}

func (r *Runner) Register(jobType string, handler Handler, policy RetryPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = registration{handler: handler, policy: policy}
}

// Run blocks until ctx is done and all in-flight jobs have returned.
func (r *Runner) Run(ctx context.Context) error {
	log.Info().Int("concurrency", r.concurrency).Msg("Job runner started")

	var wg sync.WaitGroup
	for i := 0; i < r.concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r.loop(ctx, worker)
		}(i)
	}
	wg.Wait()

	log.Info().Msg("Job runner stopped")
	return ctx.Err()
}

func (r *Runner) loop(ctx context.Context, worker int) {
	for {
		job, err := r.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
				return
			}
			log.Error().Err(err).Int("worker", worker).Msg("Failed to dequeue job")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		r.Process(ctx, job)
	}
}

// Process runs a single job and reschedules it on a retryable failure.
func (r *Runner) Process(ctx context.Context, job Job) {
	r.mu.RLock()
	reg, ok := r.handlers[job.Type]
	r.mu.RUnlock()

	logger := log.With().Str("job_id", job.ID.String()).Str("job_type", job.Type).Int("attempt", job.Attempt).Logger()
	if !ok {
		logger.Error().Msg("No handler registered for job type, dropping job")
		return
	}

	logger.Debug().Msg("Processing job")
	start := time.Now()
	err := r.safeCall(ctx, reg.handler, job)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.JobDurationSeconds.WithLabelValues(job.Type, status).Observe(time.Since(start).Seconds())

	if err == nil {
		logger.Info().Dur("took", time.Since(start)).Msg("Job finished")
		return
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		logger.Error().Err(permanent.Err).Msg("Job failed permanently")
		metrics.JobsExhaustedTotal.WithLabelValues(job.Type).Inc()
		return
	}

	job.Attempt++
	delay, ok := reg.policy.NextDelay(job.Attempt)
	if !ok {
		logger.Error().Err(err).Msg("Job failed, no retries left")
		metrics.JobsExhaustedTotal.WithLabelValues(job.Type).Inc()
		return
	}

	// Rescheduling must survive runner shutdown.
	enqueueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if qerr := r.queue.Enqueue(enqueueCtx, job, time.Now().Add(delay)); qerr != nil {
		logger.Error().Err(qerr).Msg("Failed to reschedule job")
		return
	}
	metrics.JobRetriesTotal.WithLabelValues(job.Type).Inc()
	logger.Warn().Err(err).Dur("retry_in", delay).Msg("Job failed, retry scheduled")
}

func (r *Runner) safeCall(ctx context.Context, h Handler, job Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job handler panicked: %v", p)
		}
	}()
	return h(ctx, job)
}

// Package jobs is a small delayed-job queue with a retrying runner. Queues are
// backed by Redis for multi-process deployments or Badger for a single process.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrQueueClosed = errors.New("jobs: queue closed")

type Job struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

func NewJob(jobType string, payload interface{}) (Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("failed to encode %s payload: %w", jobType, err)
	}
	return Job{
		ID:         uuid.New(),
		Type:       jobType,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the payload into v.
func (j Job) Decode(v interface{}) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", j.Type, err)
	}
	return nil
}

// Queue stores jobs until their ready time. Dequeue blocks until a ready job is
// claimed or ctx is done; a claimed job is removed and will not be handed out again.
type Queue interface {
	Enqueue(ctx context.Context, job Job, at time.Time) error
	Dequeue(ctx context.Context) (Job, error)
	Close() error
}

// pollUntil calls claim every interval until it yields a job.
func pollUntil(ctx context.Context, interval time.Duration, claim func(context.Context) (Job, bool, error)) (Job, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, ok, err := claim(ctx)
		if err != nil {
			return Job{}, err
		}
		if ok {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return Job{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

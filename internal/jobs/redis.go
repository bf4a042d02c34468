package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const defaultRedisKey = "bkmrks:jobs:scheduled"

// RedisQueue keeps jobs in a sorted set scored by ready time in unix milliseconds.
// ZREM decides which consumer owns a job, so any number of workers may poll.
type RedisQueue struct {
	client       *redis.Client
	key          string
	pollInterval time.Duration
}

func NewRedisQueue(ctx context.Context, addr, password string) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	log.Info().Str("addr", addr).Msg("Connected to Redis job queue")
	return &RedisQueue{client: client, key: defaultRedisKey, pollInterval: time.Second}, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job, at time.Time) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	if err := q.client.ZAdd(ctx, q.key, redis.Z{Score: float64(at.UnixMilli()), Member: data}).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (Job, error) {
	return pollUntil(ctx, q.pollInterval, q.claim)
}

func (q *RedisQueue) claim(ctx context.Context) (Job, bool, error) {
	members, err := q.client.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(time.Now().UnixMilli(), 10),
		Count: 1,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.ErrClosed) {
			return Job{}, false, ErrQueueClosed
		}
		return Job{}, false, fmt.Errorf("failed to read scheduled jobs: %w", err)
	}
	if len(members) == 0 {
		return Job{}, false, nil
	}

	removed, err := q.client.ZRem(ctx, q.key, members[0]).Result()
	if err != nil {
		return Job{}, false, fmt.Errorf("failed to claim job: %w", err)
	}
	if removed == 0 {
		// another consumer won
		return Job{}, false, nil
	}

	var job Job
	if err := json.Unmarshal([]byte(members[0]), &job); err != nil {
		log.Error().Err(err).Msg("Dropping undecodable job")
		return Job{}, false, nil
	}
	return job, true, nil
}

// Len reports the number of scheduled jobs.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.key).Result()
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

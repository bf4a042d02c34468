package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var jobPrefix = []byte("job:")

// BadgerQueue is an embedded queue. Keys sort by ready time, so the first key
// under the prefix is always the next job due.
type BadgerQueue struct {
	db           *badger.DB
	pollInterval time.Duration
}

func NewBadgerQueue(path string) (*BadgerQueue, error) {
	return OpenBadgerQueue(badger.DefaultOptions(path))
}

func OpenBadgerQueue(opts badger.Options) (*BadgerQueue, error) {
	opts.Logger = &badgerLogger{logger: log.With().Str("component", "badgerdb").Logger()}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db at %s: %w", opts.Dir, err)
	}
	log.Info().Str("path", opts.Dir).Bool("in_memory", opts.InMemory).Msg("BadgerDB job queue opened")
	return &BadgerQueue{db: db, pollInterval: 500 * time.Millisecond}, nil
}

// jobKey is job:{ready unix nanos, zero padded}:{id}.
func jobKey(job Job, at time.Time) []byte {
	return []byte(fmt.Sprintf("job:%020d:%s", at.UnixNano(), job.ID))
}

func readyAt(key []byte) (time.Time, error) {
	parts := strings.SplitN(string(key), ":", 3)
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("malformed job key %q", key)
	}
	nanos, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed job key %q: %w", key, err)
	}
	return time.Unix(0, nanos), nil
}

func (q *BadgerQueue) Enqueue(ctx context.Context, job Job, at time.Time) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	err = q.db.Update(func(txn *badger.Txn) error {
		return txn.Set(jobKey(job, at), data)
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}
	return nil
}

func (q *BadgerQueue) Dequeue(ctx context.Context) (Job, error) {
	return pollUntil(ctx, q.pollInterval, q.claim)
}

func (q *BadgerQueue) claim(ctx context.Context) (Job, bool, error) {
	var (
		job     Job
		claimed bool
	)
	err := q.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: jobPrefix, PrefetchValues: false})
		defer it.Close()

		it.Rewind()
		if !it.Valid() {
			return nil
		}
		item := it.Item()
		key := item.KeyCopy(nil)

		at, err := readyAt(key)
		if err != nil {
			return txn.Delete(key)
		}
		if at.After(time.Now()) {
			return nil
		}

		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(val, &job); err != nil {
			log.Error().Err(err).Str("key", string(key)).Msg("Dropping undecodable job")
			return txn.Delete(key)
		}
		claimed = true
		return txn.Delete(key)
	})
	switch {
	case errors.Is(err, badger.ErrConflict):
		// a concurrent consumer took the same key
		return Job{}, false, nil
	case errors.Is(err, badger.ErrDBClosed):
		return Job{}, false, ErrQueueClosed
	case err != nil:
		return Job{}, false, fmt.Errorf("failed to claim job: %w", err)
	}
	return job, claimed, nil
}

// Len reports the number of scheduled jobs.
func (q *BadgerQueue) Len() (int, error) {
	n := 0
	err := q.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: jobPrefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (q *BadgerQueue) Close() error {
	log.Info().Msg("Closing BadgerDB job queue")
	return q.db.Close()
}

// badgerLogger adapts zerolog to Badger's logger interface.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l *badgerLogger) Errorf(f string, v ...interface{})   { l.logger.Error().Msgf(f, v...) }
func (l *badgerLogger) Warningf(f string, v ...interface{}) { l.logger.Warn().Msgf(f, v...) }
func (l *badgerLogger) Infof(f string, v ...interface{})    { l.logger.Debug().Msgf(f, v...) }
func (l *badgerLogger) Debugf(f string, v ...interface{})   { l.logger.Trace().Msgf(f, v...) }

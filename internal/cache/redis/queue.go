package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sidepot/settler/internal/domain"
)

// defaultQueueMaxLen is the approximate maximum stream length enforced via
// XADD MAXLEN ~.
const defaultQueueMaxLen int64 = 10000

// JobQueue implements domain.JobQueue on a Redis stream with a consumer
// group. Entries survive process restart; unacked deliveries are picked back
// up through Reclaim.
type JobQueue struct {
	rdb      *redis.Client
	stream   string
	group    string
	consumer string
	maxLen   int64
}

// NewJobQueue creates the stream and consumer group if they do not exist and
// returns the queue handle.
func NewJobQueue(ctx context.Context, c *Client, stream, group, consumer string) (*JobQueue, error) {
	q := &JobQueue{
		rdb:      c.Underlying(),
		stream:   stream,
		group:    group,
		consumer: consumer,
		maxLen:   defaultQueueMaxLen,
	}

	err := q.rdb.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("redis: create queue group %s/%s: %w", stream, group, err)
	}
	return q, nil
}

// Enqueue appends a job to the stream.
func (q *JobQueue) Enqueue(ctx context.Context, job domain.ResolutionJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("redis: marshal job %s: %w", job.ID, err)
	}
	args := &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]interface{}{"job": data},
	}
	if err := q.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: enqueue job %s: %w", job.ID, err)
	}
	return nil
}

// Read pulls up to max undelivered jobs, blocking up to the given duration.
// It returns an empty slice (not an error) when nothing arrives.
func (q *JobQueue) Read(ctx context.Context, max int64, block time.Duration) ([]domain.QueuedJob, error) {
	res, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{q.stream, ">"},
		Count:    max,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: read queue %s: %w", q.stream, err)
	}

	var jobs []domain.QueuedJob
	for _, s := range res {
		jobs = append(jobs, q.decode(s.Messages)...)
	}
	return jobs, nil
}

// Ack marks a delivery as processed.
func (q *JobQueue) Ack(ctx context.Context, streamID string) error {
	if err := q.rdb.XAck(ctx, q.stream, q.group, streamID).Err(); err != nil {
		return fmt.Errorf("redis: ack %s: %w", streamID, err)
	}
	return nil
}

// Reclaim transfers deliveries that have been pending longer than minIdle to
// this consumer, typically ones orphaned by a crashed process.
func (q *JobQueue) Reclaim(ctx context.Context, minIdle time.Duration, max int64) ([]domain.QueuedJob, error) {
	msgs, _, err := q.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: q.consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    max,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: reclaim queue %s: %w", q.stream, err)
	}
	return q.decode(msgs), nil
}

// decode converts stream messages into QueuedJobs. Entries whose payload is
// missing or unreadable are returned with a zero Job so the worker can ack
// them as permanently failed instead of leaving them pending forever.
func (q *JobQueue) decode(msgs []redis.XMessage) []domain.QueuedJob {
	var jobs []domain.QueuedJob
	for _, msg := range msgs {
		qj := domain.QueuedJob{StreamID: msg.ID}

		var data []byte
		switch v := msg.Values["job"].(type) {
		case string:
			data = []byte(v)
		case []byte:
			data = v
		}
		if data != nil {
			_ = json.Unmarshal(data, &qj.Job)
		}
		jobs = append(jobs, qj)
	}
	return jobs
}

// Compile-time interface check.
var _ domain.JobQueue = (*JobQueue)(nil)

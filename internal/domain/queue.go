package domain

import (
	"context"
	"time"
)

// JobKind selects which conditional mutation a resolution job applies.
type JobKind string

const (
	JobSetWinner JobKind = "set_winner"
	JobWash      JobKind = "wash"
)

// ResolutionJob is one queued winner/void mutation. Jobs are keyed by wager
// id; the conditional update on the wager row, not queue ordering, guarantees
// that a SetWinner and a Wash for the same wager cannot both apply.
type ResolutionJob struct {
	ID           string         `json:"id"`
	WagerID      string         `json:"wagerId"`
	Kind         JobKind        `json:"kind"`
	Choice       string         `json:"choice,omitempty"`
	Explanation  string         `json:"explanation,omitempty"`
	HistoryEvent string         `json:"historyEvent"`
	Detail       map[string]any `json:"detail,omitempty"`
	EnqueuedAt   time.Time      `json:"enqueuedAt"`
}

// QueuedJob is a job pulled off the queue together with its delivery handle.
type QueuedJob struct {
	StreamID string
	Job      ResolutionJob
}

// JobQueue is a durable queue of resolution jobs that survives process
// restart. Read blocks up to the given duration; Ack removes a delivered job.
type JobQueue interface {
	Enqueue(ctx context.Context, job ResolutionJob) error
	Read(ctx context.Context, max int64, block time.Duration) ([]QueuedJob, error)
	Ack(ctx context.Context, streamID string) error
	// Reclaim re-delivers jobs that were read but never acked (for example by
	// a previous process that crashed mid-flight).
	Reclaim(ctx context.Context, minIdle time.Duration, max int64) ([]QueuedJob, error)
}

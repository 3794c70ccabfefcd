package resolution

import (
	"context"
	"log/slog"
	"time"

	"github.com/sidepot/settler/internal/domain"
)

const (
	readBatch    = 16
	readBlock    = 5 * time.Second
	reclaimIdle  = time.Minute
	reclaimBatch = int64(256)
)

// Worker drains the resolution queue. Transient store failures are retried
// with exponential backoff; jobs that exhaust their attempts, or that are
// malformed, are logged and dropped. Per-wager ordering is irrelevant here:
// the conditional updates make competing mutations mutually exclusive.
type Worker struct {
	queue       domain.JobQueue
	resolver    *Resolver
	logger      *slog.Logger
	maxAttempts int
	baseBackoff time.Duration
}

// NewWorker creates a queue worker. maxAttempts <= 0 defaults to 5 and
// baseBackoff <= 0 to 500ms.
func NewWorker(queue domain.JobQueue, resolver *Resolver, logger *slog.Logger, maxAttempts int, baseBackoff time.Duration) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if baseBackoff <= 0 {
		baseBackoff = 500 * time.Millisecond
	}
	return &Worker{
		queue:       queue,
		resolver:    resolver,
		logger:      logger.With(slog.String("component", "resolution_worker")),
		maxAttempts: maxAttempts,
		baseBackoff: baseBackoff,
	}
}

// Run processes jobs until ctx is cancelled. On start it reclaims deliveries
// orphaned by a previous process.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("resolution worker started")
	defer w.logger.Info("resolution worker stopped")

	if jobs, err := w.queue.Reclaim(ctx, reclaimIdle, reclaimBatch); err != nil {
		w.logger.Warn("reclaim failed", slog.String("error", err.Error()))
	} else {
		for _, qj := range jobs {
			w.process(ctx, qj)
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		jobs, err := w.queue.Read(ctx, readBatch, readBlock)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Warn("queue read failed", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.baseBackoff):
			}
			continue
		}

		for _, qj := range jobs {
			w.process(ctx, qj)
		}
	}
}

// process applies one delivery. The job stays unacked (and reclaimable) only
// when the context ends mid-retry; every other outcome acks it.
func (w *Worker) process(ctx context.Context, qj domain.QueuedJob) {
	job := qj.Job
	if job.WagerID == "" || (job.Kind != domain.JobSetWinner && job.Kind != domain.JobWash) {
		w.logger.Error("dropping malformed job",
			slog.String("stream_id", qj.StreamID),
			slog.String("kind", string(job.Kind)),
		)
		w.ack(ctx, qj.StreamID)
		return
	}

	for attempt := 0; attempt < w.maxAttempts; attempt++ {
		err := w.resolver.Apply(ctx, job)
		if err == nil {
			w.ack(ctx, qj.StreamID)
			return
		}
		if ctx.Err() != nil {
			return
		}

		w.logger.Warn("job attempt failed",
			slog.String("wager_id", job.WagerID),
			slog.String("kind", string(job.Kind)),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.baseBackoff << attempt):
		}
	}

	w.logger.Error("dropping job after exhausting retries",
		slog.String("wager_id", job.WagerID),
		slog.String("kind", string(job.Kind)),
		slog.Int("attempts", w.maxAttempts),
	)
	w.ack(ctx, qj.StreamID)
}

func (w *Worker) ack(ctx context.Context, streamID string) {
	if err := w.queue.Ack(ctx, streamID); err != nil {
		w.logger.Warn("ack failed",
			slog.String("stream_id", streamID),
			slog.String("error", err.Error()),
		)
	}
}

// Package resolution applies the terminal wager mutations. Both the direct
// path and the queue worker funnel through the same conditional updates, so a
// wager settles at most once no matter how many evaluation triggers race.
package resolution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sidepot/settler/internal/domain"
)

// ExecMode selects how mutations reach the store.
type ExecMode int

const (
	// Direct applies the conditional update inline; the caller sees the
	// store error, if any.
	Direct ExecMode = iota
	// Queued hands the mutation to the durable job queue and reports
	// success once the job is accepted.
	Queued
)

// Announcer receives best-effort resolution announcements.
type Announcer interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Resolver owns the winner/void mutation pipeline.
type Resolver struct {
	wagers    domain.WagerStore
	history   domain.HistoryStore
	queue     domain.JobQueue
	announcer Announcer
	mode      ExecMode
	logger    *slog.Logger
}

// New creates a Resolver. queue may be nil when mode is Direct; announcer may
// always be nil.
func New(wagers domain.WagerStore, history domain.HistoryStore, queue domain.JobQueue, announcer Announcer, mode ExecMode, logger *slog.Logger) *Resolver {
	return &Resolver{
		wagers:    wagers,
		history:   history,
		queue:     queue,
		announcer: announcer,
		mode:      mode,
		logger:    logger.With(slog.String("component", "resolver")),
	}
}

// Mode returns the configured execution mode.
func (r *Resolver) Mode() ExecMode { return r.mode }

// SetWinner resolves the wager to the given choice. In queued mode the
// mutation is accepted optimistically; the conditional update in the worker
// still guarantees at-most-once settlement.
func (r *Resolver) SetWinner(ctx context.Context, wagerID, choice string, detail map[string]any) error {
	job := domain.ResolutionJob{
		ID:           uuid.New().String(),
		WagerID:      wagerID,
		Kind:         domain.JobSetWinner,
		Choice:       choice,
		HistoryEvent: domain.HistoryResolved,
		Detail:       detail,
		EnqueuedAt:   time.Now(),
	}
	if r.mode == Queued {
		return r.enqueue(ctx, job)
	}
	return r.Apply(ctx, job)
}

// Wash voids the wager with a user-visible explanation.
func (r *Resolver) Wash(ctx context.Context, wagerID, explanation string, detail map[string]any) error {
	job := domain.ResolutionJob{
		ID:           uuid.New().String(),
		WagerID:      wagerID,
		Kind:         domain.JobWash,
		Explanation:  explanation,
		HistoryEvent: domain.HistoryWashed,
		Detail:       detail,
		EnqueuedAt:   time.Now(),
	}
	if r.mode == Queued {
		return r.enqueue(ctx, job)
	}
	return r.Apply(ctx, job)
}

func (r *Resolver) enqueue(ctx context.Context, job domain.ResolutionJob) error {
	if err := r.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("resolution: enqueue %s for wager %s: %w", job.Kind, job.WagerID, err)
	}
	r.logger.Debug("mutation queued",
		slog.String("wager_id", job.WagerID),
		slog.String("kind", string(job.Kind)),
	)
	return nil
}

// Apply executes the job's conditional mutation. A zero-row update means a
// prior attempt (possibly a concurrent one, possibly the competing mutation
// kind) already settled the wager; that is success, and no history is
// appended for it. History and announcements happen only on a verified
// change.
func (r *Resolver) Apply(ctx context.Context, job domain.ResolutionJob) error {
	now := time.Now()

	var changed bool
	var err error
	switch job.Kind {
	case domain.JobSetWinner:
		changed, err = r.wagers.SetWinner(ctx, job.WagerID, job.Choice, now)
	case domain.JobWash:
		changed, err = r.wagers.Wash(ctx, job.WagerID, now)
	default:
		return fmt.Errorf("resolution: unknown job kind %q", job.Kind)
	}
	if err != nil {
		return fmt.Errorf("resolution: apply %s for wager %s: %w", job.Kind, job.WagerID, err)
	}
	if !changed {
		r.logger.Debug("mutation was a no-op, wager already settled",
			slog.String("wager_id", job.WagerID),
			slog.String("kind", string(job.Kind)),
		)
		return nil
	}

	r.appendHistory(ctx, job)
	r.announce(ctx, job)
	return nil
}

// appendHistory records the lifecycle event. The wager row is the source of
// truth; a history failure after a verified change is logged, not surfaced,
// since retrying the mutation would no-op and never rewrite it.
func (r *Resolver) appendHistory(ctx context.Context, job domain.ResolutionJob) {
	detail := make(map[string]any, len(job.Detail)+2)
	for k, v := range job.Detail {
		detail[k] = v
	}
	if job.Choice != "" {
		detail["winningChoice"] = job.Choice
	}
	if job.Explanation != "" {
		detail["explanation"] = job.Explanation
	}

	entry := domain.HistoryEntry{
		WagerID:   job.WagerID,
		EventType: job.HistoryEvent,
		Detail:    detail,
	}
	if err := r.history.Append(ctx, entry); err != nil {
		r.logger.Error("history append failed",
			slog.String("wager_id", job.WagerID),
			slog.String("event", job.HistoryEvent),
			slog.String("error", err.Error()),
		)
	}
}

// announce is a best-effort side channel; failures never affect wager state.
func (r *Resolver) announce(ctx context.Context, job domain.ResolutionJob) {
	if r.announcer == nil {
		return
	}

	var title, msg string
	switch job.Kind {
	case domain.JobSetWinner:
		title = "Wager resolved"
		msg = fmt.Sprintf("wager %s resolved to %q", job.WagerID, job.Choice)
	case domain.JobWash:
		title = "Wager washed"
		msg = fmt.Sprintf("wager %s washed: %s", job.WagerID, job.Explanation)
	}

	if err := r.announcer.Notify(ctx, job.HistoryEvent, title, msg); err != nil {
		r.logger.Warn("announcement failed",
			slog.String("wager_id", job.WagerID),
			slog.String("error", err.Error()),
		)
	}
}

package modes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sidepot/settler/internal/domain"
	"github.com/sidepot/settler/internal/resolution"
)

// LiveInfoFunc produces the display snapshot for a wager; concrete modes
// bind their own implementation so the base can freeze it into history.
type LiveInfoFunc func(ctx context.Context, w domain.Wager) domain.LiveInfo

// Base supplies the shared, non-overridable operations every validator
// lifecycle builds on: config access, baseline capture, and the resolve/wash
// pipeline. Concrete modes embed it and add only their settlement rule.
type Base struct {
	modeKey   string
	league    domain.League
	wagers    domain.WagerStore
	history   domain.HistoryStore
	baselines domain.BaselineCache
	games     domain.GameSource
	resolver  *resolution.Resolver
	logger    *slog.Logger
	info      LiveInfoFunc
}

// NewBase assembles the shared validator plumbing.
func NewBase(modeKey string, league domain.League, wagers domain.WagerStore, history domain.HistoryStore, baselines domain.BaselineCache, games domain.GameSource, resolver *resolution.Resolver, logger *slog.Logger) Base {
	return Base{
		modeKey:   modeKey,
		league:    league,
		wagers:    wagers,
		history:   history,
		baselines: baselines,
		games:     games,
		resolver:  resolver,
		logger: logger.With(
			slog.String("component", "validator"),
			slog.String("mode", modeKey),
			slog.String("league", string(league)),
		),
	}
}

// bindLiveInfo registers the concrete mode's snapshot producer.
func (b *Base) bindLiveInfo(fn LiveInfoFunc) { b.info = fn }

func (b *Base) ModeKey() string       { return b.modeKey }
func (b *Base) League() domain.League { return b.league }
func (b *Base) log() *slog.Logger     { return b.logger }

// Config returns the wager's typed config, or nil when the wager belongs to
// another mode or its stored document did not parse. Nothing escapes this
// boundary as a panic or error; a nil return means "unsatisfiable config".
func (b *Base) Config(w domain.Wager) domain.ModeConfig {
	if w.ModeKey != b.modeKey || w.Config == nil {
		return nil
	}
	if w.Config.ModeKey() != b.modeKey {
		return nil
	}
	return w.Config
}

// ConfigByID loads the wager and returns its typed config; nil on absence or
// mismatch.
func (b *Base) ConfigByID(ctx context.Context, id string) domain.ModeConfig {
	w, err := b.wagers.Get(ctx, id)
	if err != nil {
		b.logger.Debug("config lookup failed",
			slog.String("wager_id", id),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return b.Config(w)
}

// ListPending returns the mode's pending wagers, optionally narrowed to one
// game.
func (b *Base) ListPending(ctx context.Context, f domain.PendingFilter) ([]domain.Wager, error) {
	return b.wagers.ListPending(ctx, b.modeKey, b.league, f)
}

// Game returns the latest document for a game in this validator's league.
func (b *Base) Game(ctx context.Context, gameID string) (domain.GameDoc, error) {
	return b.games.Game(ctx, b.league, gameID)
}

// CaptureBaseline stores the snapshot unless one already exists; re-invoking
// capture is a no-op after the first, since fairness depends on the original
// capture instant. A fresh capture is recorded in history.
func (b *Base) CaptureBaseline(ctx context.Context, wagerID string, v any) (bool, error) {
	created, err := b.baselines.PutNX(ctx, wagerID, v)
	if err != nil {
		// Not retried here: the startup reconciliation pass and lazy capture
		// on the next evaluation will try again.
		return false, fmt.Errorf("capture baseline %s: %w", wagerID, err)
	}
	if !created {
		return false, nil
	}

	entry := domain.HistoryEntry{
		WagerID:   wagerID,
		EventType: domain.HistoryBaselineCaptured,
		Detail:    map[string]any{"baseline": v, "capturedAt": time.Now().UTC()},
	}
	if err := b.history.Append(ctx, entry); err != nil {
		b.logger.Warn("baseline history append failed",
			slog.String("wager_id", wagerID),
			slog.String("error", err.Error()),
		)
	}
	return true, nil
}

// Baseline reads the wager's snapshot into dest. A backend failure counts as
// "no baseline yet" and triggers re-capture upstream.
func (b *Base) Baseline(ctx context.Context, wagerID string, dest any) bool {
	ok, err := b.baselines.Get(ctx, wagerID, dest)
	if err != nil {
		b.logger.Warn("baseline read failed, treating as absent",
			slog.String("wager_id", wagerID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return ok
}

// ClearBaseline removes the snapshot; failures are logged and ignored since
// the cache TTL is the real leak guard.
func (b *Base) ClearBaseline(ctx context.Context, wagerID string) {
	if err := b.baselines.Delete(ctx, wagerID); err != nil {
		b.logger.Warn("baseline delete failed",
			slog.String("wager_id", wagerID),
			slog.String("error", err.Error()),
		)
	}
}

// WashIfFinalAtCapture handles the approve-after-game-ended race: a wager
// entering pending against a game that is already over is voided before any
// baseline capture. It reports whether the wager was washed.
func (b *Base) WashIfFinalAtCapture(ctx context.Context, w domain.Wager) (bool, error) {
	doc, err := b.games.Game(ctx, b.league, w.GameID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// No document seen yet, so the game cannot have ended on our
			// watch; proceed with the pending hook.
			return false, nil
		}
		return false, err
	}
	if !doc.Status.Terminal() {
		return false, nil
	}

	err = b.Wash(ctx, w, "game was already over when the wager locked", map[string]any{
		"gameStatus": string(doc.Status),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// ResolveWinner settles the wager to the given choice through the configured
// execution mode, then freezes a display snapshot and clears the baseline —
// both regardless of execution mode, since they are idempotent and harmless
// even when a queued job ultimately no-ops. The snapshot is read before the
// baseline clear: starting-now and race modes need the baseline to render
// the final metric.
func (b *Base) ResolveWinner(ctx context.Context, w domain.Wager, choice string, detail map[string]any) error {
	if err := b.resolver.SetWinner(ctx, w.ID, choice, detail); err != nil {
		return err
	}
	info := b.closingInfo(ctx, w)
	b.ClearBaseline(ctx, w.ID)
	b.freezeSnapshot(w, info)
	b.logger.Info("wager resolved",
		slog.String("wager_id", w.ID),
		slog.String("choice", choice),
	)
	return nil
}

// Wash voids the wager with a user-visible explanation, then freezes a
// display snapshot and clears the baseline, same as ResolveWinner.
func (b *Base) Wash(ctx context.Context, w domain.Wager, explanation string, detail map[string]any) error {
	if err := b.resolver.Wash(ctx, w.ID, explanation, detail); err != nil {
		return err
	}
	info := b.closingInfo(ctx, w)
	b.ClearBaseline(ctx, w.ID)
	b.freezeSnapshot(w, info)
	b.logger.Info("wager washed",
		slog.String("wager_id", w.ID),
		slog.String("explanation", explanation),
	)
	return nil
}

// closingInfo reads the wager's display snapshot while the baseline still
// exists. A panicking producer degrades to an unavailable snapshot rather
// than reaching the settlement path.
func (b *Base) closingInfo(ctx context.Context, w domain.Wager) (info domain.LiveInfo) {
	if b.info == nil {
		return domain.Unavailable("no snapshot producer")
	}
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("snapshot producer panicked", slog.Any("panic", r))
			info = domain.Unavailable("snapshot failed")
		}
	}()
	return b.info(ctx, w)
}

// freezeSnapshot records the already-read snapshot as a detached task with
// its own error boundary. The critical path never waits on it and its
// failure can never affect wager state.
func (b *Base) freezeSnapshot(w domain.Wager, info domain.LiveInfo) {
	if b.info == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("snapshot task panicked", slog.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		entry := domain.HistoryEntry{
			WagerID:   w.ID,
			EventType: domain.HistorySnapshot,
			Detail:    map[string]any{"info": info},
		}
		if err := b.history.Append(ctx, entry); err != nil {
			b.logger.Warn("snapshot append failed",
				slog.String("wager_id", w.ID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

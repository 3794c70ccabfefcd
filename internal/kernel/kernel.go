// Package kernel runs the per-league event loop: it owns the feed
// subscription and the wager row-change subscription for one league, dedupes
// feed events by content signature, and dispatches to every validator
// registered for the league.
package kernel

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sidepot/settler/internal/domain"
	"github.com/sidepot/settler/internal/modes"
)

// Kernel owns the two live input channels for one league. One instance per
// league; the dedup map is never shared across leagues.
type Kernel struct {
	league   domain.League
	feed     domain.FeedProvider
	changes  domain.WagerListener
	wagers   domain.WagerStore
	registry *modes.Registry
	logger   *slog.Logger

	mu           sync.Mutex
	started      bool
	unsubFeed    func()
	unsubChanges func()

	// sigMu guards lastSig separately: replay delivers into handleFeed
	// synchronously while Start still holds mu.
	sigMu   sync.Mutex
	lastSig map[string]string // gameID -> last forwarded signature
}

// New creates a kernel for the league.
func New(league domain.League, feed domain.FeedProvider, changes domain.WagerListener, wagers domain.WagerStore, registry *modes.Registry, logger *slog.Logger) *Kernel {
	return &Kernel{
		league:   league,
		feed:     feed,
		changes:  changes,
		wagers:   wagers,
		registry: registry,
		logger: logger.With(
			slog.String("component", "kernel"),
			slog.String("league", string(league)),
		),
		lastSig: make(map[string]string),
	}
}

// Start subscribes both channels and, once they are live, runs every
// validator's ready hook so it can reconcile state missed before process
// start. Calling Start on a started kernel is a no-op.
func (k *Kernel) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.started {
		return nil
	}

	validators := k.registry.ForLeague(k.league)
	modeKeys := make([]string, 0, len(validators))
	for _, v := range validators {
		modeKeys = append(modeKeys, v.ModeKey())
	}

	unsubChanges, err := k.changes.Subscribe(ctx, k.league, modeKeys, k.handleChange)
	if err != nil {
		return err
	}

	// Replay runs synchronously inside Subscribe, seeding the dedup map and
	// triggering a first evaluation pass for every cached game.
	unsubFeed, err := k.feed.Subscribe(ctx, k.handleFeed, true)
	if err != nil {
		unsubChanges()
		return err
	}

	k.unsubChanges = unsubChanges
	k.unsubFeed = unsubFeed
	k.started = true

	for _, v := range validators {
		k.safely(ctx, v.ModeKey(), "ready", func() error {
			return v.OnKernelReady(ctx)
		})
	}

	k.logger.Info("kernel started", slog.Int("validators", len(validators)))
	return nil
}

// Stop unsubscribes both channels and clears the dedup map. It is safe to
// call repeatedly or before Start.
func (k *Kernel) Stop() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.unsubFeed != nil {
		k.unsubFeed()
		k.unsubFeed = nil
	}
	if k.unsubChanges != nil {
		k.unsubChanges()
		k.unsubChanges = nil
	}
	k.sigMu.Lock()
	k.lastSig = make(map[string]string)
	k.sigMu.Unlock()
	if k.started {
		k.started = false
		k.logger.Info("kernel stopped")
	}
}

// handleFeed drops events whose signature matches the last forwarded one for
// the game, and fans changed events to every registered validator. Per game,
// forwarded events form a dedup'd sub-stream of the raw feed; no ordering is
// promised across games or against the change channel.
func (k *Kernel) handleFeed(ctx context.Context, ev domain.FeedEvent) {
	k.sigMu.Lock()
	if k.lastSig[ev.GameID] == ev.Signature {
		k.sigMu.Unlock()
		k.logger.Debug("unchanged update dropped", slog.String("game_id", ev.GameID))
		return
	}
	k.lastSig[ev.GameID] = ev.Signature
	k.sigMu.Unlock()

	for _, v := range k.registry.ForLeague(k.league) {
		v := v
		k.safely(ctx, v.ModeKey(), "game update", func() error {
			return v.OnGameUpdate(ctx, ev.GameID)
		})
	}
}

// handleChange routes a wager row change to its mode's validator.
func (k *Kernel) handleChange(ctx context.Context, ch domain.WagerChange) {
	v, ok := k.registry.Get(ch.ModeKey, k.league)
	if !ok {
		return
	}

	switch {
	case ch.BecamePending():
		w, err := k.wagers.Get(ctx, ch.ID)
		if err != nil {
			k.logger.Warn("pending wager fetch failed",
				slog.String("wager_id", ch.ID),
				slog.String("error", err.Error()),
			)
			return
		}

		washed := false
		k.safely(ctx, ch.ModeKey, "final-at-capture check", func() error {
			var err error
			washed, err = v.WashIfFinalAtCapture(ctx, w)
			return err
		})
		if washed {
			return
		}
		k.safely(ctx, ch.ModeKey, "wager pending", func() error {
			return v.OnWagerPending(ctx, w)
		})

	case ch.Op == domain.ChangeDelete, ch.LeftPending(), ch.WinningChoice != nil:
		// Best-effort cleanup; the cache TTL catches anything missed here.
		v.ClearBaseline(ctx, ch.ID)
	}
}

// safely runs one validator hook inside its own error boundary so a
// misbehaving mode cannot take down the kernel loop.
func (k *Kernel) safely(ctx context.Context, modeKey, op string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			k.logger.Error("validator panicked",
				slog.String("mode", modeKey),
				slog.String("op", op),
				slog.Any("panic", r),
			)
		}
	}()

	if err := fn(); err != nil && ctx.Err() == nil {
		k.logger.Warn("validator hook failed",
			slog.String("mode", modeKey),
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
	}
}

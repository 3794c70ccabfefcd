// Package app provides the top-level application lifecycle for the settlement
// runtime. It wires together all dependencies (stores, caches, feeds,
// validators, kernels, and notifications) and supervises the per-league
// goroutines until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sidepot/settler/internal/config"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the feeds,
// kernels, and (in queued mode) the resolution worker, and blocks until the
// context is cancelled. On return the caller should invoke Close.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting settlement runtime",
		slog.String("resolution_mode", a.cfg.Resolution.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, gctx := errgroup.WithContext(ctx)

	// Feeds reconnect internally and only return on context cancellation.
	for league, f := range deps.Feeds {
		league, f := league, f
		g.Go(func() error {
			if err := f.Run(gctx); err != nil && gctx.Err() == nil {
				return fmt.Errorf("app: %s feed: %w", league, err)
			}
			return nil
		})
	}

	if strings.ToLower(a.cfg.Resolution.Mode) == "queued" {
		g.Go(func() error {
			if err := deps.Worker.Run(gctx); err != nil && gctx.Err() == nil {
				return fmt.Errorf("app: resolution worker: %w", err)
			}
			return nil
		})
	}

	// Kernels subscribe to feed and change streams; start them after the
	// supervised goroutines exist so replayed documents have somewhere to go.
	for league, k := range deps.Kernels {
		if err := k.Start(gctx); err != nil {
			return fmt.Errorf("app: start %s kernel: %w", league, err)
		}
		a.logger.InfoContext(ctx, "kernel started", slog.String("league", string(league)))
	}
	defer func() {
		for _, k := range deps.Kernels {
			k.Stop()
		}
	}()

	return g.Wait()
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down settlement runtime")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	rediscache "github.com/sidepot/settler/internal/cache/redis"
	"github.com/sidepot/settler/internal/config"
	"github.com/sidepot/settler/internal/domain"
	"github.com/sidepot/settler/internal/feed"
	"github.com/sidepot/settler/internal/kernel"
	"github.com/sidepot/settler/internal/modes"
	"github.com/sidepot/settler/internal/notify"
	"github.com/sidepot/settler/internal/resolution"
	"github.com/sidepot/settler/internal/store/postgres"
)

// Dependencies bundles everything the runtime needs to operate. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	WagerStore   domain.WagerStore
	HistoryStore domain.HistoryStore
	Changes      domain.WagerListener

	// Caches and queue
	GameCache domain.GameSource
	JobQueue  domain.JobQueue

	// Settlement
	Resolver *resolution.Resolver
	Worker   *resolution.Worker
	Registry *modes.Registry

	// Per-league runtime
	Feeds   map[domain.League]*feed.WSFeed
	Kernels map[domain.League]*kernel.Kernel

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.WagerStore = postgres.NewWagerStore(pool)
	deps.HistoryStore = postgres.NewHistoryStore(pool)
	deps.Changes = postgres.NewWagerListener(pool, logger)

	// --- Redis ---
	redisClient, err := rediscache.New(ctx, rediscache.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	gameCache := rediscache.NewGameCache(redisClient)
	deps.GameCache = gameCache

	queue, err := rediscache.NewJobQueue(ctx, redisClient,
		cfg.Resolution.Stream,
		cfg.Resolution.Group,
		cfg.Resolution.Consumer,
	)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: job queue: %w", err)
	}
	deps.JobQueue = queue

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Settlement ---
	execMode := resolution.Direct
	if strings.ToLower(cfg.Resolution.Mode) == "queued" {
		execMode = resolution.Queued
	}
	deps.Resolver = resolution.New(
		deps.WagerStore,
		deps.HistoryStore,
		deps.JobQueue,
		deps.Notifier,
		execMode,
		logger,
	)
	deps.Worker = resolution.NewWorker(
		deps.JobQueue,
		deps.Resolver,
		logger,
		cfg.Resolution.MaxAttempts,
		cfg.Resolution.BaseBackoff.Duration,
	)

	// --- Validators, feeds, and kernels per league ---
	statBaselines := rediscache.NewBaselineCache(redisClient, domain.ModeStatLine, cfg.Baseline.TTL.Duration)
	raceBaselines := rediscache.NewBaselineCache(redisClient, domain.ModeRaceTo, cfg.Baseline.TTL.Duration)

	deps.Registry = modes.NewRegistry()
	deps.Feeds = make(map[domain.League]*feed.WSFeed)
	deps.Kernels = make(map[domain.League]*kernel.Kernel)

	for name, url := range cfg.Feeds.URLs() {
		league, err := domain.ParseLeague(name)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: feeds: %w", err)
		}

		deps.Registry.Register(modes.NewStatLine(
			league, deps.WagerStore, deps.HistoryStore, statBaselines, gameCache, deps.Resolver, logger,
		))
		deps.Registry.Register(modes.NewRaceTo(
			league, deps.WagerStore, deps.HistoryStore, raceBaselines, gameCache, deps.Resolver, logger,
		))

		f := feed.NewWSFeed(url, league, gameCache, logger)
		deps.Feeds[league] = f
		deps.Kernels[league] = kernel.New(league, f, deps.Changes, deps.WagerStore, deps.Registry, logger)
	}

	return deps, cleanup, nil
}

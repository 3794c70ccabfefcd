package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sidepot/settler/internal/domain"
)

// wagerChannel is the pg_notify channel fed by the trigger installed in the
// migrations.
const wagerChannel = "wager_changes"

// reconnectDelay is how long a subscription waits before re-acquiring a
// connection after a LISTEN failure.
const reconnectDelay = 2 * time.Second

// WagerListener implements domain.WagerListener on top of PostgreSQL
// LISTEN/NOTIFY. Each subscription holds one dedicated connection from the
// pool and re-acquires it on failure; notifications published while the
// connection is down are lost, which the kernels tolerate via their startup
// reconciliation pass.
type WagerListener struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewWagerListener creates a WagerListener backed by the given pool.
func NewWagerListener(pool *pgxpool.Pool, logger *slog.Logger) *WagerListener {
	return &WagerListener{
		pool:   pool,
		logger: logger.With(slog.String("component", "wager_listener")),
	}
}

// Subscribe starts delivering wager changes for the league, filtered to the
// given mode keys. It verifies the first LISTEN synchronously so callers know
// the channel is live before relying on it.
func (l *WagerListener) Subscribe(ctx context.Context, league domain.League, modeKeys []string, fn domain.WagerChangeHandler) (func(), error) {
	modes := make(map[string]bool, len(modeKeys))
	for _, k := range modeKeys {
		modes[k] = true
	}

	conn, err := l.listen(ctx)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	go l.run(subCtx, conn, league, modes, fn)

	return cancel, nil
}

// listen acquires a connection and issues LISTEN on it.
func (l *WagerListener) listen(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: acquire listen conn: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+wagerChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("postgres: listen %s: %w", wagerChannel, err)
	}
	return conn, nil
}

func (l *WagerListener) run(ctx context.Context, conn *pgxpool.Conn, league domain.League, modes map[string]bool, fn domain.WagerChangeHandler) {
	defer func() {
		if conn != nil {
			conn.Release()
		}
	}()

	for {
		if conn == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
			var err error
			conn, err = l.listen(ctx)
			if err != nil {
				l.logger.Warn("relisten failed",
					slog.String("league", string(league)),
					slog.String("error", err.Error()),
				)
				continue
			}
		}

		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Warn("notification wait failed, reconnecting",
				slog.String("league", string(league)),
				slog.String("error", err.Error()),
			)
			conn.Release()
			conn = nil
			continue
		}

		var ch domain.WagerChange
		if err := json.Unmarshal([]byte(n.Payload), &ch); err != nil {
			l.logger.Warn("undecodable wager change payload",
				slog.String("error", err.Error()),
			)
			continue
		}
		if ch.League != league || !modes[ch.ModeKey] {
			continue
		}
		fn(ctx, ch)
	}
}

// Compile-time interface check.
var _ domain.WagerListener = (*WagerListener)(nil)

package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sidepot/settler/internal/domain"
)

// DocSink receives every forwarded game document, typically the Redis game
// cache that backs the stat accessors.
type DocSink interface {
	Put(ctx context.Context, doc domain.GameDoc) error
}

// WSFeed implements domain.FeedProvider over the stats provider's push
// websocket for one league. It reconnects with a fixed delay on disconnect
// and keeps the latest event per game for replay to late subscribers.
type WSFeed struct {
	url    string
	league domain.League
	sink   DocSink
	logger *slog.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]domain.FeedListener
	latest map[string]domain.FeedEvent // gameID -> last delivered event for games still in play
}

// NewWSFeed creates a feed for one league. sink may be nil.
func NewWSFeed(url string, league domain.League, sink DocSink, logger *slog.Logger) *WSFeed {
	return &WSFeed{
		url:    url,
		league: league,
		sink:   sink,
		logger: logger.With(
			slog.String("component", "ws_feed"),
			slog.String("league", string(league)),
		),
		subs:   make(map[int]domain.FeedListener),
		latest: make(map[string]domain.FeedEvent),
	}
}

// Subscribe registers a listener. With replay, the listener first receives
// the latest cached event for every known game.
func (f *WSFeed) Subscribe(ctx context.Context, fn domain.FeedListener, replay bool) (func(), error) {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	var backlog []domain.FeedEvent
	if replay {
		backlog = make([]domain.FeedEvent, 0, len(f.latest))
		for _, ev := range f.latest {
			backlog = append(backlog, ev)
		}
	}
	f.mu.Unlock()

	for _, ev := range backlog {
		fn(ctx, ev)
	}

	unsubscribe := func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
	return unsubscribe, nil
}

// Run connects and reads documents until ctx is cancelled, reconnecting on
// disconnect.
func (f *WSFeed) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f.runConnection(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logger.Warn("feed disconnected, reconnecting", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (f *WSFeed) runConnection(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Unblock ReadMessage when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	f.logger.Info("feed connected", slog.String("url", f.url))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var doc domain.GameDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			f.logger.Warn("undecodable feed message", slog.String("error", err.Error()))
			continue
		}
		if doc.GameID == "" {
			continue
		}
		doc.League = f.league
		f.deliver(ctx, doc)
	}
}

// deliver caches the document, stamps the event and dispatches it to every
// subscriber. Dispatch is inline: listeners are the kernels, which do their
// own per-wager error isolation.
func (f *WSFeed) deliver(ctx context.Context, doc domain.GameDoc) {
	if f.sink != nil {
		if err := f.sink.Put(ctx, doc); err != nil {
			f.logger.Warn("game cache write failed",
				slog.String("game_id", doc.GameID),
				slog.String("error", err.Error()),
			)
		}
	}

	ev := domain.FeedEvent{
		League:     f.league,
		GameID:     doc.GameID,
		Doc:        doc,
		Signature:  Signature(doc),
		ObservedAt: time.Now(),
	}

	f.mu.Lock()
	if doc.Status.Terminal() {
		// The final doc is delivered but not retained for replay; startup
		// reconciliation covers wagers on finished games, and the map would
		// otherwise grow for the process lifetime.
		delete(f.latest, doc.GameID)
	} else {
		f.latest[doc.GameID] = ev
	}
	fns := make([]domain.FeedListener, 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(ctx, ev)
	}
}

// Compile-time interface check.
var _ domain.FeedProvider = (*WSFeed)(nil)

package domain

import (
	"context"
	"time"
)

// FeedEvent is one deduplicatable "game updated" delivery. Signature hashes
// only the statistically relevant subset of Doc (status, period, scores, stat
// buckets); redeliveries of an unchanged document carry the same signature.
type FeedEvent struct {
	League     League
	GameID     string
	Doc        GameDoc
	Signature  string
	ObservedAt time.Time
}

// FeedListener receives feed events. Listeners are invoked from the feed's
// delivery goroutine and should not block for long.
type FeedListener func(ctx context.Context, ev FeedEvent)

// FeedProvider is a live game-update stream for one league. Subscribe
// registers a listener and returns an unsubscribe function; when replay is
// true the provider first delivers its currently cached games.
type FeedProvider interface {
	Subscribe(ctx context.Context, fn FeedListener, replay bool) (func(), error)
}

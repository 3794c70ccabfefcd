package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sidepot/settler/internal/domain"
)

// gameTTL covers the longest plausible gap between updates for a live game
// plus post-game evaluation; finished games age out on their own.
const gameTTL = 8 * time.Hour

// GameCache stores the latest normalized game document per (league, gameId).
// The feed adapter writes it on every forwarded update; the stat accessors
// read it during evaluation.
//
// Key schema:
//
//	game:{league}:{gameId} - JSON-serialized domain.GameDoc
type GameCache struct {
	rdb *redis.Client
}

// NewGameCache creates a GameCache backed by the given Client.
func NewGameCache(c *Client) *GameCache {
	return &GameCache{rdb: c.Underlying()}
}

func gameKey(league domain.League, gameID string) string {
	return "game:" + string(league) + ":" + gameID
}

// Put stores the latest document for a game.
func (gc *GameCache) Put(ctx context.Context, doc domain.GameDoc) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("redis: marshal game %s: %w", doc.GameID, err)
	}
	key := gameKey(doc.League, doc.GameID)
	if err := gc.rdb.Set(ctx, key, data, gameTTL).Err(); err != nil {
		return fmt.Errorf("redis: set game %s: %w", doc.GameID, err)
	}
	return nil
}

// Game returns the latest document for a game. It returns domain.ErrNotFound
// when no document has been seen and domain.ErrGameUnavailable when the
// backend cannot be reached.
func (gc *GameCache) Game(ctx context.Context, league domain.League, gameID string) (domain.GameDoc, error) {
	data, err := gc.rdb.Get(ctx, gameKey(league, gameID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.GameDoc{}, domain.ErrNotFound
		}
		return domain.GameDoc{}, fmt.Errorf("%w: %v", domain.ErrGameUnavailable, err)
	}

	var doc domain.GameDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.GameDoc{}, fmt.Errorf("redis: unmarshal game %s: %w", gameID, err)
	}
	return doc, nil
}

// Compile-time interface check.
var _ domain.GameSource = (*GameCache)(nil)

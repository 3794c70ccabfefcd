package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sidepot/settler/internal/domain"
)

// HistoryStore implements domain.HistoryStore using PostgreSQL. The table is
// append-only; nothing in this service updates or deletes rows.
type HistoryStore struct {
	pool *pgxpool.Pool
}

// NewHistoryStore creates a HistoryStore backed by the given connection pool.
func NewHistoryStore(pool *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

// Append inserts a lifecycle record. The detail map is stored as JSONB.
func (s *HistoryStore) Append(ctx context.Context, e domain.HistoryEntry) error {
	detailJSON, err := json.Marshal(e.Detail)
	if err != nil {
		return fmt.Errorf("postgres: marshal history detail: %w", err)
	}

	const query = `INSERT INTO wager_history (wager_id, event_type, detail) VALUES ($1, $2, $3)`
	if _, err := s.pool.Exec(ctx, query, e.WagerID, e.EventType, detailJSON); err != nil {
		return fmt.Errorf("postgres: append history %s/%s: %w", e.WagerID, e.EventType, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.HistoryStore = (*HistoryStore)(nil)

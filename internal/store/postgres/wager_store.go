package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sidepot/settler/internal/domain"
)

// WagerStore implements domain.WagerStore using PostgreSQL.
type WagerStore struct {
	pool *pgxpool.Pool
}

// NewWagerStore creates a WagerStore backed by the given connection pool.
func NewWagerStore(pool *pgxpool.Pool) *WagerStore {
	return &WagerStore{pool: pool}
}

const wagerSelectCols = `id, mode_key, league, game_id, status, winning_choice,
	config, resolution_time, created_at`

func scanWagerFromRow(scanner interface{ Scan(dest ...any) error }) (domain.Wager, error) {
	var w domain.Wager
	var status string
	var league string
	var raw []byte

	err := scanner.Scan(
		&w.ID, &w.ModeKey, &league, &w.GameID, &status,
		&w.WinningChoice, &raw, &w.ResolutionTime, &w.CreatedAt,
	)
	if err != nil {
		return domain.Wager{}, err
	}

	w.League = domain.League(league)
	w.Status = domain.WagerStatus(status)
	w.RawConfig = json.RawMessage(raw)

	// Parse once here; a document that does not match its mode key leaves
	// Config nil and the validators void the wager as unsatisfiable.
	if cfg, err := domain.ParseModeConfig(w.ModeKey, w.RawConfig); err == nil {
		w.Config = cfg
	}
	return w, nil
}

// Get retrieves a single wager by id.
func (s *WagerStore) Get(ctx context.Context, id string) (domain.Wager, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+wagerSelectCols+` FROM wagers WHERE id = $1`, id)

	w, err := scanWagerFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Wager{}, domain.ErrNotFound
		}
		return domain.Wager{}, fmt.Errorf("postgres: get wager %s: %w", id, err)
	}
	return w, nil
}

// ListPending returns all pending wagers for the mode and league, optionally
// narrowed to a single game.
func (s *WagerStore) ListPending(ctx context.Context, modeKey string, league domain.League, f domain.PendingFilter) ([]domain.Wager, error) {
	query := `SELECT ` + wagerSelectCols + ` FROM wagers
		WHERE mode_key = $1 AND league = $2 AND status = 'pending'`
	args := []any{modeKey, string(league)}

	if f.GameID != "" {
		query += ` AND game_id = $3`
		args = append(args, f.GameID)
	}
	query += ` ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pending wagers: %w", err)
	}
	defer rows.Close()

	var wagers []domain.Wager
	for rows.Next() {
		w, err := scanWagerFromRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan pending wager: %w", err)
		}
		wagers = append(wagers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list pending wagers rows: %w", err)
	}
	return wagers, nil
}

// SetWinner conditionally resolves the wager. It reports whether a row
// actually changed; zero rows means a prior attempt already settled it and is
// not an error.
func (s *WagerStore) SetWinner(ctx context.Context, id, choice string, at time.Time) (bool, error) {
	const query = `
		UPDATE wagers
		SET status = 'resolved', winning_choice = $2, resolution_time = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending' AND winning_choice IS NULL`

	tag, err := s.pool.Exec(ctx, query, id, choice, at)
	if err != nil {
		return false, fmt.Errorf("postgres: set winner %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Wash conditionally voids the wager under the same contract as SetWinner.
func (s *WagerStore) Wash(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `
		UPDATE wagers
		SET status = 'washed', winning_choice = NULL, resolution_time = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`

	tag, err := s.pool.Exec(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("postgres: wash wager %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Compile-time interface check.
var _ domain.WagerStore = (*WagerStore)(nil)

package domain

import (
	"context"
	"time"
)

// PendingFilter narrows ListPending queries.
type PendingFilter struct {
	GameID string
}

// WagerStore persists wagers. SetWinner and Wash are conditional updates:
// they mutate only rows still in pending status and report whether a row
// actually changed. A false return with a nil error means a prior (possibly
// concurrent) attempt already settled the wager; callers treat it as success.
type WagerStore interface {
	Get(ctx context.Context, id string) (Wager, error)
	ListPending(ctx context.Context, modeKey string, league League, f PendingFilter) ([]Wager, error)
	SetWinner(ctx context.Context, id, choice string, at time.Time) (bool, error)
	Wash(ctx context.Context, id string, at time.Time) (bool, error)
}

// HistoryStore appends lifecycle records.
type HistoryStore interface {
	Append(ctx context.Context, e HistoryEntry) error
}

// ChangeOp is the row operation reported by the wager change channel.
type ChangeOp string

const (
	ChangeUpdate ChangeOp = "update"
	ChangeDelete ChangeOp = "delete"
)

// WagerChange is a row-change notification from the wager store.
type WagerChange struct {
	Op            ChangeOp    `json:"op"`
	ID            string      `json:"id"`
	ModeKey       string      `json:"mode_key"`
	League        League      `json:"league"`
	GameID        string      `json:"game_id"`
	Status        WagerStatus `json:"status"`
	OldStatus     WagerStatus `json:"old_status"`
	WinningChoice *string     `json:"winning_choice"`
}

// BecamePending reports whether this change moved the wager into pending.
func (c WagerChange) BecamePending() bool {
	return c.Op == ChangeUpdate && c.Status == WagerPending && c.OldStatus != WagerPending
}

// LeftPending reports whether this change moved the wager out of pending.
func (c WagerChange) LeftPending() bool {
	return c.Op == ChangeUpdate && c.Status != WagerPending && c.OldStatus == WagerPending
}

// WagerChangeHandler receives change notifications.
type WagerChangeHandler func(ctx context.Context, ch WagerChange)

// WagerListener delivers row-change notifications for wagers in one league,
// already filtered to the given mode keys. The returned function cancels the
// subscription.
type WagerListener interface {
	Subscribe(ctx context.Context, league League, modeKeys []string, fn WagerChangeHandler) (func(), error)
}

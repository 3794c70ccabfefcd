package modes

import (
	"context"

	"github.com/sidepot/settler/internal/domain"
)

// Validator is the lifecycle every settlement mode implements. A kernel
// dispatches to one validator per {mode, league} pair.
type Validator interface {
	ModeKey() string
	League() domain.League

	// OnWagerPending captures whatever baseline the rule needs, the instant
	// the wager locks.
	OnWagerPending(ctx context.Context, w domain.Wager) error

	// OnGameUpdate re-evaluates every still-pending wager on the game and
	// resolves or washes as warranted.
	OnGameUpdate(ctx context.Context, gameID string) error

	// OnKernelReady reconciles state missed before process start: for every
	// already-pending wager it ensures a baseline exists and re-evaluates.
	OnKernelReady(ctx context.Context) error

	// WashIfFinalAtCapture voids a wager whose game was already over when it
	// entered pending. It reports whether the wager was washed.
	WashIfFinalAtCapture(ctx context.Context, w domain.Wager) (bool, error)

	// ClearBaseline removes the wager's baseline, best-effort.
	ClearBaseline(ctx context.Context, wagerID string)

	// LiveInfo builds the display snapshot for the wager. It never fails;
	// unreadable state yields an unavailable reason instead.
	LiveInfo(ctx context.Context, w domain.Wager) domain.LiveInfo
}

package modes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidepot/settler/internal/domain"
)

func statWager(id, gameID string, cfg domain.StatLineConfig) domain.Wager {
	return domain.Wager{
		ID:      id,
		ModeKey: domain.ModeStatLine,
		League:  domain.LeagueNFL,
		GameID:  gameID,
		Status:  domain.WagerPending,
		Config:  cfg,
	}
}

func yardsDoc(gameID string, status domain.GameStatus, yards float64) domain.GameDoc {
	return domain.GameDoc{
		League: domain.LeagueNFL,
		GameID: gameID,
		Status: status,
		Teams: []domain.TeamLine{
			{
				ID:    "den",
				Score: 14,
				Players: map[string]domain.PlayerLine{
					"p1": {ID: "p1", Name: "Some Quarterback", Stats: domain.StatMap{
						"passing": {"passingYards": yards},
					}},
				},
			},
		},
	}
}

func passingCfg(line string, capture domain.CaptureMode) domain.StatLineConfig {
	return domain.StatLineConfig{
		PlayerID: "p1",
		Category: "passing",
		Field:    "passingYards",
		Line:     line,
		Capture:  capture,
	}
}

func TestStatLine_CumulativeResolvesOverAtFinal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(statWager("w1", "g1", passingCfg("250.5", domain.CaptureCumulative)))
	v := h.statLine()

	// Mid-game update settles nothing.
	h.games.put(yardsDoc("g1", domain.GameInProgress, 180))
	require.NoError(t, v.OnGameUpdate(ctx, "g1"))
	assert.Equal(t, domain.WagerPending, h.store.get("w1").Status)

	h.games.put(yardsDoc("g1", domain.GameFinal, 301))
	require.NoError(t, v.OnGameUpdate(ctx, "g1"))

	w := h.store.get("w1")
	assert.Equal(t, domain.WagerResolved, w.Status)
	require.NotNil(t, w.WinningChoice)
	assert.Equal(t, ChoiceOver, *w.WinningChoice)

	// Cumulative wagers never touch the baseline cache.
	assert.Equal(t, 0, h.history.count(domain.HistoryBaselineCaptured))
}

func TestStatLine_StartingNowUsesDeltaFromBaseline(t *testing.T) {
	ctx := context.Background()
	w := statWager("w1", "g1", passingCfg("100", domain.CaptureStartingNow))
	h := newHarness(w)
	v := h.statLine()

	// The wager locks with the player already at 180 yards.
	h.games.put(yardsDoc("g1", domain.GameInProgress, 180))
	require.NoError(t, v.OnWagerPending(ctx, w))
	assert.True(t, h.baselines.has("w1"))
	assert.Equal(t, 1, h.history.count(domain.HistoryBaselineCaptured))

	// Final 270: the delta is 90, under the 100 line.
	h.games.put(yardsDoc("g1", domain.GameFinal, 270))
	require.NoError(t, v.OnGameUpdate(ctx, "g1"))

	got := h.store.get("w1")
	assert.Equal(t, domain.WagerResolved, got.Status)
	require.NotNil(t, got.WinningChoice)
	assert.Equal(t, ChoiceUnder, *got.WinningChoice)

	// Settling clears the baseline.
	assert.False(t, h.baselines.has("w1"))
}

func TestStatLine_BaselineCaptureIsIdempotent(t *testing.T) {
	ctx := context.Background()
	w := statWager("w1", "g1", passingCfg("100", domain.CaptureStartingNow))
	h := newHarness(w)
	v := h.statLine()

	h.games.put(yardsDoc("g1", domain.GameInProgress, 50))
	require.NoError(t, v.OnWagerPending(ctx, w))

	// A duplicate pending notification with a later stat value must not move
	// the baseline.
	h.games.put(yardsDoc("g1", domain.GameInProgress, 75))
	require.NoError(t, v.OnWagerPending(ctx, w))

	var bl StatBaseline
	ok, err := h.baselines.Get(ctx, "w1", &bl)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 50.0, bl.Value)
	assert.Equal(t, 1, h.history.count(domain.HistoryBaselineCaptured))
}

func TestStatLine_MetricOnLineIsPush(t *testing.T) {
	ctx := context.Background()
	h := newHarness(statWager("w1", "g1", passingCfg("300", domain.CaptureCumulative)))
	v := h.statLine()

	h.games.put(yardsDoc("g1", domain.GameFinal, 300))
	require.NoError(t, v.OnGameUpdate(ctx, "g1"))

	assert.Equal(t, domain.WagerWashed, h.store.get("w1").Status)
}

func TestStatLine_MissingBaselineAtFinalWashes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(statWager("w1", "g1", passingCfg("100", domain.CaptureStartingNow)))
	v := h.statLine()

	// No pending hook ever ran, and the first document we see is FINAL.
	h.games.put(yardsDoc("g1", domain.GameFinal, 300))
	require.NoError(t, v.OnGameUpdate(ctx, "g1"))

	assert.Equal(t, domain.WagerWashed, h.store.get("w1").Status)
}

func TestStatLine_MissingBaselineMidGameCapturesLazily(t *testing.T) {
	ctx := context.Background()
	h := newHarness(statWager("w1", "g1", passingCfg("100", domain.CaptureStartingNow)))
	v := h.statLine()

	h.games.put(yardsDoc("g1", domain.GameInProgress, 120))
	require.NoError(t, v.OnGameUpdate(ctx, "g1"))

	assert.Equal(t, domain.WagerPending, h.store.get("w1").Status)
	var bl StatBaseline
	ok, err := h.baselines.Get(ctx, "w1", &bl)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 120.0, bl.Value)
}

func TestStatLine_PostponedGameWashes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(statWager("w1", "g1", passingCfg("100", domain.CaptureCumulative)))
	v := h.statLine()

	h.games.put(yardsDoc("g1", domain.GamePostponed, 0))
	require.NoError(t, v.OnGameUpdate(ctx, "g1"))

	assert.Equal(t, domain.WagerWashed, h.store.get("w1").Status)
}

func TestStatLine_UnparseableLineWashes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(statWager("w1", "g1", passingCfg("two-fifty", domain.CaptureCumulative)))
	v := h.statLine()

	h.games.put(yardsDoc("g1", domain.GameInProgress, 10))
	require.NoError(t, v.OnGameUpdate(ctx, "g1"))

	assert.Equal(t, domain.WagerWashed, h.store.get("w1").Status)
}

func TestStatLine_StoreFailureLeavesWagerPendingForRetry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(statWager("w1", "g1", passingCfg("250", domain.CaptureCumulative)))
	h.store.failSetWinner = 1
	v := h.statLine()

	h.games.put(yardsDoc("g1", domain.GameFinal, 301))

	// The first pass fails inside the per-wager error boundary.
	require.NoError(t, v.OnGameUpdate(ctx, "g1"))
	assert.Equal(t, domain.WagerPending, h.store.get("w1").Status)

	// The next update retries and succeeds.
	require.NoError(t, v.OnGameUpdate(ctx, "g1"))
	assert.Equal(t, domain.WagerResolved, h.store.get("w1").Status)
}

func TestStatLine_OnKernelReadyReconcilesPendingGames(t *testing.T) {
	ctx := context.Background()
	h := newHarness(
		statWager("w1", "g1", passingCfg("100", domain.CaptureCumulative)),
		statWager("w2", "g2", passingCfg("100", domain.CaptureCumulative)),
	)
	v := h.statLine()

	h.games.put(yardsDoc("g1", domain.GameFinal, 150))
	h.games.put(yardsDoc("g2", domain.GameFinal, 50))

	require.NoError(t, v.OnKernelReady(ctx))

	w1, w2 := h.store.get("w1"), h.store.get("w2")
	assert.Equal(t, domain.WagerResolved, w1.Status)
	assert.Equal(t, ChoiceOver, *w1.WinningChoice)
	assert.Equal(t, domain.WagerResolved, w2.Status)
	assert.Equal(t, ChoiceUnder, *w2.WinningChoice)
}

func TestWashIfFinalAtCapture(t *testing.T) {
	ctx := context.Background()
	w := statWager("w1", "g1", passingCfg("100", domain.CaptureStartingNow))
	h := newHarness(w)
	v := h.statLine()

	// No document seen yet: proceed without washing.
	washed, err := v.WashIfFinalAtCapture(ctx, w)
	require.NoError(t, err)
	assert.False(t, washed)

	// The game was already over when the wager locked.
	h.games.put(yardsDoc("g1", domain.GameFinal, 300))
	washed, err = v.WashIfFinalAtCapture(ctx, w)
	require.NoError(t, err)
	assert.True(t, washed)
	assert.Equal(t, domain.WagerWashed, h.store.get("w1").Status)
}

func TestStatLine_LiveInfo(t *testing.T) {
	ctx := context.Background()
	w := statWager("w1", "g1", passingCfg("250.5", domain.CaptureCumulative))
	h := newHarness(w)
	v := h.statLine()

	info := v.LiveInfo(ctx, w)
	assert.False(t, info.Available)

	h.games.put(yardsDoc("g1", domain.GameInProgress, 180))
	info = v.LiveInfo(ctx, w)
	require.True(t, info.Available)

	byLabel := make(map[string]string)
	for _, f := range info.Fields {
		byLabel[f.Label] = f.Value
	}
	assert.Equal(t, "Some Quarterback", byLabel["Player"])
	assert.Equal(t, "250.5", byLabel["Line"])
	assert.Equal(t, "180", byLabel["Current"])
}

func TestStatLine_FrozenSnapshotKeepsFinalMetric(t *testing.T) {
	ctx := context.Background()
	w := statWager("w1", "g1", passingCfg("100", domain.CaptureStartingNow))
	h := newHarness(w)
	v := h.statLine()

	h.games.put(yardsDoc("g1", domain.GameInProgress, 50))
	require.NoError(t, v.OnWagerPending(ctx, w))

	h.games.put(yardsDoc("g1", domain.GameFinal, 200))
	require.NoError(t, v.OnGameUpdate(ctx, "g1"))
	require.Equal(t, domain.WagerResolved, h.store.get("w1").Status)

	// The snapshot append is detached, but the info itself is read before
	// the baseline clear, so the frozen record carries the final delta.
	var entry domain.HistoryEntry
	require.Eventually(t, func() bool {
		e, ok := h.history.find(domain.HistorySnapshot)
		entry = e
		return ok
	}, time.Second, 5*time.Millisecond)

	info, ok := entry.Detail["info"].(domain.LiveInfo)
	require.True(t, ok)
	assert.True(t, info.Available)

	byLabel := map[string]string{}
	for _, f := range info.Fields {
		byLabel[f.Label] = f.Value
	}
	assert.Equal(t, "150", byLabel["Current"])
	assert.False(t, h.baselines.has("w1"))
}

func TestStatLine_PlayerAbsentFromFinalDocWashes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(statWager("w1", "g1", passingCfg("250.5", domain.CaptureCumulative)))
	v := h.statLine()

	doc := yardsDoc("g1", domain.GameFinal, 300)
	doc.Teams[0].Players = map[string]domain.PlayerLine{
		"p9": {ID: "p9", Name: "Someone Else"},
	}
	h.games.put(doc)
	require.NoError(t, v.OnGameUpdate(ctx, "g1"))

	assert.Equal(t, domain.WagerWashed, h.store.get("w1").Status)
	entry, ok := h.history.find(domain.HistoryWashed)
	require.True(t, ok)
	assert.Equal(t, "player did not appear in this game", entry.Detail["explanation"])
}

func TestStatLine_PlayerWithNoStatEntryCountsAsZero(t *testing.T) {
	ctx := context.Background()
	h := newHarness(statWager("w1", "g1", passingCfg("0.5", domain.CaptureCumulative)))
	v := h.statLine()

	// The player is in the box score but the provider omitted the zero-value
	// stat bucket. That is a real zero, not a missing player.
	doc := yardsDoc("g1", domain.GameFinal, 0)
	doc.Teams[0].Players["p1"] = domain.PlayerLine{ID: "p1", Name: "Some Quarterback"}
	h.games.put(doc)
	require.NoError(t, v.OnGameUpdate(ctx, "g1"))

	got := h.store.get("w1")
	assert.Equal(t, domain.WagerResolved, got.Status)
	require.NotNil(t, got.WinningChoice)
	assert.Equal(t, ChoiceUnder, *got.WinningChoice)
}

func TestStatLine_PostponedWashNamesThePostponement(t *testing.T) {
	ctx := context.Background()
	h := newHarness(statWager("w1", "g1", passingCfg("100", domain.CaptureStartingNow)))
	v := h.statLine()

	// No baseline was ever captured; the explanation still names the
	// postponement, not the missing baseline.
	h.games.put(yardsDoc("g1", domain.GamePostponed, 0))
	require.NoError(t, v.OnGameUpdate(ctx, "g1"))

	assert.Equal(t, domain.WagerWashed, h.store.get("w1").Status)
	entry, ok := h.history.find(domain.HistoryWashed)
	require.True(t, ok)
	assert.Equal(t, "game was POSTPONED", entry.Detail["explanation"])
}

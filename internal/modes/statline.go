package modes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sidepot/settler/internal/domain"
	"github.com/sidepot/settler/internal/resolution"
)

// StatBaseline is the snapshot a starting-now stat-line wager diffs against.
type StatBaseline struct {
	Value      float64   `json:"value"`
	CapturedAt time.Time `json:"capturedAt"`
}

// StatLine settles over/under wagers on a single player stat. In starting_now
// capture the metric is final minus the baseline captured when the wager
// locked; in cumulative capture the metric is the final value and no baseline
// exists.
type StatLine struct {
	Base
	adapter StatAdapter
}

// NewStatLine builds the stat-line validator for one league.
func NewStatLine(league domain.League, wagers domain.WagerStore, history domain.HistoryStore, baselines domain.BaselineCache, games domain.GameSource, resolver *resolution.Resolver, logger *slog.Logger) *StatLine {
	v := &StatLine{
		Base:    NewBase(domain.ModeStatLine, league, wagers, history, baselines, games, resolver, logger),
		adapter: AdapterFor(league),
	}
	v.bindLiveInfo(v.LiveInfo)
	return v
}

// OnWagerPending captures the player's current stat value for starting-now
// wagers. Cumulative wagers are stateless and capture nothing.
func (v *StatLine) OnWagerPending(ctx context.Context, w domain.Wager) error {
	cfg, ok := v.Config(w).(domain.StatLineConfig)
	if !ok {
		return v.Wash(ctx, w, "wager configuration could not be read", nil)
	}
	if cfg.Capture != domain.CaptureStartingNow {
		return nil
	}

	doc, err := v.Game(ctx, w.GameID)
	if err != nil {
		// No data yet; the kernel-ready pass or the first evaluation will
		// capture lazily.
		return fmt.Errorf("stat_line pending %s: %w", w.ID, err)
	}
	return v.captureFrom(ctx, doc, w, cfg)
}

// OnGameUpdate re-evaluates every pending wager on the game.
func (v *StatLine) OnGameUpdate(ctx context.Context, gameID string) error {
	doc, err := v.Game(ctx, gameID)
	if err != nil {
		return fmt.Errorf("stat_line update %s: %w", gameID, err)
	}

	pending, err := v.ListPending(ctx, domain.PendingFilter{GameID: gameID})
	if err != nil {
		return fmt.Errorf("stat_line update %s: %w", gameID, err)
	}

	// Each wager evaluates inside its own error boundary so one malformed
	// wager cannot block the rest of the batch.
	for _, w := range pending {
		if err := v.evaluate(ctx, doc, w); err != nil {
			v.log().Warn("evaluation failed",
				slog.String("wager_id", w.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// OnKernelReady re-runs evaluation for every game that still has pending
// wagers; missing baselines are captured lazily along the way.
func (v *StatLine) OnKernelReady(ctx context.Context) error {
	pending, err := v.ListPending(ctx, domain.PendingFilter{})
	if err != nil {
		return fmt.Errorf("stat_line ready: %w", err)
	}

	games := make(map[string]bool)
	for _, w := range pending {
		games[w.GameID] = true
	}
	for gameID := range games {
		if err := v.OnGameUpdate(ctx, gameID); err != nil {
			v.log().Warn("startup reconciliation skipped game",
				slog.String("game_id", gameID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

func (v *StatLine) captureFrom(ctx context.Context, doc domain.GameDoc, w domain.Wager, cfg domain.StatLineConfig) error {
	// A player with no entry yet simply has not recorded a stat; zero is the
	// fair baseline.
	val, _ := v.adapter.PlayerMetric(doc, cfg.PlayerID, cfg.Category, cfg.Field)
	_, err := v.CaptureBaseline(ctx, w.ID, StatBaseline{Value: val, CapturedAt: time.Now().UTC()})
	return err
}

func (v *StatLine) evaluate(ctx context.Context, doc domain.GameDoc, w domain.Wager) error {
	cfg, ok := v.Config(w).(domain.StatLineConfig)
	if !ok {
		return v.Wash(ctx, w, "wager configuration could not be read", nil)
	}

	line, err := cfg.ParsedLine()
	if err != nil {
		return v.Wash(ctx, w, fmt.Sprintf("line %q is not a number", cfg.Line), nil)
	}

	// Postponed and canceled games wash before any baseline handling so the
	// explanation names the actual cause.
	switch doc.Status {
	case domain.GamePostponed, domain.GameCanceled:
		return v.Wash(ctx, w, fmt.Sprintf("game was %s", doc.Status), map[string]any{
			"gameStatus": string(doc.Status),
		})
	}

	var baseline float64
	if cfg.Capture == domain.CaptureStartingNow {
		var bl StatBaseline
		if !v.Baseline(ctx, w.ID, &bl) {
			if doc.Status == domain.GameFinal {
				// The game ended with no baseline ever captured; a fair
				// delta can no longer be measured.
				return v.Wash(ctx, w, "no baseline was captured before the game ended", nil)
			}
			return v.captureFrom(ctx, doc, w, cfg)
		}
		baseline = bl.Value
	}

	if doc.Status != domain.GameFinal {
		// Stat lines settle only once the game is over.
		return nil
	}

	live, found := v.adapter.PlayerMetric(doc, cfg.PlayerID, cfg.Category, cfg.Field)
	if !found {
		if _, present := doc.Player(cfg.PlayerID); !present {
			// The player never appeared in the final box score, so the line
			// is unsatisfiable. A player who did appear but has no entry for
			// this stat legitimately recorded zero.
			return v.Wash(ctx, w, "player did not appear in this game", map[string]any{
				"playerId": cfg.PlayerID,
			})
		}
	}
	metric := live
	if cfg.Capture == domain.CaptureStartingNow {
		metric = live - baseline
	}

	detail := map[string]any{
		"metric":   metric,
		"line":     line,
		"baseline": baseline,
		"capture":  string(cfg.Capture),
	}

	out := DecideStatLine(metric, line)
	if out.Decision == DecisionPush {
		return v.Wash(ctx, w, "push: "+out.Reason, detail)
	}
	return v.ResolveWinner(ctx, w, out.Choice, detail)
}

// LiveInfo builds the label/value snapshot shown for the wager, live or
// frozen after resolution.
func (v *StatLine) LiveInfo(ctx context.Context, w domain.Wager) domain.LiveInfo {
	cfg, ok := v.Config(w).(domain.StatLineConfig)
	if !ok {
		return domain.Unavailable("configuration could not be read")
	}

	doc, err := v.Game(ctx, w.GameID)
	if err != nil {
		return domain.Unavailable("no live data for this game")
	}

	live, _ := v.adapter.PlayerMetric(doc, cfg.PlayerID, cfg.Category, cfg.Field)
	metric := live
	if cfg.Capture == domain.CaptureStartingNow {
		var bl StatBaseline
		if !v.Baseline(ctx, w.ID, &bl) {
			return domain.Unavailable("baseline not captured yet")
		}
		metric = live - bl.Value
	}

	name := cfg.PlayerName
	if name == "" {
		if p, found := doc.Player(cfg.PlayerID); found {
			name = p.Name
		}
	}

	return domain.LiveInfo{
		Available: true,
		Fields: []domain.LiveField{
			{Label: "Player", Value: name},
			{Label: "Stat", Value: cfg.Category + "/" + cfg.Field},
			{Label: "Line", Value: cfg.Line},
			{Label: "Current", Value: FormatMetric(metric)},
			{Label: "Game", Value: string(doc.Status)},
		},
	}
}

// Compile-time interface check.
var _ Validator = (*StatLine)(nil)

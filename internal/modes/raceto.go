package modes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sidepot/settler/internal/domain"
	"github.com/sidepot/settler/internal/resolution"
)

// RaceBaseline snapshots both sides' stat values at the capture instant.
type RaceBaseline struct {
	SideA      float64   `json:"sideA"`
	SideB      float64   `json:"sideB"`
	CapturedAt time.Time `json:"capturedAt"`
}

// RaceTo settles "first side to gain +target in a stat from its baseline"
// wagers. Unlike stat lines it decides on every update, not only at FINAL.
type RaceTo struct {
	Base
	adapter StatAdapter
}

// NewRaceTo builds the race validator for one league.
func NewRaceTo(league domain.League, wagers domain.WagerStore, history domain.HistoryStore, baselines domain.BaselineCache, games domain.GameSource, resolver *resolution.Resolver, logger *slog.Logger) *RaceTo {
	v := &RaceTo{
		Base:    NewBase(domain.ModeRaceTo, league, wagers, history, baselines, games, resolver, logger),
		adapter: AdapterFor(league),
	}
	v.bindLiveInfo(v.LiveInfo)
	return v
}

// OnWagerPending snapshots both sides' current values.
func (v *RaceTo) OnWagerPending(ctx context.Context, w domain.Wager) error {
	cfg, ok := v.Config(w).(domain.RaceToConfig)
	if !ok {
		return v.Wash(ctx, w, "wager configuration could not be read", nil)
	}

	doc, err := v.Game(ctx, w.GameID)
	if err != nil {
		return fmt.Errorf("race_to pending %s: %w", w.ID, err)
	}
	return v.captureFrom(ctx, doc, w, cfg)
}

// OnGameUpdate re-evaluates every pending wager on the game.
func (v *RaceTo) OnGameUpdate(ctx context.Context, gameID string) error {
	doc, err := v.Game(ctx, gameID)
	if err != nil {
		return fmt.Errorf("race_to update %s: %w", gameID, err)
	}

	pending, err := v.ListPending(ctx, domain.PendingFilter{GameID: gameID})
	if err != nil {
		return fmt.Errorf("race_to update %s: %w", gameID, err)
	}

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

// OnKernelReady reconciles every game with pending wagers.
func (v *RaceTo) OnKernelReady(ctx context.Context) error {
	pending, err := v.ListPending(ctx, domain.PendingFilter{})
	if err != nil {
		return fmt.Errorf("race_to ready: %w", err)
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

func (v *RaceTo) sides(doc domain.GameDoc, cfg domain.RaceToConfig) (float64, float64) {
	a, _ := v.adapter.TeamMetric(doc, cfg.SideA.TeamID, cfg.Category, cfg.Field)
	b, _ := v.adapter.TeamMetric(doc, cfg.SideB.TeamID, cfg.Category, cfg.Field)
	return a, b
}

func (v *RaceTo) captureFrom(ctx context.Context, doc domain.GameDoc, w domain.Wager, cfg domain.RaceToConfig) error {
	a, b := v.sides(doc, cfg)
	_, err := v.CaptureBaseline(ctx, w.ID, RaceBaseline{SideA: a, SideB: b, CapturedAt: time.Now().UTC()})
	return err
}

func (v *RaceTo) evaluate(ctx context.Context, doc domain.GameDoc, w domain.Wager) error {
	cfg, ok := v.Config(w).(domain.RaceToConfig)
	if !ok {
		return v.Wash(ctx, w, "wager configuration could not be read", nil)
	}

	switch doc.Status {
	case domain.GamePostponed, domain.GameCanceled:
		return v.Wash(ctx, w, fmt.Sprintf("game was %s", doc.Status), map[string]any{
			"gameStatus": string(doc.Status),
		})
	}

	var bl RaceBaseline
	if !v.Baseline(ctx, w.ID, &bl) {
		if doc.Status == domain.GameFinal {
			return v.Wash(ctx, w, "no baseline was captured before the game ended", nil)
		}
		// Lazy capture; the race starts from here.
		return v.captureFrom(ctx, doc, w, cfg)
	}

	a, b := v.sides(doc, cfg)
	deltaA, deltaB := a-bl.SideA, b-bl.SideB

	detail := map[string]any{
		"deltaA": deltaA,
		"deltaB": deltaB,
		"target": cfg.Target,
	}

	out := DecideRace(deltaA, deltaB, cfg.Target, cfg.SideA.TeamID, cfg.SideB.TeamID, doc.Status == domain.GameFinal)
	switch out.Decision {
	case DecisionWinner:
		return v.ResolveWinner(ctx, w, out.Choice, detail)
	case DecisionPush:
		return v.Wash(ctx, w, out.Reason, detail)
	default:
		return nil
	}
}

// LiveInfo builds the label/value snapshot for the race.
func (v *RaceTo) LiveInfo(ctx context.Context, w domain.Wager) domain.LiveInfo {
	cfg, ok := v.Config(w).(domain.RaceToConfig)
	if !ok {
		return domain.Unavailable("configuration could not be read")
	}

	doc, err := v.Game(ctx, w.GameID)
	if err != nil {
		return domain.Unavailable("no live data for this game")
	}

	var bl RaceBaseline
	if !v.Baseline(ctx, w.ID, &bl) {
		return domain.Unavailable("baseline not captured yet")
	}

	a, b := v.sides(doc, cfg)
	return domain.LiveInfo{
		Available: true,
		Fields: []domain.LiveField{
			{Label: cfg.SideA.Label, Value: FormatMetric(a - bl.SideA)},
			{Label: cfg.SideB.Label, Value: FormatMetric(b - bl.SideB)},
			{Label: "Target", Value: FormatMetric(cfg.Target)},
			{Label: "Game", Value: string(doc.Status)},
		},
	}
}

// Compile-time interface check.
var _ Validator = (*RaceTo)(nil)

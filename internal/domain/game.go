package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// League identifies a sports league. One kernel instance runs per league.
type League string

const (
	LeagueNFL League = "nfl"
	LeagueNBA League = "nba"
)

// ParseLeague maps a league name to its League constant.
func ParseLeague(name string) (League, error) {
	switch strings.ToLower(name) {
	case "nfl":
		return LeagueNFL, nil
	case "nba":
		return LeagueNBA, nil
	default:
		return "", fmt.Errorf("domain: unknown league %q", name)
	}
}

// GameStatus is the normalized lifecycle state of a game as reported by the
// upstream stats feed.
type GameStatus string

const (
	GameScheduled  GameStatus = "SCHEDULED"
	GameInProgress GameStatus = "IN_PROGRESS"
	GameHalftime   GameStatus = "HALFTIME"
	GameEndPeriod  GameStatus = "END_PERIOD"
	GameFinal      GameStatus = "FINAL"
	GamePostponed  GameStatus = "POSTPONED"
	GameCanceled   GameStatus = "CANCELED"
	GameUnknown    GameStatus = "UNKNOWN"
)

// Terminal reports whether the game can no longer produce stat changes.
func (s GameStatus) Terminal() bool {
	switch s {
	case GameFinal, GamePostponed, GameCanceled:
		return true
	default:
		return false
	}
}

// StatMap holds stat values keyed by category then field, e.g.
// stats["passing"]["passingYards"].
type StatMap map[string]map[string]float64

// Value looks up a single stat field. The second return is false when the
// category or field is absent.
func (m StatMap) Value(category, field string) (float64, bool) {
	fields, ok := m[category]
	if !ok {
		return 0, false
	}
	v, ok := fields[field]
	return v, ok
}

// PlayerLine is one player's box-score entry inside a game document.
type PlayerLine struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Stats StatMap `json:"stats"`
}

// TeamLine is one team's entry inside a game document.
type TeamLine struct {
	ID           string                `json:"teamId"`
	Abbreviation string                `json:"abbreviation"`
	Name         string                `json:"displayName"`
	Score        float64               `json:"score"`
	Stats        StatMap               `json:"stats"`
	Players      map[string]PlayerLine `json:"players"`
}

// GameDoc is the normalized snapshot of one live game. GeneratedAt is
// provider metadata and is never part of the content signature.
type GameDoc struct {
	League      League     `json:"league"`
	GameID      string     `json:"gameId"`
	Status      GameStatus `json:"status"`
	Period      int        `json:"period"`
	Teams       []TeamLine `json:"teams"`
	GeneratedAt time.Time  `json:"generatedAt"`
}

// Team returns the team entry with the given id.
func (d GameDoc) Team(teamID string) (TeamLine, bool) {
	for _, t := range d.Teams {
		if t.ID == teamID {
			return t, true
		}
	}
	return TeamLine{}, false
}

// Player finds a player across all teams.
func (d GameDoc) Player(playerID string) (PlayerLine, bool) {
	for _, t := range d.Teams {
		if p, ok := t.Players[playerID]; ok {
			return p, true
		}
	}
	return PlayerLine{}, false
}

// GameSource provides read access to the latest known game document.
// Implementations must return ErrNotFound when no document has been seen for
// the game and ErrGameUnavailable when the backing store cannot be reached.
type GameSource interface {
	Game(ctx context.Context, league League, gameID string) (GameDoc, error)
}

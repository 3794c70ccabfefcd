package modes

import "github.com/sidepot/settler/internal/domain"

// StatAdapter is the thin per-league mapping from (category, field) to a
// value inside a normalized game document. The rule engine is identical
// across leagues; only the adapter differs.
type StatAdapter interface {
	PlayerMetric(doc domain.GameDoc, playerID, category, field string) (float64, bool)
	TeamMetric(doc domain.GameDoc, teamID, category, field string) (float64, bool)
}

// AdapterFor returns the stat adapter for a league.
func AdapterFor(league domain.League) StatAdapter {
	switch league {
	case domain.LeagueNBA:
		return nbaAdapter{}
	default:
		return nflAdapter{}
	}
}

// docAdapter is the shared direct lookup on the normalized document shape.
type docAdapter struct{}

func (docAdapter) PlayerMetric(doc domain.GameDoc, playerID, category, field string) (float64, bool) {
	p, ok := doc.Player(playerID)
	if !ok {
		return 0, false
	}
	return p.Stats.Value(category, field)
}

func (docAdapter) TeamMetric(doc domain.GameDoc, teamID, category, field string) (float64, bool) {
	t, ok := doc.Team(teamID)
	if !ok {
		return 0, false
	}
	// The scoreboard score lives on the team entry, not in a stat bucket.
	if category == "scoring" && field == "points" {
		return t.Score, true
	}
	return t.Stats.Value(category, field)
}

type nflAdapter struct {
	docAdapter
}

// nbaAdapter resolves the aliases the NBA feed uses for its scoring bucket.
type nbaAdapter struct {
	docAdapter
}

func (a nbaAdapter) PlayerMetric(doc domain.GameDoc, playerID, category, field string) (float64, bool) {
	if category == "scoring" && field == "points" {
		category, field = "offensive", "points"
	}
	return a.docAdapter.PlayerMetric(doc, playerID, category, field)
}

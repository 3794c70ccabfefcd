package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModeConfig_StatLine(t *testing.T) {
	raw := json.RawMessage(`{
		"playerId": "p1",
		"playerName": "Some Quarterback",
		"category": "passing",
		"field": "passingYards",
		"line": "250.5",
		"capture": "starting_now"
	}`)

	cfg, err := ParseModeConfig(ModeStatLine, raw)
	require.NoError(t, err)

	sl, ok := cfg.(StatLineConfig)
	require.True(t, ok)
	assert.Equal(t, "p1", sl.PlayerID)
	assert.Equal(t, CaptureStartingNow, sl.Capture)

	line, err := sl.ParsedLine()
	require.NoError(t, err)
	assert.Equal(t, 250.5, line)
}

func TestParseModeConfig_StatLineRejectsUnknownCapture(t *testing.T) {
	raw := json.RawMessage(`{"playerId":"p1","category":"passing","field":"passingYards","line":"10","capture":"sometimes"}`)
	_, err := ParseModeConfig(ModeStatLine, raw)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseModeConfig_RaceTo(t *testing.T) {
	raw := json.RawMessage(`{
		"sideA": {"teamId": "den", "label": "Broncos"},
		"sideB": {"teamId": "kc", "label": "Chiefs"},
		"category": "scoring",
		"field": "points",
		"target": 3
	}`)

	cfg, err := ParseModeConfig(ModeRaceTo, raw)
	require.NoError(t, err)

	rc, ok := cfg.(RaceToConfig)
	require.True(t, ok)
	assert.Equal(t, "den", rc.SideA.TeamID)
	assert.Equal(t, 3.0, rc.Target)
}

func TestParseModeConfig_RaceToRejectsIdenticalSides(t *testing.T) {
	raw := json.RawMessage(`{"sideA":{"teamId":"den"},"sideB":{"teamId":"den"},"category":"scoring","field":"points","target":3}`)
	_, err := ParseModeConfig(ModeRaceTo, raw)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseModeConfig_RaceToRejectsNonPositiveTarget(t *testing.T) {
	raw := json.RawMessage(`{"sideA":{"teamId":"den"},"sideB":{"teamId":"kc"},"category":"scoring","field":"points","target":0}`)
	_, err := ParseModeConfig(ModeRaceTo, raw)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseModeConfig_UnknownMode(t *testing.T) {
	_, err := ParseModeConfig("parlay", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestStatLineConfig_ParsedLineRejectsGarbage(t *testing.T) {
	c := StatLineConfig{Line: "two-fifty"}
	_, err := c.ParsedLine()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestWagerChange_PendingTransitions(t *testing.T) {
	became := WagerChange{Op: ChangeUpdate, Status: WagerPending, OldStatus: "draft"}
	assert.True(t, became.BecamePending())
	assert.False(t, became.LeftPending())

	left := WagerChange{Op: ChangeUpdate, Status: WagerResolved, OldStatus: WagerPending}
	assert.False(t, left.BecamePending())
	assert.True(t, left.LeftPending())

	deleted := WagerChange{Op: ChangeDelete, Status: WagerPending}
	assert.False(t, deleted.BecamePending())
	assert.False(t, deleted.LeftPending())
}

func TestGameStatus_Terminal(t *testing.T) {
	assert.True(t, GameFinal.Terminal())
	assert.True(t, GamePostponed.Terminal())
	assert.True(t, GameCanceled.Terminal())
	assert.False(t, GameInProgress.Terminal())
	assert.False(t, GameHalftime.Terminal())
	assert.False(t, GameScheduled.Terminal())
}

func TestParseLeague(t *testing.T) {
	l, err := ParseLeague("NFL")
	require.NoError(t, err)
	assert.Equal(t, LeagueNFL, l)

	_, err = ParseLeague("mlb")
	assert.Error(t, err)
}

func TestStatMap_Value(t *testing.T) {
	m := StatMap{"passing": {"passingYards": 287.0}}

	v, ok := m.Value("passing", "passingYards")
	assert.True(t, ok)
	assert.Equal(t, 287.0, v)

	_, ok = m.Value("rushing", "rushingYards")
	assert.False(t, ok)

	_, ok = m.Value("passing", "completions")
	assert.False(t, ok)
}

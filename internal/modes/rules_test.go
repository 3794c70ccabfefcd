package modes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecideStatLine_Over(t *testing.T) {
	out := DecideStatLine(25, 20.5)
	assert.Equal(t, DecisionWinner, out.Decision)
	assert.Equal(t, ChoiceOver, out.Choice)
}

func TestDecideStatLine_Under(t *testing.T) {
	out := DecideStatLine(18, 20.5)
	assert.Equal(t, DecisionWinner, out.Decision)
	assert.Equal(t, ChoiceUnder, out.Choice)
}

func TestDecideStatLine_ExactLineIsPush(t *testing.T) {
	out := DecideStatLine(20, 20)
	assert.Equal(t, DecisionPush, out.Decision)
	assert.Empty(t, out.Choice)
}

func TestDecideStatLine_WithinEpsilonIsPush(t *testing.T) {
	// Either side of the line, closer than the tolerance.
	out := DecideStatLine(20+Epsilon/2, 20)
	assert.Equal(t, DecisionPush, out.Decision)

	out = DecideStatLine(20-Epsilon/2, 20)
	assert.Equal(t, DecisionPush, out.Decision)
}

func TestDecideStatLine_JustOutsideEpsilonWins(t *testing.T) {
	out := DecideStatLine(20.0001, 20)
	assert.Equal(t, DecisionWinner, out.Decision)
	assert.Equal(t, ChoiceOver, out.Choice)
}

func TestDecideRace_SideAWins(t *testing.T) {
	out := DecideRace(3, 0, 3, "den", "kc", false)
	assert.Equal(t, DecisionWinner, out.Decision)
	assert.Equal(t, "den", out.Choice)
}

func TestDecideRace_SideBWins(t *testing.T) {
	out := DecideRace(0, 7, 3, "den", "kc", false)
	assert.Equal(t, DecisionWinner, out.Decision)
	assert.Equal(t, "kc", out.Choice)
}

func TestDecideRace_BothCrossInSameUpdateIsPush(t *testing.T) {
	// The feed only shows the combined result of the interval, so it cannot
	// say which side crossed first.
	out := DecideRace(7, 3, 3, "den", "kc", false)
	assert.Equal(t, DecisionPush, out.Decision)
}

func TestDecideRace_NeitherCrossedMidGame(t *testing.T) {
	out := DecideRace(2, 1, 3, "den", "kc", false)
	assert.Equal(t, DecisionNone, out.Decision)
}

func TestDecideRace_NeitherCrossedAtFinalIsPush(t *testing.T) {
	out := DecideRace(2, 1, 3, "den", "kc", true)
	assert.Equal(t, DecisionPush, out.Decision)
}

func TestDecideRace_TargetHitExactly(t *testing.T) {
	out := DecideRace(3.0, 0, 3.0, "den", "kc", false)
	assert.Equal(t, DecisionWinner, out.Decision)
	assert.Equal(t, "den", out.Choice)
}

func TestFormatMetric(t *testing.T) {
	assert.Equal(t, "20.5", FormatMetric(20.5))
	assert.Equal(t, "3", FormatMetric(3.0000000001))
	assert.Equal(t, "0.33", FormatMetric(1.0/3.0))
	assert.Equal(t, "-2.5", FormatMetric(-2.5))
}

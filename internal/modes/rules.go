// Package modes contains the pluggable wager validators: the shared base
// lifecycle every mode builds on, the pure settlement rule functions, and the
// per-league stat accessor adapters.
package modes

import (
	"math"
	"strconv"
)

// Epsilon is the tie tolerance for floating metrics: two values closer than
// this are equal, and a metric this close to a line is a push, never a win.
const Epsilon = 1e-9

// Decision is the outcome of a pure settlement rule.
type Decision int

const (
	DecisionNone Decision = iota
	DecisionWinner
	DecisionPush
)

// Outcome carries a rule decision plus the winning choice or push reason.
type Outcome struct {
	Decision Decision
	Choice   string
	Reason   string
}

// Stat-line winning choices.
const (
	ChoiceOver  = "over"
	ChoiceUnder = "under"
)

// DecideStatLine settles an over/under at game end. metric is the evaluated
// value (already baseline-adjusted for starting-now wagers).
func DecideStatLine(metric, line float64) Outcome {
	diff := metric - line
	if math.Abs(diff) < Epsilon {
		return Outcome{Decision: DecisionPush, Reason: "metric landed on the line"}
	}
	if diff > 0 {
		return Outcome{Decision: DecisionWinner, Choice: ChoiceOver}
	}
	return Outcome{Decision: DecisionWinner, Choice: ChoiceUnder}
}

// DecideRace settles a "first side to gain target from its baseline" rule
// from the per-side deltas of one update. Both sides reaching the target in
// the same update is a push: the feed cannot tell which happened first.
func DecideRace(deltaA, deltaB, target float64, choiceA, choiceB string, final bool) Outcome {
	aHit := deltaA-target > -Epsilon
	bHit := deltaB-target > -Epsilon

	switch {
	case aHit && bHit:
		return Outcome{Decision: DecisionPush, Reason: "both sides reached the target in the same update"}
	case aHit:
		return Outcome{Decision: DecisionWinner, Choice: choiceA}
	case bHit:
		return Outcome{Decision: DecisionWinner, Choice: choiceB}
	case final:
		return Outcome{Decision: DecisionPush, Reason: "game ended before either side reached the target"}
	default:
		return Outcome{Decision: DecisionNone}
	}
}

// FormatMetric renders a metric for display with stable rounding, so the
// same value always produces the same string.
func FormatMetric(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

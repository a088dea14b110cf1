// Package evaluation scores past decisions against what the market did next.
package evaluation

import (
	"github.com/aristath/papertrail/internal/domain"
	"github.com/aristath/papertrail/pkg/formulas"
)

// Action score buckets, by the move in the direction the action bet on
const (
	StrongMoveThreshold = 3.0  // percent
	AdverseThreshold    = -3.0 // percent

	ScoreStrong       = 90.0
	ScoreRight        = 70.0
	ScoreSmallAdverse = 40.0
	ScoreLargeAdverse = 15.0
)

// Hold scoring
const (
	HoldBaseScore    = 60.0
	HoldMinScore     = 20.0
	HoldMaxScore     = 80.0
	HoldNeutralScore = 50.0
)

// ScoreAction scores one executed action given the percent change of the
// symbol over the lookback window. BUY is rewarded for rises, SELL for falls.
func ScoreAction(action domain.Action, changePct float64) float64 {
	directional := changePct
	if action == domain.ActionSell {
		directional = -changePct
	}

	switch {
	case directional > StrongMoveThreshold:
		return ScoreStrong
	case directional >= 0:
		return ScoreRight
	case directional >= AdverseThreshold:
		return ScoreSmallAdverse
	default:
		return ScoreLargeAdverse
	}
}

// ScoreHold scores a day without trades from the portfolio drift over the
// window. nil drift means no snapshots were available.
func ScoreHold(driftPct *float64) float64 {
	if driftPct == nil {
		return HoldNeutralScore
	}
	return formulas.Clamp(HoldBaseScore+*driftPct, HoldMinScore, HoldMaxScore)
}

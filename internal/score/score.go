// Package score converts signal classification and confidence into a
// bounded risk score.
package score

import (
	"math"

	"authsignal/pkg/models"
)

// Base scores per signal type. Unknown types score like routine access.
var baseScores = map[models.SignalType]float64{
	models.SignalAccessPattern: 0.1,
	models.SignalBruteForce:    0.3,
	models.SignalPrivilege:     0.2,
	models.SignalIAMChange:     0.4,
	models.SignalFailedAuth:    0.3,
}

const defaultBase = 0.1

// multiIPBonus escalates access-pattern windows that span several source IPs.
const multiIPBonus = 0.2

// Input carries the scoring-relevant signal fields.
type Input struct {
	IntentWeight float64
	Pattern      string
	Confidence   models.Confidence
}

// Score computes the risk score for a signal: base plus intent weight plus
// pattern bonus, multiplied by the confidence multiplier, clamped to [0, 1]
// and rounded to two decimals. The result is monotonic non-decreasing in
// intent weight and confidence rank.
func Score(t models.SignalType, in Input) float64 {
	base, ok := baseScores[t]
	if !ok {
		base = defaultBase
	}

	s := base + in.IntentWeight
	if t == models.SignalAccessPattern && in.Pattern == models.PatternMultiIP {
		s += multiIPBonus
	}

	s *= in.Confidence.Multiplier()

	if s > 1.0 {
		s = 1.0
	}
	if s < 0.0 {
		s = 0.0
	}
	return math.Round(s*100) / 100
}

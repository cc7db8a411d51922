package score

import (
	"testing"

	"authsignal/pkg/models"
)

func TestScoreIAMChangeExample(t *testing.T) {
	got := Score(models.SignalIAMChange, Input{IntentWeight: 0.4, Confidence: models.ConfidenceHigh})
	if got != 0.8 {
		t.Fatalf("expected 0.8, got %v", got)
	}
}

func TestScoreMultiIPBonus(t *testing.T) {
	single := Score(models.SignalAccessPattern, Input{Pattern: models.PatternSingleIP, Confidence: models.ConfidenceHigh})
	multi := Score(models.SignalAccessPattern, Input{Pattern: models.PatternMultiIP, Confidence: models.ConfidenceHigh})
	if single != 0.1 {
		t.Fatalf("expected 0.1 for single ip, got %v", single)
	}
	if multi != 0.3 {
		t.Fatalf("expected 0.3 for multi ip, got %v", multi)
	}
}

func TestScoreStaysInBounds(t *testing.T) {
	weights := []float64{0, 0.1, 0.4, 0.6, 0.8, 1.0}
	confidences := []models.Confidence{models.ConfidenceHigh, models.ConfidenceMedium, models.ConfidenceLow}
	types := []models.SignalType{
		models.SignalAccessPattern,
		models.SignalBruteForce,
		models.SignalPrivilege,
		models.SignalIAMChange,
		models.SignalFailedAuth,
	}
	for _, st := range types {
		for _, w := range weights {
			for _, c := range confidences {
				got := Score(st, Input{IntentWeight: w, Pattern: models.PatternMultiIP, Confidence: c})
				if got < 0 || got > 1 {
					t.Fatalf("score out of bounds for %s w=%v c=%s: %v", st, w, c, got)
				}
			}
		}
	}
}

func TestScoreMonotonicInIntentWeight(t *testing.T) {
	prev := -1.0
	for _, w := range []float64{0, 0.1, 0.2, 0.4, 0.6, 0.8, 1.0} {
		got := Score(models.SignalPrivilege, Input{IntentWeight: w, Confidence: models.ConfidenceHigh})
		if got < prev {
			t.Fatalf("score decreased at weight %v: %v < %v", w, got, prev)
		}
		prev = got
	}
}

func TestScoreMonotonicInConfidence(t *testing.T) {
	low := Score(models.SignalPrivilege, Input{IntentWeight: 0.4, Confidence: models.ConfidenceLow})
	medium := Score(models.SignalPrivilege, Input{IntentWeight: 0.4, Confidence: models.ConfidenceMedium})
	high := Score(models.SignalPrivilege, Input{IntentWeight: 0.4, Confidence: models.ConfidenceHigh})
	if !(low <= medium && medium <= high) {
		t.Fatalf("expected low <= medium <= high, got %v %v %v", low, medium, high)
	}
}

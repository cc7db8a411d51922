package models

import (
	"encoding/json"
	"fmt"
)

// RiskTier is the coarse summary-level risk classification. Tiers are
// totally ordered; higher values take precedence when summaries merge.
type RiskTier int

const (
	TierLow RiskTier = iota
	TierLowReviewed
	TierActionRecommended
)

const (
	tierLowLabel               = "Low"
	tierLowReviewedLabel       = "Low (Reviewed)"
	tierActionRecommendedLabel = "Action Recommended"
)

// String returns the canonical tier label.
func (t RiskTier) String() string {
	switch t {
	case TierActionRecommended:
		return tierActionRecommendedLabel
	case TierLowReviewed:
		return tierLowReviewedLabel
	default:
		return tierLowLabel
	}
}

// ParseRiskTier maps a canonical label to a tier.
func ParseRiskTier(v string) (RiskTier, error) {
	switch v {
	case tierLowLabel:
		return TierLow, nil
	case tierLowReviewedLabel:
		return TierLowReviewed, nil
	case tierActionRecommendedLabel:
		return TierActionRecommended, nil
	}
	return TierLow, fmt.Errorf("unknown risk tier %q", v)
}

// MaxTier returns the higher-precedence of two tiers.
func MaxTier(a, b RiskTier) RiskTier {
	if b > a {
		return b
	}
	return a
}

// MarshalJSON encodes the tier as its canonical label.
func (t RiskTier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a canonical label. Unknown labels default to Low
// so malformed upstream summaries degrade instead of failing the run.
func (t *RiskTier) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	tier, err := ParseRiskTier(v)
	if err != nil {
		*t = TierLow
		return nil
	}
	*t = tier
	return nil
}

package summary

import (
	"fmt"
	"time"

	"authsignal/pkg/models"
)

// ApplyOverrides stamps analyst dispositions onto signals by id. A signal
// whose resulting status is reviewed or resolved has its risk score forced
// to zero. Applying the same override set twice leaves the signals
// unchanged after the first pass.
func ApplyOverrides(signals []*models.Signal, overrides map[string]models.Override) {
	if len(overrides) == 0 {
		return
	}
	for _, s := range signals {
		ov, ok := overrides[s.ID]
		if !ok {
			continue
		}
		s.Status = ov.Status
		s.AnalystNote = ov.Note
		if s.Status == models.StatusReviewed || s.Status == models.StatusResolved {
			s.RiskScore = 0
		}
	}
}

// Aggregate merges per-source summaries and their (already overridden)
// signals into one fleet report. Tier precedence is independent of input
// order: any upstream Action Recommended wins, then summed high-risk and
// identity changes force Low (Reviewed).
func Aggregate(summaries []*models.SourceSummary, signals []*models.Signal, overrides map[string]models.Override, now time.Time) *models.FleetSummary {
	ApplyOverrides(signals, overrides)

	var h models.Highlights
	tier := models.TierLow
	var scoreSum float64
	for _, s := range summaries {
		h.Add(s.Highlights)
		tier = models.MaxTier(tier, s.OverallRisk)
		scoreSum += s.AvgRiskScore
	}
	if tier < models.TierActionRecommended && h.HighRiskChanges+h.IAMChanges > 0 {
		tier = models.TierLowReviewed
	}

	avg := 0.0
	if len(summaries) > 0 {
		avg = round2(scoreSum / float64(len(summaries)))
	}

	intents := make(map[string]int, 4)
	for _, s := range signals {
		intent, _ := s.Intent()
		intents[intent]++
	}

	return &models.FleetSummary{
		ReportType:      models.ReportTypeFleetSummary,
		Timestamp:       now.UTC(),
		OverallRisk:     tier,
		ServerCount:     len(summaries),
		FleetAvgScore:   avg,
		FleetHighlights: h,
		IntentSummary:   intents,
		Narrative:       fleetNarrative(tier, h, len(summaries)),
	}
}

// fleetNarrative concatenates fixed clauses parameterized by the summed
// counts and the chosen tier.
func fleetNarrative(tier models.RiskTier, h models.Highlights, servers int) string {
	accessClause := fmt.Sprintf(
		"Routine logins were recorded across the fleet (%d sessions), reflecting normal operational access.",
		h.AccessPatterns)

	multiIPClause := "Login activity originated from consistent network locations."
	if h.MultiIPInstances > 0 {
		multiIPClause = fmt.Sprintf(
			"%d instance(s) of access from multiple network locations were observed. This typically reflects normal team mobility between devices or networks.",
			h.MultiIPInstances)
	}

	iamClause := ""
	if h.IAMChanges > 0 {
		iamClause = fmt.Sprintf(
			" Identity management recorded %d user or group change(s), each retained in the audit trail.",
			h.IAMChanges)
	}

	privClause := fmt.Sprintf(
		"Administrative activity accounted for %d sessions, consistent with routine system management.",
		h.PrivilegedSessions)

	authClause := ""
	if h.BruteForceAttempts+h.FailedAuthAttempts > 0 {
		authClause = fmt.Sprintf(
			" Perimeter monitoring recorded %d brute-force window(s) and %d failed administrative authentication window(s); none succeeded.",
			h.BruteForceAttempts, h.FailedAuthAttempts)
	}

	var riskContext string
	switch tier {
	case models.TierActionRecommended:
		riskContext = "One or more servers reported administrative activity requiring follow-up. Please review the corresponding server-level reports."
	case models.TierLowReviewed:
		riskContext = "A small number of security-sensitive administrative changes were detected and reviewed. No action is required."
	default:
		riskContext = "No security-sensitive changes were detected."
	}

	return fmt.Sprintf(
		"This week, security activity across your fleet of %d servers remained stable. %s %s%s %s%s %s",
		servers, accessClause, multiIPClause, iamClause, privClause, authClause, riskContext)
}

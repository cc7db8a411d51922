package summary

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"authsignal/pkg/models"
)

func sig(t *testing.T, st models.SignalType, payload models.Payload, score float64) *models.Signal {
	t.Helper()
	ts := time.Date(2026, 2, 9, 8, 0, 0, 0, time.UTC)
	s, err := models.NewSignal(st, ts, "web1", "alice", models.ConfidenceHigh, payload)
	if err != nil {
		t.Fatalf("NewSignal: %v", err)
	}
	s.RiskScore = score
	return s
}

func TestSummarizeEmpty(t *testing.T) {
	got := Summarize(nil)
	if got.OverallRisk != models.TierLow {
		t.Fatalf("empty week should be Low, got %s", got.OverallRisk)
	}
	if got.AvgRiskScore != 0 || got.ServerCount != 1 {
		t.Fatalf("unexpected zero-week report: %+v", got)
	}
	if got.ReportType != models.ReportTypeSourceSummary {
		t.Fatalf("wrong report type %q", got.ReportType)
	}
	if got.Narrative == "" {
		t.Fatalf("narrative must not be empty")
	}
}

func TestSummarizeTierOrder(t *testing.T) {
	multiIP := sig(t, models.SignalAccessPattern, &models.AccessPatternPayload{
		UniqueIPs: []string{"10.0.0.1", "10.0.0.2"}, IPCount: 2, Pattern: models.PatternMultiIP,
	}, 0.3)
	highRisk := sig(t, models.SignalPrivilege, &models.PrivilegePayload{
		Intent: "Identity Management", IntentWeight: 0.4,
	}, 0.6)
	routine := sig(t, models.SignalPrivilege, &models.PrivilegePayload{
		Intent: "Maintenance", IntentWeight: 0.1,
	}, 0.3)

	// High-risk change outranks the multi-IP rule even when both match.
	got := Summarize([]*models.Signal{multiIP, highRisk})
	if got.OverallRisk != models.TierLowReviewed {
		t.Fatalf("expected Low (Reviewed), got %s", got.OverallRisk)
	}
	if !strings.Contains(got.Narrative, "Security-sensitive administrative") {
		t.Fatalf("high-risk rule should drive the narrative, got %q", got.Narrative)
	}

	got = Summarize([]*models.Signal{multiIP})
	if got.OverallRisk != models.TierLowReviewed || !strings.Contains(got.Narrative, "multiple locations") {
		t.Fatalf("multi-ip week should be reviewed: %+v", got)
	}

	got = Summarize([]*models.Signal{routine})
	if got.OverallRisk != models.TierLow {
		t.Fatalf("routine week should be Low, got %s", got.OverallRisk)
	}
}

func TestSummarizeHighlightsAndIntents(t *testing.T) {
	signals := []*models.Signal{
		sig(t, models.SignalAccessPattern, &models.AccessPatternPayload{UniqueIPs: []string{"10.0.0.1"}, IPCount: 1, Pattern: models.PatternSingleIP}, 0.1),
		sig(t, models.SignalAccessPattern, &models.AccessPatternPayload{UniqueIPs: []string{"10.0.0.1", "10.0.0.2"}, IPCount: 2, Pattern: models.PatternMultiIP}, 0.3),
		sig(t, models.SignalPrivilege, &models.PrivilegePayload{Intent: "Maintenance", IntentWeight: 0.1}, 0.3),
		sig(t, models.SignalIAMChange, &models.IAMChangePayload{Program: "useradd", Intent: "Identity Management", IntentWeight: 0.4}, 0.8),
		sig(t, models.SignalBruteForce, &models.BruteForcePayload{IP: "203.0.113.9", FailureCount: 4}, 0.3),
		sig(t, models.SignalFailedAuth, &models.FailedAuthPayload{Source: "sudo", FailureCount: 2}, 0.3),
	}

	got := Summarize(signals)
	h := got.Highlights
	if h.AccessPatterns != 2 || h.MultiIPInstances != 1 || h.PrivilegedSessions != 1 ||
		h.HighRiskChanges != 1 || h.IAMChanges != 1 || h.BruteForceAttempts != 1 || h.FailedAuthAttempts != 1 {
		t.Fatalf("unexpected highlights: %+v", h)
	}
	if got.AvgRiskScore != 0.35 {
		t.Fatalf("avg of (0.1+0.3+0.3+0.8+0.3+0.3)/6 should be 0.35, got %v", got.AvgRiskScore)
	}
	if got.IntentDistribution["General Administration"] != 4 ||
		got.IntentDistribution["Maintenance"] != 1 ||
		got.IntentDistribution["Identity Management"] != 1 {
		t.Fatalf("unexpected intent distribution: %v", got.IntentDistribution)
	}
}

func TestFleetTierPrecedenceRegardlessOfOrder(t *testing.T) {
	mk := func(tier models.RiskTier) *models.SourceSummary {
		return &models.SourceSummary{ReportType: models.ReportTypeSourceSummary, OverallRisk: tier}
	}
	now := time.Date(2026, 2, 13, 9, 0, 0, 0, time.UTC)

	orders := [][]*models.SourceSummary{
		{mk(models.TierLow), mk(models.TierActionRecommended), mk(models.TierLowReviewed)},
		{mk(models.TierActionRecommended), mk(models.TierLow), mk(models.TierLowReviewed)},
		{mk(models.TierLowReviewed), mk(models.TierLow), mk(models.TierActionRecommended)},
	}
	for i, summaries := range orders {
		got := Aggregate(summaries, nil, nil, now)
		if got.OverallRisk != models.TierActionRecommended {
			t.Fatalf("order %d: expected Action Recommended, got %s", i, got.OverallRisk)
		}
	}
}

func TestFleetHighRiskAndIAMForceReviewed(t *testing.T) {
	now := time.Date(2026, 2, 13, 9, 0, 0, 0, time.UTC)
	summaries := []*models.SourceSummary{
		{ReportType: models.ReportTypeSourceSummary, OverallRisk: models.TierLow, Highlights: models.Highlights{IAMChanges: 1}},
		{ReportType: models.ReportTypeSourceSummary, OverallRisk: models.TierLow},
	}
	got := Aggregate(summaries, nil, nil, now)
	if got.OverallRisk != models.TierLowReviewed {
		t.Fatalf("summed iam changes should force Low (Reviewed), got %s", got.OverallRisk)
	}
	if got.ServerCount != 2 || got.ReportType != models.ReportTypeFleetSummary {
		t.Fatalf("unexpected fleet report: %+v", got)
	}
}

func TestFleetAvgScore(t *testing.T) {
	now := time.Date(2026, 2, 13, 9, 0, 0, 0, time.UTC)
	summaries := []*models.SourceSummary{
		{OverallRisk: models.TierLow, AvgRiskScore: 0.2},
		{OverallRisk: models.TierLow, AvgRiskScore: 0.4},
		{OverallRisk: models.TierLow},
	}
	got := Aggregate(summaries, nil, nil, now)
	if got.FleetAvgScore != 0.2 {
		t.Fatalf("expected (0.2+0.4+0)/3 = 0.2, got %v", got.FleetAvgScore)
	}
}

func TestOverridesZeroReviewedScores(t *testing.T) {
	reviewed := sig(t, models.SignalIAMChange, &models.IAMChangePayload{Program: "usermod", Intent: "Identity Management", IntentWeight: 0.4}, 0.8)
	open := sig(t, models.SignalBruteForce, &models.BruteForcePayload{IP: "203.0.113.9", FailureCount: 4}, 0.3)
	overrides := map[string]models.Override{
		reviewed.ID: {Status: models.StatusReviewed, Note: "change ticket OPS-112"},
	}

	ApplyOverrides([]*models.Signal{reviewed, open}, overrides)
	if reviewed.Status != models.StatusReviewed || reviewed.RiskScore != 0 {
		t.Fatalf("reviewed signal should be zeroed: %+v", reviewed)
	}
	if reviewed.AnalystNote != "change ticket OPS-112" {
		t.Fatalf("note not applied: %q", reviewed.AnalystNote)
	}
	if open.Status != models.StatusOpen || open.RiskScore != 0.3 {
		t.Fatalf("unrelated signal mutated: %+v", open)
	}
}

func TestOverridesIdempotent(t *testing.T) {
	now := time.Date(2026, 2, 13, 9, 0, 0, 0, time.UTC)
	build := func() ([]*models.SourceSummary, []*models.Signal) {
		s1 := sig(t, models.SignalIAMChange, &models.IAMChangePayload{Program: "usermod", Intent: "Identity Management", IntentWeight: 0.4}, 0.8)
		s2 := sig(t, models.SignalBruteForce, &models.BruteForcePayload{IP: "203.0.113.9", FailureCount: 4}, 0.3)
		sum := Summarize([]*models.Signal{s1, s2})
		return []*models.SourceSummary{sum}, []*models.Signal{s1, s2}
	}
	overrides := func(signals []*models.Signal) map[string]models.Override {
		return map[string]models.Override{signals[0].ID: {Status: models.StatusResolved, Note: "done"}}
	}

	render := func(applications int) []byte {
		summaries, signals := build()
		ov := overrides(signals)
		for i := 0; i < applications; i++ {
			ApplyOverrides(signals, ov)
		}
		out, err := json.Marshal(Aggregate(summaries, signals, ov, now))
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return out
	}

	once, twice := render(1), render(2)
	if !bytes.Equal(once, twice) {
		t.Fatalf("override application not idempotent:\n%s\n%s", once, twice)
	}
}

func TestMalformedSummaryDefaultsToZero(t *testing.T) {
	var s models.SourceSummary
	if err := json.Unmarshal([]byte(`{"report_type":"weekly_security_summary","overall_risk":"??","highlights":{}}`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.OverallRisk != models.TierLow {
		t.Fatalf("unknown tier should decode as Low, got %s", s.OverallRisk)
	}
	if s.Highlights != (models.Highlights{}) {
		t.Fatalf("missing highlight keys should decode to zero: %+v", s.Highlights)
	}
}

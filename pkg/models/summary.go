package models

import "time"

// Report type labels recognized by the fleet loader.
const (
	ReportTypeSourceSummary = "weekly_security_summary"
	ReportTypeFleetSummary  = "fleet_weekly_security_summary"
)

// Highlights counts signals by category for one reporting period.
// Missing keys in upstream JSON decode to zero.
type Highlights struct {
	AccessPatterns     int `json:"access_patterns"`
	MultiIPInstances   int `json:"multi_ip_instances"`
	PrivilegedSessions int `json:"privileged_sessions"`
	HighRiskChanges    int `json:"high_risk_changes"`
	IAMChanges         int `json:"iam_changes"`
	BruteForceAttempts int `json:"ssh_brute_force_attempts"`
	FailedAuthAttempts int `json:"failed_auth_attempts"`
}

// Add accumulates another set of highlight counters.
func (h *Highlights) Add(other Highlights) {
	h.AccessPatterns += other.AccessPatterns
	h.MultiIPInstances += other.MultiIPInstances
	h.PrivilegedSessions += other.PrivilegedSessions
	h.HighRiskChanges += other.HighRiskChanges
	h.IAMChanges += other.IAMChanges
	h.BruteForceAttempts += other.BruteForceAttempts
	h.FailedAuthAttempts += other.FailedAuthAttempts
}

// SourceSummary is the weekly rollup for one log source.
type SourceSummary struct {
	ReportType         string         `json:"report_type"`
	OverallRisk        RiskTier       `json:"overall_risk"`
	AvgRiskScore       float64        `json:"avg_risk_score"`
	ServerCount        int            `json:"server_count"`
	Highlights         Highlights     `json:"highlights"`
	IntentDistribution map[string]int `json:"intent_distribution,omitempty"`
	Narrative          string         `json:"narrative"`
}

// FleetSummary merges per-source summaries across a fleet.
type FleetSummary struct {
	ReportType      string         `json:"report_type"`
	Timestamp       time.Time      `json:"timestamp"`
	OverallRisk     RiskTier       `json:"overall_risk"`
	ServerCount     int            `json:"server_count"`
	FleetAvgScore   float64        `json:"fleet_avg_score"`
	FleetHighlights Highlights     `json:"fleet_highlights"`
	IntentSummary   map[string]int `json:"intent_summary,omitempty"`
	Narrative       string         `json:"narrative"`
}

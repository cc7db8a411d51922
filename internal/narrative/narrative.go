// Package narrative renders deterministic customer-facing text for signals.
// It is the fallback used when no external enrichment is available, so it
// must produce non-empty output for every signal type and can never fail.
package narrative

import (
	"fmt"

	"authsignal/pkg/models"
)

// sensitiveIntentThreshold selects the "sensitive administrative change"
// phrasing for privileged activity.
const sensitiveIntentThreshold = 0.4

// Narrative returns the incident narrative for a signal.
func Narrative(s *models.Signal) string {
	switch s.Type {
	case models.SignalAccessPattern:
		p := s.AccessPattern()
		if p != nil && p.Pattern == models.PatternMultiIP {
			return fmt.Sprintf(
				"Your account '%s' was accessed from %d different network locations within one hour. "+
					"This often occurs when using multiple devices or transitioning between networks, but is recorded for visibility. "+
					"No action is required unless you do not recognize this activity.",
				s.User, p.IPCount)
		}
		return fmt.Sprintf("A standard login was recorded for user '%s'. This is routine system access. No action is required.", s.User)

	case models.SignalPrivilege:
		intent, weight := s.Intent()
		if weight >= sensitiveIntentThreshold {
			return fmt.Sprintf(
				"User '%s' performed sensitive administrative changes (%s). "+
					"These actions are typical during system maintenance but are highlighted to ensure they were intended. "+
					"Please consult your technical team if these changes were not authorized.",
				s.User, intent)
		}
		return fmt.Sprintf("User '%s' performed routine administrative tasks. This is part of normal system operation. No action is required.", s.User)

	case models.SignalIAMChange:
		program := "unknown"
		if p := s.IAMChange(); p != nil {
			program = p.Program
		}
		return fmt.Sprintf(
			"An identity management event was recorded: user or group changes were made using '%s'. "+
				"Identity changes are fundamental to system security and are recorded to maintain an accurate audit trail of access permissions.",
			program)

	case models.SignalBruteForce:
		count, ip := 0, "unknown"
		if p := s.BruteForce(); p != nil {
			count, ip = p.FailureCount, p.IP
		}
		return fmt.Sprintf(
			"Multiple unsuccessful login attempts (%d) were recorded for the user '%s' from IP %s. "+
				"Automated scripts on the internet frequently attempt to guess passwords. While these attempts were unsuccessful, "+
				"they are recorded as a standard part of our perimeter monitoring.",
			count, s.User, ip)

	case models.SignalFailedAuth:
		source := "unknown"
		if p := s.FailedAuth(); p != nil && p.Source != "" {
			source = p.Source
		}
		return fmt.Sprintf(
			"An unsuccessful attempt to perform administrative tasks (via %s) was recorded for user '%s'. "+
				"This typically occurs due to an incorrect password entry and is recorded for audit purposes. "+
				"No action is required unless this activity was not initiated by you.",
			source, s.User)
	}

	return "Routine security event recorded. No action required."
}

// Recommendation returns the actionable follow-up for a signal. It reads
// the already-computed risk score, so it must run after scoring.
func Recommendation(s *models.Signal) string {
	switch s.Type {
	case models.SignalBruteForce:
		if s.RiskScore > 0.6 {
			return "Critical: Threshold exceeded. Recommendation: Place IP on temporary firewall blocklist and verify account MFA status."
		}
		return "Insight: Automated probe detected. Recommendation: Ensure password-based authentication is disabled for this user."

	case models.SignalPrivilege:
		intent, _ := s.Intent()
		switch intent {
		case "Identity Management":
			return "Audit Tip: Review this change against the authorized maintenance window or ticket. No immediate technical action required."
		case "Impact / Destructive":
			return "High Priority: Destructive command detected. Recommendation: Verify authorization immediately and inspect system integrity logs."
		}
		return "Insight: Routine administrative task. No action needed."

	case models.SignalIAMChange:
		return "Compliance Step: Ensure the newly created or modified user is assigned to a specific business owner in your IAM registry."

	case models.SignalAccessPattern:
		if p := s.AccessPattern(); p != nil && p.Pattern == models.PatternMultiIP {
			return "Precaution: Confirm this user was traveling or using a VPN during this period. If not, consider a password reset."
		}

	case models.SignalFailedAuth:
		if p := s.FailedAuth(); p != nil && p.FailureCount > 5 {
			return "Investigation: Repeated administrative failures detected. Recommendation: Check for stale credentials in local automation scripts."
		}
	}

	return "No actionable recommendation for routine events."
}

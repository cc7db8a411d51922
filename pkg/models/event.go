package models

import "time"

// EventType identifies a parsed auth-log event variant.
type EventType string

const (
	EventSSHLogin            EventType = "ssh_login"
	EventSSHFailure          EventType = "ssh_failure"
	EventPrivilegeEscalation EventType = "privilege_escalation"
	EventAuthFailure         EventType = "auth_failure"
	EventIAMChange           EventType = "iam_change"
)

// Confidence is the attribution confidence of an event or signal.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Multiplier returns the risk multiplier for a confidence level.
// Unknown values fall back to the medium multiplier.
func (c Confidence) Multiplier() float64 {
	switch c {
	case ConfidenceHigh:
		return 1.0
	case ConfidenceMedium:
		return 0.7
	case ConfidenceLow:
		return 0.4
	default:
		return 0.7
	}
}

// ParsedEvent is one typed event extracted from a raw log line.
// Variant fields are populated per Type; the rest stay zero.
type ParsedEvent struct {
	Type      EventType
	Timestamp time.Time
	Hostname  string
	User      string

	// ssh_login / ssh_failure
	IP string

	// privilege_escalation
	Command    string
	TargetUser string

	// privilege_escalation (su) / auth_failure
	Source string

	// iam_change
	Program string
	Message string

	Confidence Confidence

	// Detection rule matches attached after extraction.
	Detections []DetectionTag
}

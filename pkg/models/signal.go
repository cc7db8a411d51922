package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// SignalType identifies a signal category.
type SignalType string

const (
	SignalAccessPattern SignalType = "ssh_access_pattern"
	SignalBruteForce    SignalType = "ssh_brute_force"
	SignalPrivilege     SignalType = "privilege_escalation"
	SignalIAMChange     SignalType = "iam_change"
	SignalFailedAuth    SignalType = "failed_auth"
)

// Status is the analyst disposition of a signal.
type Status string

const (
	StatusOpen     Status = "open"
	StatusReviewed Status = "reviewed"
	StatusResolved Status = "resolved"
)

const (
	PatternSingleIP = "single_ip_access"
	PatternMultiIP  = "multi_ip_access"
)

// DefaultIntent is assigned to commands and signals with no specific intent.
const DefaultIntent = "General Administration"

// ClassifiedCommand is one privileged command with classifier metadata.
type ClassifiedCommand struct {
	Command    string     `json:"command"`
	Risk       string     `json:"risk"`
	Intent     string     `json:"intent"`
	Mitre      string     `json:"mitre"`
	Compliance string     `json:"compliance"`
	RiskWeight float64    `json:"risk_weight"`
	Source     string     `json:"source"`
	Confidence Confidence `json:"confidence"`
}

// DetectionTag labels a signal with a matched detection rule.
type DetectionTag struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Severity  string `json:"severity,omitempty"`
	Tactic    string `json:"tactic,omitempty"`
	Technique string `json:"technique,omitempty"`
}

// Override is an analyst disposition keyed by signal id.
type Override struct {
	Status Status `json:"status"`
	Note   string `json:"note,omitempty"`
}

// Payload holds the category-specific fields of a signal.
type Payload interface {
	Kind() SignalType
}

// AccessPatternPayload describes login activity for one (user, host) hour.
type AccessPatternPayload struct {
	UniqueIPs []string `json:"unique_ips"`
	IPCount   int      `json:"ip_count"`
	Pattern   string   `json:"pattern"`
}

func (*AccessPatternPayload) Kind() SignalType { return SignalAccessPattern }

// BruteForcePayload describes repeated SSH failures for one (user, ip, host).
type BruteForcePayload struct {
	IP           string `json:"ip"`
	FailureCount int    `json:"failure_count"`
}

func (*BruteForcePayload) Kind() SignalType { return SignalBruteForce }

// PrivilegePayload describes privileged command activity in one window.
type PrivilegePayload struct {
	Intent         string              `json:"intent"`
	IntentWeight   float64             `json:"intent_weight"`
	MitreTags      []string            `json:"mitre_tags"`
	ComplianceTags []string            `json:"compliance_tags"`
	Commands       []ClassifiedCommand `json:"commands"`
}

func (*PrivilegePayload) Kind() SignalType { return SignalPrivilege }

// IAMChangePayload describes one identity-management event.
type IAMChangePayload struct {
	Program        string   `json:"program"`
	Message        string   `json:"message"`
	Intent         string   `json:"intent"`
	IntentWeight   float64  `json:"intent_weight"`
	MitreTags      []string `json:"mitre_tags"`
	ComplianceTags []string `json:"compliance_tags"`
}

func (*IAMChangePayload) Kind() SignalType { return SignalIAMChange }

// FailedAuthPayload describes failed sudo/su authentication in one window.
type FailedAuthPayload struct {
	Source       string `json:"source"`
	FailureCount int    `json:"failure_count"`
}

func (*FailedAuthPayload) Kind() SignalType { return SignalFailedAuth }

// Signal is one emitted, risk-scored, classified security event. The
// envelope is common to all categories; Payload carries the variant fields
// and is flattened into the JSON object alongside the envelope.
type Signal struct {
	ID             string         `json:"id"`
	Type           SignalType     `json:"signal"`
	Timestamp      time.Time      `json:"timestamp"`
	Hostname       string         `json:"hostname"`
	User           string         `json:"user"`
	Confidence     Confidence     `json:"confidence"`
	Status         Status         `json:"status"`
	RiskScore      float64        `json:"risk_score"`
	Narrative      string         `json:"narrative,omitempty"`
	Recommendation string         `json:"recommendation,omitempty"`
	AnalystNote    string         `json:"analyst_note,omitempty"`
	Detections     []DetectionTag `json:"detections,omitempty"`

	Payload Payload `json:"-"`
}

// NewSignal builds a signal envelope with a deterministic id and validates
// that the payload matches the declared category.
func NewSignal(t SignalType, ts time.Time, hostname, user string, conf Confidence, payload Payload) (*Signal, error) {
	if payload == nil {
		return nil, fmt.Errorf("signal %s: payload is required", t)
	}
	if payload.Kind() != t {
		return nil, fmt.Errorf("signal %s: payload kind %s does not match", t, payload.Kind())
	}
	if hostname == "" || user == "" {
		return nil, fmt.Errorf("signal %s: hostname and user are required", t)
	}
	return &Signal{
		ID:         SignalID(t, ts, hostname, user),
		Type:       t,
		Timestamp:  ts,
		Hostname:   hostname,
		User:       user,
		Confidence: conf,
		Status:     StatusOpen,
		Payload:    payload,
	}, nil
}

// SignalID derives the stable signal identifier. Reprocessing the same
// input yields the same id, so recorded overrides keep applying.
func SignalID(t SignalType, ts time.Time, hostname, user string) string {
	sum := sha256.Sum256([]byte(string(t) + "|" + ts.UTC().Format(time.RFC3339) + "|" + hostname + "|" + user))
	return hex.EncodeToString(sum[:])[:12]
}

// AccessPattern returns the payload when the signal is an access pattern.
func (s *Signal) AccessPattern() *AccessPatternPayload {
	p, _ := s.Payload.(*AccessPatternPayload)
	return p
}

// BruteForce returns the payload when the signal is a brute-force attempt.
func (s *Signal) BruteForce() *BruteForcePayload {
	p, _ := s.Payload.(*BruteForcePayload)
	return p
}

// Privilege returns the payload when the signal is a privilege escalation.
func (s *Signal) Privilege() *PrivilegePayload {
	p, _ := s.Payload.(*PrivilegePayload)
	return p
}

// IAMChange returns the payload when the signal is an IAM change.
func (s *Signal) IAMChange() *IAMChangePayload {
	p, _ := s.Payload.(*IAMChangePayload)
	return p
}

// FailedAuth returns the payload when the signal is a failed auth.
func (s *Signal) FailedAuth() *FailedAuthPayload {
	p, _ := s.Payload.(*FailedAuthPayload)
	return p
}

// Intent returns the classifier intent and weight carried by the signal.
// Signal types without intent metadata report the default intent.
func (s *Signal) Intent() (string, float64) {
	switch p := s.Payload.(type) {
	case *PrivilegePayload:
		return p.Intent, p.IntentWeight
	case *IAMChangePayload:
		return p.Intent, p.IntentWeight
	}
	return DefaultIntent, 0
}

// MarshalJSON flattens the envelope and the payload into one object.
// Keys serialize in sorted order, so output is byte-stable.
func (s *Signal) MarshalJSON() ([]byte, error) {
	type envelope Signal
	base, err := json.Marshal((*envelope)(s))
	if err != nil {
		return nil, err
	}
	merged := make(map[string]json.RawMessage, 24)
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	if s.Payload != nil {
		body, err := json.Marshal(s.Payload)
		if err != nil {
			return nil, err
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, err
		}
		for k, v := range fields {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON restores the envelope and rehydrates the payload variant
// selected by the signal type.
func (s *Signal) UnmarshalJSON(data []byte) error {
	type envelope Signal
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return err
	}
	*s = Signal(e)

	switch s.Type {
	case SignalAccessPattern:
		p := &AccessPatternPayload{}
		if err := json.Unmarshal(data, p); err != nil {
			return err
		}
		s.Payload = p
	case SignalBruteForce:
		p := &BruteForcePayload{}
		if err := json.Unmarshal(data, p); err != nil {
			return err
		}
		s.Payload = p
	case SignalPrivilege:
		p := &PrivilegePayload{}
		if err := json.Unmarshal(data, p); err != nil {
			return err
		}
		s.Payload = p
	case SignalIAMChange:
		p := &IAMChangePayload{}
		if err := json.Unmarshal(data, p); err != nil {
			return err
		}
		s.Payload = p
	case SignalFailedAuth:
		p := &FailedAuthPayload{}
		if err := json.Unmarshal(data, p); err != nil {
			return err
		}
		s.Payload = p
	}
	return nil
}

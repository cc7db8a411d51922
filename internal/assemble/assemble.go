// Package assemble builds finished signals from finalized window
// accumulators and from single online events.
package assemble

import (
	"sort"

	"authsignal/internal/classify"
	"authsignal/internal/narrative"
	"authsignal/internal/score"
	"authsignal/internal/window"
	"authsignal/pkg/models"
)

// bruteForceThreshold is the minimum failure count in one window before a
// brute-force signal is emitted.
const bruteForceThreshold = 3

// FromWindow converts one finalized accumulator into a signal. It returns
// nil for window categories that never emit (login dedupe) and for
// brute-force windows below the emission threshold.
func FromWindow(acc *window.Accumulator) *models.Signal {
	if acc == nil {
		return nil
	}
	key := acc.Key
	ts := key.StartTime()

	switch key.Category {
	case window.CategoryLoginDedupe:
		// Counted for visibility only; the 1-hour access-pattern window
		// carries the emitted signal for the same logins.
		return nil

	case window.CategoryAccessPattern:
		ips := acc.UniqueIPs()
		pattern := models.PatternSingleIP
		if len(ips) > 1 {
			pattern = models.PatternMultiIP
		}
		sig, err := models.NewSignal(models.SignalAccessPattern, ts, key.Host, key.User, models.ConfidenceHigh, &models.AccessPatternPayload{
			UniqueIPs: ips,
			IPCount:   len(ips),
			Pattern:   pattern,
		})
		if err != nil {
			return nil
		}
		return finish(sig, acc)

	case window.CategoryBruteForce:
		if acc.Count < bruteForceThreshold {
			return nil
		}
		sig, err := models.NewSignal(models.SignalBruteForce, ts, key.Host, key.User, models.ConfidenceHigh, &models.BruteForcePayload{
			IP:           key.IP,
			FailureCount: acc.Count,
		})
		if err != nil {
			return nil
		}
		return finish(sig, acc)

	case window.CategoryPrivilege:
		payload, conf := privilegePayload(acc.Events)
		sig, err := models.NewSignal(models.SignalPrivilege, ts, key.Host, key.User, conf, payload)
		if err != nil {
			return nil
		}
		return finish(sig, acc)

	case window.CategoryAuthFailure:
		sig, err := models.NewSignal(models.SignalFailedAuth, ts, key.Host, key.User, models.ConfidenceHigh, &models.FailedAuthPayload{
			Source:       key.Source,
			FailureCount: acc.Count,
		})
		if err != nil {
			return nil
		}
		return finish(sig, acc)
	}

	return nil
}

// FromIAMEvent converts one identity-management event into a signal.
// IAM changes are deliberate one-off administrative actions and are not
// windowed.
func FromIAMEvent(ev *models.ParsedEvent) *models.Signal {
	if ev == nil || ev.Type != models.EventIAMChange {
		return nil
	}
	meta := classify.Classify(ev.Program)
	sig, err := models.NewSignal(models.SignalIAMChange, ev.Timestamp, ev.Hostname, ev.User, ev.Confidence, &models.IAMChangePayload{
		Program:        ev.Program,
		Message:        ev.Message,
		Intent:         meta.Intent,
		IntentWeight:   meta.RiskWeight,
		MitreTags:      tagList(meta.Mitre),
		ComplianceTags: tagList(meta.Compliance),
	})
	if err != nil {
		return nil
	}
	return finish(sig, nil)
}

// FromOnlineEvent converts one event into an immediate signal with no
// windowing. Cross-event patterns degrade to per-event visibility: an
// access-pattern signal always reports a single IP and a brute-force
// signal a single failure.
func FromOnlineEvent(ev *models.ParsedEvent) *models.Signal {
	if ev == nil {
		return nil
	}
	switch ev.Type {
	case models.EventSSHLogin:
		sig, err := models.NewSignal(models.SignalAccessPattern, ev.Timestamp, ev.Hostname, ev.User, models.ConfidenceHigh, &models.AccessPatternPayload{
			UniqueIPs: []string{ev.IP},
			IPCount:   1,
			Pattern:   models.PatternSingleIP,
		})
		if err != nil {
			return nil
		}
		return finish(sig, nil)

	case models.EventSSHFailure:
		sig, err := models.NewSignal(models.SignalBruteForce, ev.Timestamp, ev.Hostname, ev.User, models.ConfidenceHigh, &models.BruteForcePayload{
			IP:           ev.IP,
			FailureCount: 1,
		})
		if err != nil {
			return nil
		}
		return finish(sig, nil)

	case models.EventPrivilegeEscalation:
		payload, conf := privilegePayload([]*models.ParsedEvent{ev})
		sig, err := models.NewSignal(models.SignalPrivilege, ev.Timestamp, ev.Hostname, ev.User, conf, payload)
		if err != nil {
			return nil
		}
		return finish(sig, nil)

	case models.EventAuthFailure:
		sig, err := models.NewSignal(models.SignalFailedAuth, ev.Timestamp, ev.Hostname, ev.User, ev.Confidence, &models.FailedAuthPayload{
			Source:       ev.Source,
			FailureCount: 1,
		})
		if err != nil {
			return nil
		}
		return finish(sig, nil)

	case models.EventIAMChange:
		return FromIAMEvent(ev)
	}
	return nil
}

// privilegePayload classifies every command in the window and aggregates
// the metadata: the heaviest intent wins, tag sets are deduplicated, and
// collective confidence drops to medium when any contributing event was
// medium.
func privilegePayload(events []*models.ParsedEvent) (*models.PrivilegePayload, models.Confidence) {
	commands := make([]models.ClassifiedCommand, 0, len(events))
	maxWeight := 0.0
	primaryIntent := models.DefaultIntent
	mitre := make(map[string]struct{}, 2)
	compliance := make(map[string]struct{}, 2)
	conf := models.ConfidenceHigh

	for _, ev := range events {
		meta := classify.Classify(ev.Command)
		risk := "normal"
		if meta.RiskWeight >= 0.4 {
			risk = "high"
		}
		source := ev.Source
		if source == "" {
			source = "unknown"
		}
		evConf := ev.Confidence
		if evConf == "" {
			evConf = models.ConfidenceHigh
		}
		if evConf == models.ConfidenceMedium {
			conf = models.ConfidenceMedium
		}
		commands = append(commands, models.ClassifiedCommand{
			Command:    ev.Command,
			Risk:       risk,
			Intent:     meta.Intent,
			Mitre:      meta.Mitre,
			Compliance: meta.Compliance,
			RiskWeight: meta.RiskWeight,
			Source:     source,
			Confidence: evConf,
		})
		if meta.RiskWeight > maxWeight || len(commands) == 1 {
			maxWeight = meta.RiskWeight
			primaryIntent = meta.Intent
		}
		if meta.Mitre != "N/A" {
			mitre[meta.Mitre] = struct{}{}
		}
		if meta.Compliance != "N/A" {
			compliance[meta.Compliance] = struct{}{}
		}
	}

	return &models.PrivilegePayload{
		Intent:         primaryIntent,
		IntentWeight:   maxWeight,
		MitreTags:      sortedKeys(mitre),
		ComplianceTags: sortedKeys(compliance),
		Commands:       commands,
	}, conf
}

// finish scores the signal, renders the deterministic narrative pair and
// copies detection tags collected during the fold.
func finish(sig *models.Signal, acc *window.Accumulator) *models.Signal {
	_, weight := sig.Intent()
	pattern := ""
	if p := sig.AccessPattern(); p != nil {
		pattern = p.Pattern
	}
	sig.RiskScore = score.Score(sig.Type, score.Input{
		IntentWeight: weight,
		Pattern:      pattern,
		Confidence:   sig.Confidence,
	})
	sig.Narrative = narrative.Narrative(sig)
	sig.Recommendation = narrative.Recommendation(sig)
	if acc != nil {
		sig.Detections = acc.Detections
	}
	return sig
}

func tagList(v string) []string {
	if v == "N/A" || v == "" {
		return nil
	}
	return []string{v}
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

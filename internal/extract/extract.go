// Package extract turns raw auth-log lines into typed events.
package extract

import (
	"regexp"
	"strings"
	"time"

	"authsignal/pkg/models"
)

var (
	// ISO-prefixed header: timestamp hostname program[pid]: message
	isoHeaderRegex = regexp.MustCompile(`^(\S+)\s+(\S+)\s+([^\[:]+?)(?:\[\d+\])?:\s+(.*)$`)
	// Legacy syslog header: "Mon  2 15:04:05 hostname program[pid]: message"
	legacyHeaderRegex = regexp.MustCompile(`^([A-Z][a-z]{2}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2})\s+(\S+)\s+([^\[:]+?)(?:\[\d+\])?:\s+(.*)$`)

	sshLoginRegex      = regexp.MustCompile(`for\s+(\S+)\s+from\s+(\S+)`)
	sshFailureRegex    = regexp.MustCompile(`for\s+(?:invalid user\s+)?(\S+)\s+from\s+(\S+)`)
	invalidUserRegex   = regexp.MustCompile(`Invalid user\s+(\S+)\s+from\s+(\S+)`)
	sudoUserRegex      = regexp.MustCompile(`^\s*(\S+)\s+:`)
	sudoCommandRegex   = regexp.MustCompile(`COMMAND=(.*)`)
	pamUserRegex       = regexp.MustCompile(`user=(\S+)`)
	suSessionRegex     = regexp.MustCompile(`user\s+(\S+)\s+by\s+(\S+)\(`)
)

var iamPrograms = map[string]struct{}{
	"useradd":  {},
	"usermod":  {},
	"userdel":  {},
	"groupadd": {},
	"groupmod": {},
	"groupdel": {},
	"chage":    {},
}

// Extract parses one raw log line into a typed event. Lines that do not
// match the header grammar, whose timestamp cannot be parsed, or that match
// no detection rule return nil. Extract never fails on malformed input.
func Extract(line string) *models.ParsedEvent {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	var tsRaw, hostname, program, message string
	if m := legacyHeaderRegex.FindStringSubmatch(line); m != nil {
		tsRaw, hostname, program, message = m[1], m[2], m[3], m[4]
	} else if m := isoHeaderRegex.FindStringSubmatch(line); m != nil {
		tsRaw, hostname, program, message = m[1], m[2], m[3], m[4]
	} else {
		return nil
	}
	program = strings.TrimSpace(program)

	ts, ok := parseTimestamp(tsRaw)
	if !ok {
		return nil
	}

	if program == "sshd" {
		if strings.Contains(message, "Accepted publickey") {
			if m := sshLoginRegex.FindStringSubmatch(message); m != nil {
				return &models.ParsedEvent{
					Type:      models.EventSSHLogin,
					Timestamp: ts,
					Hostname:  hostname,
					User:      m[1],
					IP:        m[2],
				}
			}
		}
		if strings.Contains(message, "Failed password") || strings.Contains(message, "Invalid user") {
			m := sshFailureRegex.FindStringSubmatch(message)
			if m == nil {
				m = invalidUserRegex.FindStringSubmatch(message)
			}
			if m != nil {
				return &models.ParsedEvent{
					Type:      models.EventSSHFailure,
					Timestamp: ts,
					Hostname:  hostname,
					User:      m[1],
					IP:        m[2],
				}
			}
		}
	}

	if program == "sudo" {
		if strings.Contains(message, "COMMAND=") && strings.Contains(message, "USER=root") {
			userMatch := sudoUserRegex.FindStringSubmatch(message)
			cmdMatch := sudoCommandRegex.FindStringSubmatch(message)
			if userMatch != nil && cmdMatch != nil {
				return &models.ParsedEvent{
					Type:       models.EventPrivilegeEscalation,
					Timestamp:  ts,
					Hostname:   hostname,
					User:       userMatch[1],
					Command:    strings.TrimSpace(cmdMatch[1]),
					Source:     "sudo",
					Confidence: models.ConfidenceHigh,
				}
			}
		}
	}

	if program == "sudo" || program == "su" {
		if strings.Contains(message, "authentication failure") || strings.Contains(message, "conversation failed") {
			m := pamUserRegex.FindStringSubmatch(message)
			if m == nil {
				m = sudoUserRegex.FindStringSubmatch(message)
			}
			if m != nil {
				return &models.ParsedEvent{
					Type:       models.EventAuthFailure,
					Timestamp:  ts,
					Hostname:   hostname,
					User:       m[1],
					Source:     program,
					Confidence: models.ConfidenceHigh,
				}
			}
		}
	}

	if program == "su" {
		if strings.Contains(message, "session opened for user") {
			if m := suSessionRegex.FindStringSubmatch(message); m != nil {
				return &models.ParsedEvent{
					Type:       models.EventPrivilegeEscalation,
					Timestamp:  ts,
					Hostname:   hostname,
					User:       m[2],
					TargetUser: m[1],
					Command:    "su to " + m[1],
					Source:     "su",
					Confidence: models.ConfidenceMedium,
				}
			}
		}
	}

	if _, ok := iamPrograms[program]; ok {
		return &models.ParsedEvent{
			Type:       models.EventIAMChange,
			Timestamp:  ts,
			Hostname:   hostname,
			User:       "root",
			Program:    program,
			Message:    message,
			Confidence: models.ConfidenceHigh,
		}
	}

	return nil
}

// parseTimestamp tries ISO-8601 layouts first, then the legacy syslog
// "Month Day HH:MM:SS" format with the current year assumed. The year
// assumption is wrong for logs spanning a year boundary; that imprecision
// is inherited from the log format itself.
func parseTimestamp(v string) (time.Time, bool) {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}

	if t, err := time.ParseInLocation("Jan _2 15:04:05", v, time.UTC); err == nil {
		year := time.Now().UTC().Year()
		return time.Date(year, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), true
	}

	return time.Time{}, false
}

package extract

import (
	"testing"
	"time"

	"authsignal/pkg/models"
)

func TestExtractSSHLogin(t *testing.T) {
	line := "2026-02-11T12:00:00.123456+00:00 host1 sshd[123]: Accepted publickey for alice from 10.0.0.1 port 50022 ssh2"
	ev := Extract(line)
	if ev == nil {
		t.Fatalf("expected event, got nil")
	}
	if ev.Type != models.EventSSHLogin {
		t.Fatalf("expected ssh_login, got %s", ev.Type)
	}
	if ev.User != "alice" || ev.IP != "10.0.0.1" || ev.Hostname != "host1" {
		t.Fatalf("unexpected fields: %+v", ev)
	}
	want := time.Date(2026, 2, 11, 12, 0, 0, 123456000, time.UTC)
	if !ev.Timestamp.Equal(want) {
		t.Fatalf("unexpected timestamp: %v", ev.Timestamp)
	}
}

func TestExtractSSHFailureVariants(t *testing.T) {
	cases := []struct {
		line string
		user string
		ip   string
	}{
		{"2026-02-11T12:00:00Z host1 sshd[9]: Failed password for alice from 10.0.0.9 port 22 ssh2", "alice", "10.0.0.9"},
		{"2026-02-11T12:00:00Z host1 sshd[9]: Failed password for invalid user oracle from 203.0.113.7 port 22 ssh2", "oracle", "203.0.113.7"},
		{"2026-02-11T12:00:00Z host1 sshd[9]: Invalid user postgres from 203.0.113.8", "postgres", "203.0.113.8"},
	}
	for _, tc := range cases {
		ev := Extract(tc.line)
		if ev == nil || ev.Type != models.EventSSHFailure {
			t.Fatalf("expected ssh_failure for %q, got %+v", tc.line, ev)
		}
		if ev.User != tc.user || ev.IP != tc.ip {
			t.Fatalf("unexpected fields for %q: %+v", tc.line, ev)
		}
	}
}

func TestExtractSudoCommand(t *testing.T) {
	line := "2026-02-11T12:05:01Z host1 sudo: bob : TTY=pts/0 ; PWD=/home/bob ; USER=root ; COMMAND=/usr/bin/apt update"
	ev := Extract(line)
	if ev == nil || ev.Type != models.EventPrivilegeEscalation {
		t.Fatalf("expected privilege_escalation, got %+v", ev)
	}
	if ev.User != "bob" {
		t.Fatalf("expected user bob, got %q", ev.User)
	}
	if ev.Command != "/usr/bin/apt update" {
		t.Fatalf("unexpected command: %q", ev.Command)
	}
	if ev.Confidence != models.ConfidenceHigh {
		t.Fatalf("expected high confidence, got %s", ev.Confidence)
	}
}

func TestExtractAuthFailure(t *testing.T) {
	cases := []struct {
		line   string
		user   string
		source string
	}{
		{"2026-02-11T12:06:00Z host1 sudo: bob : pam_unix(sudo:auth): authentication failure; logname=bob uid=1000 user=bob", "bob", "sudo"},
		{"2026-02-11T12:06:00Z host1 sudo: carol : pam_unix(sudo:auth): conversation failed", "carol", "sudo"},
		{"2026-02-11T12:06:00Z host1 su[4]: pam_unix(su:auth): authentication failure; logname= uid=1000 euid=0 tty= ruser=bob rhost= user=root", "root", "su"},
	}
	for _, tc := range cases {
		ev := Extract(tc.line)
		if ev == nil || ev.Type != models.EventAuthFailure {
			t.Fatalf("expected auth_failure for %q, got %+v", tc.line, ev)
		}
		if ev.User != tc.user || ev.Source != tc.source {
			t.Fatalf("unexpected fields for %q: %+v", tc.line, ev)
		}
		if ev.Confidence != models.ConfidenceHigh {
			t.Fatalf("expected high confidence, got %s", ev.Confidence)
		}
	}
}

func TestExtractSuSession(t *testing.T) {
	line := "2026-02-11T12:07:00Z host1 su[5]: pam_unix(su:session): session opened for user root by bob(uid=1000)"
	ev := Extract(line)
	if ev == nil || ev.Type != models.EventPrivilegeEscalation {
		t.Fatalf("expected privilege_escalation, got %+v", ev)
	}
	if ev.User != "bob" || ev.TargetUser != "root" {
		t.Fatalf("unexpected attribution: %+v", ev)
	}
	if ev.Command != "su to root" {
		t.Fatalf("unexpected command: %q", ev.Command)
	}
	if ev.Confidence != models.ConfidenceMedium {
		t.Fatalf("expected medium confidence, got %s", ev.Confidence)
	}
}

func TestExtractIAMChange(t *testing.T) {
	line := "2026-02-11T12:08:00Z host1 useradd[6]: new user: name=deploy, UID=1001, GID=1001, home=/home/deploy, shell=/bin/bash"
	ev := Extract(line)
	if ev == nil || ev.Type != models.EventIAMChange {
		t.Fatalf("expected iam_change, got %+v", ev)
	}
	if ev.Program != "useradd" || ev.User != "root" {
		t.Fatalf("unexpected fields: %+v", ev)
	}
	if ev.Message == "" {
		t.Fatalf("expected message to be carried")
	}
}

func TestExtractLegacyTimestampAssumesCurrentYear(t *testing.T) {
	line := "Feb 11 12:00:00 host1 sshd[1]: Accepted publickey for alice from 10.0.0.1"
	ev := Extract(line)
	if ev == nil {
		t.Fatalf("expected event, got nil")
	}
	if got, want := ev.Timestamp.Year(), time.Now().UTC().Year(); got != want {
		t.Fatalf("expected current year %d, got %d", want, got)
	}
	if ev.Timestamp.Month() != time.February || ev.Timestamp.Day() != 11 {
		t.Fatalf("unexpected date: %v", ev.Timestamp)
	}
}

func TestExtractRejectsMalformedInput(t *testing.T) {
	lines := []string{
		"",
		"   ",
		"not a log line",
		"garbage host1 sshd[1]: Accepted publickey for alice from 10.0.0.1",
		"2026-02-11T12:00:00Z host1 sshd[1]: something unrelated",
		"2026-02-11T12:00:00Z host1 cron[1]: (root) CMD (run-parts /etc/cron.hourly)",
	}
	for _, line := range lines {
		if ev := Extract(line); ev != nil {
			t.Fatalf("expected nil for %q, got %+v", line, ev)
		}
	}
}

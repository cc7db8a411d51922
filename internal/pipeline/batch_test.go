package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"authsignal/internal/output/signaljson"
	"authsignal/pkg/models"
)

const sampleLog = `2026-03-02T10:01:00 web1 sshd[101]: Accepted publickey for alice from 10.0.0.1 port 52144 ssh2
2026-03-02T10:05:00 web1 sshd[102]: Failed password for alice from 10.0.0.1 port 52188 ssh2
2026-03-02T10:12:00 web1 sshd[103]: Failed password for alice from 10.0.0.1 port 52190 ssh2
2026-03-02T10:44:00 web1 sshd[104]: Failed password for alice from 10.0.0.1 port 52201 ssh2
garbage line that matches nothing
`

func runBatch(t *testing.T, input string) []map[string]json.RawMessage {
	t.Helper()
	var buf bytes.Buffer
	b := NewBatch(nil, signaljson.NewStreamWriter(&buf), Collaborators{TenantID: "t1"}, 4)
	if _, _, err := b.RunSource(context.Background(), "test", strings.NewReader(input)); err != nil {
		t.Fatalf("RunSource: %v", err)
	}

	var lines []map[string]json.RawMessage
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(scanner.Bytes(), &obj); err != nil {
			t.Fatalf("invalid output line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, obj)
	}
	return lines
}

func str(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("expected string, got %s", raw)
	}
	return v
}

func TestBatchEndToEnd(t *testing.T) {
	lines := runBatch(t, sampleLog)

	var access, brute map[string]json.RawMessage
	var summaryLine map[string]json.RawMessage
	for _, obj := range lines {
		if raw, ok := obj["report_type"]; ok && str(t, raw) == models.ReportTypeSourceSummary {
			summaryLine = obj
			continue
		}
		switch str(t, obj["signal"]) {
		case string(models.SignalAccessPattern):
			access = obj
		case string(models.SignalBruteForce):
			brute = obj
		default:
			t.Fatalf("unexpected signal line: %v", obj)
		}
	}

	if access == nil || brute == nil {
		t.Fatalf("expected access-pattern and brute-force signals, got %d lines", len(lines))
	}

	var ipCount int
	if err := json.Unmarshal(access["ip_count"], &ipCount); err != nil || ipCount != 1 {
		t.Fatalf("expected ip_count 1, got %s", access["ip_count"])
	}
	if str(t, access["pattern"]) != models.PatternSingleIP {
		t.Fatalf("expected single_ip_access, got %s", access["pattern"])
	}

	var failures int
	if err := json.Unmarshal(brute["failure_count"], &failures); err != nil || failures != 3 {
		t.Fatalf("expected failure_count 3, got %s", brute["failure_count"])
	}

	if summaryLine == nil {
		t.Fatalf("expected a trailing summary line")
	}
}

func TestBatchNoSignalsNoSummary(t *testing.T) {
	lines := runBatch(t, "junk\nmore junk\n")
	if len(lines) != 0 {
		t.Fatalf("noise-only input should emit nothing, got %v", lines)
	}
}

func TestBatchDeterministicAcrossRuns(t *testing.T) {
	first := runBatch(t, sampleLog)
	second := runBatch(t, sampleLog)
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if !bytes.Equal(a, b) {
		t.Fatalf("reprocessing the same input must be byte-identical:\n%s\n%s", a, b)
	}
}

func TestRunFilesContinuesPastUnreadableSource(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "auth.log")
	if err := os.WriteFile(good, []byte(sampleLog), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var buf bytes.Buffer
	b := NewBatch(nil, signaljson.NewStreamWriter(&buf), Collaborators{}, 2)
	summaries, _, err := b.RunFiles(context.Background(), []string{filepath.Join(dir, "missing.log"), good})
	if err == nil {
		t.Fatalf("expected error for the unreadable source")
	}
	if len(summaries) != 1 || buf.Len() == 0 {
		t.Fatalf("readable source should still have been processed")
	}
}

func TestLoadReports(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.jsonl")
	report := strings.Join([]string{
		`{"signal":"ssh_brute_force","id":"abc123","timestamp":"2026-03-02T10:00:00Z","hostname":"web1","user":"alice","confidence":"high","status":"open","risk_score":0.3,"ip":"10.0.0.1","failure_count":3}`,
		`{"report_type":"weekly_security_summary","overall_risk":"Low","avg_risk_score":0.3,"server_count":1,"highlights":{},"narrative":"x"}`,
		`{"report_type":"fleet_weekly_security_summary","overall_risk":"Low"}`,
		`not json`,
	}, "\n")
	if err := os.WriteFile(path, []byte(report), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	summaries, signals := LoadReports([]string{path, filepath.Join(dir, "missing.jsonl")})
	if len(summaries) != 1 {
		t.Fatalf("expected 1 canonical summary, got %d", len(summaries))
	}
	if len(signals) != 1 || signals[0].Type != models.SignalBruteForce {
		t.Fatalf("expected 1 brute-force signal, got %+v", signals)
	}
	if p := signals[0].BruteForce(); p == nil || p.FailureCount != 3 {
		t.Fatalf("payload not rehydrated: %+v", signals[0])
	}
}

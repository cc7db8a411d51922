package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"authsignal/pkg/models"
)

func testSignal(t *testing.T, score float64) *models.Signal {
	t.Helper()
	ts := time.Date(2026, 2, 9, 8, 0, 0, 0, time.UTC)
	s, err := models.NewSignal(models.SignalBruteForce, ts, "web1", "root", models.ConfidenceHigh, &models.BruteForcePayload{
		IP: "203.0.113.9", FailureCount: 6,
	})
	if err != nil {
		t.Fatalf("NewSignal: %v", err)
	}
	s.RiskScore = score
	s.Narrative = "Multiple unsuccessful login attempts were recorded."
	s.Recommendation = "Place IP on temporary firewall blocklist."
	return s
}

func TestShouldNotifySignalThreshold(t *testing.T) {
	if ShouldNotifySignal(testSignal(t, 0.49)) {
		t.Fatalf("0.49 should not notify")
	}
	if !ShouldNotifySignal(testSignal(t, 0.5)) {
		t.Fatalf("0.5 should notify")
	}
}

func TestShouldNotifyFleetOnlyActionRecommended(t *testing.T) {
	if ShouldNotifyFleet(&models.FleetSummary{OverallRisk: models.TierLowReviewed}) {
		t.Fatalf("reviewed fleet should not notify")
	}
	if !ShouldNotifyFleet(&models.FleetSummary{OverallRisk: models.TierActionRecommended}) {
		t.Fatalf("action-recommended fleet should notify")
	}
}

func TestNotifySignalWebhookPayload(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
	}))
	defer srv.Close()

	n := New(Config{WebhookURL: srv.URL})
	if err := n.NotifySignal(context.Background(), testSignal(t, 0.7)); err != nil {
		t.Fatalf("NotifySignal: %v", err)
	}
	if !strings.Contains(got.Text, "web1") {
		t.Fatalf("hostname missing from text: %q", got.Text)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].Color != "#e01e5a" {
		t.Fatalf("high-risk signal should use the critical color: %+v", got.Attachments)
	}
}

func TestNotifySignalWebhookFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	n := New(Config{WebhookURL: srv.URL})
	if err := n.NotifySignal(context.Background(), testSignal(t, 0.7)); err == nil {
		t.Fatalf("expected error on 502")
	}
}

func TestNotifySignalStderrFallback(t *testing.T) {
	var buf bytes.Buffer
	n := New(Config{})
	n.out = &buf
	if err := n.NotifySignal(context.Background(), testSignal(t, 0.7)); err != nil {
		t.Fatalf("NotifySignal: %v", err)
	}
	if !strings.Contains(buf.String(), "NOTIFICATION ALERT") {
		t.Fatalf("fallback alert missing: %q", buf.String())
	}
}

// Package notify delivers priority alerts to a Slack-style webhook.
// Delivery is best-effort: failures are logged once and never retried.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"authsignal/pkg/models"
)

// notifyScoreThreshold selects signals worth a push notification.
const notifyScoreThreshold = 0.5

// ShouldNotifySignal reports whether a signal warrants a notification.
func ShouldNotifySignal(sig *models.Signal) bool {
	return sig != nil && sig.RiskScore >= notifyScoreThreshold
}

// ShouldNotifyFleet reports whether a fleet summary warrants a
// notification. Only the top tier pages anyone.
func ShouldNotifyFleet(fs *models.FleetSummary) bool {
	return fs != nil && fs.OverallRisk == models.TierActionRecommended
}

// Config configures the notifier.
type Config struct {
	WebhookURL string
	Timeout    time.Duration
}

// Notifier posts alert payloads to a webhook. With no webhook configured
// it prints a plain-text alert block to stderr instead, so priority
// signals are still visible in unconfigured environments.
type Notifier struct {
	url    string
	client *http.Client
	out    io.Writer
}

// New creates a notifier.
func New(cfg Config) *Notifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{
		url:    cfg.WebhookURL,
		client: &http.Client{Timeout: timeout},
		out:    os.Stderr,
	}
}

type field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type attachment struct {
	Color  string  `json:"color"`
	Fields []field `json:"fields"`
	Footer string  `json:"footer"`
}

type webhookPayload struct {
	Text        string       `json:"text"`
	Attachments []attachment `json:"attachments"`
}

// NotifySignal delivers an alert for one priority signal.
func (n *Notifier) NotifySignal(ctx context.Context, sig *models.Signal) error {
	if n.url == "" {
		fmt.Fprintf(n.out, "--- NOTIFICATION ALERT ---\n")
		fmt.Fprintf(n.out, "Signal: %s\n", sig.Type)
		fmt.Fprintf(n.out, "Narrative: %s\n", sig.Narrative)
		fmt.Fprintf(n.out, "Recommendation: %s\n", sig.Recommendation)
		fmt.Fprintf(n.out, "--------------------------\n")
		return nil
	}

	color := "#ecb22e"
	if sig.RiskScore > notifyScoreThreshold {
		color = "#e01e5a"
	}
	payload := webhookPayload{
		Text: fmt.Sprintf("*Priority signal detected on %s*", sig.Hostname),
		Attachments: []attachment{{
			Color: color,
			Fields: []field{
				{Title: "Type", Value: string(sig.Type), Short: true},
				{Title: "User", Value: sig.User, Short: true},
				{Title: "Risk Score", Value: fmt.Sprintf("%.2f", sig.RiskScore), Short: true},
				{Title: "Narrative", Value: sig.Narrative},
				{Title: "Recommended Action", Value: sig.Recommendation},
			},
			Footer: "authsignal",
		}},
	}
	return n.post(ctx, payload)
}

// NotifyFleet delivers an alert for a fleet summary that requires action.
func (n *Notifier) NotifyFleet(ctx context.Context, fs *models.FleetSummary) error {
	if n.url == "" {
		fmt.Fprintf(n.out, "--- NOTIFICATION ALERT ---\n")
		fmt.Fprintf(n.out, "Fleet risk: %s (%d servers)\n", fs.OverallRisk, fs.ServerCount)
		fmt.Fprintf(n.out, "Narrative: %s\n", fs.Narrative)
		fmt.Fprintf(n.out, "--------------------------\n")
		return nil
	}

	payload := webhookPayload{
		Text: fmt.Sprintf("*Fleet risk is %s across %d servers*", fs.OverallRisk, fs.ServerCount),
		Attachments: []attachment{{
			Color: "#e01e5a",
			Fields: []field{
				{Title: "Overall Risk", Value: fs.OverallRisk.String(), Short: true},
				{Title: "Servers", Value: fmt.Sprintf("%d", fs.ServerCount), Short: true},
				{Title: "Narrative", Value: fs.Narrative},
			},
			Footer: "authsignal",
		}},
	}
	return n.post(ctx, payload)
}

func (n *Notifier) post(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook request failed with status %s", resp.Status)
	}
	return nil
}

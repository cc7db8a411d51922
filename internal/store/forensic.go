package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"authsignal/pkg/models"
)

// ForensicConfig configures the forensic evidence store client.
type ForensicConfig struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

// ForensicStore posts finished signals to a remote evidence service over
// HTTP and proxies free-text queries to it.
type ForensicStore struct {
	ingestURL string
	queryURL  string
	headers   map[string]string
	client    *http.Client
}

// NewForensicStore creates a forensic store client.
func NewForensicStore(cfg ForensicConfig) (*ForensicStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("forensic store URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	base := strings.TrimRight(cfg.URL, "/")
	return &ForensicStore{
		ingestURL: base + "/signals",
		queryURL:  base + "/query",
		headers:   cfg.Headers,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

// Name identifies the store in logs.
func (s *ForensicStore) Name() string { return "forensic" }

type forensicBatch struct {
	TenantID string           `json:"tenant_id"`
	Signals  []*models.Signal `json:"signals"`
}

// Ingest posts a batch of signals.
func (s *ForensicStore) Ingest(ctx context.Context, tenantID string, signals []*models.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	body, err := json.Marshal(forensicBatch{TenantID: tenantID, Signals: signals})
	if err != nil {
		return fmt.Errorf("failed to marshal signals: %w", err)
	}

	resp, err := s.post(ctx, s.ingestURL, body)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("forensic ingest failed with status %s", resp.Status)
	}
	return nil
}

type forensicQuery struct {
	TenantID string `json:"tenant_id"`
	Query    string `json:"query"`
}

// Query forwards the free-text query and decodes matching signals.
func (s *ForensicStore) Query(ctx context.Context, tenantID, query string) ([]*models.Signal, error) {
	body, err := json.Marshal(forensicQuery{TenantID: tenantID, Query: query})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	resp, err := s.post(ctx, s.queryURL, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("forensic query failed with status %s", resp.Status)
	}

	var out []*models.Signal
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode query response: %w", err)
	}
	return out, nil
}

// Close releases HTTP resources.
func (s *ForensicStore) Close() error { return nil }

func (s *ForensicStore) post(ctx context.Context, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	return resp, nil
}

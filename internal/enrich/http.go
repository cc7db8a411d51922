package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"authsignal/internal/logger"
	"authsignal/pkg/models"
)

// Config configures the HTTP enrichment client.
type Config struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

// HTTPEnricher calls a remote narrative service over HTTP. Both calls use
// short timeouts so a slow service cannot delay signal emission.
type HTTPEnricher struct {
	enrichURL string
	indexURL  string
	headers   map[string]string
	client    *http.Client
}

// NewHTTPEnricher creates an HTTP enrichment client.
func NewHTTPEnricher(cfg Config) (*HTTPEnricher, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("enrichment URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	base := strings.TrimRight(cfg.URL, "/")
	return &HTTPEnricher{
		enrichURL: base + "/enrich",
		indexURL:  base + "/index",
		headers:   cfg.Headers,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

type enrichRequest struct {
	TenantID string         `json:"tenant_id"`
	Signal   *models.Signal `json:"signal"`
}

// Enrich posts the signal and decodes any proposed replacement text.
func (e *HTTPEnricher) Enrich(ctx context.Context, tenantID string, sig *models.Signal) Result {
	body, err := json.Marshal(enrichRequest{TenantID: tenantID, Signal: sig})
	if err != nil {
		return Failure(fmt.Sprintf("marshal enrich request: %v", err))
	}

	resp, err := e.post(ctx, e.enrichURL, body)
	if err != nil {
		return Failure(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return Failure(fmt.Sprintf("enrich request failed with status %s", resp.Status))
	}

	var v Enrichment
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&v); err != nil {
		return Failure(fmt.Sprintf("decode enrich response: %v", err))
	}
	return Success(v)
}

// Index submits the finished signal for similarity indexing. Failures are
// logged at debug and dropped.
func (e *HTTPEnricher) Index(ctx context.Context, tenantID string, sig *models.Signal) {
	body, err := json.Marshal(enrichRequest{TenantID: tenantID, Signal: sig})
	if err != nil {
		logger.Debugf("index marshal failed: %v", err)
		return
	}
	resp, err := e.post(ctx, e.indexURL, body)
	if err != nil {
		logger.Debugf("index request failed: %v", err)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		logger.Debugf("index request failed with status %s", resp.Status)
	}
}

func (e *HTTPEnricher) post(ctx context.Context, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	return resp, nil
}

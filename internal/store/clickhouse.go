package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"authsignal/pkg/models"
)

// ClickHouseConfig configures the analytical store writer.
type ClickHouseConfig struct {
	URL      string
	Database string
	Table    string
	Username string
	Password string
	Timeout  time.Duration
	Headers  map[string]string
}

// ClickHouseStore sends signals to ClickHouse via HTTP JSONEachRow and
// answers free-text queries with a narrative substring search.
type ClickHouseStore struct {
	base     string
	database string
	table    string
	headers  map[string]string
	client   *http.Client
}

// NewClickHouseStore creates a ClickHouse HTTP store.
func NewClickHouseStore(cfg ClickHouseConfig) (*ClickHouseStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("clickhouse URL is empty")
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.Table == "" {
		cfg.Table = "auth_signals"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	headers := map[string]string{}
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	if cfg.Username != "" {
		headers["X-ClickHouse-User"] = cfg.Username
	}
	if cfg.Password != "" {
		headers["X-ClickHouse-Key"] = cfg.Password
	}

	return &ClickHouseStore{
		base:     strings.TrimRight(cfg.URL, "/"),
		database: cfg.Database,
		table:    cfg.Table,
		headers:  headers,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Name identifies the store in logs.
func (s *ClickHouseStore) Name() string { return "clickhouse" }

// Ingest sends a batch of signals as JSONEachRow rows. The tenant id is
// stamped onto each row.
func (s *ClickHouseStore) Ingest(ctx context.Context, tenantID string, signals []*models.Signal) error {
	if len(signals) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, sig := range signals {
		row, err := tenantRow(tenantID, sig)
		if err != nil {
			return fmt.Errorf("failed to marshal signal row: %w", err)
		}
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("failed to encode signal row: %w", err)
		}
	}

	q := fmt.Sprintf("INSERT INTO %s.%s FORMAT JSONEachRow", quoteIdent(s.database), quoteIdent(s.table))
	return s.exec(ctx, q, &body, nil)
}

// Query searches stored rows whose narrative or user matches the query
// text and decodes them back into signals.
func (s *ClickHouseStore) Query(ctx context.Context, tenantID, query string) ([]*models.Signal, error) {
	needle := strings.ReplaceAll(query, "'", "\\'")
	tenant := strings.ReplaceAll(tenantID, "'", "\\'")
	q := fmt.Sprintf(
		"SELECT * EXCEPT tenant_id FROM %s.%s WHERE tenant_id = '%s' AND (positionCaseInsensitive(narrative, '%s') > 0 OR positionCaseInsensitive(user, '%s') > 0) ORDER BY timestamp DESC LIMIT 100 FORMAT JSONEachRow",
		quoteIdent(s.database), quoteIdent(s.table), tenant, needle, needle)

	var out []*models.Signal
	err := s.exec(ctx, q, nil, func(line []byte) error {
		var sig models.Signal
		if err := json.Unmarshal(line, &sig); err != nil {
			return fmt.Errorf("failed to decode signal row: %w", err)
		}
		out = append(out, &sig)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases resources.
func (s *ClickHouseStore) Close() error { return nil }

func (s *ClickHouseStore) exec(ctx context.Context, query string, body io.Reader, onRow func([]byte) error) error {
	endpoint := s.base + "/?query=" + url.QueryEscape(query)
	if body == nil {
		body = strings.NewReader("")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("clickhouse request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("clickhouse request failed with status %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	if onRow == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("failed to read clickhouse response: %w", err)
	}
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if err := onRow(line); err != nil {
			return err
		}
	}
	return nil
}

// tenantRow flattens a signal and stamps the tenant id onto it.
func tenantRow(tenantID string, sig *models.Signal) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(sig)
	if err != nil {
		return nil, err
	}
	row := make(map[string]json.RawMessage, 24)
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, err
	}
	tid, err := json.Marshal(tenantID)
	if err != nil {
		return nil, err
	}
	row["tenant_id"] = tid
	return row, nil
}

func quoteIdent(v string) string {
	if v == "" {
		return ""
	}
	v = strings.ReplaceAll(v, "`", "")
	return "`" + v + "`"
}

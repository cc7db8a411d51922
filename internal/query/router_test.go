package query

import (
	"context"
	"testing"

	"authsignal/pkg/models"
)

type fakeStore struct {
	name    string
	queries []string
}

func (f *fakeStore) Name() string { return f.name }
func (f *fakeStore) Ingest(ctx context.Context, tenantID string, signals []*models.Signal) error {
	return nil
}
func (f *fakeStore) Query(ctx context.Context, tenantID, q string) ([]*models.Signal, error) {
	f.queries = append(f.queries, q)
	return nil, nil
}
func (f *fakeStore) Close() error { return nil }

func TestClassify(t *testing.T) {
	cases := []struct {
		query string
		want  Intent
	}{
		{"how many brute force attempts this week", IntentAnalytical},
		{"top users by risk score", IntentAnalytical},
		{"find signals similar to this one", IntentSimilarity},
		{"is this login risky", IntentDecision},
		{"alert me whenever root logs in", IntentStreaming},
		{"logins from 10.0.0.1 yesterday", IntentExact},
	}
	for _, tc := range cases {
		got, conf := Classify(tc.query)
		if got != tc.want {
			t.Fatalf("Classify(%q) = %s, want %s", tc.query, got, tc.want)
		}
		if conf <= 0 || conf > 1 {
			t.Fatalf("Classify(%q) confidence out of range: %v", tc.query, conf)
		}
	}
}

func TestDecompose(t *testing.T) {
	parts := Decompose("count failed logins and find similar activity")
	if len(parts) != 2 || parts[0] != "count failed logins" || parts[1] != "find similar activity" {
		t.Fatalf("unexpected decomposition: %v", parts)
	}
	if got := Decompose("single query"); len(got) != 1 {
		t.Fatalf("simple query should stay whole: %v", got)
	}
}

func TestRouteCompoundQuery(t *testing.T) {
	analytical := &fakeStore{name: "clickhouse"}
	similarity := &fakeStore{name: "redis-index"}
	r := NewRouter(analytical, similarity, nil)

	decisions := r.Route(context.Background(), "t1", "count failed logins and find similar activity")
	if len(decisions) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(decisions))
	}
	if decisions[0].Intent != IntentAnalytical || decisions[0].Engine != "clickhouse" {
		t.Fatalf("first part misrouted: %+v", decisions[0])
	}
	if decisions[1].Intent != IntentSimilarity || decisions[1].Engine != "redis-index" {
		t.Fatalf("second part misrouted: %+v", decisions[1])
	}
	if len(analytical.queries) != 1 || len(similarity.queries) != 1 {
		t.Fatalf("stores not consulted: %v / %v", analytical.queries, similarity.queries)
	}
}

func TestRouteUnregisteredIntent(t *testing.T) {
	r := NewRouter(nil, nil, nil)
	decisions := r.Route(context.Background(), "t1", "logins from 10.0.0.1")
	if len(decisions) != 1 || decisions[0].Engine != "unrouted" || decisions[0].Results != nil {
		t.Fatalf("unexpected decision: %+v", decisions[0])
	}
}

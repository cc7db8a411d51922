// Package query routes free-text analyst queries to the store best
// suited to answer them.
package query

import (
	"context"
	"regexp"
	"strings"

	"authsignal/internal/logger"
	"authsignal/internal/store"
	"authsignal/pkg/models"
)

// Intent is a coarse query category.
type Intent string

const (
	IntentExact      Intent = "EXACT"
	IntentAnalytical Intent = "ANALYTICAL"
	IntentSimilarity Intent = "SIMILARITY"
	IntentStreaming  Intent = "STREAMING"
	IntentDecision   Intent = "DECISION"
)

var conjunctionRegex = regexp.MustCompile(`(?i) and | plus | as well as `)

// Classify maps a query to an intent with a confidence. Keyword rules
// cover the common cases; anything else falls back to exact matching.
func Classify(q string) (Intent, float64) {
	lower := strings.ToLower(q)
	for _, w := range []string{"how many", "top", "average", "count", "trend"} {
		if strings.Contains(lower, w) {
			return IntentAnalytical, 0.95
		}
	}
	for _, w := range []string{"similar", "like this", "matches pattern"} {
		if strings.Contains(lower, w) {
			return IntentSimilarity, 0.95
		}
	}
	for _, w := range []string{"alert me", "real-time", "whenever"} {
		if strings.Contains(lower, w) {
			return IntentStreaming, 0.9
		}
	}
	for _, w := range []string{"is this", "should i", "risk of"} {
		if strings.Contains(lower, w) {
			return IntentDecision, 0.85
		}
	}
	return IntentExact, 0.7
}

// Decompose splits a compound query on conjunctions into independently
// routable sub-queries.
func Decompose(q string) []string {
	parts := conjunctionRegex.Split(q, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Decision is one routing outcome for a sub-query.
type Decision struct {
	OriginalQuery string           `json:"original_query"`
	SubQuery      string           `json:"sub_query"`
	TenantID      string           `json:"tenant_id"`
	Intent        Intent           `json:"intent"`
	Confidence    float64          `json:"confidence"`
	Engine        string           `json:"engine"`
	Results       []*models.Signal `json:"results,omitempty"`
	Error         string           `json:"error,omitempty"`
}

// Router maps intents to the stores registered for them.
type Router struct {
	engines map[Intent]store.Store
}

// NewRouter creates a router over the available stores. Intents with no
// registered store still produce a routing decision, just no results.
func NewRouter(analytical, similarity, exact store.Store) *Router {
	engines := make(map[Intent]store.Store, 3)
	if analytical != nil {
		engines[IntentAnalytical] = analytical
	}
	if similarity != nil {
		engines[IntentSimilarity] = similarity
	}
	if exact != nil {
		engines[IntentExact] = exact
	}
	return &Router{engines: engines}
}

// Route decomposes the query, classifies each part and runs it against
// the store registered for its intent.
func (r *Router) Route(ctx context.Context, tenantID, q string) []Decision {
	parts := Decompose(q)
	out := make([]Decision, 0, len(parts))

	for _, part := range parts {
		intent, confidence := Classify(part)
		d := Decision{
			OriginalQuery: q,
			SubQuery:      part,
			TenantID:      tenantID,
			Intent:        intent,
			Confidence:    confidence,
			Engine:        engineName(intent, r.engines[intent]),
		}

		if st, ok := r.engines[intent]; ok {
			results, err := st.Query(ctx, tenantID, part)
			if err != nil {
				d.Error = err.Error()
				logger.Warnf("query against %s failed: %v", st.Name(), err)
			} else {
				d.Results = results
			}
		}
		logger.Infof("route: %q -> %s (%s)", part, d.Engine, intent)
		out = append(out, d)
	}
	return out
}

func engineName(intent Intent, st store.Store) string {
	if st != nil {
		return st.Name()
	}
	switch intent {
	case IntentStreaming:
		return "stream"
	case IntentDecision:
		return "enrichment"
	default:
		return "unrouted"
	}
}

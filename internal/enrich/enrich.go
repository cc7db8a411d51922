// Package enrich defines the optional narrative enrichment collaborator.
// Enrichment is best-effort: the deterministic narrative generator always
// runs first, and an enrichment failure can only mean its text stands.
package enrich

import (
	"context"

	"authsignal/pkg/models"
)

// Enrichment is replacement text proposed by an external collaborator.
// Empty fields leave the deterministic output in place.
type Enrichment struct {
	Narrative      string            `json:"narrative,omitempty"`
	Recommendation string            `json:"recommendation,omitempty"`
	Confidence     models.Confidence `json:"confidence,omitempty"`
}

// Result is the outcome of one enrichment call. Failures carry a reason
// for logging only; callers never branch on it beyond the OK check.
type Result struct {
	OK     bool
	Value  Enrichment
	Reason string
}

// Success wraps a returned enrichment.
func Success(v Enrichment) Result {
	return Result{OK: true, Value: v}
}

// Failure records why no enrichment is available.
func Failure(reason string) Result {
	return Result{Reason: reason}
}

// Enricher consults an external narrative service for a signal and feeds
// finished signals back into its similarity index.
type Enricher interface {
	// Enrich proposes replacement narrative text for a signal.
	Enrich(ctx context.Context, tenantID string, sig *models.Signal) Result

	// Index submits a finished signal for similarity indexing. The call
	// is fire-and-forget; failures are swallowed by the implementation.
	Index(ctx context.Context, tenantID string, sig *models.Signal)
}

// Noop is the enricher used when no enrichment endpoint is configured.
type Noop struct{}

func (Noop) Enrich(context.Context, string, *models.Signal) Result {
	return Failure("enrichment disabled")
}

func (Noop) Index(context.Context, string, *models.Signal) {}

// Apply overwrites the signal's narrative fields with any non-empty
// enrichment text.
func Apply(sig *models.Signal, v Enrichment) {
	if v.Narrative != "" {
		sig.Narrative = v.Narrative
	}
	if v.Recommendation != "" {
		sig.Recommendation = v.Recommendation
	}
	if v.Confidence != "" {
		sig.Confidence = v.Confidence
	}
}

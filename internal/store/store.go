// Package store holds the persistence collaborators that receive finished
// signals. Every store is best-effort from the pipeline's point of view:
// ingestion failures are logged by the caller and never alter emitted
// output.
package store

import (
	"context"

	"authsignal/pkg/models"
)

// Store ingests finished signals for one tenant and answers free-text
// queries over what it has stored.
type Store interface {
	// Name identifies the store in logs.
	Name() string

	// Ingest persists a batch of finished signals.
	Ingest(ctx context.Context, tenantID string, signals []*models.Signal) error

	// Query runs a free-text search and returns matching signals.
	Query(ctx context.Context, tenantID, query string) ([]*models.Signal, error)

	// Close releases store resources.
	Close() error
}

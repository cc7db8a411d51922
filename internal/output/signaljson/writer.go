// Package signaljson writes signals and summaries as JSON lines.
package signaljson

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"authsignal/internal/logger"
	"authsignal/pkg/models"
)

// Writer outputs signals and summaries to a JSON lines stream.
type Writer struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewWriter creates a JSONL writer backed by a file.
func NewWriter(path string) (*Writer, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	logger.Infof("signal JSON writer initialized: %s", path)
	return &Writer{file: f, encoder: json.NewEncoder(f)}, nil
}

// NewStreamWriter creates a JSONL writer over an existing stream, such as
// stdout. Close does not close the underlying stream.
func NewStreamWriter(w io.Writer) *Writer {
	return &Writer{encoder: json.NewEncoder(w)}
}

// WriteSignals writes a batch of signals.
func (w *Writer) WriteSignals(signals []*models.Signal) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, sig := range signals {
		if err := w.encoder.Encode(sig); err != nil {
			return fmt.Errorf("failed to encode signal: %w", err)
		}
	}
	return nil
}

// WriteSourceSummary writes one per-source weekly summary line.
func (w *Writer) WriteSourceSummary(s *models.SourceSummary) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.encoder.Encode(s); err != nil {
		return fmt.Errorf("failed to encode source summary: %w", err)
	}
	return nil
}

// WriteFleetSummary writes one fleet summary line.
func (w *Writer) WriteFleetSummary(s *models.FleetSummary) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.encoder.Encode(s); err != nil {
		return fmt.Errorf("failed to encode fleet summary: %w", err)
	}
	return nil
}

// Close closes the output file when one is attached.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

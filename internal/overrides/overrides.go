// Package overrides loads analyst dispositions recorded against signal ids.
package overrides

import (
	"encoding/json"
	"fmt"
	"os"

	"authsignal/internal/logger"
	"authsignal/pkg/models"
)

// Load reads an override file mapping signal id to disposition. A missing
// or unreadable file is not an error: runs proceed with an empty override
// set and a warning, so a lost file never blocks report generation.
func Load(path string) map[string]models.Override {
	if path == "" {
		return map[string]models.Override{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warnf("override file %s unavailable, continuing without overrides: %v", path, err)
		return map[string]models.Override{}
	}
	out, err := Parse(data)
	if err != nil {
		logger.Warnf("override file %s malformed, continuing without overrides: %v", path, err)
		return map[string]models.Override{}
	}
	return out
}

// Parse decodes the override mapping and validates statuses.
func Parse(data []byte) (map[string]models.Override, error) {
	var out map[string]models.Override
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode overrides: %w", err)
	}
	for id, ov := range out {
		switch ov.Status {
		case models.StatusOpen, models.StatusReviewed, models.StatusResolved:
		default:
			return nil, fmt.Errorf("override %s: unknown status %q", id, ov.Status)
		}
	}
	if out == nil {
		out = map[string]models.Override{}
	}
	return out, nil
}

package rules

import "authsignal/pkg/models"

// Engine applies detection rules to parsed events.
type Engine interface {
	Apply(ev *models.ParsedEvent) []models.DetectionTag
}

// NoopEngine returns no tags.
type NoopEngine struct{}

// Apply returns an empty tag list.
func (n *NoopEngine) Apply(ev *models.ParsedEvent) []models.DetectionTag {
	return nil
}

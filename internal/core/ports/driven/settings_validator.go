package driven

import "github.com/custodia-labs/nexus-canvas/internal/core/domain"

// SettingsValidator validates settings structurally (ranges, required fields).
type SettingsValidator interface {
	// ValidateCanvas returns an error describing every invalid field.
	ValidateCanvas(settings *domain.CanvasSettings) error
}

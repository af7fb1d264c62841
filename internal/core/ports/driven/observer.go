package driven

import "github.com/custodia-labs/nexus-canvas/internal/core/domain"

// CanvasObserver receives canvas events after they are applied.
// Implementations must not block; they run on the caller's goroutine.
type CanvasObserver interface {
	OnCanvasEvent(event domain.Event)
}

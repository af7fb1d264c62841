package domain

// EventKind identifies what changed on a canvas.
type EventKind string

// Canvas event kinds.
const (
	EventNodesChanged      EventKind = "nodes_changed"
	EventEdgesChanged      EventKind = "edges_changed"
	EventViewportChanged   EventKind = "viewport_changed"
	EventHistoryChanged    EventKind = "history_changed"
	EventVisibilityChanged EventKind = "visibility_changed"
	EventProjectLoaded     EventKind = "project_loaded"
	EventProjectSaved      EventKind = "project_saved"
	EventSaveFailed        EventKind = "save_failed"
	EventHistoryCompacted  EventKind = "history_compacted"
)

// Event is delivered to canvas observers after the change is applied.
type Event struct {
	Kind EventKind

	// ProjectID is the project loaded when the event was raised.
	ProjectID string

	// Err is set for failure events.
	Err error
}

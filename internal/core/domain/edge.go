package domain

import "math"

// Edge data keys understood by the core.
const (
	// EdgeKeyOrder is an optional numeric ordering hint among a node's inputs.
	EdgeKeyOrder = "order"

	// EdgeKeyImageRole names the role of an image input (e.g. "first_frame").
	EdgeKeyImageRole = "imageRole"
)

// DefaultImageRole is used when an image edge carries no role.
const DefaultImageRole = "input_reference"

// Edge is a directed data-flow connection from Source to Target.
type Edge struct {
	ID           string         `json:"id"`
	Source       string         `json:"source"`
	Target       string         `json:"target"`
	SourceHandle string         `json:"sourceHandle,omitempty"`
	TargetHandle string         `json:"targetHandle,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

// Clone returns a deep copy of the edge.
func (e Edge) Clone() Edge {
	e.Data = CloneData(e.Data)
	return e
}

// OrderHint returns the explicit ordering hint, if the edge carries one.
func (e Edge) OrderHint() (float64, bool) {
	if e.Data == nil {
		return 0, false
	}
	switch v := e.Data[EdgeKeyOrder].(type) {
	case float64:
		return v, !math.IsNaN(v)
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// EdgeParams describes an edge to create.
type EdgeParams struct {
	// ID is optional; a fresh id is allocated when empty or already taken.
	ID           string
	Source       string
	Target       string
	SourceHandle string
	TargetHandle string
	Data         map[string]any
}

package domain

import "time"

// Viewport is the pan/zoom display state. It carries no graph invariants.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// DefaultViewport returns the viewport used for new or unreadable documents.
func DefaultViewport() Viewport {
	return Viewport{Zoom: 1}
}

// Sanitize replaces non-finite coordinates with 0 and a non-positive or
// non-finite zoom with 1.
func (v Viewport) Sanitize() Viewport {
	if !isFinite(v.X) {
		v.X = 0
	}
	if !isFinite(v.Y) {
		v.Y = 0
	}
	if !isFinite(v.Zoom) || v.Zoom <= 0 {
		v.Zoom = 1
	}
	return v
}

// Snapshot is the durable document shape handed to and from a ProjectStore.
type Snapshot struct {
	Nodes    []Node   `json:"nodes"`
	Edges    []Edge   `json:"edges"`
	Viewport Viewport `json:"viewport"`
}

// HistoryEntry is one undo/redo-addressable copy of the graph.
// Exactly one of the raw (Nodes, Edges) or Compressed forms is populated.
type HistoryEntry struct {
	Nodes []Node
	Edges []Edge

	// Compressed holds the codec output for compacted entries.
	Compressed []byte

	// Codec names the codec that produced Compressed.
	Codec string
}

// IsCompressed returns true if the entry has been compacted.
func (e *HistoryEntry) IsCompressed() bool {
	return e.Compressed != nil
}

// ProjectInfo describes a stored project.
type ProjectInfo struct {
	// ID is the project identifier the canvas was saved under.
	ID string

	// UpdatedAt is when the snapshot was last written.
	UpdatedAt time.Time

	// Size is the encoded snapshot size in bytes.
	Size int64
}

// Package domain defines the core canvas entities for Nexus.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Node: A unit of canvas content (text, config, media)
//   - Edge: A directed data-flow connection between two nodes
//   - Viewport: Display state persisted alongside the graph
//   - Snapshot: The durable {nodes, edges, viewport} document shape
//   - HistoryEntry: One undo/redo-addressable copy of the graph
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
